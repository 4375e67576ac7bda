package commits

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sakif/ghdash/internal/session"
)

// DefaultDebounce is how long typing must pause before a search term is
// applied.
const DefaultDebounce = 500 * time.Millisecond

// Searcher is the part of Service a Controller needs.
type Searcher interface {
	Search(ctx context.Context, sess *session.Session, f Filter, force bool) (*Page, error)
}

// Result is delivered to OnResult when a fetch completes and is still the
// latest one.
type Result struct {
	Filter Filter
	Page   *Page
	Err    error
}

// Controller drives an interactive commit history view.
//
// Term edits are debounced; only the last term typed within the debounce
// window is applied. Date and page changes apply at once. Every applied
// change resets or moves the page and issues exactly one fetch.
//
// Fetches run in the background and are numbered. When a fetch finishes
// after a newer one was issued, its result is dropped, so a slow response
// can never overwrite a newer view.
type Controller struct {
	searcher Searcher
	sess     *session.Session
	delay    time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	ctx      context.Context

	mu       sync.Mutex
	filter   Filter
	term     string
	timer    clockwork.Timer
	termSeq  uint64
	gen      uint64
	inflight int
	page     *Page
	err      error
	onResult func(Result)
}

// NewController returns a Controller for sess. Fetches run under ctx.
// delay <= 0 means DefaultDebounce.
func NewController(ctx context.Context, searcher Searcher, sess *session.Session, delay time.Duration, clock clockwork.Clock, logger *slog.Logger) *Controller {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		searcher: searcher,
		sess:     sess,
		delay:    delay,
		clock:    clock,
		logger:   logger,
		ctx:      ctx,
		filter:   Filter{Page: 1},
	}
}

// OnResult registers fn to receive the outcome of every non-superseded
// fetch. fn runs on the fetching goroutine.
func (c *Controller) OnResult(fn func(Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onResult = fn
}

// Load fetches the current filter, from cache when it allows.
func (c *Controller) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchLocked(false)
}

// Refresh fetches the current filter from GitHub.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchLocked(true)
}

// SetTerm records a typed search term and (re)starts the debounce timer.
func (c *Controller) SetTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.term = term
	c.termSeq++
	seq := c.termSeq
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.clock.AfterFunc(c.delay, func() { c.applyTerm(seq) })
}

func (c *Controller) applyTerm(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer keystroke restarted the timer after this one had fired.
	if seq != c.termSeq {
		return
	}
	c.timer = nil
	c.filter.Term = c.term
	c.filter.Page = 1
	c.fetchLocked(false)
}

// SetStart sets or clears (nil) the earliest commit date.
func (c *Controller) SetStart(t *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.Start = t
	c.filter.Page = 1
	c.fetchLocked(false)
}

// SetEnd sets or clears (nil) the latest commit date.
func (c *Controller) SetEnd(t *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.End = t
	c.filter.Page = 1
	c.fetchLocked(false)
}

// SetPage moves to page, clamped to the known page range. Moving to the
// current page does nothing.
func (c *Controller) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPageLocked(page)
}

// Next moves one page forward if there is one.
func (c *Controller) Next() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPageLocked(c.filter.Page + 1)
}

// Prev moves one page back if there is one.
func (c *Controller) Prev() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPageLocked(c.filter.Page - 1)
}

func (c *Controller) setPageLocked(page int) {
	total := 1
	if c.page != nil {
		total = c.page.TotalPages
	}
	page = ClampPage(page, total)
	if page == c.filter.Page {
		return
	}
	c.filter.Page = page
	c.fetchLocked(false)
}

// Busy reports whether a fetch is running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// Filter returns the applied filter. A term still inside the debounce
// window is not part of it.
func (c *Controller) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Current returns the latest page and error.
func (c *Controller) Current() (*Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page, c.err
}

// Close cancels a pending debounced term.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.termSeq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) fetchLocked(force bool) {
	c.gen++
	gen, f := c.gen, c.filter
	c.inflight++

	go func() {
		page, err := c.searcher.Search(c.ctx, c.sess, f, force)
		c.finish(gen, f, page, err)
	}()
}

func (c *Controller) finish(gen uint64, f Filter, page *Page, err error) {
	c.mu.Lock()
	c.inflight--
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("dropping superseded commit search", slog.Uint64("generation", gen))
		return
	}
	if err != nil {
		c.err = err
		c.logger.Warn("commit search failed", slog.String("error", err.Error()))
	} else {
		c.page, c.err = page, nil
	}
	fn := c.onResult
	c.mu.Unlock()

	if fn != nil {
		fn(Result{Filter: f, Page: page, Err: err})
	}
}
