package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sakif/ghdash/internal/model"
	"github.com/sakif/ghdash/internal/session"
)

// State is where a Cycle is in its refresh loop.
//
//	Idle ──Start──▶ Loading ──▶ Ready
//	                   ▲   └──▶ Failed
//	                   └── tick / Refresh (from Ready or Failed)
type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time copy of a Cycle.
type Status struct {
	State State
	// Snapshot is the last good snapshot. It survives failures.
	Snapshot    *model.DashboardSnapshot
	LastRefresh time.Time
	FromCache   bool
	// Err is the message of the last failure, cleared by the next success.
	Err string
	// NextRefreshIn counts down from the TTL in whole minutes, never below 0.
	NextRefreshIn time.Duration
}

// Loader is the part of Service a Cycle needs.
type Loader interface {
	Load(ctx context.Context, sess *session.Session) (*Result, error)
	Fetch(ctx context.Context, sess *session.Session) (*Result, error)
}

// Cycle keeps one session's dashboard fresh: it loads on Start, then
// forces a fetch every TTL and on every Refresh.
type Cycle struct {
	loader Loader
	sess   *session.Session
	ttl    time.Duration
	clock  clockwork.Clock
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	snapshot  *model.DashboardSnapshot
	last      time.Time
	fromCache bool
	err       string
	onChange  func(Status)
	ticker    clockwork.Ticker
	cancel    context.CancelFunc
	done      chan struct{}
	stopped   bool
}

// NewCycle returns an Idle cycle for sess that refreshes every ttl.
func NewCycle(loader Loader, sess *session.Session, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger) *Cycle {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cycle{
		loader: loader,
		sess:   sess,
		ttl:    ttl,
		clock:  clock,
		logger: logger.With(slog.String("profile", sess.Profile)),
	}
}

// Session returns the session this cycle refreshes.
func (c *Cycle) Session() *session.Session {
	return c.sess
}

// OnChange registers fn to receive every status change. fn runs on the
// goroutine that caused the change and must not call back into the Cycle
// synchronously.
func (c *Cycle) OnChange(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Start performs the mount load (cache first), then starts the periodic
// refresh. The periodic refresh runs even if the mount load failed.
// Start on a running or stopped Cycle is a no-op.
func (c *Cycle) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil || c.stopped {
		c.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	err := c.run(ctx, false)

	c.mu.Lock()
	if loopCtx.Err() != nil {
		// Stopped during the mount load.
		done := c.done
		c.mu.Unlock()
		close(done)
		return err
	}
	c.ticker = c.clock.NewTicker(c.ttl)
	ticker, done := c.ticker, c.done
	c.mu.Unlock()

	go c.loop(loopCtx, ticker, done)
	return err
}

// Refresh forces a fetch now and restarts the TTL interval from now.
func (c *Cycle) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.ticker != nil {
		c.ticker.Reset(c.ttl)
	}
	c.mu.Unlock()

	return c.run(ctx, true)
}

// Stop ends the periodic refresh and waits for the loop to exit. It does not
// wait for a mount load in progress. A stopped Cycle never starts again.
func (c *Cycle) Stop() {
	c.mu.Lock()
	cancel, done, ticker := c.cancel, c.done, c.ticker
	c.cancel, c.ticker = nil, nil
	c.stopped = true
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if ticker == nil {
		// Still in the mount load. Start sees the cancel and never
		// starts the loop.
		return
	}
	ticker.Stop()
	<-done
}

// Running reports whether the periodic refresh is active.
func (c *Cycle) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Status returns the current state.
func (c *Cycle) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Cycle) loop(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.logger.Debug("periodic dashboard refresh")
			_ = c.run(ctx, true)
		}
	}
}

func (c *Cycle) run(ctx context.Context, force bool) error {
	c.transition(func() { c.state = Loading })

	var (
		res *Result
		err error
	)
	if force {
		res, err = c.loader.Fetch(ctx, c.sess)
	} else {
		res, err = c.loader.Load(ctx, c.sess)
	}

	if err != nil {
		c.logger.Warn("dashboard refresh failed", slog.String("error", err.Error()))
		c.transition(func() {
			c.state = Failed
			c.err = err.Error()
		})
		return err
	}

	c.transition(func() {
		c.state = Ready
		c.snapshot = res.Snapshot
		c.last = res.Timestamp
		c.fromCache = res.FromCache
		c.err = ""
	})
	return nil
}

func (c *Cycle) transition(apply func()) {
	c.mu.Lock()
	apply()
	st := c.statusLocked()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

func (c *Cycle) statusLocked() Status {
	return Status{
		State:         c.state,
		Snapshot:      c.snapshot,
		LastRefresh:   c.last,
		FromCache:     c.fromCache,
		Err:           c.err,
		NextRefreshIn: c.nextRefreshInLocked(),
	}
}

func (c *Cycle) nextRefreshInLocked() time.Duration {
	if c.last.IsZero() {
		return 0
	}
	left := c.ttl - c.clock.Since(c.last)
	if left < 0 {
		return 0
	}
	return left.Truncate(time.Minute)
}
