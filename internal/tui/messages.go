package tui

import (
	"time"

	"github.com/sakif/ghdash/internal/commits"
	"github.com/sakif/ghdash/internal/dashboard"
)

// tickMsg redraws the refresh countdown.
type tickMsg time.Time

// statusMsg carries a dashboard status change.
type statusMsg dashboard.Status

// resultMsg carries a finished commit search.
type resultMsg commits.Result

// refreshDoneMsg ends a manual dashboard refresh.
type refreshDoneMsg struct {
	err error
}
