package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/ghdash/internal/dashboard"
	"github.com/sakif/ghdash/internal/model"
)

// DashboardHandler serves the dashboard page and its JSON twin.
//
// It never talks to GitHub itself. Each live session owns a dashboard.Cycle
// that loads the snapshot (cache first), refreshes it every TTL, and keeps the
// last good snapshot through failures. The handler renders whatever the cycle
// currently holds and forwards manual refreshes to it.
type DashboardHandler struct {
	sessions SessionService
	pages    *Pages
	logger   *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(sessions SessionService, pages *Pages, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{sessions: sessions, pages: pages, logger: logger}
}

// monthBar is one column of the commit activity chart.
type monthBar struct {
	Label   string
	Count   int
	Percent int
}

// dashboardView is the data of dashboard.html.
type dashboardView struct {
	layout
	Snapshot           *model.DashboardSnapshot
	Loading            bool
	LastRefresh        time.Time
	FromCache          bool
	NextRefreshMinutes int
	Error              string
	Months             []monthBar
	Languages          []model.LanguageShare
}

func newDashboardView(user *model.UserProfile, st dashboard.Status) dashboardView {
	v := dashboardView{
		layout:             layout{Title: "Dashboard · ghdash", User: user},
		Snapshot:           st.Snapshot,
		Loading:            st.State == dashboard.Loading,
		LastRefresh:        st.LastRefresh,
		FromCache:          st.FromCache,
		NextRefreshMinutes: int(st.NextRefreshIn / time.Minute),
		Error:              st.Err,
	}
	if st.Snapshot != nil {
		v.Months = monthBars(st.Snapshot.Summary.MonthlyCommits)
		v.Languages = st.Snapshot.Languages.Sorted()
	}
	return v
}

// monthBars scales each month against the busiest one.
func monthBars(m model.MonthlyCounts) []monthBar {
	highest := m.Max()
	bars := make([]monthBar, len(model.MonthLabels))
	for i, label := range model.MonthLabels {
		bars[i] = monthBar{Label: label, Count: m[i]}
		if highest > 0 {
			bars[i].Percent = m[i] * 100 / highest
		}
	}
	return bars
}

// HandleDashboard renders the dashboard.
//
// HTTP: GET /dashboard
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	active := activeSession(w, r, h.sessions, h.pages, false, h.logger)
	if active == nil {
		return
	}

	view := newDashboardView(active.Session.User, active.Cycle.Status())
	h.pages.render(w, http.StatusOK, "dashboard", view)
}

// HandleRefresh forces a refetch and shows the dashboard again.
//
// HTTP: POST /dashboard/refresh
//
// A failed refresh is not an error page: the cycle keeps the previous
// snapshot and the dashboard shows the message above it.
func (h *DashboardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	active := activeSession(w, r, h.sessions, h.pages, false, h.logger)
	if active == nil {
		return
	}

	if err := active.Cycle.Refresh(r.Context()); err != nil {
		h.logger.Warn("manual dashboard refresh failed",
			slog.String("profile", active.Session.Profile),
			slog.String("error", err.Error()),
		)
	}

	// POST-REDIRECT-GET: reloading the page must not refetch again.
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// DashboardResponse is the JSON form of a dashboard.Status.
type DashboardResponse struct {
	State              string                   `json:"state"`
	Snapshot           *model.DashboardSnapshot `json:"snapshot"`
	LastRefresh        *time.Time               `json:"lastRefresh,omitempty"`
	FromCache          bool                     `json:"fromCache"`
	Error              string                   `json:"error,omitempty"`
	NextRefreshMinutes int                      `json:"nextRefreshMinutes"`
}

func newDashboardResponse(st dashboard.Status) DashboardResponse {
	resp := DashboardResponse{
		State:              st.State.String(),
		Snapshot:           st.Snapshot,
		FromCache:          st.FromCache,
		Error:              st.Err,
		NextRefreshMinutes: int(st.NextRefreshIn / time.Minute),
	}
	if !st.LastRefresh.IsZero() {
		ts := st.LastRefresh
		resp.LastRefresh = &ts
	}
	return resp
}

// HandleAPIDashboard returns the current dashboard state as JSON.
//
// HTTP: GET /api/dashboard
func (h *DashboardHandler) HandleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	active := activeSession(w, r, h.sessions, h.pages, true, h.logger)
	if active == nil {
		return
	}

	writeJSON(w, http.StatusOK, newDashboardResponse(active.Cycle.Status()))
}

// HandleAPIRefresh forces a refetch and returns the new state.
//
// HTTP: POST /api/dashboard/refresh
//
// Unlike the HTML route, a failure is reported with its status (502 for a
// GitHub error) so API clients can tell it apart from a stale success.
func (h *DashboardHandler) HandleAPIRefresh(w http.ResponseWriter, r *http.Request) {
	active := activeSession(w, r, h.sessions, h.pages, true, h.logger)
	if active == nil {
		return
	}

	if err := active.Cycle.Refresh(r.Context()); err != nil {
		h.logger.Warn("manual dashboard refresh failed",
			slog.String("profile", active.Session.Profile),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newDashboardResponse(active.Cycle.Status()))
}
