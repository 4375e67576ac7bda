package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/auth"
	"github.com/sakif/ghdash/internal/handler"
)

func newDashboardHandler(t *testing.T, sessions *fakeSessions) *handler.DashboardHandler {
	t.Helper()
	return handler.NewDashboardHandler(sessions, newPages(t), discardLogger())
}

func TestDashboardHandler_Page(t *testing.T) {
	t.Run("renders the cards", func(t *testing.T) {
		active, _ := newActive(t)
		h := newDashboardHandler(t, &fakeSessions{active: active})
		rr := httptest.NewRecorder()

		h.HandleDashboard(rr, signedIn(httptest.NewRequest(http.MethodGet, "/dashboard", nil)))

		require.Equal(t, http.StatusOK, rr.Code)
		body := rr.Body.String()
		assert.Contains(t, body, `data-testid="projects-card"><span class="label">Projects</span><span class="value">25</span>`)
		assert.Contains(t, body, `data-testid="followers-card"><span class="label">Followers</span><span class="value">100</span>`)
		assert.Contains(t, body, `data-testid="following-card"><span class="label">Following</span><span class="value">50</span>`)
		assert.Contains(t, body, `<span class="value">1,234</span>`, "totals use thousands separators")
		assert.Contains(t, body, `data-testid="commit-chart"`)
		assert.Contains(t, body, "TypeScript")
		assert.Contains(t, body, "Next refresh in 15 min.")
		assert.Contains(t, body, "The Octocat")
	})

	t.Run("failure keeps the snapshot and shows the message", func(t *testing.T) {
		active, loader := newActive(t)
		loader.fail(apperror.API(http.StatusInternalServerError, "Internal Server Error"))
		require.Error(t, active.Cycle.Refresh(t.Context()))
		h := newDashboardHandler(t, &fakeSessions{active: active})
		rr := httptest.NewRecorder()

		h.HandleDashboard(rr, signedIn(httptest.NewRequest(http.MethodGet, "/dashboard", nil)))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `data-testid="dashboard-error"`)
		assert.Contains(t, rr.Body.String(), "GitHub API error: 500 Internal Server Error")
		assert.Contains(t, rr.Body.String(), `<span class="value">25</span>`)
	})

	t.Run("signed out visitors are sent to login", func(t *testing.T) {
		h := newDashboardHandler(t, &fakeSessions{})
		rr := httptest.NewRecorder()

		h.HandleDashboard(rr, signedIn(httptest.NewRequest(http.MethodGet, "/dashboard", nil)))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/login", rr.Header().Get("Location"))
		cookie := cookieNamed(rr.Result(), auth.SessionCookie)
		require.NotNil(t, cookie)
		assert.Less(t, cookie.MaxAge, 0)
	})

	t.Run("store failure is an error page", func(t *testing.T) {
		h := newDashboardHandler(t, &fakeSessions{sessErr: errors.New("database is locked")})
		rr := httptest.NewRecorder()

		h.HandleDashboard(rr, signedIn(httptest.NewRequest(http.MethodGet, "/dashboard", nil)))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "An internal error occurred")
		assert.NotContains(t, rr.Body.String(), "database is locked")
	})
}

func TestDashboardHandler_Refresh(t *testing.T) {
	active, loader := newActive(t)
	h := newDashboardHandler(t, &fakeSessions{active: active})
	rr := httptest.NewRecorder()

	h.HandleRefresh(rr, signedIn(httptest.NewRequest(http.MethodPost, "/dashboard/refresh", nil)))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
	assert.Equal(t, 2, loader.fetchCount(), "mount plus the manual refresh")
}

func TestDashboardHandler_API(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		active, _ := newActive(t)
		h := newDashboardHandler(t, &fakeSessions{active: active})
		rr := httptest.NewRecorder()

		h.HandleAPIDashboard(rr, signedIn(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp handler.DashboardResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "ready", resp.State)
		require.NotNil(t, resp.Snapshot)
		assert.Equal(t, 100, resp.Snapshot.Profile.Followers)
		assert.Equal(t, 2, resp.Snapshot.Summary.MonthlyCommits.Get("Oct"))
		require.NotNil(t, resp.LastRefresh)
		assert.True(t, resp.LastRefresh.Equal(testNow))
		assert.Equal(t, 15, resp.NextRefreshMinutes)
	})

	t.Run("refresh failure maps to 502", func(t *testing.T) {
		active, loader := newActive(t)
		loader.fail(apperror.API(http.StatusInternalServerError, "Internal Server Error"))
		h := newDashboardHandler(t, &fakeSessions{active: active})
		rr := httptest.NewRecorder()

		h.HandleAPIRefresh(rr, signedIn(httptest.NewRequest(http.MethodPost, "/api/dashboard/refresh", nil)))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		var body handler.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "github_error", body.Error)
		assert.Equal(t, "GitHub API error: 500 Internal Server Error", body.Message)
	})

	t.Run("refresh success", func(t *testing.T) {
		active, loader := newActive(t)
		h := newDashboardHandler(t, &fakeSessions{active: active})
		rr := httptest.NewRecorder()

		h.HandleAPIRefresh(rr, signedIn(httptest.NewRequest(http.MethodPost, "/api/dashboard/refresh", nil)))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 2, loader.fetchCount())
	})

	t.Run("not signed in", func(t *testing.T) {
		h := newDashboardHandler(t, &fakeSessions{})
		rr := httptest.NewRecorder()

		h.HandleAPIDashboard(rr, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
