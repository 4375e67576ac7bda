package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/auth"
	"github.com/sakif/ghdash/internal/handler"
	"github.com/sakif/ghdash/internal/model"
)

func newAuthHandler(t *testing.T, sessions *fakeSessions, github *auth.GitHubProvider) *handler.AuthHandler {
	t.Helper()
	return handler.NewAuthHandler(sessions, github, newPages(t),
		handler.CookieConfig{Lifetime: time.Hour}, discardLogger())
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestAuthHandler_LoginPage(t *testing.T) {
	t.Run("renders the token form", func(t *testing.T) {
		h := newAuthHandler(t, &fakeSessions{}, nil)
		rr := httptest.NewRecorder()

		h.HandleLoginPage(rr, httptest.NewRequest(http.MethodGet, "/login", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `name="token"`)
		assert.NotContains(t, rr.Body.String(), "/auth/github/login", "no OAuth button when it is not configured")
		assert.NotContains(t, rr.Body.String(), `data-testid="login-error"`)
	})

	t.Run("offers GitHub sign-in when configured", func(t *testing.T) {
		h := newAuthHandler(t, &fakeSessions{}, auth.NewGitHubProvider("id", "secret", "http://localhost/cb"))
		rr := httptest.NewRecorder()

		h.HandleLoginPage(rr, httptest.NewRequest(http.MethodGet, "/login", nil))

		assert.Contains(t, rr.Body.String(), "/auth/github/login")
	})

	t.Run("signed-in visitors go to the dashboard", func(t *testing.T) {
		active, _ := newActive(t)
		h := newAuthHandler(t, &fakeSessions{active: active}, nil)
		rr := httptest.NewRecorder()

		h.HandleLoginPage(rr, signedIn(httptest.NewRequest(http.MethodGet, "/login", nil)))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
	})

	t.Run("cancelled OAuth shows a message", func(t *testing.T) {
		h := newAuthHandler(t, &fakeSessions{}, nil)
		rr := httptest.NewRecorder()

		h.HandleLoginPage(rr, httptest.NewRequest(http.MethodGet, "/login?auth=denied", nil))

		assert.Contains(t, rr.Body.String(), "GitHub sign-in was cancelled.")
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("valid token sets the cookie and redirects", func(t *testing.T) {
		active, _ := newActive(t)
		sessions := &fakeSessions{active: active, token: "jwt-token"}
		h := newAuthHandler(t, sessions, nil)
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, postForm("/login", url.Values{"token": {"  ghp_good  "}}))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
		assert.Equal(t, []string{"|ghp_good"}, sessions.logins, "token is trimmed, anonymous visitors get a new profile")

		cookie := cookieNamed(rr.Result(), auth.SessionCookie)
		require.NotNil(t, cookie)
		assert.Equal(t, "jwt-token", cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, 3600, cookie.MaxAge)
	})

	t.Run("existing profile is reused", func(t *testing.T) {
		active, _ := newActive(t)
		sessions := &fakeSessions{active: active, token: "jwt-token"}
		h := newAuthHandler(t, sessions, nil)
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, signedIn(postForm("/login", url.Values{"token": {"ghp_new"}})))

		assert.Equal(t, []string{testProfile + "|ghp_new"}, sessions.logins)
	})

	t.Run("invalid token shows an error and keeps the session", func(t *testing.T) {
		active, _ := newActive(t)
		sessions := &fakeSessions{active: active, loginErr: apperror.Auth("Invalid GitHub token")}
		h := newAuthHandler(t, sessions, nil)
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, signedIn(postForm("/login", url.Values{"token": {"ghp_bad"}})))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), `data-testid="login-error"`)
		assert.Contains(t, rr.Body.String(), "Invalid GitHub token")
		assert.Nil(t, cookieNamed(rr.Result(), auth.SessionCookie), "the existing cookie is left alone")
		assert.Empty(t, sessions.loggedOut)
	})

	t.Run("GitHub outage is reported as such", func(t *testing.T) {
		sessions := &fakeSessions{loginErr: apperror.API(http.StatusServiceUnavailable, "Service Unavailable")}
		h := newAuthHandler(t, sessions, nil)
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, postForm("/login", url.Values{"token": {"ghp_x"}}))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Contains(t, rr.Body.String(), "GitHub API error: 503 Service Unavailable")
	})

	t.Run("empty token", func(t *testing.T) {
		sessions := &fakeSessions{}
		h := newAuthHandler(t, sessions, nil)
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, postForm("/login", url.Values{"token": {"   "}}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Please enter a personal access token.")
		assert.Empty(t, sessions.logins)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	active, _ := newActive(t)
	sessions := &fakeSessions{active: active}
	h := newAuthHandler(t, sessions, nil)
	rr := httptest.NewRecorder()

	h.HandleLogout(rr, signedIn(httptest.NewRequest(http.MethodPost, "/logout", nil)))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Equal(t, []string{testProfile}, sessions.loggedOut)

	cookie := cookieNamed(rr.Result(), auth.SessionCookie)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestAuthHandler_Me(t *testing.T) {
	t.Run("returns the user", func(t *testing.T) {
		active, _ := newActive(t)
		h := newAuthHandler(t, &fakeSessions{active: active}, nil)
		rr := httptest.NewRecorder()

		h.HandleMe(rr, signedIn(httptest.NewRequest(http.MethodGet, "/api/me", nil)))

		assert.Equal(t, http.StatusOK, rr.Code)
		var user model.UserProfile
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
		assert.Equal(t, "octocat", user.Login)
		assert.Equal(t, 25, user.PublicRepos)
	})

	t.Run("not signed in", func(t *testing.T) {
		h := newAuthHandler(t, &fakeSessions{}, nil)
		rr := httptest.NewRecorder()

		h.HandleMe(rr, signedIn(httptest.NewRequest(http.MethodGet, "/api/me", nil)))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		var body handler.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "unauthorized", body.Error)
	})
}

func TestAuthHandler_GitHubOAuth(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gho_oauth","token_type":"bearer","scope":"repo"}`))
	}))
	t.Cleanup(tokenServer.Close)

	provider := auth.NewGitHubProvider("client-id", "client-secret", "http://localhost/auth/github/callback").
		WithEndpoint(oauth2.Endpoint{
			AuthURL:  tokenServer.URL + "/login/oauth/authorize",
			TokenURL: tokenServer.URL + "/login/oauth/access_token",
		})

	t.Run("disabled without a provider", func(t *testing.T) {
		h := newAuthHandler(t, &fakeSessions{}, nil)
		rr := httptest.NewRecorder()

		h.HandleGitHubLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("login redirects with state", func(t *testing.T) {
		h := newAuthHandler(t, &fakeSessions{}, provider)
		rr := httptest.NewRecorder()

		h.HandleGitHubLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))

		assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
		state := cookieNamed(rr.Result(), "oauth_state")
		require.NotNil(t, state)
		loc, err := url.Parse(rr.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, state.Value, loc.Query().Get("state"))
		assert.Equal(t, "client-id", loc.Query().Get("client_id"))
	})

	t.Run("callback rejects a state mismatch", func(t *testing.T) {
		sessions := &fakeSessions{}
		h := newAuthHandler(t, sessions, provider)
		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=c&state=forged", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "real"})
		rr := httptest.NewRecorder()

		h.HandleGitHubCallback(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, sessions.logins)
	})

	t.Run("callback signs in with the exchanged token", func(t *testing.T) {
		active, _ := newActive(t)
		sessions := &fakeSessions{active: active, token: "jwt-token"}
		h := newAuthHandler(t, sessions, provider)
		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=c&state=s1", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s1"})
		rr := httptest.NewRecorder()

		h.HandleGitHubCallback(rr, req)

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
		assert.Equal(t, []string{"|gho_oauth"}, sessions.logins)
		require.NotNil(t, cookieNamed(rr.Result(), auth.SessionCookie))
	})

	t.Run("callback after denial", func(t *testing.T) {
		h := newAuthHandler(t, &fakeSessions{}, provider)
		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?error=access_denied&state=s1", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s1"})
		rr := httptest.NewRecorder()

		h.HandleGitHubCallback(rr, req)

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/login?auth=denied", rr.Header().Get("Location"))
	})
}
