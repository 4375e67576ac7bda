package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/ghdash/internal/auth"
)

const oauthStateCookie = "oauth_state"

// CookieConfig controls the session cookie.
type CookieConfig struct {
	// Lifetime should match the JWT lifetime.
	Lifetime time.Duration
	// Secure limits the cookie to HTTPS. Turn it on in production.
	Secure bool
}

// AuthHandler manages signing in and out.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLoginPage      → show the token form
//   - HandleLogin          → validate a personal access token and start a session
//   - HandleLogout         → end the session and clear the cookie
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it for a token, start a session
//   - HandleMe             → return the signed-in user's profile
//
// DEPENDENCY CHAIN:
//   - sessions SessionService       → Login / Logout / Session (service.AuthService)
//   - github   *auth.GitHubProvider → OAuth code exchange (nil when OAuth is off)
//   - pages    *Pages               → renders login.html
type AuthHandler struct {
	sessions SessionService
	github   *auth.GitHubProvider
	pages    *Pages
	cookie   CookieConfig
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	sessions SessionService,
	github *auth.GitHubProvider,
	pages *Pages,
	cookie CookieConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		github:   github,
		pages:    pages,
		cookie:   cookie,
		logger:   logger,
	}
}

// loginView is the data of login.html.
type loginView struct {
	layout
	Error string
	OAuth bool
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, status int, message string) {
	h.pages.render(w, status, "login", loginView{
		layout: layout{Title: "Sign in · ghdash"},
		Error:  message,
		OAuth:  h.github != nil,
	})
}

// HandleLoginPage shows the token form.
//
// HTTP: GET /login
//
// A visitor who is already signed in goes straight to the dashboard.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if profile, ok := auth.ProfileFromContext(r.Context()); ok {
		if _, err := h.sessions.Session(r.Context(), profile); err == nil {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
	}

	message := ""
	if r.URL.Query().Get("auth") == "denied" {
		message = "GitHub sign-in was cancelled."
	}
	h.renderLogin(w, http.StatusOK, message)
}

// HandleLogin validates a personal access token and signs the visitor in.
//
// HTTP: POST /login (form field "token")
//
// SESSION REUSE:
// When the visitor already has a session cookie, the new token is stored
// under the same profile. A rejected token renders the error and changes
// nothing: the previous token, its cached data and its cookie stay valid.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, http.StatusBadRequest, "Invalid form submission.")
		return
	}

	token := strings.TrimSpace(r.PostFormValue("token"))
	if token == "" {
		h.renderLogin(w, http.StatusBadRequest, "Please enter a personal access token.")
		return
	}

	profile, _ := auth.ProfileFromContext(r.Context())
	h.signIn(w, r, profile, token)
}

// signIn runs Login and, on success, sets the cookie and redirects to the
// dashboard. Shared by the token form and the OAuth callback.
func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, profile, token string) {
	result, err := h.sessions.Login(r.Context(), profile, token)
	if err != nil {
		status, _, message := classify(err)
		h.logger.Info("sign-in rejected",
			slog.String("profile", profile),
			slog.String("error", err.Error()),
		)
		h.renderLogin(w, status, message)
		return
	}

	sess := result.Active.Session
	h.logger.Info("user signed in",
		slog.String("profile", sess.Profile),
		slog.String("login", sess.User.Login),
	)

	if result.Token != "" {
		auth.SetSessionCookie(w, result.Token, h.cookie.Lifetime, h.cookie.Secure)
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HandleLogout ends the session: the stored token and both cached snapshots
// are deleted, the refresh cycle stops and the cookie is cleared.
//
// HTTP: POST /logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. Using GET would be vulnerable to
// CSRF and to browsers pre-fetching the URL. POST ensures intentional action.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if profile, ok := auth.ProfileFromContext(r.Context()); ok {
		if err := h.sessions.Logout(r.Context(), profile); err != nil {
			h.logger.Error("logout failed",
				slog.String("profile", profile),
				slog.String("error", err.Error()),
			)
		} else {
			h.logger.Info("user signed out", slog.String("profile", profile))
		}
	}

	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
//
// The state cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: not sent on cross-site POSTs (extra CSRF protection)
//   - 10-minute expiry: long enough for the user to approve, short enough to limit risk
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	// Generate a random, unguessable state value
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub access token
//  3. Sign in with that token exactly like a pasted personal access token
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Clear the state cookie — it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Check if GitHub sent an error (user denied authorization)
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/login?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for an access token ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	token, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		h.renderLogin(w, http.StatusBadGateway, "GitHub sign-in failed. Please try again.")
		return
	}

	// --- Step 3: Same path as the token form ---
	profile, _ := auth.ProfileFromContext(r.Context())
	h.signIn(w, r, profile, token)
}

// HandleMe returns the signed-in user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireSession middleware sets the profile in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	active := activeSession(w, r, h.sessions, h.pages, true, h.logger)
	if active == nil {
		return
	}

	writeJSON(w, http.StatusOK, active.Session.User)
}
