package auth

import (
	"context"
	"net/http"
	"time"
)

// SessionCookie is the name of the cookie carrying the session JWT.
const SessionCookie = "ghdash_session"

// contextKey is an unexported type so no other package can read or shadow
// the values this package puts in a request context.
type contextKey string

const profileKey contextKey = "profile"

// RequireSession enforces a valid session cookie on protected routes.
//
// It reads the JWT from the session cookie, validates it, and stores the
// profile id in the request context. When the cookie is missing or
// invalid, the request is handed to onMissing instead, which lets HTML
// routes redirect to /login while JSON routes answer 401.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that
// wraps it. Chi applies middlewares in a chain:
//
//	req → M1 → M2 → Handler → M2 → M1 → resp
func RequireSession(tokens *TokenService, onMissing http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, err := extractProfile(r, tokens)
			if err != nil {
				onMissing(w, r)
				return
			}

			ctx := WithProfile(r.Context(), profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession extracts the profile id when a valid cookie is present
// but never blocks the request. Used on /login so a signed-in visitor can
// be sent straight to the dashboard.
func OptionalSession(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if profile, err := extractProfile(r, tokens); err == nil {
				r = r.WithContext(WithProfile(r.Context(), profile))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithProfile returns a copy of ctx carrying profile.
func WithProfile(ctx context.Context, profile string) context.Context {
	return context.WithValue(ctx, profileKey, profile)
}

// ProfileFromContext returns the profile id set by the middleware.
// It returns ("", false) for anonymous requests.
func ProfileFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(profileKey).(string)
	return id, ok && id != ""
}

// SetSessionCookie writes the session JWT as an HttpOnly cookie that
// lives as long as the token.
//
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
func SetSessionCookie(w http.ResponseWriter, token string, lifetime time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to delete the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func extractProfile(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
