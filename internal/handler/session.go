package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/ghdash/internal/apperror"
	"github.com/sakif/ghdash/internal/auth"
	"github.com/sakif/ghdash/internal/service"
)

// SessionService is the part of service.AuthService the handlers use.
// Tests substitute a fake.
type SessionService interface {
	Login(ctx context.Context, profile, pat string) (*service.AuthResult, error)
	Session(ctx context.Context, profile string) (*service.Active, error)
	Logout(ctx context.Context, profile string) error
}

// RedirectToLogin is the RequireSession fallback for HTML routes.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Unauthorized is the RequireSession fallback for JSON routes.
func Unauthorized(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:   "unauthorized",
		Message: "Not signed in",
	})
}

// activeSession returns the live session of the request's profile.
//
// When there is none (never signed in, logged out elsewhere, or the stored
// token was revoked on GitHub) it answers the request itself and returns
// nil: the stale cookie is cleared and the visitor is sent to /login, or
// gets a 401 on JSON routes.
func activeSession(w http.ResponseWriter, r *http.Request, sessions SessionService, pages *Pages, api bool, logger *slog.Logger) *service.Active {
	profile, ok := auth.ProfileFromContext(r.Context())
	if !ok {
		signOut(w, r, api)
		return nil
	}

	active, err := sessions.Session(r.Context(), profile)
	if err == nil {
		return active
	}

	if errors.Is(err, apperror.ErrAuth) {
		logger.Info("session no longer valid",
			slog.String("profile", profile),
			slog.String("reason", err.Error()),
		)
		signOut(w, r, api)
		return nil
	}

	logger.Error("restoring session failed",
		slog.String("profile", profile),
		slog.String("error", err.Error()),
	)
	if api {
		writeError(w, err)
	} else {
		pages.renderError(w, nil, err)
	}
	return nil
}

func signOut(w http.ResponseWriter, r *http.Request, api bool) {
	auth.ClearSessionCookie(w)
	if api {
		Unauthorized(w, r)
		return
	}
	RedirectToLogin(w, r)
}
