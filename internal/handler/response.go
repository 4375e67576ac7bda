package handler

// RESPONSE HELPERS:
// The JSON API (/api/*) answers with writeJSON on success and writeError on
// failure. HTML pages reuse classify so a failed search shows the same
// message a script would get:
//
//	writeJSON(w, http.StatusOK, DashboardResponse{...})
//	writeError(w, err)
//
// ERROR SHAPE:
// Every /api error has the same body, whatever the status:
//
//	{"error": "github_error", "message": "GitHub API error: 502 Bad Gateway"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/ghdash/internal/apperror"
)

// ErrorResponse is the body of every /api error.
type ErrorResponse struct {
	Error   string `json:"error"`   // "validation_error", "unauthorized", "github_error", ...
	Message string `json:"message"` // safe to show to the user
}

// writeJSON sends data as JSON with the given status. Headers go out with
// WriteHeader, so Content-Type is set first.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// The status is already on the wire; all that is left is to log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// The services never see HTTP. The same apperror sentinel means different
// things per front-end:
// - JSON API:   ErrAuth → 401
// - HTML pages: ErrAuth → redirect to /login
// - CLI:        ErrAuth → "run ghdash login first"
//
// Errors arrive wrapped, for example
//
//	fmt.Errorf("commits: searching: %w", apperror.API(422, "Unprocessable Entity"))
//
// and errors.Is / errors.As look through the wrapping.
func writeError(w http.ResponseWriter, err error) {
	status, errorType, message := classify(err)
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: message,
	})
}

// classify maps err to an HTTP status, a machine-readable type and a message
// that is safe to show. HTML pages use it as well as the JSON API.
func classify(err error) (int, string, string) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrValidation):
			return http.StatusBadRequest, "validation_error", appErr.Message // 400
		case errors.Is(err, apperror.ErrAuth):
			return http.StatusUnauthorized, "unauthorized", appErr.Message // 401
		case errors.Is(err, apperror.ErrNotFound):
			return http.StatusNotFound, "not_found", appErr.Message // 404
		case errors.Is(err, apperror.ErrAPI):
			// GitHub failed, not us. The message carries GitHub's status.
			return http.StatusBadGateway, "github_error", appErr.Message // 502
		}
		return http.StatusInternalServerError, "internal_error", appErr.Message
	}

	// Anything else may carry SQL, file paths or a token fragment.
	return http.StatusInternalServerError, "internal_error", "An internal error occurred"
}
