// Package apperror defines the error taxonomy shared by every layer.
//
// Callers match on the sentinels with errors.Is and pull the details out
// with errors.As:
//
//	var appErr *apperror.AppError
//	if errors.As(err, &appErr) && errors.Is(err, apperror.ErrAPI) {
//	    log.Println("GitHub answered", appErr.Status)
//	}
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")

	// ErrAuth means no token is set, or the token GitHub was given is rejected.
	ErrAuth = errors.New("authentication required")

	// ErrAPI means GitHub answered with a non-2xx status.
	ErrAPI = errors.New("github api error")

	// ErrPartialFetch marks one repository's commit fetch failing during
	// aggregation. It is logged and never returned to a view.
	ErrPartialFetch = errors.New("partial fetch")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Status  int    // Optional: upstream HTTP status (ErrAPI only)
	Cause   error  // Optional: underlying error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches
// either of them.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Auth returns an AppError for a missing or rejected token.
// Handlers map this to 401 or to a redirect to the login page.
func Auth(message string) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: message,
	}
}

// API returns an AppError carrying GitHub's HTTP status.
// statusText may be empty, in which case the canonical text is used.
func API(status int, statusText string) *AppError {
	if statusText == "" {
		statusText = http.StatusText(status)
	}
	return &AppError{
		Err:     ErrAPI,
		Message: fmt.Sprintf("GitHub API error: %d %s", status, statusText),
		Status:  status,
	}
}

// PartialFetch wraps a failure to fetch one repository's commits.
func PartialFetch(repo string, cause error) *AppError {
	return &AppError{
		Err:     ErrPartialFetch,
		Message: fmt.Sprintf("fetching commits for %s: %v", repo, cause),
		Field:   repo,
		Cause:   cause,
	}
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}
