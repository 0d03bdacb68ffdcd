// Package errors defines the sentinel errors shared across the crawler,
// the index and the HTTP layer, plus an AppError that carries a status code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTimeout      = errors.New("operation timed out")

	// ErrPolicyFetch means robots.txt could not be retrieved for a reason
	// other than a 404.
	ErrPolicyFetch = errors.New("robots policy fetch failed")
	// ErrDNSResolution means the host of a URL could not be resolved.
	ErrDNSResolution = errors.New("dns resolution failed")
	ErrPageFetch     = errors.New("page fetch failed")
	ErrNotHTML       = errors.New("response is not html")
	ErrSnapshot      = errors.New("snapshot unavailable")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error onto the status the API should answer with.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrSnapshot):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrPolicyFetch), errors.Is(err, ErrDNSResolution), errors.Is(err, ErrPageFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
