package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrSnapshot, http.StatusTeapot, "x"), http.StatusTeapot},
		{"invalid input", fmt.Errorf("wrap: %w", ErrInvalidInput), http.StatusBadRequest},
		{"timeout", fmt.Errorf("%w: crawl interrupted", ErrTimeout), http.StatusServiceUnavailable},
		{"snapshot", fmt.Errorf("%w: disk full", ErrSnapshot), http.StatusServiceUnavailable},
		{"dns", fmt.Errorf("%w: no such host", ErrDNSResolution), http.StatusBadGateway},
		{"page fetch", ErrPageFetch, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := New(ErrInvalidInput, http.StatusBadRequest, `bad url "ftp://x"`)
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected AppError to unwrap to its sentinel")
	}
	if err.Error() != `invalid input: bad url "ftp://x"` {
		t.Errorf("unexpected message %q", err.Error())
	}
}
