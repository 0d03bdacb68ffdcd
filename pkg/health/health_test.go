package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunWorstStatusWins(t *testing.T) {
	c := NewChecker()
	c.Register("store", PingCheck(func(ctx context.Context) error { return nil }, false))
	c.Register("cache", PingCheck(func(ctx context.Context) error { return errors.New("refused") }, true))

	report := c.Run(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Components["cache"].Message != "refused" {
		t.Errorf("unexpected cache message %q", report.Components["cache"].Message)
	}

	c.Register("store", PingCheck(func(ctx context.Context) error { return errors.New("gone") }, false))
	if got := c.Run(context.Background()).Status; got != StatusDown {
		t.Fatalf("expected down, got %s", got)
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("store", PingCheck(func(ctx context.Context) error { return errors.New("gone") }, false))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
