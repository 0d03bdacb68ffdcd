package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/errors"
)

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("user agent = %q", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><title>Home</title></html>"))
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<p>caf\xe9</p>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(strings.Repeat("a", 4096)))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(srv.Client(), Config{UserAgent: "test-agent", MaxBodyBytes: 1024})
	ctx := context.Background()

	page, err := f.Fetch(ctx, srv.URL+"/ok")
	if err != nil {
		t.Fatalf("ok: %v", err)
	}
	if !strings.Contains(string(page.Body), "<title>Home</title>") || page.StatusCode != 200 {
		t.Errorf("unexpected page %+v", page)
	}

	page, err = f.Fetch(ctx, srv.URL+"/latin1")
	if err != nil {
		t.Fatalf("latin1: %v", err)
	}
	if !strings.Contains(string(page.Body), "café") {
		t.Errorf("body not transcoded: %q", page.Body)
	}

	if _, err := f.Fetch(ctx, srv.URL+"/missing"); !errors.Is(err, apperrors.ErrPageFetch) {
		t.Errorf("404: expected ErrPageFetch, got %v", err)
	}
	if _, err := f.Fetch(ctx, srv.URL+"/image"); !errors.Is(err, apperrors.ErrNotHTML) {
		t.Errorf("image: expected ErrNotHTML, got %v", err)
	}

	page, err = f.Fetch(ctx, srv.URL+"/big")
	if err != nil {
		t.Fatalf("big: %v", err)
	}
	if len(page.Body) != 1024 {
		t.Errorf("body not capped: %d bytes", len(page.Body))
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := New(srv.Client(), Config{Timeout: 50 * time.Millisecond})
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, apperrors.ErrPageFetch) {
		t.Fatalf("expected ErrPageFetch on timeout, got %v", err)
	}
}

func TestHostPacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := New(srv.Client(), Config{HostRate: 20, HostBurst: 1})
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 paced requests at 20/s finished in %v", elapsed)
	}
}

func TestIsHTML(t *testing.T) {
	cases := map[string]bool{
		"":                                 true,
		"text/html":                        true,
		"text/html; charset=utf-8":         true,
		"application/xhtml+xml":            true,
		"application/json":                 false,
		"text/plain; charset=utf-8":        false,
		"text/html;;broken":                true,
	}
	for ct, want := range cases {
		if got := isHTML(ct); got != want {
			t.Errorf("isHTML(%q) = %v, want %v", ct, got, want)
		}
	}
}
