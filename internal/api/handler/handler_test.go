package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/docstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/errors"
)

type fakeIndex struct {
	docs      []docstore.Document
	lastLimit int
}

func (f *fakeIndex) Search(q string, limit int) []docstore.Document {
	f.lastLimit = limit
	out := []docstore.Document{}
	for _, d := range f.docs {
		if strings.Contains(d.IndexText(), strings.ToLower(q)) && len(out) < limit {
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeIndex) RanksByURL() map[string]float64 {
	out := make(map[string]float64, len(f.docs))
	for _, d := range f.docs {
		out[d.URL] = 1 / float64(len(f.docs))
	}
	return out
}

func (f *fakeIndex) DocumentCount() int { return len(f.docs) }
func (f *fakeIndex) VisitedCount() int  { return len(f.docs) }

type fakeCrawler struct {
	gotURLs []string
	report  *crawler.Report
	err     error
}

func (f *fakeCrawler) Crawl(_ context.Context, initial []string, _ int) (*crawler.Report, error) {
	f.gotURLs = initial
	return f.report, f.err
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *recordingTracker) TrackSearch(e analytics.SearchEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func sampleIndex() *fakeIndex {
	return &fakeIndex{docs: []docstore.Document{
		{ID: 0, URL: "https://a.test/", Title: "Go", Description: "No description", BodyText: "go crawler"},
		{ID: 1, URL: "https://b.test/", Title: "Rust", Description: "No description", BodyText: "rust book"},
	}}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestSearchRequiresQuery(t *testing.T) {
	h := New(sampleIndex(), &fakeCrawler{}, Config{})
	for _, path := range []string{"/search", "/get", "/search?q="} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if strings.HasPrefix(path, "/get") {
			h.Get(rec, req)
		} else {
			h.Search(rec, req)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", path, rec.Code)
		}
		body := decode[map[string]string](t, rec)
		if body["error"] != "Query parameter q is required" {
			t.Errorf("%s: error = %q", path, body["error"])
		}
	}
}

func TestSearchReturnsResults(t *testing.T) {
	tracker := &recordingTracker{}
	h := New(sampleIndex(), &fakeCrawler{}, Config{}, WithTracker(tracker))

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/search?q=crawler", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := decode[searchResponse](t, rec)
	if len(body.Results) != 1 || body.Results[0].URL != "https://a.test/" {
		t.Errorf("results = %+v", body.Results)
	}
	if len(tracker.events) != 1 || tracker.events[0].Endpoint != "search" || tracker.events[0].Returned != 1 {
		t.Errorf("events = %+v", tracker.events)
	}
}

func TestSearchNoMatchIsEmptyArray(t *testing.T) {
	h := New(sampleIndex(), &fakeCrawler{}, Config{})
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/get?q=zzz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"results":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestSearchLimitIsCapped(t *testing.T) {
	idx := sampleIndex()
	h := New(idx, &fakeCrawler{}, Config{MaxResults: 50})

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/search?q=go&limit=500", nil))
	if idx.lastLimit != 50 {
		t.Errorf("limit = %d, want 50", idx.lastLimit)
	}

	rec = httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/search?q=go&limit=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestCrawlValidation(t *testing.T) {
	h := New(sampleIndex(), &fakeCrawler{}, Config{})
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing url", `{}`, "URL is required"},
		{"empty url", `{"url":""}`, "URL is required"},
		{"bad json", `{`, "invalid JSON body"},
		{"relative", `{"url":"page.html"}`, "URL must be an absolute http or https URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Crawl(rec, httptest.NewRequest(http.MethodPost, "/post", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", rec.Code)
			}
			body := decode[map[string]any](t, rec)
			if body["error"] != tt.want {
				t.Errorf("error = %v, want %q", body["error"], tt.want)
			}
		})
	}
}

func TestCrawlReturnsRankScores(t *testing.T) {
	fc := &fakeCrawler{report: &crawler.Report{Indexed: 2}}
	h := New(sampleIndex(), fc, Config{})

	rec := httptest.NewRecorder()
	h.Crawl(rec, httptest.NewRequest(http.MethodPost, "/post", strings.NewReader(`{"url":"https://a.test/"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[crawlResponse](t, rec)
	if body.Message != "Crawling complete" {
		t.Errorf("message = %q", body.Message)
	}
	if len(body.RankScores) != 2 || body.RankScores["https://a.test/"] != 0.5 {
		t.Errorf("rankScores = %v", body.RankScores)
	}
	if len(fc.gotURLs) != 1 || fc.gotURLs[0] != "https://a.test/" {
		t.Errorf("crawler got %v", fc.gotURLs)
	}

	rec = httptest.NewRecorder()
	h.CrawlStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/crawl/status", nil))
	status := decode[map[string]any](t, rec)
	if status["documents"] != float64(2) || status["last_crawl"] == nil {
		t.Errorf("status = %v", status)
	}
}

func TestCrawlSnapshotFailureStillSucceeds(t *testing.T) {
	fc := &fakeCrawler{
		report: &crawler.Report{Indexed: 1},
		err:    errors.Join(apperrors.ErrSnapshot, errors.New("disk full")),
	}
	h := New(sampleIndex(), fc, Config{})
	rec := httptest.NewRecorder()
	h.Crawl(rec, httptest.NewRequest(http.MethodPost, "/post", strings.NewReader(`{"url":"https://a.test/"}`)))
	if rec.Code != http.StatusOK {
		t.Errorf("status %d, want 200", rec.Code)
	}
}

func TestCrawlCancelledIsError(t *testing.T) {
	fc := &fakeCrawler{err: context.Canceled}
	h := New(sampleIndex(), fc, Config{})
	rec := httptest.NewRecorder()
	h.Crawl(rec, httptest.NewRequest(http.MethodPost, "/post", strings.NewReader(`{"url":"https://a.test/"}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status %d, want 500", rec.Code)
	}
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	h := New(sampleIndex(), &fakeCrawler{}, Config{})

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if body := decode[map[string]string](t, rec); body["status"] != "disabled" {
		t.Errorf("stats = %v", body)
	}

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", rec.Code)
	}
}
