package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/resilience"
)

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	for i, q := range []string{"go", "go", "rust", "zig"} {
		agg.TrackSearch(SearchEvent{
			Type:      EventSearch,
			Query:     q,
			Returned:  map[string]int{"go": 3, "rust": 1, "zig": 0}[q],
			LatencyMs: int64(10 * (i + 1)),
			CacheHit:  i == 1,
		})
	}
	agg.TrackCrawl(CrawlEvent{Type: EventCrawl, Host: "a.test", Outcome: "indexed"})
	agg.TrackCrawl(CrawlEvent{Type: EventCrawl, Host: "a.test", Outcome: "failed"})
	agg.TrackCrawl(CrawlEvent{Type: EventCrawl, Host: "b.test", Outcome: "indexed"})

	s := agg.Stats()
	if s.TotalSearches != 4 || s.CacheHits != 1 || s.CacheMisses != 3 {
		t.Errorf("search totals = %+v", s)
	}
	if s.ZeroResultCount != 1 || len(s.ZeroResultQueries) != 1 || s.ZeroResultQueries[0].Query != "zig" {
		t.Errorf("zero results = %d %v", s.ZeroResultCount, s.ZeroResultQueries)
	}
	if s.TopQueries[0] != (QueryCount{Query: "go", Count: 2}) {
		t.Errorf("top query = %+v", s.TopQueries[0])
	}
	if s.AvgLatencyMs != 25 || s.P50LatencyMs != 30 || s.P99LatencyMs != 40 {
		t.Errorf("latency avg=%v p50=%d p99=%d", s.AvgLatencyMs, s.P50LatencyMs, s.P99LatencyMs)
	}
	if s.PagesCrawled != 3 || s.CrawlOutcomes["indexed"] != 2 || s.CrawlOutcomes["failed"] != 1 {
		t.Errorf("crawl stats = %d %v", s.PagesCrawled, s.CrawlOutcomes)
	}
	if s.TopHosts[0] != (QueryCount{Query: "a.test", Count: 2}) {
		t.Errorf("top host = %+v", s.TopHosts[0])
	}
}

func TestHandleEventDispatchesByType(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	ctx := context.Background()

	search, _ := json.Marshal(SearchEvent{Type: EventSearch, Query: "go", Returned: 1})
	crawl, _ := json.Marshal(CrawlEvent{Type: EventCrawl, URL: "https://a.test/", Outcome: "indexed"})
	for _, msg := range [][]byte{search, crawl, []byte(`{"type":"other"}`), []byte(`not json`)} {
		if err := handle(ctx, nil, msg); err != nil {
			t.Fatalf("handler returned %v", err)
		}
	}
	s := agg.Stats()
	if s.TotalSearches != 1 || s.PagesCrawled != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.TrackSearch(SearchEvent{Query: "go", Returned: 1})
	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var s AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.TotalSearches != 1 {
		t.Errorf("TotalSearches = %d", s.TotalSearches)
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, e := range events {
		if err := f.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestCollectorPublishesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, nil, 16)
	c.Start(context.Background())
	for range 5 {
		c.TrackSearch(SearchEvent{Type: EventSearch, Query: "go"})
	}
	c.Close()
	if pub.count() != 5 {
		t.Errorf("published %d events, want 5", pub.count())
	}
}

func TestCollectorCloseWithoutStart(t *testing.T) {
	c := NewCollector(&fakePublisher{}, nil, 1)
	c.TrackSearch(SearchEvent{})
	c.TrackSearch(SearchEvent{}) // dropped, buffer full
	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked without Start")
	}
}

func TestCollectorBreakerOpens(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	breaker := resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	c := NewCollector(pub, breaker, 16)
	c.Start(context.Background())
	for range 5 {
		c.TrackSearch(SearchEvent{Query: "go"})
	}
	c.Close()
	if breaker.GetState() != resilience.StateOpen {
		t.Errorf("breaker state = %v, want open", breaker.GetState())
	}
}

type countingTracker struct{ searches, crawls int }

func (c *countingTracker) TrackSearch(SearchEvent) { c.searches++ }
func (c *countingTracker) TrackCrawl(CrawlEvent)   { c.crawls++ }

func TestFanoutSkipsNil(t *testing.T) {
	a, b := &countingTracker{}, &countingTracker{}
	f := Fanout{a, nil, b}
	f.TrackSearch(SearchEvent{})
	f.TrackCrawl(CrawlEvent{})
	if a.searches != 1 || b.crawls != 1 {
		t.Errorf("a=%+v b=%+v", a, b)
	}
}
