// Package analytics collects search and crawl events, ships them to Kafka
// when configured, and aggregates them into the stats served at
// /api/v1/analytics.
package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
	EventCrawl  EventType = "crawl_page"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Endpoint  string    `json:"endpoint"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// CrawlEvent describes the outcome of one dispatched URL.
type CrawlEvent struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	URL       string    `json:"url"`
	Host      string    `json:"host"`
	Outcome   string    `json:"outcome"`
	DocID     int       `json:"doc_id,omitempty"`
	Links     int       `json:"links"`
	Bytes     int       `json:"bytes"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchTracker receives search events. Implementations must not block.
type SearchTracker interface {
	TrackSearch(SearchEvent)
}

// CrawlTracker receives crawl events. Implementations must not block.
type CrawlTracker interface {
	TrackCrawl(CrawlEvent)
}

// Tracker accepts both kinds of event.
type Tracker interface {
	SearchTracker
	CrawlTracker
}

// Fanout forwards every event to each non-nil tracker in order.
type Fanout []Tracker

func (f Fanout) TrackSearch(e SearchEvent) {
	for _, t := range f {
		if t != nil {
			t.TrackSearch(e)
		}
	}
}

func (f Fanout) TrackCrawl(e CrawlEvent) {
	for _, t := range f {
		if t != nil {
			t.TrackCrawl(e)
		}
	}
}
