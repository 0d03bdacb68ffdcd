// Package metrics defines the Prometheus collectors for the crawler, the
// index and the HTTP surface, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Crawl outcome label values for PagesCrawledTotal.
const (
	OutcomeIndexed = "indexed"
	OutcomeDenied  = "denied"
	OutcomeFailed  = "failed"
	OutcomeNoIndex = "noindex"
	OutcomeSkipped = "skipped"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	PagesCrawledTotal    *prometheus.CounterVec
	CrawlBatchDuration   prometheus.Histogram
	CrawlRunsTotal       prometheus.Counter
	FrontierSize         prometheus.Gauge
	DocumentsTotal       prometheus.Gauge
	RankIterations       prometheus.Histogram
	SnapshotSavesTotal   *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Passing
// prometheus.DefaultRegisterer exposes them on the default scrape handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 30, 120},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		PagesCrawledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Pages processed by the crawler by outcome (indexed, denied, failed, noindex, skipped).",
			},
			[]string{"outcome"},
		),
		CrawlBatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_batch_duration_seconds",
				Help:    "Wall time of one crawl batch.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		CrawlRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_runs_total",
				Help: "Total crawl runs started.",
			},
		),
		FrontierSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_frontier_size",
				Help: "URLs waiting in the frontier of the current run.",
			},
		),
		DocumentsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Documents currently held in the document store.",
			},
		),
		RankIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rank_iterations",
				Help:    "Power iterations taken by each rank computation.",
				Buckets: []float64{1, 5, 10, 20, 40, 60, 80, 100},
			},
		),
		SnapshotSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshot_saves_total",
				Help: "Snapshot save operations by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.PagesCrawledTotal,
		m.CrawlBatchDuration,
		m.CrawlRunsTotal,
		m.FrontierSize,
		m.DocumentsTotal,
		m.RankIterations,
		m.SnapshotSavesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
