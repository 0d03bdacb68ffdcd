// Package router wires the HTTP routes and the middleware chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/middleware"
)

type Config struct {
	SearchTimeout      time.Duration
	CrawlRatePerMinute int
}

// New builds the HTTP handler.
//
// Route table:
//
//	GET    /search                    → search
//	GET    /get                       → search (alternate endpoint)
//	POST   /post                      → synchronous crawl from {url}
//	GET    /api/v1/crawl/status       → documents, visited, last report
//	GET    /api/v1/cache/stats        → query cache counters
//	POST   /api/v1/cache/invalidate   → drop cached results
//	GET    /api/v1/analytics          → aggregated stats (when enabled)
//	GET    /health/live, /health/ready
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → mux
//
// Search routes are bounded by SearchTimeout; /post is rate limited per
// client instead, since a crawl legitimately runs for minutes.
func New(h *handler.Handler, checker *health.Checker, stats *analytics.Handler, m *metrics.Metrics, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	withTimeout := func(f http.HandlerFunc) http.Handler {
		if cfg.SearchTimeout <= 0 {
			return f
		}
		return pkgmw.Timeout(cfg.SearchTimeout)(f)
	}
	mux.Handle("GET /search", withTimeout(h.Search))
	mux.Handle("GET /get", withTimeout(h.Get))

	mux.Handle("POST /post", pkgmw.RateLimit(cfg.CrawlRatePerMinute)(http.HandlerFunc(h.Crawl)))
	mux.HandleFunc("GET /api/v1/crawl/status", h.CrawlStatus)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	if stats != nil {
		mux.HandleFunc("GET /api/v1/analytics", stats.Stats)
	}

	var chain http.Handler = mux
	if m != nil {
		chain = pkgmw.Metrics(m)(chain)
	}
	chain = pkgmw.CORS(pkgmw.DefaultCORSConfig())(chain)
	chain = pkgmw.RequestID(chain)
	return chain
}
