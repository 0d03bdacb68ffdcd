// Package handler serves the search and crawl endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/api/validator"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/docstore"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/middleware"
)

// Index answers queries and exposes rank scores. *session.Session
// implements it.
type Index interface {
	Search(q string, limit int) []docstore.Document
	RanksByURL() map[string]float64
	DocumentCount() int
	VisitedCount() int
}

type Crawler interface {
	Crawl(ctx context.Context, initial []string, limit int) (*crawler.Report, error)
}

type Config struct {
	// MaxResults caps every search response.
	MaxResults int
	// CrawlLimit is the page limit for crawls started through POST /post.
	CrawlLimit int
}

type Handler struct {
	index   Index
	crawler Crawler
	cache   *cache.QueryCache
	tracker analytics.SearchTracker
	metrics *metrics.Metrics
	cfg     Config

	mu         sync.RWMutex
	lastReport *crawler.Report

	logger *slog.Logger
}

type Option func(*Handler)

func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithTracker(t analytics.SearchTracker) Option {
	return func(h *Handler) { h.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func New(index Index, c Crawler, cfg Config, opts ...Option) *Handler {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	if cfg.CrawlLimit <= 0 {
		cfg.CrawlLimit = crawler.DefaultLimit
	}
	h := &Handler{
		index:   index,
		crawler: c,
		cfg:     cfg,
		logger:  slog.Default().With("component", "api-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type searchResponse struct {
	Results []docstore.Document `json:"results"`
}

type crawlResponse struct {
	Message    string             `json:"message"`
	RankScores map[string]float64 `json:"rankScores"`
	Report     *crawler.Report    `json:"report,omitempty"`
}

// Search serves GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, "search")
}

// Get serves GET /get. It shares the OR matching and ordering of /search.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, "get")
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, endpoint string) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	limit := h.cfg.MaxResults
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.cfg.MaxResults)
	}

	results, cacheHit, err := h.cache.GetOrCompute(ctx, query, limit, func() ([]docstore.Document, error) {
		return h.index.Search(query, limit), nil
	})
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("search failed", "query", query, "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "search failed")
		return
	}
	if results == nil {
		results = []docstore.Document{}
	}

	latency := time.Since(start)
	log.Info("search completed",
		"endpoint", endpoint,
		"query", query,
		"returned", len(results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	if h.metrics != nil {
		resultType := "hit"
		if len(results) == 0 {
			resultType = "zero_result"
		}
		cacheStatus := "disabled"
		switch {
		case cacheHit:
			cacheStatus = "hit"
			h.metrics.CacheHitsTotal.Inc()
		case h.cache != nil:
			cacheStatus = "miss"
			h.metrics.CacheMissesTotal.Inc()
		}
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	if h.tracker != nil {
		h.tracker.TrackSearch(analytics.SearchEvent{
			Type:      analytics.EventSearch,
			Query:     query,
			Terms:     tokenizer.DistinctTerms(query),
			Endpoint:  endpoint,
			Returned:  len(results),
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

// Crawl serves POST /post: it crawls from the submitted URL and answers
// once the run, rank recompute and snapshot are done.
func (h *Handler) Crawl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req validator.CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateCrawlRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  validationErr.Message(),
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.crawler.Crawl(ctx, []string{req.URL}, h.cfg.CrawlLimit)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrSnapshot) && report != nil:
		log.Warn("crawl finished but snapshot was not saved", "url", req.URL, "error", err)
	default:
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("crawl failed", "url", req.URL, "error", err, "status_code", statusCode)
		h.writeError(w, statusCode, "crawl failed")
		return
	}

	h.mu.Lock()
	h.lastReport = report
	h.mu.Unlock()

	if err := h.cache.Invalidate(ctx); err != nil {
		log.Error("cache invalidation after crawl failed", "error", err)
	}

	log.Info("crawl request completed",
		"url", req.URL,
		"indexed", report.Indexed,
		"documents", h.index.DocumentCount(),
	)
	h.writeJSON(w, http.StatusOK, crawlResponse{
		Message:    "Crawling complete",
		RankScores: h.index.RanksByURL(),
		Report:     report,
	})
}

// RecordReport stores a report from a crawl started outside the handler,
// such as the startup seed crawl.
func (h *Handler) RecordReport(r *crawler.Report) {
	h.mu.Lock()
	h.lastReport = r
	h.mu.Unlock()
}

// CrawlStatus serves GET /api/v1/crawl/status.
func (h *Handler) CrawlStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	last := h.lastReport
	h.mu.RUnlock()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents":  h.index.DocumentCount(),
		"visited":    h.index.VisitedCount(),
		"last_crawl": last,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
