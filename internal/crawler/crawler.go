// Package crawler schedules crawl runs: it drains the frontier in batches,
// dispatches each batch concurrently through the politeness gate and the
// fetcher, feeds parsed pages into the session, and finishes every run with
// a rank recompute and a snapshot.
package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/crawler/extract"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/crawler/fetcher"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/crawler/frontier"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/session"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/snapshot"
	apperrors "github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/tracing"
)

const (
	DefaultWorkers = 10
	DefaultLimit   = 50
)

// Gate decides whether a URL may be fetched.
type Gate interface {
	CanCrawl(ctx context.Context, rawURL string) bool
}

// Resetter is implemented by gates that cache per-run state.
type Resetter interface {
	Reset()
}

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// Report summarises one crawl run.
type Report struct {
	RunID          string        `json:"run_id"`
	Indexed        int           `json:"indexed"`
	Denied         int           `json:"denied"`
	Failed         int           `json:"failed"`
	NoIndex        int           `json:"noindex"`
	Skipped        int           `json:"skipped"`
	Batches        int           `json:"batches"`
	Pending        []string      `json:"pending"`
	RankIterations int           `json:"rank_iterations"`
	Persisted      bool          `json:"persisted"`
	Duration       time.Duration `json:"duration"`
}

type Config struct {
	Workers int
	// Trace logs the span tree of every run.
	Trace bool
}

type Crawler struct {
	gate    Gate
	fetcher Fetcher
	session *session.Session
	store   snapshot.Store
	metrics *metrics.Metrics
	tracker analytics.CrawlTracker
	workers int
	trace   bool

	// runMu serialises crawl runs against the same session.
	runMu  sync.Mutex
	logger *slog.Logger
}

type Option func(*Crawler)

// WithSnapshotStore persists the session after every run.
func WithSnapshotStore(s snapshot.Store) Option {
	return func(c *Crawler) { c.store = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// WithTracker reports one CrawlEvent per dispatched URL.
func WithTracker(t analytics.CrawlTracker) Option {
	return func(c *Crawler) { c.tracker = t }
}

func New(gate Gate, f Fetcher, sess *session.Session, cfg Config, opts ...Option) *Crawler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	c := &Crawler{
		gate:    gate,
		fetcher: f,
		session: sess,
		workers: cfg.Workers,
		trace:   cfg.Trace,
		logger:  slog.Default().With("component", "crawler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session this crawler writes into.
func (c *Crawler) Session() *session.Session { return c.session }

// Crawl runs until limit pages have been indexed or the frontier is empty.
// The limit is checked between batches, so the last batch may index a few
// pages past it. Per-URL failures are counted, never returned. The report is
// returned even when the snapshot save fails; that error wraps ErrSnapshot.
func (c *Crawler) Crawl(ctx context.Context, initial []string, limit int) (*Report, error) {
	if len(initial) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "at least one URL is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()

	if r, ok := c.gate.(Resetter); ok {
		r.Reset()
	}

	runID := tracing.NewTraceID()
	ctx, span := tracing.StartSpan(ctx, "crawl", runID)
	logger := c.logger.With("run_id", runID)

	start := time.Now()
	report := &Report{RunID: runID}
	queue := frontier.New(initial...)
	run := &runState{report: report}

	logger.Info("crawl started", "seeds", len(initial), "limit", limit, "workers", c.workers)

	for queue.Len() > 0 && run.indexed() < limit {
		if ctx.Err() != nil {
			break
		}
		batch := queue.Drain(c.workers)
		c.runBatch(ctx, runID, batch, queue, run)
		report.Batches++
		if c.metrics != nil {
			c.metrics.FrontierSize.Set(float64(queue.Len()))
		}
	}
	report.Pending = queue.Snapshot()

	res := c.session.RecomputeRanks()
	report.RankIterations = res.Iterations

	var saveErr error
	if c.store != nil {
		saveErr = c.persist(ctx, logger)
		report.Persisted = saveErr == nil
	}

	report.Duration = time.Since(start)
	span.SetAttr("indexed", report.Indexed)
	span.SetAttr("batches", report.Batches)
	span.SetAttr("pending", len(report.Pending))
	span.End()
	if c.trace {
		span.Log()
	}

	if c.metrics != nil {
		c.metrics.CrawlRunsTotal.Inc()
		c.metrics.DocumentsTotal.Set(float64(c.session.DocumentCount()))
		c.metrics.RankIterations.Observe(float64(res.Iterations))
	}

	logger.Info("crawl finished",
		"indexed", report.Indexed,
		"denied", report.Denied,
		"failed", report.Failed,
		"noindex", report.NoIndex,
		"skipped", report.Skipped,
		"pending", len(report.Pending),
		"documents", c.session.DocumentCount(),
		"terms", c.session.Index().TermCount(),
		"rank_iterations", res.Iterations,
		"rank_converged", res.Converged,
		"duration_ms", report.Duration.Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return report, fmt.Errorf("%w: crawl interrupted: %w", apperrors.ErrTimeout, err)
		}
		return report, fmt.Errorf("crawl interrupted: %w", err)
	}
	if saveErr != nil {
		return report, fmt.Errorf("%w: %v", apperrors.ErrSnapshot, saveErr)
	}
	return report, nil
}

func (c *Crawler) persist(ctx context.Context, logger *slog.Logger) error {
	// Saving proceeds even when the run was cancelled.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := c.store.Save(saveCtx, c.session.Snapshot()); err != nil {
		logger.Error("snapshot save failed", "error", err)
		if c.metrics != nil {
			c.metrics.SnapshotSavesTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	if c.metrics != nil {
		c.metrics.SnapshotSavesTotal.WithLabelValues("ok").Inc()
	}
	return nil
}

// runBatch dispatches every URL in batch and waits for all of them.
func (c *Crawler) runBatch(ctx context.Context, runID string, batch []string, queue *frontier.Queue, run *runState) {
	ctx, span := tracing.StartChildSpan(ctx, "batch")
	span.SetAttr("size", len(batch))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, u := range batch {
		g.Go(func() error {
			c.process(gctx, runID, u, queue, run)
			return nil
		})
	}
	_ = g.Wait()

	span.End()
	if c.metrics != nil {
		c.metrics.CrawlBatchDuration.Observe(time.Since(start).Seconds())
	}
}

// process handles one URL end to end and records its outcome.
func (c *Crawler) process(ctx context.Context, runID, rawURL string, queue *frontier.Queue, run *runState) {
	start := time.Now()
	event := analytics.CrawlEvent{
		Type:  analytics.EventCrawl,
		RunID: runID,
		URL:   rawURL,
	}
	if u, err := url.Parse(rawURL); err == nil {
		event.Host = u.Host
	}
	defer func() {
		event.LatencyMs = time.Since(start).Milliseconds()
		event.Timestamp = time.Now().UTC()
		run.record(event.Outcome)
		if c.metrics != nil {
			c.metrics.PagesCrawledTotal.WithLabelValues(event.Outcome).Inc()
		}
		if c.tracker != nil {
			c.tracker.TrackCrawl(event)
		}
	}()

	if !c.session.MarkVisited(rawURL) {
		event.Outcome = metrics.OutcomeSkipped
		return
	}
	if !c.gate.CanCrawl(ctx, rawURL) {
		event.Outcome = metrics.OutcomeDenied
		c.logger.Debug("denied by robots policy", "url", rawURL)
		return
	}

	page, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		event.Outcome = metrics.OutcomeFailed
		event.Error = err.Error()
		if errors.Is(err, apperrors.ErrNotHTML) {
			c.logger.Debug("skipping non-html page", "url", rawURL)
		} else {
			c.logger.Warn("fetch failed", "url", rawURL, "error", err)
		}
		return
	}
	event.Bytes = len(page.Body)

	if extract.HasNoIndex(page.Body) {
		event.Outcome = metrics.OutcomeNoIndex
		c.logger.Debug("noindex page discarded", "url", rawURL)
		return
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		event.Outcome = metrics.OutcomeFailed
		event.Error = err.Error()
		c.logger.Warn("parse failed", "url", rawURL, "error", err)
		return
	}

	links := extract.ExtractLinks(doc, rawURL)
	stored, added := c.session.AddPage(session.Page{
		URL:         rawURL,
		Title:       extract.Title(doc),
		Description: extract.Description(doc),
		BodyText:    extract.BodyText(doc),
		Links:       links.Edges,
	})
	if !added {
		// Restored from a snapshot without the visited entry.
		event.Outcome = metrics.OutcomeSkipped
		return
	}
	event.Outcome = metrics.OutcomeIndexed
	event.DocID = stored.ID
	event.Links = len(links.Edges)

	next := make([]string, 0, len(links.URLs))
	for _, l := range links.URLs {
		if !c.session.IsVisited(l) {
			next = append(next, l)
		}
	}
	queue.Push(next...)
	c.logger.Debug("page indexed", "url", rawURL, "doc_id", stored.ID, "links", len(links.URLs))
}

type runState struct {
	mu     sync.Mutex
	report *Report
}

func (r *runState) record(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch outcome {
	case metrics.OutcomeIndexed:
		r.report.Indexed++
	case metrics.OutcomeDenied:
		r.report.Denied++
	case metrics.OutcomeFailed:
		r.report.Failed++
	case metrics.OutcomeNoIndex:
		r.report.NoIndex++
	case metrics.OutcomeSkipped:
		r.report.Skipped++
	}
}

func (r *runState) indexed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report.Indexed
}
