package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/crawler/fetcher"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/crawler/politeness"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/session"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/resilience"
)

// snapshotsKept bounds the history rows of the postgres snapshot backend.
const snapshotsKept = 5

// app holds everything the serve and crawl commands share. Optional parts
// (cache, analytics) stay nil when disabled or unreachable.
type app struct {
	cfg        *config.Config
	session    *session.Session
	store      snapshot.Store
	crawler    *crawler.Crawler
	metrics    *metrics.Metrics
	cache      *cache.QueryCache
	aggregator *analytics.Aggregator
	tracker    analytics.Fanout
	checker    *health.Checker

	// cancel stops the background publishers before closers run.
	cancel  context.CancelFunc
	closers []func()
	logger  *slog.Logger
}

type appOptions struct {
	// reg receives the Prometheus collectors; nil skips metrics.
	reg prometheus.Registerer
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &app{
		cfg:     cfg,
		session: newSession(cfg),
		checker: health.NewChecker(),
		cancel:  cancel,
		logger:  logger.WithComponent("app"),
	}
	if opts.reg != nil {
		a.metrics = metrics.New(opts.reg)
	}

	store, closeStore, err := openSnapshotStore(ctx, cfg, a.checker)
	if err != nil {
		cancel()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	a.setupCache(ctx)
	if cfg.Analytics.Enabled {
		a.setupAnalytics(bgCtx)
	}

	client := fetcher.NewClient()
	gate := politeness.NewGate(client,
		politeness.WithTimeout(cfg.Crawler.PolicyTimeout),
		politeness.WithUserAgent(cfg.Crawler.UserAgent),
	)
	f := fetcher.New(client, fetcher.Config{
		Timeout:      cfg.Crawler.FetchTimeout,
		UserAgent:    cfg.Crawler.UserAgent,
		MaxBodyBytes: cfg.Crawler.MaxBodyBytes,
		HostRate:     cfg.Crawler.HostRate,
		HostBurst:    cfg.Crawler.HostBurst,
	})
	crawlOpts := []crawler.Option{crawler.WithSnapshotStore(a.store)}
	if a.metrics != nil {
		crawlOpts = append(crawlOpts, crawler.WithMetrics(a.metrics))
	}
	if len(a.tracker) > 0 {
		crawlOpts = append(crawlOpts, crawler.WithTracker(a.tracker))
	}
	a.crawler = crawler.New(gate, f, a.session, crawler.Config{
		Workers: cfg.Crawler.Workers,
		Trace:   cfg.Tracing.Enabled,
	}, crawlOpts...)

	a.checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		idx := a.session.Index()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", idx.DocCount(), idx.TermCount()),
		}
	})
	return a, nil
}

// newSession returns an empty session using the configured rank tuning.
func newSession(cfg *config.Config) *session.Session {
	sess := session.New()
	sess.SetRankOptions(rank.Options{
		Damping:       cfg.Rank.Damping,
		Tolerance:     cfg.Rank.Tolerance,
		MaxIterations: cfg.Rank.MaxIterations,
	})
	return sess
}

// openSnapshotStore opens the configured persistence backend and registers
// a readiness check for database backends.
func openSnapshotStore(ctx context.Context, cfg *config.Config, checker *health.Checker) (snapshot.Store, func(), error) {
	switch cfg.Persistence.Backend {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		store, err := snapshot.NewPostgresStore(ctx, db, snapshotsKept)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if checker != nil {
			checker.Register("postgres", health.PingCheck(db.Ping, false))
		}
		return store, func() { db.Close() }, nil
	case "sqlite":
		store, err := snapshot.NewSQLiteStore(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		store := snapshot.NewFileStore(cfg.Persistence.Path)
		return store, func() {}, nil
	}
}

func (a *app) setupCache(ctx context.Context) {
	if !a.cfg.Redis.Enabled {
		return
	}
	client, err := pkgredis.NewClient(ctx, a.cfg.Redis)
	if err != nil {
		a.logger.Warn("redis unavailable, search caching disabled", "error", err)
		a.checker.Register("redis", func(context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
		})
		return
	}
	a.closers = append(a.closers, func() { client.Close() })
	a.cache = cache.New(client, a.cfg.Redis.CacheTTL)
	a.checker.Register("redis", health.PingCheck(client.Ping, true))
	a.logger.Info("search cache enabled", "addr", a.cfg.Redis.Addr, "ttl", a.cfg.Redis.CacheTTL)
}

// setupAnalytics aggregates events in process and, through Kafka, ships
// search events one by one and crawl events in batches.
func (a *app) setupAnalytics(ctx context.Context) {
	a.aggregator = analytics.NewAggregator()
	a.tracker = append(a.tracker, a.aggregator)

	breakerCfg := resilience.CircuitBreakerConfig{}
	if a.metrics != nil {
		breakerCfg.OnStateChange = func(name string, to resilience.State) {
			a.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}

	searchProducer := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.SearchEvents)
	searchCollector := analytics.NewCollector(
		searchProducer,
		resilience.NewCircuitBreaker("kafka-search-events", breakerCfg),
		a.cfg.Analytics.BufferSize,
	)
	searchCollector.Start(ctx)

	crawlProducer := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.CrawlEvents)
	crawlCollector := collector.NewBatchCollector(crawlProducer, a.cfg.Analytics.BatchSize, a.cfg.Analytics.FlushInterval)
	crawlCollector.Start(ctx)

	a.tracker = append(a.tracker, searchCollector, crawlCollector)
	a.closers = append(a.closers,
		searchCollector.Close,
		crawlCollector.Close,
		func() { searchProducer.Close() },
		func() { crawlProducer.Close() },
	)
	a.logger.Info("analytics enabled",
		"search_topic", a.cfg.Kafka.Topics.SearchEvents,
		"crawl_topic", a.cfg.Kafka.Topics.CrawlEvents,
	)
}

// restore loads the last snapshot into the session. A missing snapshot is
// not an error.
func (a *app) restore(ctx context.Context) error {
	snap, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if snap == nil {
		a.logger.Info("no snapshot found, starting with an empty index")
		return nil
	}
	a.session.Restore(snap)
	if a.metrics != nil {
		a.metrics.DocumentsTotal.Set(float64(a.session.DocumentCount()))
	}
	return nil
}

// close stops background work, then releases resources in order.
func (a *app) close() {
	a.cancel()
	for _, c := range a.closers {
		c()
	}
}
