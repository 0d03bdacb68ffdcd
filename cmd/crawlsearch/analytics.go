package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/postgres"
)

func newAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Consume search and crawl events from Kafka and serve aggregated stats",
		Long: `Analytics runs the standalone aggregation service. It consumes the
search and crawl event topics, aggregates them in memory and serves
GET /api/v1/analytics. With --persist the stats are stored in Postgres every
analytics.snapshotInterval and restored totals are logged on startup.`,
		Args: cobra.NoArgs,
		RunE: runAnalytics,
	}
	cmd.Flags().IntP("port", "p", 3001, "HTTP port")
	cmd.Flags().Bool("persist", false, "store periodic stats snapshots in Postgres")
	return cmd
}

func runAnalytics(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	port, _ := cmd.Flags().GetInt("port")
	persist, _ := cmd.Flags().GetBool("persist")

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", port, "brokers", cfg.Kafka.Brokers)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	checker := health.NewChecker()
	g, gctx := errgroup.WithContext(ctx)

	if persist {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		store, err := analytics.NewStore(ctx, db)
		if err != nil {
			return err
		}
		if last, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("could not read previous analytics snapshot", "error", err)
		} else if last != nil {
			slog.Info("previous analytics snapshot",
				"total_searches", last.TotalSearches,
				"pages_crawled", last.PagesCrawled,
			)
		}
		g.Go(func() error {
			store.RunPeriodicSave(gctx, aggregator, cfg.Analytics.SnapshotInterval)
			return nil
		})
		checker.Register("postgres", health.PingCheck(db.Ping, false))
	}

	handle := analytics.HandleEvent(aggregator)
	for _, topic := range []string{cfg.Kafka.Topics.SearchEvents, cfg.Kafka.Topics.CrawlEvents} {
		consumer := kafka.NewConsumer(cfg.Kafka, topic, handle)
		g.Go(func() error {
			if err := consumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consuming %s: %w", topic, err)
			}
			return nil
		})
		slog.Info("analytics consumer started", "topic", topic)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.SearchTimeout,
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("analytics service stopped")
	return err
}
