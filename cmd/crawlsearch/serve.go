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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/api/router"
	apperrors "github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/metrics"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Restore the index, crawl the seeds and serve the HTTP API",
		Long: `Serve loads the last snapshot, runs one crawl over the configured seeds
(unless --skip-crawl is given or crawler.crawlOnStartup is false) and then
listens for search and crawl requests.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().IntP("port", "p", 0, "HTTP port (overrides server.port)")
	cmd.Flags().Bool("skip-crawl", false, "skip the startup crawl over the seeds")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	skipCrawl, _ := cmd.Flags().GetBool("skip-crawl")

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting crawlsearch",
		"port", cfg.Server.Port,
		"persistence", cfg.Persistence.Backend,
		"workers", cfg.Crawler.Workers,
		"limit", cfg.Crawler.Limit,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		reg = prometheus.DefaultRegisterer
	}
	a, err := newApp(ctx, cfg, appOptions{reg: reg})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.restore(ctx); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	opts := []handler.Option{handler.WithCache(a.cache)}
	if a.metrics != nil {
		opts = append(opts, handler.WithMetrics(a.metrics))
	}
	if len(a.tracker) > 0 {
		opts = append(opts, handler.WithTracker(a.tracker))
	}
	h := handler.New(a.session, a.crawler, handler.Config{
		MaxResults: cfg.Search.MaxResults,
		CrawlLimit: cfg.Crawler.Limit,
	}, opts...)

	if cfg.Crawler.CrawlOnStartup && !skipCrawl && len(cfg.Crawler.Seeds) > 0 {
		report, err := a.crawler.Crawl(ctx, cfg.Crawler.Seeds, cfg.Crawler.Limit)
		switch {
		case err == nil, errors.Is(err, apperrors.ErrSnapshot):
			if err != nil {
				slog.Warn("startup crawl not persisted", "error", err)
			}
			h.RecordReport(report)
			if err := a.cache.Invalidate(ctx); err != nil {
				slog.Warn("cache invalidation failed", "error", err)
			}
		case ctx.Err() != nil:
			slog.Info("startup crawl interrupted, shutting down")
			return nil
		default:
			return fmt.Errorf("startup crawl: %w", err)
		}
	}

	var stats *analytics.Handler
	if a.aggregator != nil {
		stats = analytics.NewHandler(a.aggregator)
	}
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(h, a.checker, stats, a.metrics, router.Config{
			SearchTimeout:      cfg.Server.SearchTimeout,
			CrawlRatePerMinute: cfg.Server.CrawlRatePerMinute,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("crawlsearch listening", "addr", server.Addr, "documents", a.session.DocumentCount())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("crawlsearch stopped")
	return nil
}
