package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/internal/api/validator"
	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/logger"
)

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Run one crawl and persist the result",
		Long: `Crawl restores the last snapshot, crawls from the given URLs (or the
configured seeds when none are given), recomputes ranks and saves a new
snapshot. The run report is printed as JSON.

Examples:
  crawlsearch crawl
  crawlsearch crawl --limit 200 https://go.dev/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawl,
	}
	cmd.Flags().IntP("limit", "l", 0, "pages to index before stopping (overrides crawler.limit)")
	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
		cfg.Crawler.Limit = limit
	}
	logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	seeds := cfg.Crawler.Seeds
	if len(args) > 0 {
		seeds = make([]string, 0, len(args))
		for _, arg := range args {
			req := validator.CrawlRequest{URL: arg}
			if err := validator.ValidateCrawlRequest(&req); err != nil {
				return fmt.Errorf("%s: %w", arg, err)
			}
			seeds = append(seeds, req.URL)
		}
	}
	if len(seeds) == 0 {
		return errors.New("no URLs given and no seeds configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.restore(ctx); err != nil {
		return err
	}
	report, err := a.crawler.Crawl(ctx, seeds, cfg.Crawler.Limit)
	if report != nil {
		if err := a.cache.Invalidate(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "cache invalidation failed: %v\n", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			return encErr
		}
	}
	return err
}
