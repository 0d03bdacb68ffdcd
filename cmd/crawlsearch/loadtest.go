package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var defaultLoadQueries = []string{
	"news",
	"world news",
	"open source",
	"wikipedia free encyclopedia",
	"hacker news",
	"climate",
	"election results",
	"programming language",
	"football",
	"science technology",
}

type loadStats struct {
	total       atomic.Int64
	success     atomic.Int64
	errors      atomic.Int64
	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 10000),
		statusCodes: make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.errors.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

func newLoadTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive concurrent search traffic at a running server",
		Long: `Loadtest sends search queries to /search and /get in turn from several
workers for a fixed duration and prints throughput, latency percentiles and
the status code histogram.`,
		Args: cobra.NoArgs,
		RunE: runLoadTest,
	}
	cmd.Flags().String("url", "http://localhost:3000", "base URL of the server")
	cmd.Flags().IntP("concurrency", "w", 10, "number of concurrent workers")
	cmd.Flags().DurationP("duration", "d", 30*time.Second, "test duration")
	cmd.Flags().StringSliceP("query", "q", nil, "queries to send (repeatable; defaults to a built-in list)")
	return cmd
}

func runLoadTest(cmd *cobra.Command, _ []string) error {
	baseURL, _ := cmd.Flags().GetString("url")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	duration, _ := cmd.Flags().GetDuration("duration")
	queries, _ := cmd.Flags().GetStringSlice("query")
	if len(queries) == 0 {
		queries = defaultLoadQueries
	}
	if concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "target %s, %d workers, %s, %d queries\n", baseURL, concurrency, duration, len(queries))

	ctx, cancel := context.WithTimeout(cmd.Context(), duration)
	defer cancel()
	stats := driveLoad(ctx, baseURL, concurrency, queries)
	printLoadReport(out, stats, duration)
	if stats.total.Load() == 0 {
		return fmt.Errorf("no requests completed against %s", baseURL)
	}
	return nil
}

func driveLoad(ctx context.Context, baseURL string, concurrency int, queries []string) *loadStats {
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	endpoints := []string{"/search", "/get"}

	var wg sync.WaitGroup
	for w := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				target := fmt.Sprintf("%s%s?q=%s", baseURL, endpoints[i%len(endpoints)], url.QueryEscape(queries[i%len(queries)]))
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					stats.record(0, 0, err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.record(elapsed, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(elapsed, resp.StatusCode, nil)
			}
		}()
	}
	wg.Wait()
	return stats
}

func printLoadReport(out io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.total.Load()
	fmt.Fprintf(out, "requests   %d\nsuccessful %d\nerrors     %d\n", total, stats.success.Load(), stats.errors.Load())
	if total > 0 {
		fmt.Fprintf(out, "error rate %.2f%%\nreq/sec    %.2f\n",
			float64(stats.errors.Load())/float64(total)*100,
			float64(total)/duration.Seconds(),
		)
	}

	stats.mu.Lock()
	latencies := slices.Clone(stats.latencies)
	codes := make(map[int]int64, len(stats.statusCodes))
	for k, v := range stats.statusCodes {
		codes[k] = v
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintf(out, "latency    min %s  avg %s  p50 %s  p95 %s  p99 %s  max %s\n",
			latencies[0],
			sum/time.Duration(len(latencies)),
			latencyPercentile(latencies, 50),
			latencyPercentile(latencies, 95),
			latencyPercentile(latencies, 99),
			latencies[len(latencies)-1],
		)
	}
	keys := make([]int, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "status %d: %d\n", k, codes[k])
	}
}

func latencyPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
