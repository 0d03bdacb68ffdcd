package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/crawlsearch/pkg/logger"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Query the persisted index without starting the server",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	cmd.Flags().IntP("limit", "n", 0, "maximum results (capped at search.maxResults)")
	cmd.Flags().Bool("json", false, "print results as JSON")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	limit := cfg.Search.MaxResults
	if n, _ := cmd.Flags().GetInt("limit"); n > 0 && n < limit {
		limit = n
	}

	ctx := cmd.Context()
	store, closeStore, err := openSnapshotStore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	sess := newSession(cfg)
	sess.Restore(snap)

	results := sess.Search(strings.Join(args, " "), limit)
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"results": results})
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	ranks := sess.Ranks()
	fmt.Fprintln(tw, "ID\tRANK\tTITLE\tURL")
	for _, d := range results {
		fmt.Fprintf(tw, "%d\t%.4f\t%s\t%s\n", d.ID, ranks[d.ID], d.Title, d.URL)
	}
	return tw.Flush()
}
