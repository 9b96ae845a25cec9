// ABOUTME: CLI commands for page memory operations.
// ABOUTME: Provides store, similar, list, stats, and clear subcommands.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389-research/pagemem/internal/index"
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Manage remembered pages",
	Long:  "Store page summaries, find similar pages, and inspect the page store.",
}

var pageStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Store a page summary",
	Long:  "Embed a summary and store it under the page URL, replacing any previous entry.",
	RunE:  runPageStore,
}

var pageSimilarCmd = &cobra.Command{
	Use:   "similar <summary>",
	Short: "Find pages similar to a summary",
	Long:  "Rank stored pages by cosine similarity to the given text.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPageSimilar,
}

var pageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored pages",
	Long:  "List stored pages, newest first.",
	RunE:  runPageList,
}

var pageStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show page store statistics",
	RunE:  runPageStats,
}

var pageClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored page",
	Long:  "Remove every stored page. This cannot be undone.",
	RunE:  runPageClear,
}

// Flags
var (
	pageURL       string
	pageSummary   string
	pageTitle     string
	pageTimestamp int64
	excludeURL    string
	threshold     float64
	limit         int
	listLimit     int
	jsonOutput    bool
	confirmClear  bool
	remoteURL     string
)

func init() {
	rootCmd.AddCommand(pageCmd)
	pageCmd.AddCommand(pageStoreCmd)
	pageCmd.AddCommand(pageSimilarCmd)
	pageCmd.AddCommand(pageListCmd)
	pageCmd.AddCommand(pageStatsCmd)
	pageCmd.AddCommand(pageClearCmd)

	pageCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "Use a running pagemem server instead of the local store (env PAGEMEM_REMOTE_URL)")

	pageStoreCmd.Flags().StringVar(&pageURL, "url", "", "Page URL (required)")
	pageStoreCmd.Flags().StringVar(&pageSummary, "summary", "", "Summary text (required)")
	pageStoreCmd.Flags().StringVar(&pageTitle, "title", "", "Page title")
	pageStoreCmd.Flags().Int64Var(&pageTimestamp, "timestamp", 0, "Seconds since epoch (default: now)")

	pageSimilarCmd.Flags().StringVar(&excludeURL, "exclude", "", "URL to leave out of the results")
	pageSimilarCmd.Flags().Float64Var(&threshold, "threshold", index.DefaultThreshold, "Minimum similarity (inclusive)")
	pageSimilarCmd.Flags().IntVar(&limit, "limit", index.DefaultLimit, "Maximum number of results")
	pageSimilarCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	pageListCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of pages to show (0 = all)")
	pageListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print pages as JSON")

	pageStatsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print stats as JSON")

	pageClearCmd.Flags().BoolVar(&confirmClear, "yes", false, "Confirm removing every page")
}

func runPageStore(cmd *cobra.Command, args []string) error {
	var ts *int64
	if cmd.Flags().Changed("timestamp") {
		ts = &pageTimestamp
	}

	backend := currentBackend()
	if err := backend.Store(cmd.Context(), pageURL, pageSummary, pageTitle, ts); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Stored: %s\n", pageURL)
	if !backend.ModelLoaded(cmd.Context()) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: embedding model not loaded; stored a zero vector that will not match searches.")
	}
	return nil
}

func runPageSimilar(cmd *cobra.Command, args []string) error {
	matches, err := currentBackend().Similar(cmd.Context(), args[0], excludeURL, threshold, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, matches)
	}
	if len(matches) == 0 {
		_, _ = fmt.Fprintln(out, "No similar pages found.")
		return nil
	}
	for _, m := range matches {
		_, _ = fmt.Fprintf(out, "%.3f  %s\n       %s  %s\n", m.Similarity, m.Title, formatUnix(m.Timestamp), m.Key)
	}
	return nil
}

func runPageList(cmd *cobra.Command, args []string) error {
	pages, err := currentBackend().List(cmd.Context())
	if err != nil {
		return err
	}
	if listLimit > 0 && len(pages) > listLimit {
		pages = pages[:listLimit]
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, pages)
	}
	if len(pages) == 0 {
		_, _ = fmt.Fprintln(out, "No pages stored.")
		return nil
	}
	for _, p := range pages {
		_, _ = fmt.Fprintf(out, "--- %s %s\n    %s\n    %s\n", formatUnix(p.Timestamp), p.Title, p.Key, p.Summary)
	}
	return nil
}

func runPageStats(cmd *cobra.Command, args []string) error {
	st, err := currentBackend().Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, st)
	}
	_, _ = fmt.Fprintf(out, "Status:                 %s\n", st.Status)
	_, _ = fmt.Fprintf(out, "Pages:                  %d\n", st.TotalPages)
	_, _ = fmt.Fprintf(out, "Summaries:              %d\n", st.TotalSummaries)
	_, _ = fmt.Fprintf(out, "Average summary length: %.1f\n", st.AvgSummaryLength)
	if st.LastUpdated != "" {
		_, _ = fmt.Fprintf(out, "Last updated:           %s\n", st.LastUpdated)
	}
	if len(st.RecentPages) > 0 {
		_, _ = fmt.Fprintln(out, "\nRecent pages:")
		for _, p := range st.RecentPages {
			_, _ = fmt.Fprintf(out, "  %s  %s (%s)\n", formatUnix(p.Timestamp), p.Title, p.Key)
		}
	}
	return nil
}

func runPageClear(cmd *cobra.Command, args []string) error {
	if !confirmClear {
		return fmt.Errorf("refusing to clear without --yes")
	}
	if err := currentBackend().Clear(cmd.Context()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "All pages cleared.")
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}
