package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Crawl then ingest in one run",
	Long: `Run one full update cycle: crawl the configured categories for new
documents, then extract, chunk, embed and index anything new.

Example:
  regrag update`,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	crawlSummary, ingestSummary, err := runUpdateCycle(ctx)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	fmt.Printf("Update complete: %d new documents, %d files indexed (%d chunks)\n",
		crawlSummary.Total(), ingestSummary.TotalFiles, ingestSummary.TotalChunks)
	return nil
}
