package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"regrag/pkg/models"
)

var crawlCategories []string

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Download new regulatory documents",
	Long: `Crawl the configured category listings and download every document
not seen before. Already-downloaded URLs are skipped via the download
ledger, so repeated crawls only fetch what is new.

Examples:
  # Crawl all configured categories plus the auxiliary pages
  regrag crawl

  # Crawl selected categories only
  regrag crawl --category circulars --category regulations`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringSliceVar(&crawlCategories, "category", nil, "category to crawl (repeatable; default all)")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	c, err := newCrawler(ctx, l)
	if err != nil {
		return err
	}

	summary, err := c.Run(ctx, crawlCategories)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	fmt.Printf("Crawl complete: %d new documents\n", summary.Total())
	for _, docType := range models.DocTypes {
		fmt.Printf("  %-6s %d\n", docType, summary.ByType[docType])
	}

	categories := make([]string, 0, len(summary.ByCategory))
	for category := range summary.ByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		total := 0
		for _, n := range summary.ByCategory[category] {
			total += n
		}
		fmt.Printf("  %s: %d\n", category, total)
	}
	return nil
}
