package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"regrag/internal/scheduler"
	"regrag/pkg/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download and index counts",
	Long: `Print the size of the knowledge base: how many documents were
downloaded per category and how many chunks are in the vector index.

Example:
  regrag stats`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	downloads, err := l.Count(ctx)
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}

	fmt.Printf("Downloads: %d\n", downloads)
	byCategory := l.StatsByCategory(ctx)
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		fmt.Printf("  %-24s %d\n", category, byCategory[category])
	}

	fmt.Println("Files on disk:")
	for _, docType := range models.DocTypes {
		fmt.Printf("  %-6s %d\n", docType, countFiles(cfg.DocumentDir(string(docType))))
	}

	index, err := newIndex()
	if err != nil {
		return err
	}
	if index.Ping(ctx) {
		fmt.Printf("Indexed chunks: %d\n", index.Count(ctx))
	} else {
		fmt.Println("Indexed chunks: unavailable (Elasticsearch unreachable)")
	}

	if st, ok := scheduler.LoadState(cfg.SchedulerStatePath()); ok {
		fmt.Printf("Last update: %s\n", st.LastUpdate.Format(time.RFC3339))
		if st.LastError != "" {
			fmt.Printf("Last update error: %s\n", st.LastError)
		}
	}
	return nil
}

func countFiles(root string) int {
	count := 0
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}
