package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"regrag/internal/retriever"
)

var (
	searchTopK   int
	searchFormat string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve the most similar passages",
	Long: `Search the knowledge base by semantic similarity and print the
matching passages with their source document, page and score.

Examples:
  # Basic search
  regrag search "solvency margin requirements"

  # More results
  regrag search "reinsurance treaties" --top-k 10

  # JSON output for scripting
  regrag search "agent licensing" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchTopK, "top-k", retriever.DefaultTopK, "Maximum number of passages")
	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	query := args[0]

	r, err := newRetriever()
	if err != nil {
		return err
	}

	passages, err := r.Retrieve(ctx, query, searchTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(passages) == 0 {
		fmt.Println("No results found. The knowledge base may be empty; run 'regrag update' first.")
		return nil
	}

	if searchFormat == "json" {
		output, err := json.MarshalIndent(passages, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Found %d passages:\n\n", len(passages))
	for i, p := range passages {
		fmt.Printf("─── Result %d ───\n", i+1)
		fmt.Printf("Source:  %s (page %d)\n", p.Source, p.Page)
		fmt.Printf("Score:   %.4f\n", p.Score)

		text := p.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Printf("Text:\n%s\n\n", text)
	}
	return nil
}
