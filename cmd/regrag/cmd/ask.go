package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"regrag/internal/answer"
	"regrag/internal/retriever"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the knowledge base",
	Long: `Retrieve the passages most relevant to the question and compose a
grounded answer with citations. When nothing relevant is indexed, a fixed
notice is printed instead of calling the LLM.

Examples:
  regrag ask "What is the minimum solvency margin for general insurers?"
  regrag ask "When must claims be settled?" --top-k 8`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().IntVar(&askTopK, "top-k", retriever.DefaultTopK, "Number of passages to ground the answer on")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	question := args[0]

	r, err := newRetriever()
	if err != nil {
		return err
	}

	passages, err := r.Retrieve(ctx, question, askTopK)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	client, err := answer.NewClient(answer.Config{
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return err
	}

	resp, err := answer.NewGenerator(client).Answer(ctx, question, passages)
	if err != nil {
		return fmt.Errorf("answering failed: %w", err)
	}

	fmt.Println(resp.Answer)
	if len(resp.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range resp.Citations {
			fmt.Printf("  - %s, page %d (score %.4f)\n", c.Source, c.Page, c.Score)
		}
	}
	return nil
}
