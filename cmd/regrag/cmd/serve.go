package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"regrag/internal/mcp"
	"regrag/internal/scheduler"
)

var serveNoScheduler bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server over stdio, with the background update scheduler
running alongside it.

The server provides two tools:
  - search_regulations: retrieve passages by semantic similarity
  - knowledge_base_stats: report download and index counts

Examples:
  regrag serve
  regrag serve --no-scheduler`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "serve without the background update scheduler")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := newRetriever()
	if err != nil {
		return err
	}

	stats := func(ctx context.Context) mcp.Stats {
		s := mcp.Stats{ByCategory: map[string]int{}}

		index, err := newIndex()
		if err == nil {
			s.IndexedChunks = index.Count(ctx)
		}
		l, err := openLedger()
		if err != nil {
			return s
		}
		defer l.Close()
		if n, err := l.Count(ctx); err == nil {
			s.Downloads = n
		}
		s.ByCategory = l.StatsByCategory(ctx)
		return s
	}

	server := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}, r, stats)

	if !serveNoScheduler {
		sched := scheduler.New(scheduler.Config{
			Interval:      cfg.Scheduler.Interval,
			CheckInterval: cfg.Scheduler.CheckInterval,
			StartupDelay:  cfg.Scheduler.StartupDelay,
		}, cfg.SchedulerStatePath(), runUpdateCycle)
		go sched.Run(ctx)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
