package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"regrag/pkg/models"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore documents from the archive mirror",
	Long: `Download every mirrored document from the S3/MinIO archive into the
local data directory. Files already present on disk are left alone, so a
restore after partial data loss only fetches what is missing.

Requires the archive to be enabled in the configuration.

Example:
  regrag restore`,
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Archive.Enabled {
		return fmt.Errorf("archive is disabled; set archive.enabled to use restore")
	}

	mirror, err := newArchive(ctx)
	if err != nil {
		return err
	}

	restored, present := 0, 0
	for _, docType := range models.DocTypes {
		keys, err := mirror.ListDocuments(ctx, string(docType))
		if err != nil {
			return fmt.Errorf("listing %s documents: %w", docType, err)
		}
		for _, key := range keys {
			// Object keys are documents/{type}/{category}/{filename}; the
			// part after the prefix is the local layout.
			rel := strings.TrimPrefix(key, "documents/")
			dest := filepath.Join(cfg.DataRoot, filepath.FromSlash(rel))
			if _, err := os.Stat(dest); err == nil {
				present++
				continue
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("creating document directory: %w", err)
			}
			if err := mirror.GetDocument(ctx, key, dest); err != nil {
				return fmt.Errorf("restoring %s: %w", key, err)
			}
			restored++
		}
	}

	fmt.Printf("Restored %d documents from bucket %q (%d already on disk)\n",
		restored, mirror.Bucket(), present)
	return nil
}
