// Package ingestion walks the downloaded document store and feeds new
// documents through extraction, chunking and embedding into the vector
// index.
package ingestion

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"regrag/internal/chunker"
	"regrag/internal/extract"
	"regrag/pkg/models"
)

// Index is the vector index surface the engine needs.
type Index interface {
	EnsureIndex(ctx context.Context) error
	ListIDs(ctx context.Context) (map[string]bool, error)
	Upsert(ctx context.Context, entries []models.IndexEntry) error
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Result holds ingestion execution results.
type Result struct {
	Summary  *models.IngestSummary
	Duration time.Duration
	Errors   []string
}

// Engine indexes downloaded documents exactly once, keyed by chunk id.
type Engine struct {
	dataRoot string
	category string // when set, only this category subdirectory is scanned
	index    Index
	embedder Embedder
	chunker  *chunker.Chunker
}

// New creates a new ingestion engine.
func New(dataRoot string, index Index, embedder Embedder) *Engine {
	return &Engine{
		dataRoot: dataRoot,
		index:    index,
		embedder: embedder,
		chunker:  chunker.New(chunker.DefaultSize, chunker.DefaultOverlap),
	}
}

// WithCategory restricts ingestion to one category subdirectory.
func (e *Engine) WithCategory(category string) *Engine {
	e.category = category
	return e
}

// Ingest scans every document type partition and indexes files not yet
// present in the vector index. Per-file failures are collected, never
// fatal to the run.
func (e *Engine) Ingest(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{Summary: models.NewIngestSummary()}

	slog.Info("starting ingestion", "data_root", e.dataRoot)

	if err := e.index.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	existing, err := e.index.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded existing index ids", "count", len(existing))

	for _, docType := range models.DocTypes {
		files, err := e.listFiles(docType)
		if err != nil {
			slog.Warn("listing documents failed", "type", docType, "error", err)
			continue
		}

		for _, path := range files {
			if ctx.Err() != nil {
				result.Errors = append(result.Errors, "context cancelled")
				result.Duration = time.Since(start)
				return result, nil
			}

			source := filepath.Base(path)
			// A file's first chunk id stands in for the whole file: chunk
			// ids are deterministic, so its presence means the file was
			// ingested before.
			if existing[models.ChunkID(source, 1, 0)] {
				slog.Debug("already ingested", "file", source)
				continue
			}

			chunks, err := e.ingestFile(ctx, path, source, docType)
			if err != nil {
				slog.Error("ingesting file failed", "file", source, "error", err)
				result.Errors = append(result.Errors, source+": "+err.Error())
				continue
			}
			if chunks == 0 {
				continue
			}

			result.Summary.TotalFiles++
			result.Summary.TotalChunks += chunks
			result.Summary.ByType[docType]++
		}
	}

	result.Duration = time.Since(start)
	slog.Info("ingestion complete",
		"files", result.Summary.TotalFiles,
		"chunks", result.Summary.TotalChunks,
		"duration", result.Duration,
		"errors", len(result.Errors))

	return result, nil
}

// ingestFile extracts, chunks, embeds and upserts one document. Returns the
// number of chunks indexed; 0 with nil error when the document had no
// usable text.
func (e *Engine) ingestFile(ctx context.Context, path, source string, docType models.DocType) (int, error) {
	extractor, err := extract.ForType(docType)
	if err != nil {
		return 0, err
	}

	pages, err := extractor.Extract(path, source)
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		slog.Debug("no usable text", "file", source)
		return 0, nil
	}

	chunks := e.chunker.ChunkPages(pages)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	entries := make([]models.IndexEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = models.IndexEntry{
			ID:        chunk.ID(),
			Embedding: vectors[i],
			Text:      chunk.Text,
			Source:    chunk.Source,
			Page:      chunk.Page,
			Type:      docType,
		}
	}
	if err := e.index.Upsert(ctx, entries); err != nil {
		return 0, err
	}

	slog.Info("ingested", "file", source, "pages", len(pages), "chunks", len(chunks))
	return len(chunks), nil
}

// listFiles returns all document paths in one type partition, walking the
// per-category subdirectories. A missing partition is empty, not an error.
func (e *Engine) listFiles(docType models.DocType) ([]string, error) {
	root := filepath.Join(e.dataRoot, string(docType))
	if e.category != "" {
		root = filepath.Join(root, e.category)
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
