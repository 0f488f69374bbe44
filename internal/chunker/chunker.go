// Package chunker splits extracted page text into bounded, overlapping
// passages for embedding.
package chunker

import (
	"strings"

	"regrag/pkg/models"
)

const (
	// DefaultSize is the target chunk length in characters.
	DefaultSize = 800
	// DefaultOverlap is how many trailing characters each chunk shares with
	// the next, so that sentences cut at a boundary survive in one piece.
	DefaultOverlap = 100
)

// breakMarkers are tried in order when looking for a clean cut point near
// the chunk boundary. A hard mid-word cut is the last resort.
var breakMarkers = []string{"\n\n", "\n", ". ", " "}

// Chunker splits text with a fixed size and overlap.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker. Non-positive arguments fall back to the defaults;
// an overlap at or above the size is clamped below it so progress is always
// made.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split cuts text into chunks of at most the configured size, preferring to
// break at paragraph, line, sentence then word boundaries. Consecutive
// chunks overlap by the configured amount. Empty or whitespace-only text
// yields no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			chunk := strings.TrimSpace(text[start:])
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := c.findBreak(text, start, end)
		chunk := strings.TrimSpace(text[start:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - c.overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// findBreak looks backwards from end for the best boundary in the window's
// second half. Returns end unchanged when nothing better exists.
func (c *Chunker) findBreak(text string, start, end int) int {
	window := text[start:end]
	half := len(window) / 2

	for _, marker := range breakMarkers {
		if idx := strings.LastIndex(window, marker); idx > half {
			return start + idx + len(marker)
		}
	}
	return end
}

// ChunkPage splits one extracted page into chunks carrying their source,
// page number and 0-based index.
func (c *Chunker) ChunkPage(page models.ExtractedPage) []models.Chunk {
	parts := c.Split(page.Text)
	chunks := make([]models.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, models.Chunk{
			Text:   part,
			Source: page.Source,
			Page:   page.Page,
			Index:  i,
		})
	}
	return chunks
}

// ChunkPages chunks every page of one document.
func (c *Chunker) ChunkPages(pages []models.ExtractedPage) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		chunks = append(chunks, c.ChunkPage(page)...)
	}
	return chunks
}
