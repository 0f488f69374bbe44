package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DocType classifies a regulatory document by its storage partition.
type DocType string

const (
	DocTypePDF   DocType = "pdf"
	DocTypeExcel DocType = "excel"
	DocTypeWord  DocType = "word"
)

// DocTypes lists all document types in partition order.
var DocTypes = []DocType{DocTypePDF, DocTypeExcel, DocTypeWord}

// DocTypeForExt maps a file extension (with or without leading dot) to its
// document type. CSV exports from the source site are filed under excel.
func DocTypeForExt(ext string) (DocType, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return DocTypePDF, true
	case "xlsx", "xls", "csv":
		return DocTypeExcel, true
	case "docx", "doc":
		return DocTypeWord, true
	}
	return "", false
}

// DownloadRecord is one row of the download ledger. Records are insert-only:
// a URL is recorded once, on first successful download.
type DownloadRecord struct {
	URL          string
	Filename     string
	Category     string
	FileHash     string
	DownloadedAt time.Time
	Status       string
}

// ExtractedPage is one page (PDF), sheet (Excel) or whole document (Word)
// worth of extracted text. Page indexes are 1-based.
type ExtractedPage struct {
	Source string
	Page   int
	Text   string
}

// Chunk is a bounded passage cut from an extracted page, the unit that gets
// embedded and indexed. Index is 0-based within the page.
type Chunk struct {
	Text   string
	Source string
	Page   int
	Index  int
}

// ID returns the deterministic index identity for this chunk.
func (c Chunk) ID() string {
	return ChunkID(c.Source, c.Page, c.Index)
}

// ChunkID derives the index id for a (document, page, chunk) triple.
// The source filename's extension is stripped so that re-ingesting the same
// file always resolves to the same ids.
func ChunkID(source string, page, chunk int) string {
	stem := strings.TrimSuffix(source, filepath.Ext(source))
	return fmt.Sprintf("%s_p%d_c%d", stem, page, chunk)
}

// IndexEntry is what the vector index stores per chunk.
type IndexEntry struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Page      int       `json:"page"`
	Type      DocType   `json:"type"`
}

// Passage is a retrieval result handed to the answer-generation layer.
// Score is cosine similarity rounded to 4 decimals: 1.0 for identical
// vectors, 0.0 for orthogonal ones.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Page   int     `json:"page"`
	Score  float64 `json:"score"`
}

// Citation tags an answer with its supporting source locations.
type Citation struct {
	Source string  `json:"source"`
	Page   int     `json:"page"`
	Score  float64 `json:"score"`
}

// CrawlSummary reports newly downloaded files per document type, with an
// optional per-category breakdown.
type CrawlSummary struct {
	ByType     map[DocType]int            `json:"by_type"`
	ByCategory map[string]map[DocType]int `json:"by_category,omitempty"`
}

// NewCrawlSummary returns a summary with all type counters present.
func NewCrawlSummary() *CrawlSummary {
	return &CrawlSummary{
		ByType:     map[DocType]int{DocTypePDF: 0, DocTypeExcel: 0, DocTypeWord: 0},
		ByCategory: map[string]map[DocType]int{},
	}
}

// Add counts one new download for the given category and type.
func (s *CrawlSummary) Add(category string, t DocType) {
	s.ByType[t]++
	if s.ByCategory[category] == nil {
		s.ByCategory[category] = map[DocType]int{}
	}
	s.ByCategory[category][t]++
}

// Total returns the number of new downloads across all types.
func (s *CrawlSummary) Total() int {
	n := 0
	for _, c := range s.ByType {
		n += c
	}
	return n
}

// IngestSummary reports what an ingestion run added to the vector index.
type IngestSummary struct {
	TotalFiles  int             `json:"total_files"`
	TotalChunks int             `json:"total_chunks"`
	ByType      map[DocType]int `json:"by_type"`
}

// NewIngestSummary returns a summary with all type counters present.
func NewIngestSummary() *IngestSummary {
	return &IngestSummary{
		ByType: map[DocType]int{DocTypePDF: 0, DocTypeExcel: 0, DocTypeWord: 0},
	}
}
