// Package extract turns downloaded documents into per-page plain text.
// PDFs yield one page per physical page, workbooks one per sheet, Word
// documents a single page.
package extract

import (
	"fmt"
	"strings"

	"regrag/pkg/models"
)

// minPageChars is the minimum trimmed text length for a page to count as
// having real content. Scanned pages and cover sheets fall below it.
const minPageChars = 50

// Extractor produces the extracted pages of one document format.
type Extractor interface {
	Extract(path, source string) ([]models.ExtractedPage, error)
}

// ForType returns the extractor for a document type partition.
func ForType(t models.DocType) (Extractor, error) {
	switch t {
	case models.DocTypePDF:
		return pdfExtractor{}, nil
	case models.DocTypeExcel:
		return excelExtractor{}, nil
	case models.DocTypeWord:
		return wordExtractor{}, nil
	}
	return nil, fmt.Errorf("no extractor for document type %q", t)
}

// usable reports whether a page's text clears the content threshold.
func usable(text string) bool {
	return len(strings.TrimSpace(text)) > minPageChars
}
