package extract

import (
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"regrag/pkg/models"
)

type excelExtractor struct{}

// Extract returns one ExtractedPage per sheet, in workbook order. Each row
// becomes one line with its non-empty cells joined by " | ". A workbook that
// cannot be opened yields an empty list and no error.
func (excelExtractor) Extract(path, source string) ([]models.ExtractedPage, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		slog.Warn("unreadable workbook, skipping", "file", source, "error", err)
		return nil, nil
	}
	defer f.Close()

	var pages []models.ExtractedPage
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			slog.Warn("unreadable sheet, skipping", "file", source, "sheet", sheet, "error", err)
			continue
		}

		var lines []string
		for _, row := range rows {
			var cells []string
			for _, cell := range row {
				if v := strings.TrimSpace(cell); v != "" {
					cells = append(cells, v)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " | "))
			}
		}

		text := strings.Join(lines, "\n")
		if !usable(text) {
			continue
		}
		pages = append(pages, models.ExtractedPage{
			Source: source,
			Page:   i + 1,
			Text:   text,
		})
	}
	return pages, nil
}
