package extract

import (
	"archive/zip"
	"encoding/xml"
	"log/slog"
	"strings"

	"regrag/pkg/models"
)

type wordExtractor struct{}

// Extract reads word/document.xml out of the .docx archive and returns the
// whole document as a single page. Paragraphs become lines; table rows are
// flattened with " | " between cells. Legacy binary .doc files and anything
// else the zip reader rejects yield an empty list and no error.
func (wordExtractor) Extract(path, source string) ([]models.ExtractedPage, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		slog.Warn("unreadable Word document, skipping", "file", source, "error", err)
		return nil, nil
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		slog.Warn("word/document.xml missing, skipping", "file", source)
		return nil, nil
	}

	rc, err := docFile.Open()
	if err != nil {
		slog.Warn("unreadable document.xml, skipping", "file", source, "error", err)
		return nil, nil
	}
	defer rc.Close()

	text := documentText(xml.NewDecoder(rc))
	if !usable(text) {
		return nil, nil
	}

	return []models.ExtractedPage{{Source: source, Page: 1, Text: text}}, nil
}

// documentText walks the WordprocessingML token stream. Paragraph ends emit
// newlines; inside a table row, cell boundaries emit " | " instead so the
// row reads as one line.
func documentText(decoder *xml.Decoder) string {
	var (
		sb        strings.Builder
		current   strings.Builder
		inText    bool
		inRow     bool
		rowCells  []string
		cellParas []string
	)

	flushParagraph := func() {
		text := strings.TrimSpace(current.String())
		current.Reset()
		if text == "" {
			return
		}
		if inRow {
			cellParas = append(cellParas, text)
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
	}

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tr":
				inRow = true
				rowCells = rowCells[:0]
			case "tc":
				cellParas = cellParas[:0]
			}

		case xml.CharData:
			if inText {
				current.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flushParagraph()
			case "tc":
				if cell := strings.Join(cellParas, " "); cell != "" {
					rowCells = append(rowCells, cell)
				}
			case "tr":
				inRow = false
				if len(rowCells) > 0 {
					if sb.Len() > 0 {
						sb.WriteByte('\n')
					}
					sb.WriteString(strings.Join(rowCells, " | "))
				}
			}
		}
	}

	return strings.TrimSpace(sb.String())
}
