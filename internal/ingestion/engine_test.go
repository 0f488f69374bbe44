package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"regrag/pkg/models"
)

// fakeIndex records upserts in memory.
type fakeIndex struct {
	entries map[string]models.IndexEntry
	fail    bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: map[string]models.IndexEntry{}}
}

func (f *fakeIndex) EnsureIndex(ctx context.Context) error { return nil }

func (f *fakeIndex) ListIDs(ctx context.Context) (map[string]bool, error) {
	ids := map[string]bool{}
	for id := range f.entries {
		ids[id] = true
	}
	return ids, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if f.fail {
		return errors.New("index unavailable")
	}
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return nil
}

// fakeEmbedder returns a fixed-size vector per input.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 0, 0}
	}
	return vectors, nil
}

// writeTestDocx drops a minimal .docx into the word partition.
func writeTestDocx(t *testing.T, dataRoot, category, name, text string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	doc := `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` +
		text + `</w:t></w:r></w:p></w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(dataRoot, "word", category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIngest_IndexesNewDocuments(t *testing.T) {
	dataRoot := t.TempDir()
	long := strings.Repeat("every insurer shall maintain a register of policies. ", 3)
	writeTestDocx(t, dataRoot, "circulars", "register.docx", long)

	index := newFakeIndex()
	embedder := &fakeEmbedder{}
	engine := New(dataRoot, index, embedder)

	result, err := engine.Ingest(t.Context())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if result.Summary.TotalFiles != 1 {
		t.Errorf("TotalFiles = %d, want 1", result.Summary.TotalFiles)
	}
	if result.Summary.ByType[models.DocTypeWord] != 1 {
		t.Errorf("word count = %d, want 1", result.Summary.ByType[models.DocTypeWord])
	}
	if result.Summary.TotalChunks == 0 {
		t.Error("TotalChunks = 0, want at least 1")
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors = %v", result.Errors)
	}

	entry, ok := index.entries["register_p1_c0"]
	if !ok {
		t.Fatalf("missing entry register_p1_c0, have %v", keys(index.entries))
	}
	if entry.Source != "register.docx" || entry.Page != 1 || entry.Type != models.DocTypeWord {
		t.Errorf("entry metadata = %+v", entry)
	}
	if len(entry.Embedding) == 0 {
		t.Error("entry has no embedding")
	}
}

func TestIngest_Idempotent(t *testing.T) {
	dataRoot := t.TempDir()
	long := strings.Repeat("registration requirements for intermediaries apply. ", 3)
	writeTestDocx(t, dataRoot, "circulars", "intermediaries.docx", long)

	index := newFakeIndex()
	embedder := &fakeEmbedder{}
	engine := New(dataRoot, index, embedder)

	first, err := engine.Ingest(t.Context())
	if err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	if first.Summary.TotalFiles != 1 {
		t.Fatalf("first run files = %d, want 1", first.Summary.TotalFiles)
	}
	callsAfterFirst := embedder.calls

	second, err := engine.Ingest(t.Context())
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}
	if second.Summary.TotalFiles != 0 {
		t.Errorf("second run files = %d, want 0", second.Summary.TotalFiles)
	}
	if embedder.calls != callsAfterFirst {
		t.Errorf("embedder called %d times after second run, want %d", embedder.calls, callsAfterFirst)
	}
}

func TestIngest_SkipsUnusableDocuments(t *testing.T) {
	dataRoot := t.TempDir()
	// Below the extraction threshold; must be skipped without error.
	writeTestDocx(t, dataRoot, "circulars", "stub.docx", "Too short.")

	index := newFakeIndex()
	engine := New(dataRoot, index, &fakeEmbedder{})

	result, err := engine.Ingest(t.Context())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.Summary.TotalFiles != 0 {
		t.Errorf("TotalFiles = %d, want 0", result.Summary.TotalFiles)
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestIngest_FailureIsolatedPerFile(t *testing.T) {
	dataRoot := t.TempDir()
	long := strings.Repeat("claims settlement timelines are prescribed below. ", 3)
	writeTestDocx(t, dataRoot, "circulars", "claims.docx", long)

	index := newFakeIndex()
	index.fail = true
	engine := New(dataRoot, index, &fakeEmbedder{})

	result, err := engine.Ingest(t.Context())
	if err != nil {
		t.Fatalf("Ingest() error = %v, want nil (per-file isolation)", err)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v, want 1 entry", result.Errors)
	}
	if result.Summary.TotalFiles != 0 {
		t.Errorf("TotalFiles = %d, want 0", result.Summary.TotalFiles)
	}
}

func TestIngest_MiddlePageBelowThreshold(t *testing.T) {
	dataRoot := t.TempDir()
	long := strings.Repeat("premium and claims figures by line of business. ", 3)

	f := excelize.NewFile()
	f.SetCellValue(f.GetSheetName(0), "A1", long)
	f.NewSheet("Summary")
	f.SetCellValue("Summary", "A1", "n/a") // too little text to index
	f.NewSheet("Annexure")
	f.SetCellValue("Annexure", "A1", long)

	dir := filepath.Join(dataRoot, "excel", "circulars")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(filepath.Join(dir, "threepage.xlsx")); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	f.Close()

	index := newFakeIndex()
	result, err := New(dataRoot, index, &fakeEmbedder{}).Ingest(t.Context())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if result.Summary.TotalFiles != 1 {
		t.Errorf("TotalFiles = %d, want 1", result.Summary.TotalFiles)
	}
	if result.Summary.TotalChunks != 2 {
		t.Errorf("TotalChunks = %d, want 2 (middle page skipped)", result.Summary.TotalChunks)
	}

	// The surviving pages keep their positions through to the index, so
	// citations point at the right sheet.
	for _, id := range []string{"threepage_p1_c0", "threepage_p3_c0"} {
		entry, ok := index.entries[id]
		if !ok {
			t.Fatalf("missing entry %s, have %v", id, keys(index.entries))
		}
		if entry.Source != "threepage.xlsx" {
			t.Errorf("%s source = %q, want threepage.xlsx", id, entry.Source)
		}
	}
	if index.entries["threepage_p1_c0"].Page != 1 || index.entries["threepage_p3_c0"].Page != 3 {
		t.Error("page metadata does not match sheet positions")
	}
	for id, entry := range index.entries {
		if entry.Page == 2 {
			t.Errorf("entry %s indexed from the below-threshold page", id)
		}
	}
}

func TestIngest_CategoryFilter(t *testing.T) {
	dataRoot := t.TempDir()
	long := strings.Repeat("policyholder protection measures are listed here. ", 3)
	writeTestDocx(t, dataRoot, "circulars", "protection.docx", long)
	writeTestDocx(t, dataRoot, "guidelines", "other.docx", long)

	index := newFakeIndex()
	engine := New(dataRoot, index, &fakeEmbedder{}).WithCategory("circulars")

	result, err := engine.Ingest(t.Context())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.Summary.TotalFiles != 1 {
		t.Errorf("TotalFiles = %d, want 1 (category filtered)", result.Summary.TotalFiles)
	}
	if _, ok := index.entries["other_p1_c0"]; ok {
		t.Error("file outside the category was ingested")
	}
}

func TestIngest_EmptyDataRoot(t *testing.T) {
	engine := New(t.TempDir(), newFakeIndex(), &fakeEmbedder{})

	result, err := engine.Ingest(t.Context())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.Summary.TotalFiles != 0 || result.Summary.TotalChunks != 0 {
		t.Errorf("summary = %+v, want empty", result.Summary)
	}
}

func keys(m map[string]models.IndexEntry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
