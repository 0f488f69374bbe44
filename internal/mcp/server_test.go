package mcp

import (
	"context"
	"testing"

	"regrag/internal/retriever"
	"regrag/pkg/models"
)

type fakeIndex struct {
	passages []models.Passage
}

func (f *fakeIndex) Count(ctx context.Context) int { return len(f.passages) }

func (f *fakeIndex) Query(ctx context.Context, embedding []float32, k int) ([]models.Passage, error) {
	if k < len(f.passages) {
		return f.passages[:k], nil
	}
	return f.passages, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newTestServer(passages []models.Passage, stats Stats) *Server {
	r := retriever.New(&fakeIndex{passages: passages}, fakeEmbedder{})
	return NewServer(Config{Name: "regrag", Version: "1.0.0"}, r, func(ctx context.Context) Stats {
		return stats
	})
}

func TestServer_Creation(t *testing.T) {
	s := newTestServer(nil, Stats{})
	if s == nil {
		t.Fatal("NewServer() returned nil")
	}
	if s.mcpServer == nil {
		t.Error("mcpServer should not be nil")
	}
}

func TestServer_SearchTool(t *testing.T) {
	passages := []models.Passage{
		{Text: "Registration of insurers requires form IRDAI-R1.", Source: "regs.pdf", Page: 4, Score: 0.88},
	}
	s := newTestServer(passages, Stats{})

	results, err := s.handleSearch(context.Background(), "registration form", 5)
	if err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Source != "regs.pdf" || results[0].Page != 4 {
		t.Errorf("result = %+v", results[0])
	}
}

func TestServer_SearchToolEmptyIndex(t *testing.T) {
	s := newTestServer(nil, Stats{})

	results, err := s.handleSearch(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("handleSearch() error = %v, want nil for empty index", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestServer_StatsTool(t *testing.T) {
	want := Stats{
		IndexedChunks: 42,
		Downloads:     7,
		ByCategory:    map[string]int{"circulars": 5, "regulations": 2},
	}
	s := newTestServer(nil, want)

	got := s.stats(context.Background())
	if got.IndexedChunks != 42 || got.Downloads != 7 {
		t.Errorf("stats = %+v, want %+v", got, want)
	}
	if got.ByCategory["circulars"] != 5 {
		t.Errorf("ByCategory = %v", got.ByCategory)
	}
}
