package vectorindex

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"regrag/pkg/models"
)

const testDims = 4

func skipIfNoES(t *testing.T) {
	if os.Getenv("SKIP_ES_TESTS") == "1" {
		t.Skip("Skipping ES tests (SKIP_ES_TESTS=1)")
	}

	client, err := New(Config{
		Addresses:  []string{"http://localhost:9200"},
		Index:      "test-skip-check",
		Dimensions: testDims,
	})
	if err != nil {
		t.Skipf("Skipping ES tests: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !client.Ping(ctx) {
		t.Skip("Skipping ES tests: Elasticsearch not available")
	}
}

func newTestClient(t *testing.T, index string) *Client {
	t.Helper()
	client, err := New(Config{
		Addresses:  []string{"http://localhost:9200"},
		Index:      index,
		Dimensions: testDims,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func testEntry(id string, vec []float32, text, source string, page int) models.IndexEntry {
	return models.IndexEntry{
		ID:        id,
		Embedding: vec,
		Text:      text,
		Source:    source,
		Page:      page,
		Type:      models.DocTypePDF,
	}
}

func TestClient_EnsureIndexIdempotent(t *testing.T) {
	skipIfNoES(t)

	client := newTestClient(t, "regrag-test-create")
	ctx := context.Background()

	client.DeleteIndex(ctx)
	if err := client.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if err := client.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() second call error = %v", err)
	}
	client.DeleteIndex(ctx)
}

func TestClient_UpsertOverwrites(t *testing.T) {
	skipIfNoES(t)

	client := newTestClient(t, "regrag-test-upsert")
	ctx := context.Background()

	client.DeleteIndex(ctx)
	if err := client.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	defer client.DeleteIndex(ctx)

	entry := testEntry("circular_p1_c0", []float32{1, 0, 0, 0}, "first version", "circular.pdf", 1)
	if err := client.Upsert(ctx, []models.IndexEntry{entry}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Same id again; the index must not grow.
	entry.Text = "second version"
	if err := client.Upsert(ctx, []models.IndexEntry{entry}); err != nil {
		t.Fatalf("Upsert() second call error = %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	client.Refresh(ctx)

	if got := client.Count(ctx); got != 1 {
		t.Errorf("Count() = %d, want 1 after re-upsert", got)
	}
}

func TestClient_QueryRanksBySimilarity(t *testing.T) {
	skipIfNoES(t)

	client := newTestClient(t, "regrag-test-query")
	ctx := context.Background()

	client.DeleteIndex(ctx)
	if err := client.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	defer client.DeleteIndex(ctx)

	entries := []models.IndexEntry{
		testEntry("a_p1_c0", []float32{1, 0, 0, 0}, "exact match", "a.pdf", 1),
		testEntry("b_p1_c0", []float32{0.7, 0.7, 0, 0}, "partial match", "b.pdf", 1),
		testEntry("c_p1_c0", []float32{0, 0, 1, 0}, "orthogonal", "c.pdf", 1),
	}
	if err := client.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	client.Refresh(ctx)

	passages, err := client.Query(ctx, []float32{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(passages) != 3 {
		t.Fatalf("got %d passages, want 3", len(passages))
	}
	if passages[0].Source != "a.pdf" {
		t.Errorf("top passage from %q, want a.pdf", passages[0].Source)
	}
	if passages[0].Score < 0.999 || passages[0].Score > 1.0 {
		t.Errorf("identical vector score = %v, want ~1.0", passages[0].Score)
	}
	if passages[2].Score > 0.001 {
		t.Errorf("orthogonal vector score = %v, want ~0.0", passages[2].Score)
	}
	for i := 1; i < len(passages); i++ {
		if passages[i].Score > passages[i-1].Score {
			t.Errorf("passages not sorted by score: %v", passages)
		}
	}
}

func TestClient_QueryMissingIndex(t *testing.T) {
	skipIfNoES(t)

	client := newTestClient(t, "regrag-test-missing")
	ctx := context.Background()
	client.DeleteIndex(ctx)

	passages, err := client.Query(ctx, []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v, want nil for missing index", err)
	}
	if len(passages) != 0 {
		t.Errorf("got %d passages, want 0", len(passages))
	}
}

func TestClient_ListIDs(t *testing.T) {
	skipIfNoES(t)

	client := newTestClient(t, "regrag-test-listids")
	ctx := context.Background()

	client.DeleteIndex(ctx)
	if err := client.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	defer client.DeleteIndex(ctx)

	entries := []models.IndexEntry{
		testEntry("x_p1_c0", []float32{1, 0, 0, 0}, "one", "x.pdf", 1),
		testEntry("x_p1_c1", []float32{0, 1, 0, 0}, "two", "x.pdf", 1),
	}
	if err := client.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	client.Refresh(ctx)

	ids, err := client.ListIDs(ctx)
	if err != nil {
		t.Fatalf("ListIDs() error = %v", err)
	}
	if len(ids) != 2 || !ids["x_p1_c0"] || !ids["x_p1_c1"] {
		t.Errorf("ListIDs() = %v, want both test ids", ids)
	}
}

func TestClient_ListIDsSpansPages(t *testing.T) {
	skipIfNoES(t)

	client := newTestClient(t, "regrag-test-listids-paged")
	// Shrink the page so a small index exercises the pagination the same
	// way a 10k+ index exercises the default page size.
	client.listPageSize = 7
	ctx := context.Background()

	client.DeleteIndex(ctx)
	if err := client.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	defer client.DeleteIndex(ctx)

	entries := make([]models.IndexEntry, 25)
	for i := range entries {
		entries[i] = testEntry(
			fmt.Sprintf("bulk_p1_c%d", i),
			[]float32{float32(i), 1, 0, 0},
			"chunk", "bulk.pdf", 1,
		)
	}
	if err := client.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	client.Refresh(ctx)

	ids, err := client.ListIDs(ctx)
	if err != nil {
		t.Fatalf("ListIDs() error = %v", err)
	}
	if len(ids) != len(entries) {
		t.Fatalf("ListIDs() returned %d ids, want %d", len(ids), len(entries))
	}
	for i := range entries {
		if !ids[entries[i].ID] {
			t.Errorf("missing id %s", entries[i].ID)
		}
	}
}

func TestClient_ListIDsMissingIndex(t *testing.T) {
	skipIfNoES(t)

	client := newTestClient(t, "regrag-test-listids-missing")
	ctx := context.Background()
	client.DeleteIndex(ctx)

	ids, err := client.ListIDs(ctx)
	if err != nil {
		t.Fatalf("ListIDs() error = %v, want nil for missing index", err)
	}
	if len(ids) != 0 {
		t.Errorf("ListIDs() = %v, want empty", ids)
	}
}

func TestRound4(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.123456, 0.1235},
		{0.99995, 1.0},
		{0.0, 0.0},
		{1.0, 1.0},
	}
	for _, tt := range tests {
		if got := round4(tt.in); got != tt.want {
			t.Errorf("round4(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
