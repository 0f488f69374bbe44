package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty endpoint",
			config:  Config{Endpoint: "", Bucket: "regrag"},
			wantErr: true,
		},
		{
			name:    "empty bucket",
			config:  Config{Endpoint: "localhost:9002", Bucket: ""},
			wantErr: true,
		},
		{
			name: "valid config",
			config: Config{
				Endpoint:        "localhost:9002",
				Bucket:          "regrag",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContentTypeForDoc(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"circular.pdf", "application/pdf"},
		{"returns.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"guideline.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"data.csv", "text/csv"},
		{"legacy.doc", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := contentTypeForDoc(tt.filename); got != tt.want {
			t.Errorf("contentTypeForDoc(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

// TestIntegration_ArchiveOperations tests the full mirror round trip against
// MinIO. Skip if MinIO is not running.
func TestIntegration_ArchiveOperations(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9002"
	}

	client, err := New(Config{
		Endpoint:        endpoint,
		Bucket:          "regrag-test",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		UseSSL:          false,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()

	// Try to ensure bucket - skip if MinIO is not available
	if err := client.EnsureBucket(ctx); err != nil {
		t.Skipf("MinIO not available, skipping integration test: %v", err)
	}

	content := []byte("%PDF-1.4 test document body")
	local := filepath.Join(t.TempDir(), "circular_2024.pdf")
	if err := os.WriteFile(local, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("PutDocument", func(t *testing.T) {
		if err := client.PutDocument(ctx, "pdf", "circulars", "circular_2024.pdf", local); err != nil {
			t.Fatalf("PutDocument() error = %v", err)
		}
	})

	t.Run("ListDocuments", func(t *testing.T) {
		keys, err := client.ListDocuments(ctx, "pdf")
		if err != nil {
			t.Fatalf("ListDocuments() error = %v", err)
		}
		want := "documents/pdf/circulars/circular_2024.pdf"
		found := false
		for _, key := range keys {
			if key == want {
				found = true
			}
		}
		if !found {
			t.Errorf("ListDocuments() = %v, want it to contain %q", keys, want)
		}
	})

	t.Run("GetDocument", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "restored.pdf")
		if err := client.GetDocument(ctx, "documents/pdf/circulars/circular_2024.pdf", dest); err != nil {
			t.Fatalf("GetDocument() error = %v", err)
		}
		got, err := os.ReadFile(dest)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("restored document = %q, want %q", got, content)
		}
	})

	t.Run("Bucket", func(t *testing.T) {
		if got := client.Bucket(); got != "regrag-test" {
			t.Errorf("Bucket() = %q, want %q", got, "regrag-test")
		}
	})
}
