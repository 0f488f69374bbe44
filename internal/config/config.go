package config

import (
	"os"
	"path/filepath"
	"time"
)

// cloudProbePath exists only on the constrained cloud deployment, where the
// working directory is read-only and data must live on the ephemeral disk.
const cloudProbePath = "/mount/src"

// Config holds all application configuration.
type Config struct {
	DataRoot      string        `mapstructure:"data_root"`
	Crawler       Crawler       `mapstructure:"crawler"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Embeddings    Embeddings    `mapstructure:"embeddings"`
	LLM           LLM           `mapstructure:"llm"`
	Archive       Archive       `mapstructure:"archive"`
	Scheduler     Scheduler     `mapstructure:"scheduler"`
	MCP           MCP           `mapstructure:"mcp"`
}

// Crawler holds crawl configuration: the source site, its category listing
// paths, and pacing limits.
type Crawler struct {
	BaseURL       string            `mapstructure:"base_url"`
	Categories    map[string]string `mapstructure:"categories"`
	ExtraPages    []string          `mapstructure:"extra_pages"`
	MaxPages      int               `mapstructure:"max_pages"`
	UserAgent     string            `mapstructure:"user_agent"`
	DownloadDelay time.Duration     `mapstructure:"download_delay"`
	PageDelay     time.Duration     `mapstructure:"page_delay"`
	FetchTimeout  time.Duration     `mapstructure:"fetch_timeout"`
	FetchRetries  int               `mapstructure:"fetch_retries"`
	BackoffBase   time.Duration     `mapstructure:"backoff_base"`
}

// Elasticsearch holds vector index connection configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Embeddings holds embedding service configuration. Dimensions must match
// the model's output size and the index mapping.
type Embeddings struct {
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLM holds answer-generation configuration.
type LLM struct {
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// Archive holds the optional S3/MinIO document mirror configuration.
type Archive struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Scheduler holds background update configuration.
type Scheduler struct {
	Interval      time.Duration `mapstructure:"interval"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// MCP holds MCP server identity.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values. The data root is
// picked by probing the deployment environment: ephemeral tmp storage on the
// cloud runner, a relative data directory everywhere else.
func Defaults() Config {
	return Config{
		DataRoot: defaultDataRoot(),
		Crawler: Crawler{
			BaseURL: "https://irdai.gov.in",
			Categories: map[string]string{
				"regulations":   "/web/guest/regulations",
				"circulars":     "/web/guest/circulars",
				"notifications": "/web/guest/notifications",
				"guidelines":    "/web/guest/guidelines",
			},
			ExtraPages: []string{
				"/web/guest/annual-reports",
				"/web/guest/exposure-drafts",
			},
			MaxPages: 5,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			DownloadDelay: 500 * time.Millisecond,
			PageDelay:     1 * time.Second,
			FetchTimeout:  30 * time.Second,
			FetchRetries:  3,
			BackoffBase:   2 * time.Second,
		},
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://localhost:9200"},
			Index:     "regrag-chunks",
		},
		Embeddings: Embeddings{
			BaseURL:    "http://localhost:8080",
			Model:      "all-MiniLM-L6-v2",
			Dimensions: 384,
		},
		LLM: LLM{
			BaseURL:   "http://localhost:8081",
			Model:     "mistral-7b-instruct",
			MaxTokens: 1024,
		},
		Archive: Archive{
			Enabled:         false,
			Endpoint:        "localhost:9002",
			Bucket:          "regrag",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		Scheduler: Scheduler{
			Interval:      12 * time.Hour,
			CheckInterval: 5 * time.Minute,
			StartupDelay:  10 * time.Second,
		},
		MCP: MCP{
			Name:    "regrag",
			Version: "1.0.0",
		},
	}
}

func defaultDataRoot() string {
	if _, err := os.Stat(cloudProbePath); err == nil {
		return filepath.Join(os.TempDir(), "regrag_data")
	}
	return "data"
}

// DocumentDir returns the storage directory for a document type partition.
func (c Config) DocumentDir(docType string) string {
	return filepath.Join(c.DataRoot, docType)
}

// LedgerPath returns the download ledger database path.
func (c Config) LedgerPath() string {
	return filepath.Join(c.DataRoot, "tracker.db")
}

// SchedulerStatePath returns the scheduler state file path.
func (c Config) SchedulerStatePath() string {
	return filepath.Join(c.DataRoot, "scheduler_state.json")
}
