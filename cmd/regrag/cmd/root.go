package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"regrag/internal/archive"
	"regrag/internal/config"
	"regrag/internal/crawler"
	"regrag/internal/embeddings"
	"regrag/internal/fetcher"
	"regrag/internal/ingestion"
	"regrag/internal/ledger"
	"regrag/internal/retriever"
	"regrag/internal/vectorindex"
	"regrag/pkg/models"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "regrag",
	Short: "regrag: a regulatory document retrieval system",
	Long: `regrag crawls regulatory publications from the source site, extracts
and chunks their text, indexes embeddings in Elasticsearch, and answers
questions grounded in the indexed passages.

Commands:
  crawl   Download new documents from the configured categories
  ingest  Extract, chunk, embed and index downloaded documents
  update  Crawl then ingest in one run
  search  Retrieve the most similar passages for a query
  ask     Answer a question from the knowledge base
  stats   Show download and index counts
  serve   Start the MCP server with the background update scheduler`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/regrag")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// REGRAG_ELASTICSEARCH_ADDRESSES -> elasticsearch.addresses
	viper.SetEnvPrefix("REGRAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("data_root", "REGRAG_DATA_ROOT")
	viper.BindEnv("crawler.base_url", "REGRAG_CRAWLER_BASE_URL")
	viper.BindEnv("crawler.max_pages", "REGRAG_CRAWLER_MAX_PAGES")
	viper.BindEnv("crawler.user_agent", "REGRAG_CRAWLER_USER_AGENT")
	viper.BindEnv("elasticsearch.addresses", "REGRAG_ELASTICSEARCH_ADDRESSES")
	viper.BindEnv("elasticsearch.index", "REGRAG_ELASTICSEARCH_INDEX")
	viper.BindEnv("elasticsearch.username", "REGRAG_ELASTICSEARCH_USERNAME")
	viper.BindEnv("elasticsearch.password", "REGRAG_ELASTICSEARCH_PASSWORD")
	viper.BindEnv("embeddings.base_url", "REGRAG_EMBEDDINGS_BASE_URL")
	viper.BindEnv("embeddings.model", "REGRAG_EMBEDDINGS_MODEL")
	viper.BindEnv("embeddings.dimensions", "REGRAG_EMBEDDINGS_DIMENSIONS")
	viper.BindEnv("llm.base_url", "REGRAG_LLM_BASE_URL")
	viper.BindEnv("llm.model", "REGRAG_LLM_MODEL")
	viper.BindEnv("llm.max_tokens", "REGRAG_LLM_MAX_TOKENS")
	viper.BindEnv("archive.enabled", "REGRAG_ARCHIVE_ENABLED")
	viper.BindEnv("archive.endpoint", "REGRAG_ARCHIVE_ENDPOINT")
	viper.BindEnv("archive.bucket", "REGRAG_ARCHIVE_BUCKET")
	viper.BindEnv("archive.access_key_id", "REGRAG_ARCHIVE_ACCESS_KEY_ID")
	viper.BindEnv("archive.secret_access_key", "REGRAG_ARCHIVE_SECRET_ACCESS_KEY")
	viper.BindEnv("scheduler.interval", "REGRAG_SCHEDULER_INTERVAL")
	viper.BindEnv("mcp.name", "REGRAG_MCP_NAME")
	viper.BindEnv("mcp.version", "REGRAG_MCP_VERSION")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Addresses arrive as a comma-separated string from the environment.
	if addrs := os.Getenv("REGRAG_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}

// openLedger opens the download ledger, creating the data root if needed.
func openLedger() (*ledger.Ledger, error) {
	if err := os.MkdirAll(cfg.DataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating data root: %w", err)
	}
	l, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, fmt.Errorf("opening download ledger: %w", err)
	}
	return l, nil
}

// newArchive creates the S3/MinIO mirror client and makes sure its bucket
// exists.
func newArchive(ctx context.Context) (*archive.Client, error) {
	mirror, err := archive.New(archive.Config{
		Endpoint:        cfg.Archive.Endpoint,
		Bucket:          cfg.Archive.Bucket,
		AccessKeyID:     cfg.Archive.AccessKeyID,
		SecretAccessKey: cfg.Archive.SecretAccessKey,
		UseSSL:          cfg.Archive.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating archive client: %w", err)
	}
	if err := mirror.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("preparing archive bucket: %w", err)
	}
	return mirror, nil
}

// newCrawler wires the fetcher, ledger and optional archive mirror into a
// Crawler.
func newCrawler(ctx context.Context, l *ledger.Ledger) (*crawler.Crawler, error) {
	if err := crawler.ValidateBaseURL(cfg.Crawler.BaseURL); err != nil {
		return nil, err
	}

	f := fetcher.New(fetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.Crawler.FetchTimeout,
		MaxRetries:  cfg.Crawler.FetchRetries,
		BackoffBase: cfg.Crawler.BackoffBase,
	})

	var mirror *archive.Client
	if cfg.Archive.Enabled {
		var err error
		mirror, err = newArchive(ctx)
		if err != nil {
			return nil, err
		}
		slog.Info("document archive enabled", "bucket", mirror.Bucket())
	}

	return crawler.New(crawler.Config{
		BaseURL:       cfg.Crawler.BaseURL,
		Categories:    cfg.Crawler.Categories,
		ExtraPages:    cfg.Crawler.ExtraPages,
		MaxPages:      cfg.Crawler.MaxPages,
		DownloadDelay: cfg.Crawler.DownloadDelay,
		PageDelay:     cfg.Crawler.PageDelay,
		DataRoot:      cfg.DataRoot,
	}, f, l, mirror), nil
}

// newIndex creates the vector index client.
func newIndex() (*vectorindex.Client, error) {
	index, err := vectorindex.New(vectorindex.Config{
		Addresses:  cfg.Elasticsearch.Addresses,
		Index:      cfg.Elasticsearch.Index,
		Username:   cfg.Elasticsearch.Username,
		Password:   cfg.Elasticsearch.Password,
		Dimensions: cfg.Embeddings.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector index client: %w", err)
	}
	return index, nil
}

// newEmbeddings creates the embeddings client.
func newEmbeddings() (*embeddings.Client, error) {
	client, err := embeddings.New(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embeddings client: %w", err)
	}
	return client, nil
}

// newRetriever wires the index and embedder into a Retriever.
func newRetriever() (*retriever.Retriever, error) {
	index, err := newIndex()
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbeddings()
	if err != nil {
		return nil, err
	}
	return retriever.New(index, embedder), nil
}

// runUpdateCycle performs one crawl followed by one ingestion. It is shared
// by the update command and the serve-mode scheduler.
func runUpdateCycle(ctx context.Context) (*models.CrawlSummary, *models.IngestSummary, error) {
	l, err := openLedger()
	if err != nil {
		return nil, nil, err
	}
	defer l.Close()

	c, err := newCrawler(ctx, l)
	if err != nil {
		return nil, nil, err
	}
	crawlSummary, err := c.Run(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	index, err := newIndex()
	if err != nil {
		return nil, nil, err
	}
	embedder, err := newEmbeddings()
	if err != nil {
		return nil, nil, err
	}

	result, err := ingestion.New(cfg.DataRoot, index, embedder).Ingest(ctx)
	if err != nil {
		return nil, nil, err
	}
	return crawlSummary, result.Summary, nil
}
