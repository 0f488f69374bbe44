// Package crawler walks the source site's category listings and downloads
// every regulatory document it has not seen before.
package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"regrag/internal/archive"
	"regrag/internal/discover"
	"regrag/internal/fetcher"
	"regrag/internal/ledger"
	"regrag/pkg/models"
)

// Config holds crawl orchestration configuration.
type Config struct {
	BaseURL       string
	Categories    map[string]string
	ExtraPages    []string
	MaxPages      int           // pagination bound per category
	DownloadDelay time.Duration // pacing between document downloads
	PageDelay     time.Duration // pacing between listing page fetches
	DataRoot      string
}

// Crawler downloads documents exactly once, gated by the download ledger.
type Crawler struct {
	config  Config
	fetcher *fetcher.Fetcher
	ledger  *ledger.Ledger
	mirror  *archive.Client // nil if archiving disabled
}

// New creates a Crawler. mirror may be nil.
func New(config Config, f *fetcher.Fetcher, l *ledger.Ledger, mirror *archive.Client) *Crawler {
	if config.MaxPages == 0 {
		config.MaxPages = 5
	}
	return &Crawler{config: config, fetcher: f, ledger: l, mirror: mirror}
}

// Run crawls all configured categories (or only the named ones) plus the
// auxiliary listing pages, and returns the per-type new-download counts.
// A category that fails to fetch is skipped; Run itself only fails on
// unusable configuration.
func (c *Crawler) Run(ctx context.Context, only []string) (*models.CrawlSummary, error) {
	summary := models.NewCrawlSummary()

	names := make([]string, 0, len(c.config.Categories))
	for name := range c.config.Categories {
		if len(only) > 0 && !contains(only, name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 && len(only) > 0 {
		return nil, fmt.Errorf("no matching categories in %v", only)
	}

	for _, name := range names {
		listURL := c.config.BaseURL + c.config.Categories[name]
		count := c.crawlCategory(ctx, name, listURL, summary)
		slog.Info("category crawled", "category", name, "new_downloads", count)
	}

	if len(only) == 0 {
		for _, path := range c.config.ExtraPages {
			name := strings.Trim(path[strings.LastIndex(path, "/")+1:], "/")
			count := c.crawlCategory(ctx, name, c.config.BaseURL+path, summary)
			slog.Info("auxiliary page crawled", "page", name, "new_downloads", count)
		}
	}

	slog.Info("crawl complete", "total_new", summary.Total())
	return summary, nil
}

// crawlCategory walks one category's paginated listing. Returns the number
// of new downloads. Fetch failure on a listing page ends this category but
// never the run.
func (c *Crawler) crawlCategory(ctx context.Context, category, startURL string, summary *models.CrawlSummary) int {
	count := 0
	pageURL := startURL

	for page := 1; page <= c.config.MaxPages; page++ {
		slog.Info("crawling page", "category", category, "page", page, "url", pageURL)

		html, err := c.fetcher.FetchString(ctx, pageURL)
		if err != nil {
			slog.Warn("listing page fetch failed, stopping category", "category", category, "error", err)
			break
		}

		// Direct document links on the listing page.
		docLinks := discover.DocumentLinks(html, pageURL)
		slog.Info("found document links", "category", category, "page", page, "count", len(docLinks))
		count += c.downloadAll(ctx, docLinks, category, summary)

		// Detail pages that indirectly contain document links. A broken
		// detail page is skipped, not fatal to the category.
		detailLinks := discover.DetailLinks(html, pageURL)
		slog.Info("found detail links", "category", category, "page", page, "count", len(detailLinks))
		for detailURL := range detailLinks {
			detailHTML, err := c.fetcher.FetchString(ctx, detailURL)
			if err != nil {
				slog.Warn("detail page fetch failed", "url", detailURL, "error", err)
				continue
			}
			count += c.downloadAll(ctx, discover.DocumentLinks(detailHTML, detailURL), category, summary)
			c.pause(ctx, c.config.DownloadDelay)
		}

		next := discover.NextPage(html, pageURL)
		if next == "" {
			slog.Info("no more pages", "category", category)
			break
		}
		pageURL = next
		c.pause(ctx, c.config.PageDelay)
	}

	return count
}

func (c *Crawler) downloadAll(ctx context.Context, links map[string]string, category string, summary *models.CrawlSummary) int {
	count := 0
	for docURL, ext := range links {
		docType, ok := models.DocTypeForExt(ext)
		if !ok {
			continue
		}
		if c.download(ctx, docURL, ext, docType, category) {
			summary.Add(category, docType)
			count++
		}
		c.pause(ctx, c.config.DownloadDelay)
	}
	return count
}

// download fetches a single document and persists it. Returns true only
// when a new file was written and recorded. Every failure mode is isolated
// to this URL.
func (c *Crawler) download(ctx context.Context, docURL, ext string, docType models.DocType, category string) bool {
	has, err := c.ledger.Has(ctx, docURL)
	if err != nil {
		slog.Warn("ledger check failed", "url", docURL, "error", err)
		return false
	}
	if has {
		slog.Debug("already downloaded", "url", docURL)
		return false
	}

	resp, err := c.fetcher.Fetch(ctx, docURL)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	// Link-pattern matching produces false positives for PDFs; the declared
	// content type weeds them out. Skipped silently, never recorded.
	if ext == ".pdf" {
		contentType := strings.ToLower(resp.Header.Get("Content-Type"))
		if !strings.Contains(contentType, "pdf") && !strings.Contains(contentType, "octet-stream") {
			slog.Warn("skipping non-PDF content", "content_type", contentType, "url", truncate(docURL, 100))
			return false
		}
	}

	filename := extractFilename(docURL, ext)
	dest := filepath.Join(c.config.DataRoot, string(docType), category, filename)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		slog.Error("creating document directory failed", "path", dest, "error", err)
		return false
	}

	hash, err := streamToFile(resp.Body, dest)
	if err != nil {
		slog.Error("writing document failed", "path", dest, "error", err)
		os.Remove(dest)
		return false
	}

	label := category
	if docType != models.DocTypePDF {
		label = category + "_" + string(docType)
	}
	if err := c.ledger.Record(ctx, docURL, filename, label, hash); err != nil {
		slog.Error("recording download failed", "url", docURL, "error", err)
		return false
	}

	if c.mirror != nil {
		if err := c.mirror.PutDocument(ctx, string(docType), category, filename, dest); err != nil {
			slog.Warn("archive upload failed", "file", filename, "error", err)
		}
	}

	slog.Info("downloaded", "category", category, "type", docType, "file", filename)
	return true
}

// streamToFile writes the body to dest while computing its sha256.
func streamToFile(body io.Reader, dest string) (string, error) {
	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	_, copyErr := io.Copy(f, io.TeeReader(body, h))
	closeErr := f.Close()
	if copyErr != nil {
		return "", copyErr
	}
	if closeErr != nil {
		return "", closeErr
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// pause sleeps for the configured pacing delay. The delays bound the request
// rate against the source server and must stay in place.
func (c *Crawler) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ValidateBaseURL reports whether the configured base URL is usable.
func ValidateBaseURL(base string) error {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("base URL must be absolute")
	}
	return nil
}
