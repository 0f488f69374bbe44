// Package fetcher performs network retrieval with bounded retry and
// exponential backoff.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrFetchFailed marks a URL whose retries were exhausted. Callers skip the
// URL and continue; fetch failures are never fatal to a crawl.
var ErrFetchFailed = errors.New("fetch failed after retries")

// Config holds fetcher configuration.
type Config struct {
	UserAgent   string
	Timeout     time.Duration // per-attempt timeout
	MaxRetries  int           // total attempts
	BackoffBase time.Duration // wait after attempt n is base * 2^(n-1)
}

// Fetcher is a retrying HTTP GET client. Redirects are followed by the
// underlying client.
type Fetcher struct {
	config     Config
	httpClient *http.Client
}

// New creates a Fetcher with the given configuration.
func New(config Config) *Fetcher {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.BackoffBase == 0 {
		config.BackoffBase = 2 * time.Second
	}
	return &Fetcher{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Fetch GETs the URL, retrying on transport errors and non-2xx statuses.
// The caller owns the response body and must close it. When retries are
// exhausted the returned error wraps ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= f.config.MaxRetries; attempt++ {
		resp, err := f.attempt(ctx, url)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == f.config.MaxRetries {
			break
		}

		wait := f.config.BackoffBase * (1 << (attempt - 1))
		slog.Warn("fetch attempt failed",
			"attempt", attempt, "max", f.config.MaxRetries, "url", url, "error", err, "retry_in", wait)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, ctx.Err())
		}
	}

	slog.Error("all retries exhausted", "url", url, "error", lastErr)
	return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, lastErr)
}

// FetchString GETs the URL and returns the body as a string. Meant for HTML
// listing pages; document payloads go through Fetch and stream to disk.
func (f *Fetcher) FetchString(ctx context.Context, url string) (string, error) {
	resp, err := f.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: reading body: %v", ErrFetchFailed, url, err)
	}
	return string(body), nil
}

func (f *Fetcher) attempt(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp, nil
}
