// Package fetch implements the page-fetch port with a two-tier strategy:
// a headless browser first (JavaScript-rendered pages), plain HTTP second.
// The word-count quality gate lives here; thin pages never become
// Documents.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"entityscout/internal/logging"
	"entityscout/internal/pipeline"
)

const fetchBodyLimit = 2 << 20 // 2MB

// Config controls the fetcher.
type Config struct {
	UseBrowser     bool          // enable the headless-browser tier
	UserAgent      string        // HTTP tier User-Agent
	Timeout        time.Duration // HTTP client timeout
	BlockedDomains []string      // substring blocklist, checked before any fetch
}

// DefaultConfig returns production fetch settings.
func DefaultConfig() Config {
	return Config{
		UseBrowser: true,
		UserAgent:  "Mozilla/5.0 (compatible; entityscout/1.0)",
		Timeout:    60 * time.Second,
		BlockedDomains: []string{
			"facebook.com", "twitter.com", "instagram.com",
			"linkedin.com", "tiktok.com",
		},
	}
}

// Fetcher implements pipeline.FetchPort.
type Fetcher struct {
	cfg        Config
	httpClient *http.Client
	browser    *browserTier
}

// New builds a fetcher. The browser process is launched lazily on first
// use, so constructing a Fetcher is cheap even with the browser enabled.
func New(cfg Config) *Fetcher {
	f := &Fetcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.UseBrowser {
		f.browser = newBrowserTier()
	}
	return f
}

// Close shuts down the browser tier, if it was ever started.
func (f *Fetcher) Close() {
	if f.browser != nil {
		f.browser.close()
	}
}

// Fetch retrieves one page, trying the browser tier then the HTTP tier.
// It returns an error (and no Document) when both tiers fail or the
// resulting text falls below minWords; the caller drops the URL either
// way, so the distinction is only logged.
func (f *Fetcher) Fetch(ctx context.Context, url string, minWords int) (*pipeline.Document, error) {
	if blocked, domain := f.isBlocked(url); blocked {
		return nil, fmt.Errorf("domain blocked: %s", domain)
	}

	if f.browser != nil {
		doc, err := f.fetchWithBrowser(ctx, url, minWords)
		if err == nil {
			return doc, nil
		}
		logging.CrawlerDebug("browser fetch failed for %s, trying HTTP: %v", url, err)
	}

	return f.fetchWithHTTP(ctx, url, minWords)
}

func (f *Fetcher) fetchWithBrowser(ctx context.Context, url string, minWords int) (*pipeline.Document, error) {
	htmlContent, err := f.browser.fetchHTML(ctx, url)
	if err != nil {
		return nil, err
	}
	return buildDocument(url, htmlContent, "browser", minWords)
}

func (f *Fetcher) fetchWithHTTP(ctx context.Context, url string, minWords int) (*pipeline.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/plain") || strings.Contains(contentType, "text/markdown") {
		return gateDocument(url, string(body), "http", minWords)
	}
	return buildDocument(url, string(body), "http", minWords)
}

// buildDocument converts HTML to text and applies the word gate.
func buildDocument(url, htmlContent, method string, minWords int) (*pipeline.Document, error) {
	text, err := htmlToText(htmlContent)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	return gateDocument(url, text, method, minWords)
}

// gateDocument enforces the invariant that a Document below minWords is
// never constructed.
func gateDocument(url, text, method string, minWords int) (*pipeline.Document, error) {
	words := len(strings.Fields(text))
	if words < minWords {
		return nil, fmt.Errorf("page too thin: %d words < %d", words, minWords)
	}
	return &pipeline.Document{
		URL:         url,
		Text:        text,
		WordCount:   words,
		FetchMethod: method,
	}, nil
}

func (f *Fetcher) isBlocked(url string) (bool, string) {
	for _, domain := range f.cfg.BlockedDomains {
		if strings.Contains(url, domain) {
			return true, domain
		}
	}
	return false, ""
}
