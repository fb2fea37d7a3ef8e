// Package discovery implements the web-search port against the DuckDuckGo
// HTML interface, which needs no API key.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"entityscout/internal/logging"
	"entityscout/internal/pipeline"

	"golang.org/x/net/html"
)

const (
	searchEndpoint = "https://html.duckduckgo.com/html/"
	maxResultsCap  = 30
	bodyLimit      = 1 << 20 // 1MB
)

// Client searches DuckDuckGo's HTML frontend and parses result blocks.
type Client struct {
	httpClient *http.Client
	userAgent  string
	endpoint   string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoint points the client at a different search endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// NewClient returns a search client with browser-like headers.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		userAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		endpoint:   searchEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search implements the discovery port: one phrase in, candidate hits out.
func (c *Client) Search(ctx context.Context, phrase string, maxResults int) ([]pipeline.SearchHit, error) {
	if phrase == "" {
		return nil, fmt.Errorf("phrase is required")
	}
	if maxResults <= 0 || maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	searchURL := fmt.Sprintf("%s?q=%s", c.endpoint, url.QueryEscape(phrase))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	hits, err := parseResults(string(body), maxResults)
	if err != nil {
		return nil, err
	}
	logging.DiscoveryDebug("search %q returned %d hits", phrase, len(hits))
	return hits, nil
}

// parseResults extracts search hits from DuckDuckGo result markup, which
// wraps each hit in a div with class "result results_links...".
func parseResults(htmlContent string, maxResults int) ([]pipeline.SearchHit, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var hits []pipeline.SearchHit
	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if len(hits) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(attr.Val, "result") && strings.Contains(attr.Val, "results_links") {
					hit := extractHit(n)
					if hit.URL != "" && hit.Title != "" {
						hits = append(hits, hit)
					}
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findResults(c)
		}
	}
	findResults(doc)
	return hits, nil
}

func extractHit(n *html.Node) pipeline.SearchHit {
	var hit pipeline.SearchHit

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "class" {
					if strings.Contains(attr.Val, "result__a") {
						hit.URL = attrValue(n, "href")
						hit.Title = textContent(n)
					} else if strings.Contains(attr.Val, "result__snippet") {
						hit.Snippet = textContent(n)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)

	hit.URL = unwrapRedirect(hit.URL)
	return hit
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= redirect wrapper.
func unwrapRedirect(raw string) string {
	if !strings.HasPrefix(raw, "//duckduckgo.com/l/?uddg=") {
		return raw
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(raw, "//duckduckgo.com/l/?uddg="))
	if err != nil {
		return raw
	}
	if idx := strings.Index(decoded, "&"); idx > 0 {
		decoded = decoded[:idx]
	}
	return decoded
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
