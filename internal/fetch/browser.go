package fetch

import (
	"context"
	"fmt"
	"sync"

	"entityscout/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// browserTier owns one shared headless-browser process. Pages are cheap;
// the browser itself is launched once on first use and reused for every
// fetch until close.
type browserTier struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func newBrowserTier() *browserTier {
	return &browserTier{}
}

func (b *browserTier) ensureStarted() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().Headless(true)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	b.launcher = l
	b.browser = browser
	logging.Crawler("headless browser started")
	return browser, nil
}

// fetchHTML renders the page and returns its final HTML.
func (b *browserTier) fetchHTML(ctx context.Context, url string) (string, error) {
	browser, err := b.ensureStarted()
	if err != nil {
		return "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	page = page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page load failed: %w", err)
	}

	htmlContent, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return htmlContent, nil
}

func (b *browserTier) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		_ = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
}
