package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/JakeFAU/homepage-tone/internal/clock/system"
)

// PlaywrightConfig controls the playwright engine.
type PlaywrightConfig struct {
	UserAgent string
	Headless  bool
	// Install downloads the driver and browsers before the first launch.
	Install bool
}

// PlaywrightBrowser launches Chromium through the playwright driver. Each
// session gets its own driver and browser process, mirroring the chromedp
// engine's isolation.
type PlaywrightBrowser struct {
	cfg PlaywrightConfig
}

// NewPlaywrightBrowser optionally installs the driver and returns the engine.
func NewPlaywrightBrowser(cfg PlaywrightConfig) (*PlaywrightBrowser, error) {
	if cfg.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	return &PlaywrightBrowser{cfg: cfg}, nil
}

// Open runs the driver, launches Chromium and opens a page in a new context.
func (b *PlaywrightBrowser) Open(_ context.Context) (Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("run playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.cfg.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	ctxOpts := playwright.BrowserNewContextOptions{}
	if b.cfg.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(b.cfg.UserAgent)
	}
	browserCtx, err := browser.NewContext(ctxOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	pg, err := browserCtx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &playwrightSession{pw: pw, browser: browser, page: pg}, nil
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func (s *playwrightSession) Navigate(
	_ context.Context,
	rawURL string,
	policy WaitPolicy,
	timeout time.Duration,
) (*Response, error) {
	var waitUntil *playwright.WaitUntilState
	switch policy {
	case WaitNetworkIdle:
		waitUntil = playwright.WaitUntilStateNetworkidle
	case WaitDOMContentLoaded:
		waitUntil = playwright.WaitUntilStateDomcontentloaded
	default:
		return nil, navFailure(rawURL, policy, fmt.Errorf("unsupported wait policy %q", policy))
	}

	resp, err := s.page.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return nil, navTimeout(rawURL, policy)
		}
		return nil, navFailure(rawURL, policy, err)
	}
	if resp == nil {
		return nil, nil
	}
	return &Response{URL: resp.URL(), Status: resp.Status()}, nil
}

func (s *playwrightSession) Wait(ctx context.Context, d time.Duration) error {
	return system.Sleep(ctx, d)
}

func (s *playwrightSession) Content(_ context.Context) (string, error) {
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("playwright content: %w", err)
	}
	return html, nil
}

func (s *playwrightSession) Close() error {
	return errors.Join(s.browser.Close(), s.pw.Stop())
}
