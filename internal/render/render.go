// Package render produces a best-effort rendered HTML snapshot of a page.
//
// A Renderer drives one isolated browser Session per URL through a small
// fallback machine: navigate waiting for network idle, fall back to waiting
// for DOMContentLoaded on timeout, and otherwise carry on with whatever the
// page holds. Engines (chromedp, playwright, static) only implement Browser
// and Session; the fallback policy lives here so it can be tested with Fake.
package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Default timings. New falls back to DefaultNavTimeout when NavTimeout is
// unset; a zero Settle is honored as no settle wait, so DefaultSettle is only
// the configuration default.
const (
	DefaultNavTimeout = 30 * time.Second
	DefaultSettle     = 3 * time.Second
)

// WaitPolicy selects the page-load milestone a navigation waits for.
type WaitPolicy string

// Supported wait policies.
const (
	WaitNetworkIdle      WaitPolicy = "networkidle"
	WaitDOMContentLoaded WaitPolicy = "domcontentloaded"
)

// Response is the main document response observed during a navigation.
type Response struct {
	URL    string
	Status int
}

// Result is the rendered snapshot of one URL.
type Result struct {
	HTML   string
	Status int
}

// Session is a single isolated browsing context. Implementations must not
// share cookies or cache across sessions.
type Session interface {
	// Navigate loads rawURL and blocks until policy is satisfied or timeout
	// elapses. Failures are reported as *NavigationError; timeouts match
	// ErrNavigationTimeout. A nil Response with a nil error means the page
	// loaded without a capturable document response.
	Navigate(ctx context.Context, rawURL string, policy WaitPolicy, timeout time.Duration) (*Response, error)
	// Wait pauses for d while the page keeps running scripts.
	Wait(ctx context.Context, d time.Duration) error
	// Content returns the current serialized DOM.
	Content(ctx context.Context) (string, error)
	Close() error
}

// Browser opens isolated sessions.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// Config controls the fallback machine.
type Config struct {
	NavTimeout time.Duration
	Settle     time.Duration
}

// Renderer renders pages one at a time.
type Renderer struct {
	browser    Browser
	navTimeout time.Duration
	settle     time.Duration
	logger     *zap.Logger
}

// New builds a Renderer over browser.
func New(browser Browser, cfg Config, logger *zap.Logger) (*Renderer, error) {
	if browser == nil {
		return nil, errors.New("render: browser is required")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = DefaultNavTimeout
	}
	if cfg.Settle < 0 {
		return nil, fmt.Errorf("render: settle must be >= 0, got %s", cfg.Settle)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		browser:    browser,
		navTimeout: cfg.NavTimeout,
		settle:     cfg.Settle,
		logger:     logger,
	}, nil
}

// Render returns the rendered HTML and status for rawURL. Navigation problems
// are absorbed by the fallback policy; only failures to open the session, to
// settle, or to read the DOM are returned.
func (r *Renderer) Render(ctx context.Context, rawURL string) (Result, error) {
	session, err := r.browser.Open(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			r.logger.Warn("browser session close failed", zap.String("url", rawURL), zap.Error(cerr))
		}
	}()

	resp, err := r.navigate(ctx, session, rawURL)
	if err != nil {
		return Result{}, err
	}

	if err := session.Wait(ctx, r.settle); err != nil {
		return Result{}, fmt.Errorf("settle wait: %w", err)
	}
	html, err := session.Content(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("capture content: %w", err)
	}

	status := http.StatusOK
	if resp != nil && resp.Status > 0 {
		status = resp.Status
	}
	return Result{HTML: html, Status: status}, nil
}

// navigate runs the primary and fallback attempts. The returned error is only
// set when the fallback attempt fails for a reason other than a timeout.
func (r *Renderer) navigate(ctx context.Context, session Session, rawURL string) (*Response, error) {
	resp, err := session.Navigate(ctx, rawURL, WaitNetworkIdle, r.navTimeout)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, ErrNavigationTimeout):
		r.logger.Warn("timeout while loading, continuing with current page content",
			zap.String("url", rawURL),
			zap.Duration("timeout", r.navTimeout),
		)
	default:
		r.logger.Warn("navigation failed, continuing with current page content",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return nil, nil
	}

	resp, err = session.Navigate(ctx, rawURL, WaitDOMContentLoaded, r.navTimeout)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, ErrNavigationTimeout):
		return nil, nil
	default:
		return nil, fmt.Errorf("fallback navigation: %w", err)
	}
}
