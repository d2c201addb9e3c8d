package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/homepage-tone/internal/clock/system"
)

// lifecycle event names emitted by Page.lifecycleEvent.
const (
	lifecycleNetworkIdle      = "networkIdle"
	lifecycleDOMContentLoaded = "DOMContentLoaded"
)

// ChromedpConfig controls the chromedp engine.
type ChromedpConfig struct {
	UserAgent string
	Headless  bool
	// ContentTimeout bounds the DOM capture; zero uses DefaultNavTimeout.
	ContentTimeout time.Duration
}

// ChromedpBrowser launches a fresh headless Chrome process per session, so no
// cookies, cache or storage survive from one URL to the next.
type ChromedpBrowser struct {
	cfg  ChromedpConfig
	opts []chromedp.ExecAllocatorOption
}

// NewChromedpBrowser prepares the allocator options for new sessions.
func NewChromedpBrowser(cfg ChromedpConfig) *ChromedpBrowser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ContentTimeout <= 0 {
		cfg.ContentTimeout = DefaultNavTimeout
	}
	return &ChromedpBrowser{cfg: cfg, opts: opts}
}

// Open starts a browser process and attaches to its first tab.
func (b *ChromedpBrowser) Open(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp start: %w", err)
	}
	return &chromedpSession{
		tabCtx:         tabCtx,
		tabCancel:      tabCancel,
		allocCancel:    allocCancel,
		meta:           meta,
		contentTimeout: b.cfg.ContentTimeout,
	}, nil
}

type chromedpSession struct {
	tabCtx         context.Context
	tabCancel      context.CancelFunc
	allocCancel    context.CancelFunc
	meta           *responseMeta
	contentTimeout time.Duration
}

func (s *chromedpSession) Navigate(
	ctx context.Context,
	rawURL string,
	policy WaitPolicy,
	timeout time.Duration,
) (*Response, error) {
	milestone, err := lifecycleName(policy)
	if err != nil {
		return nil, navFailure(rawURL, policy, err)
	}

	navCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	events := newLifecycleTracker()
	chromedp.ListenTarget(navCtx, events.captureEvent)

	var loaderID cdp.LoaderID
	err = chromedp.Run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, loader, errorText, _, navErr := page.Navigate(rawURL).Do(ctx)
		if navErr != nil {
			return navErr
		}
		if errorText != "" {
			return fmt.Errorf("page navigate: %s", errorText)
		}
		loaderID = loader
		return events.wait(ctx, loader, milestone)
	}))
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, navTimeout(rawURL, policy)
	default:
		return nil, navFailure(rawURL, policy, err)
	}

	status, finalURL, ok := s.meta.documentResponse(loaderID)
	if !ok {
		return nil, nil
	}
	return &Response{URL: finalURL, Status: status}, nil
}

func (s *chromedpSession) Wait(ctx context.Context, d time.Duration) error {
	return system.Sleep(ctx, d)
}

func (s *chromedpSession) Content(ctx context.Context) (string, error) {
	captureCtx, cancel := context.WithTimeout(s.tabCtx, s.contentTimeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	var html string
	if err := chromedp.Run(captureCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromedp outer html: %w", err)
	}
	return html, nil
}

// Close shuts the tab down gracefully and then kills the browser process.
func (s *chromedpSession) Close() error {
	err := chromedp.Cancel(s.tabCtx)
	s.tabCancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("chromedp cancel: %w", err)
	}
	return nil
}

func lifecycleName(policy WaitPolicy) (string, error) {
	switch policy {
	case WaitNetworkIdle:
		return lifecycleNetworkIdle, nil
	case WaitDOMContentLoaded:
		return lifecycleDOMContentLoaded, nil
	default:
		return "", fmt.Errorf("unsupported wait policy %q", policy)
	}
}

// lifecycleTracker remembers which lifecycle milestones each loader reached.
type lifecycleTracker struct {
	mu     sync.Mutex
	seen   map[cdp.LoaderID]map[string]struct{}
	notify chan struct{}
}

func newLifecycleTracker() *lifecycleTracker {
	return &lifecycleTracker{
		seen:   make(map[cdp.LoaderID]map[string]struct{}),
		notify: make(chan struct{}, 1),
	}
}

func (t *lifecycleTracker) captureEvent(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	t.mu.Lock()
	names, ok := t.seen[e.LoaderID]
	if !ok {
		names = make(map[string]struct{})
		t.seen[e.LoaderID] = names
	}
	names[e.Name] = struct{}{}
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
}

func (t *lifecycleTracker) reached(loader cdp.LoaderID, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[loader][name]
	return ok
}

func (t *lifecycleTracker) wait(ctx context.Context, loader cdp.LoaderID, name string) error {
	for {
		if t.reached(loader, name) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.notify:
		}
	}
}

// responseMeta records the last document response seen per loader, which
// covers redirects within one navigation.
type responseMeta struct {
	mu        sync.RWMutex
	responses map[cdp.LoaderID]Response
}

func newResponseMeta() *responseMeta {
	return &responseMeta{responses: make(map[cdp.LoaderID]Response)}
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.responses[event.LoaderID] = Response{
		URL:    event.Response.URL,
		Status: int(event.Response.Status),
	}
	m.mu.Unlock()
}

func (m *responseMeta) documentResponse(loader cdp.LoaderID) (int, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp, ok := m.responses[loader]
	if !ok || resp.Status == 0 {
		return 0, "", false
	}
	return resp.Status, resp.URL, true
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
