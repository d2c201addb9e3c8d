package render

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FakeStep scripts the outcome of one navigation with a given wait policy.
type FakeStep struct {
	// Response is returned on success; nil simulates no captured response.
	Response *Response
	// Timeout makes the attempt fail with ErrNavigationTimeout.
	Timeout bool
	// Err makes the attempt fail with a non-timeout NavigationError.
	Err error
	// HTML replaces the page content when the attempt runs, even if it
	// times out, to model partially loaded pages.
	HTML string
}

// FakePage scripts everything a Fake does for one URL.
type FakePage struct {
	Steps map[WaitPolicy]FakeStep
	// HTML is the content before any navigation touched the page.
	HTML       string
	ContentErr error
}

// FakeCall records one navigation the Fake served.
type FakeCall struct {
	URL    string
	Policy WaitPolicy
}

// Fake is a scripted Browser for tests. It is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	pages   map[string]FakePage
	openErr error
	calls   []FakeCall
	waits   []time.Duration
	opened  int
	closed  int
}

// NewFake returns a Fake serving pages keyed by URL. Unknown URLs load
// successfully with empty content and no response.
func NewFake(pages map[string]FakePage) *Fake {
	if pages == nil {
		pages = make(map[string]FakePage)
	}
	return &Fake{pages: pages}
}

// Open implements Browser.
func (f *Fake) Open(_ context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	return &fakeSession{fake: f}, nil
}

// FailOpen makes every later Open return err.
func (f *Fake) FailOpen(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

// Calls returns the navigations served so far.
func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// Waits returns the settle durations requested so far.
func (f *Fake) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

// Sessions reports how many sessions were opened and closed.
func (f *Fake) Sessions() (opened, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened, f.closed
}

type fakeSession struct {
	fake   *Fake
	url    string
	html   string
	closed bool
}

func (s *fakeSession) Navigate(
	ctx context.Context,
	rawURL string,
	policy WaitPolicy,
	_ time.Duration,
) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, navFailure(rawURL, policy, err)
	}
	s.fake.mu.Lock()
	s.fake.calls = append(s.fake.calls, FakeCall{URL: rawURL, Policy: policy})
	pg := s.fake.pages[rawURL]
	s.fake.mu.Unlock()

	if s.url != rawURL {
		s.url = rawURL
		s.html = pg.HTML
	}
	step := pg.Steps[policy]
	if step.HTML != "" {
		s.html = step.HTML
	}
	switch {
	case step.Timeout:
		return nil, navTimeout(rawURL, policy)
	case step.Err != nil:
		return nil, navFailure(rawURL, policy, step.Err)
	}
	if step.Response == nil {
		return nil, nil
	}
	resp := *step.Response
	return &resp, nil
}

func (s *fakeSession) Wait(ctx context.Context, d time.Duration) error {
	s.fake.mu.Lock()
	s.fake.waits = append(s.fake.waits, d)
	s.fake.mu.Unlock()
	return ctx.Err()
}

func (s *fakeSession) Content(_ context.Context) (string, error) {
	s.fake.mu.Lock()
	pg := s.fake.pages[s.url]
	s.fake.mu.Unlock()
	if pg.ContentErr != nil {
		return "", pg.ContentErr
	}
	return s.html, nil
}

func (s *fakeSession) Close() error {
	if s.closed {
		return errors.New("fake session closed twice")
	}
	s.closed = true
	s.fake.mu.Lock()
	s.fake.closed++
	s.fake.mu.Unlock()
	return nil
}
