package render

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// StaticConfig controls the static engine.
type StaticConfig struct {
	UserAgent string
}

// StaticBrowser fetches raw server HTML with colly and runs no JavaScript.
// It exists for hosts without a Chrome install; wait policies are accepted
// but have no effect beyond the request timeout.
type StaticBrowser struct {
	cfg       StaticConfig
	transport http.RoundTripper
}

// NewStaticBrowser builds the static engine.
func NewStaticBrowser(cfg StaticConfig) *StaticBrowser {
	return &StaticBrowser{cfg: cfg, transport: newHTTPTransport()}
}

// Open returns a session; every navigation uses a fresh collector.
func (b *StaticBrowser) Open(_ context.Context) (Session, error) {
	return &staticSession{userAgent: b.cfg.UserAgent, transport: b.transport}, nil
}

type staticSession struct {
	userAgent string
	transport http.RoundTripper

	mu   sync.Mutex
	body []byte
}

func (s *staticSession) Navigate(
	ctx context.Context,
	rawURL string,
	policy WaitPolicy,
	timeout time.Duration,
) (*Response, error) {
	c := s.newCollector(timeout)

	var (
		resp     *Response
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		resp = &Response{URL: r.Request.URL.String(), Status: r.StatusCode}
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			resp = &Response{URL: r.Request.URL.String(), Status: r.StatusCode}
			body = append([]byte(nil), r.Body...)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(rawURL)
	}()

	var err error
	select {
	case <-ctx.Done():
		return nil, navFailure(rawURL, policy, ctx.Err())
	case err = <-done:
	}
	if err == nil {
		err = fetchErr
	}
	if err != nil {
		if isTimeout(err) {
			return nil, navTimeout(rawURL, policy)
		}
		return nil, navFailure(rawURL, policy, err)
	}

	s.mu.Lock()
	s.body = body
	s.mu.Unlock()
	return resp, nil
}

// Wait is a no-op: a static document has no scripts left to settle.
func (s *staticSession) Wait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func (s *staticSession) Content(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.body), nil
}

func (s *staticSession) newCollector(timeout time.Duration) *colly.Collector {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(s.transport)
	c.ParseHTTPErrorResponse = true
	if s.userAgent != "" {
		c.UserAgent = s.userAgent
	}
	c.SetRequestTimeout(timeout)
	return c
}

func (s *staticSession) Close() error {
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
