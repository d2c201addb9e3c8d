package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/homepage-tone/internal/record"
)

func chatServer(t *testing.T, handler func(w http.ResponseWriter, req chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func reply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
}

func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL + "/v1/"
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestCompleteSendsPayload(t *testing.T) {
	t.Parallel()

	type captured struct {
		auth string
		req  chatRequest
	}
	seen := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		seen <- captured{auth: r.Header.Get("Authorization"), req: req}
		reply(w, `{"label":"neutral"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.APIKey = "secret" })
	raw, err := c.Complete(context.Background(), "Welcome to the agency.")
	require.NoError(t, err)
	assert.Equal(t, `{"label":"neutral"}`, raw)

	got := <-seen
	assert.Equal(t, "Bearer secret", got.auth)
	assert.Equal(t, DefaultModel, got.req.Model)
	assert.Equal(t, 0.0, got.req.Temperature)
	assert.Equal(t, 1.0, got.req.TopP)
	assert.Equal(t, 128, got.req.MaxTokens)
	require.Len(t, got.req.Messages, 2)
	assert.Equal(t, "system", got.req.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.req.Messages[0].Content)
	assert.Equal(t, "user", got.req.Messages[1].Role)
	assert.True(t, strings.HasSuffix(got.req.Messages[1].Content, "Text:\nWelcome to the agency.\nJSON:"))
	assert.Contains(t, got.req.Messages[1].Content, "Hatch Act")
}

func TestCompleteOmitsEmptyAPIKey(t *testing.T) {
	t.Parallel()

	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		reply(w, "{}")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, nil).Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "", auth.Load())
}

func TestCompleteHTTPError(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"model not loaded"}}`)
	})

	_, err := newTestClient(t, srv.URL, nil).Complete(context.Background(), "x")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "model not loaded", httpErr.Message)
	assert.Contains(t, err.Error(), "503")
}

func TestCompletePlainErrorBody(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
		http.Error(w, strings.Repeat("z", 5000), http.StatusBadGateway)
	})

	_, err := newTestClient(t, srv.URL, nil).Complete(context.Background(), "x")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Len(t, httpErr.Message, maxErrorBody)
}

func TestCompleteNoChoices(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
		fmt.Fprint(w, `{"choices":[]}`)
	})
	_, err := newTestClient(t, srv.URL, nil).Complete(context.Background(), "x")
	require.ErrorIs(t, err, ErrNoChoices)
}

func TestCompleteTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		reply(w, "{}")
	})
	defer close(release)

	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	_, err := c.Complete(context.Background(), "x")
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    record.Verdict
	}{
		{
			name:    "fenced partisan",
			content: "```json\n{\"label\":\"Partisan\",\"score\":0.3,\"rationale\":\"blames a party\"}\n```",
			want:    record.Verdict{Label: record.LabelPartisan, Score: 1, Rationale: "blames a party"},
		},
		{
			name:    "neutral with noise",
			content: `<|channel|>final {"label":"neutral","score":1,"rationale":"services"} thanks`,
			want:    record.Verdict{Label: record.LabelNeutral, Score: 0, Rationale: "services"},
		},
		{
			name:    "unparseable reply kept verbatim",
			content: "I am unable to comply.",
			want:    record.Verdict{Label: record.LabelUnknown, Score: 0, Rationale: "I am unable to comply."},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
				reply(w, tc.content)
			})
			v, err := newTestClient(t, srv.URL, nil).Classify(context.Background(), "page text")
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestClassifyScorePolicyOption(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
		reply(w, `{"label":"neutral","score":0.25}`)
	})
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/v1"
	c, err := New(cfg, WithScorePolicy(func(_ record.Label, model float64) float64 { return model }))
	require.NoError(t, err)

	v, err := c.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 0.25, v.Score)
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
		calls.Add(1)
		reply(w, "{}")
	})
	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.MaxRPS = 10 })

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Complete(context.Background(), "x")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Complete(ctx, "x")
	require.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	base := DefaultConfig()
	tests := map[string]func(*Config){
		"missing base url": func(c *Config) { c.BaseURL = " " },
		"missing model":    func(c *Config) { c.Model = "" },
		"zero max tokens":  func(c *Config) { c.MaxTokens = 0 },
		"negative rps":     func(c *Config) { c.MaxRPS = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
		})
	}

	c, err := New(Config{BaseURL: "http://x/v1/", Model: "m", MaxTokens: 1})
	require.NoError(t, err)
	assert.Equal(t, "http://x/v1/chat/completions", c.endpoint)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}
