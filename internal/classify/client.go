// Package classify talks to an OpenAI-compatible chat/completions endpoint and
// turns its replies into verdicts.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/homepage-tone/internal/jsonobj"
	"github.com/JakeFAU/homepage-tone/internal/record"
	"github.com/JakeFAU/homepage-tone/internal/verdict"
)

// Defaults for a local LM Studio style server.
const (
	DefaultBaseURL     = "http://127.0.0.1:1234/v1"
	DefaultModel       = "google/gemma-3n-e4b"
	DefaultTemperature = 0.0
	DefaultTopP        = 1.0
	DefaultMaxTokens   = 128
	DefaultTimeout     = 120 * time.Second
)

// maxErrorBody bounds how much of a failed response is kept in HTTPError.
const maxErrorBody = 2048

// Config configures the Client.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
	// MaxRPS throttles requests; zero disables throttling.
	MaxRPS float64
}

// DefaultConfig returns the stock decoding settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
}

// Client posts classification prompts. It is safe for concurrent use.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	normalizer verdict.Normalizer
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client; its Timeout is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithScorePolicy overrides how scores are derived.
func WithScorePolicy(p verdict.ScorePolicy) Option {
	return func(c *Client) {
		if p != nil {
			c.normalizer.Score = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("classify: base url is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("classify: model is required")
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("classify: max tokens must be > 0, got %d", cfg.MaxTokens)
	}
	if cfg.MaxRPS < 0 {
		return nil, fmt.Errorf("classify: max rps must be >= 0, got %v", cfg.MaxRPS)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		normalizer: verdict.Normalizer{Score: verdict.LabelScore},
		logger:     zap.NewNop(),
	}
	if cfg.MaxRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends text with the classification prompt and returns the raw
// content of the first choice.
func (c *Client) Complete(ctx context.Context, text string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: UserPrompt(text)},
		},
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat completion: %w", err)
	}
	c.logger.Debug("chat completion",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newHTTPError(resp.StatusCode, respBody)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", ErrNoChoices
	}
	return chat.Choices[0].Message.Content, nil
}

// Classify completes text and normalizes the reply. A reply with no
// recoverable JSON object becomes an unknown verdict carrying the raw reply.
func (c *Client) Classify(ctx context.Context, text string) (record.Verdict, error) {
	raw, err := c.Complete(ctx, text)
	if err != nil {
		return record.Verdict{}, err
	}
	obj, err := jsonobj.Recover(raw)
	if err != nil {
		c.logger.Warn("model reply had no usable json object", zap.Error(err))
		return verdict.FromParseFailure(raw), nil
	}
	return c.normalizer.Normalize(obj), nil
}

// ErrNoChoices reports a 2xx reply without choices.
var ErrNoChoices = errors.New("chat completion returned no choices")

// HTTPError reports a non-2xx reply from the endpoint.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat completion returned %d", e.StatusCode)
	}
	return fmt.Sprintf("chat completion returned %d: %s", e.StatusCode, e.Message)
}

func newHTTPError(status int, body []byte) *HTTPError {
	var errResp chatErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &HTTPError{StatusCode: status, Message: errResp.Error.Message}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return &HTTPError{StatusCode: status, Message: msg}
}
