// Package llm talks to OpenAI-compatible chat completion endpoints, either a
// hosted service or a server running on localhost.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/dpolishuk/docweave/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// Backend produces text for a system and user prompt pair.
type Backend interface {
	Generate(ctx context.Context, system, user string) (string, Usage, error)
}

// Usage counts tokens spent by one or more calls.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

func (u *Usage) Add(other Usage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
	u.Total += other.Total
}

type Mode string

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
)

const DefaultBaseURL = "https://api.openai.com/v1"

var ErrEmptyResponse = errors.New("backend returned no choices")

// Options configures a Client. Retries bounds transport-level retries of a
// single call; they are unrelated to docstring verification retries.
type Options struct {
	Mode        Mode
	BaseURL     string
	APIKey      string
	Model       string
	Port        int
	Temperature float32
	MaxTokens   int
	Retries     int
	Backoff     time.Duration
	HTTPClient  *http.Client
}

// BaseURLFor returns the endpoint a client built from o talks to.
func (o Options) BaseURLFor() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	if o.Mode == ModeLocal {
		return fmt.Sprintf("http://localhost:%d/v1", o.Port)
	}
	return DefaultBaseURL
}

type Client struct {
	client *openai.Client
	opts   Options
	log    *logger.Logger
}

func NewClient(opts Options, log *logger.Logger) *Client {
	if opts.Mode == "" {
		opts.Mode = ModeRemote
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = opts.BaseURLFor()
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	log.Debug("Initializing chat backend", "mode", opts.Mode, "base_url", cfg.BaseURL, "model", opts.Model)
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		log:    log,
	}
}

// Generate sends one chat completion request, retrying transport failures
// with linear backoff.
func (c *Client) Generate(ctx context.Context, system, user string) (string, Usage, error) {
	req := openai.ChatCompletionRequest{
		Model: c.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: requestTemperature(c.opts.Temperature),
		MaxTokens:   c.opts.MaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= c.opts.Retries; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			usage := Usage{
				Prompt:     resp.Usage.PromptTokens,
				Completion: resp.Usage.CompletionTokens,
				Total:      resp.Usage.TotalTokens,
			}
			if len(resp.Choices) == 0 {
				return "", usage, ErrEmptyResponse
			}
			c.log.Debug("Received completion", "finish_reason", resp.Choices[0].FinishReason, "tokens", usage.Total)
			return resp.Choices[0].Message.Content, usage, nil
		}

		lastErr = err
		if !retryable(err) || attempt == c.opts.Retries {
			break
		}
		wait := time.Duration(attempt) * c.opts.Backoff
		c.log.Warn("Chat completion failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return "", Usage{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", Usage{}, fmt.Errorf("chat completion failed: %w", lastErr)
}

// retryable reports whether err is worth another try: rate limits, server
// errors and transport failures.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

// requestTemperature keeps a zero temperature on the wire: the request field
// is omitempty, so 0 would fall back to the server default.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
