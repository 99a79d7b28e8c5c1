// Package insights asks a chat completion model for commentary on engine results.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/Alias1177/Allocator/internal/model"
)

// Config is everything the client needs; nothing is read from the environment here
type Config struct {
	APIKey            string
	Model             string
	BaseURL           string // empty means the public OpenAI endpoint
	Timeout           time.Duration
	RequestsPerSecond int
	MaxRetryTime      time.Duration
}

// Results is the record set the model comments on
type Results struct {
	Assets      []string                         `json:"assets"`
	Allocations []model.Allocation               `json:"allocations,omitempty"`
	Backtests   map[string]model.BacktestMetrics `json:"backtests,omitempty"`
	Sensitivity []model.SensitivityRow           `json:"sensitivity,omitempty"`
}

// Client wraps the OpenAI API client
type Client struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	retry   time.Duration
	logger  zerolog.Logger
}

// NewClient creates a new OpenAI client with rate limiting
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: missing API key", model.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.MaxRetryTime == 0 {
		cfg.MaxRetryTime = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Every(time.Second), cfg.RequestsPerSecond),
		retry:   cfg.MaxRetryTime,
		logger:  log.With().Str("component", "insights").Logger(),
	}, nil
}

// GenerateCompletion sends a prompt and returns the first choice
func (c *Client) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}
	c.logger.Debug().Int("prompt_len", len(prompt)).Msg("Sending prompt to OpenAI")

	var resp openai.ChatCompletionResponse
	operation := func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = c.retry

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		c.logger.Error().Err(err).Msg("OpenAI API error")
		return "", fmt.Errorf("after retries: %w", err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn().Msg("OpenAI returned empty choices")
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate comments on results
func (c *Client) Generate(ctx context.Context, results Results) (string, error) {
	prompt, err := BuildPrompt(results)
	if err != nil {
		return "", err
	}
	return c.GenerateCompletion(ctx, prompt)
}

const systemPrompt = "You are a portfolio analyst. Comment briefly on allocations and backtest figures. Do not give investment advice."

// BuildPrompt embeds results as JSON in the user prompt
func BuildPrompt(results Results) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Portfolio optimization results for ")
	sb.WriteString(strings.Join(results.Assets, ", "))
	sb.WriteString(":\n\n")
	sb.Write(data)
	sb.WriteString(`

Answer in the following format:
Summary: <2-3 sentences comparing the strategies>
Risks: <1-2 sentences on drawdowns and concentration>
`)
	return sb.String(), nil
}

// retryable reports whether the request may succeed if sent again
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
