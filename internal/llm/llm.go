// Package llm talks to a hosted language model through an OpenAI-compatible
// chat completions endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/logging"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("Claude API key missing. Please set CLAUDE_API_KEY in your .env file.")

// ErrEmptyResponse is returned when the model answers without any choice.
var ErrEmptyResponse = errors.New("empty response from language model")

// Completer turns a single user prompt into the model's reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options configures a Client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Client is a Completer backed by openai-go.
type Client struct {
	api     openai.Client
	opts    Options
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// New creates a Client. An empty API key returns ErrNoAPIKey.
func New(opts Options, metrics *instrumentation.Metrics, logger *slog.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Client{
		api:     openai.NewClient(reqOpts...),
		opts:    opts,
		metrics: metrics,
		logger:  logging.WithService(logger, instrumentation.ServiceLLM),
	}, nil
}

// Complete sends prompt as a single user message and returns the trimmed text
// of the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       shared.ChatModel(c.opts.Model),
		Temperature: openai.Float(c.opts.Temperature),
	}
	if c.opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(c.opts.MaxTokens)
	}

	start := time.Now()
	var text string
	err := instrumentation.ObserveBackend(ctx, c.metrics, instrumentation.ServiceLLM, instrumentation.OperationComplete, func(ctx context.Context) error {
		completion, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return ErrEmptyResponse
		}
		text = strings.TrimSpace(completion.Choices[0].Message.Content)
		c.logger.DebugContext(ctx, "completion received",
			slog.String("model", c.opts.Model),
			slog.Int64("completion_tokens", completion.Usage.CompletionTokens),
			slog.Duration(logging.KeyDuration, time.Since(start)))
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
