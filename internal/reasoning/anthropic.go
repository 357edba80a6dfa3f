package reasoning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Veraticus/compliance-intelligence/internal/common"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultMaxTokens      = 1024
	defaultTemperature    = 0.2
)

// AnthropicClient implements Client on top of the Anthropic Messages API.
// It makes exactly one request per Generate call.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewAnthropicClient creates a new Anthropic API client.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicClient{
		client:      &client,
		model:       model,
		temperature: temperature,
		maxTokens:   int64(maxTokens),
	}, nil
}

// Generate sends one generation request.
func (c *AnthropicClient) Generate(ctx context.Context, kind Kind, input Input) (Result, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt(kind)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(kind, input))),
		},
	})
	if err != nil {
		return Result{}, classifyError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	payload := strings.TrimSpace(text.String())
	if payload == "" {
		return Result{}, Permanent(errors.New("no content in response"))
	}
	if kind == KindClassification {
		payload = CleanJSON(payload)
	}

	modelVersion := string(resp.Model)
	if modelVersion == "" {
		modelVersion = c.model
	}
	return Result{Payload: payload, ModelVersion: modelVersion}, nil
}

// classifyError maps SDK and transport errors onto transient or permanent failures.
func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return Transient(fmt.Errorf("anthropic API error (status %d): %w: %w", apiErr.StatusCode, common.ErrRateLimit, err))
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return Transient(fmt.Errorf("anthropic API error (status %d): %w", apiErr.StatusCode, err))
		default:
			return Permanent(fmt.Errorf("anthropic API error (status %d): %w", apiErr.StatusCode, err))
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Transient(err)
	}
	// Anything else is a transport failure.
	return Transient(fmt.Errorf("request failed: %w", err))
}
