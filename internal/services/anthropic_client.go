package services

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/pkg/models"
)

const assistantSystemPrompt = "You are the assistant of an internal mail and onboarding system. " +
	"Answer professionally and concisely."

// AnthropicCompleter sends single-turn prompts through the Messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicCompleter builds the client. A missing API key is a
// ConfigurationError. SDK retries are disabled; callers own retry policy.
func NewAnthropicCompleter(cfg config.AnthropicConfig) (*AnthropicCompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, models.NotConfigured(ServiceAnthropic, "llm.anthropic.api_key is not set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_5_20250929
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicCompleter{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Complete returns the concatenated text blocks of the reply.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: assistantSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", anthropicError(err)
	}

	var result string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result += variant.Text
		}
	}
	return result, nil
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &models.UpstreamCallError{
			Service:    ServiceAnthropic,
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}
	return &models.UpstreamCallError{Service: ServiceAnthropic, Err: err}
}
