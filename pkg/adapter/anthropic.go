package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 1024

// AnthropicBackend generates text with a Claude model.
type AnthropicBackend struct {
	name    string
	model   string
	pricing Pricing
	client  anthropic.Client
}

// AnthropicConfig configures an Anthropic backend.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Pricing Pricing
}

// NewAnthropicBackend creates an Anthropic backend registered as name.
func NewAnthropicBackend(name string, cfg AnthropicConfig, opts ...option.RequestOption) (*AnthropicBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(trimmed))
	}
	reqOpts = append(reqOpts, opts...)

	return &AnthropicBackend{
		name:    name,
		model:   cfg.Model,
		pricing: cfg.Pricing,
		client:  anthropic.NewClient(reqOpts...),
	}, nil
}

// Name returns the backend identifier.
func (b *AnthropicBackend) Name() string {
	return b.name
}

// Generate sends a prompt to Claude.
func (b *AnthropicBackend) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, newGenerationError(b.name, apiErr.StatusCode, err)
		}
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("anthropic API error: %w", err)}
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	text := content.String()
	usage := usageOrEstimate(&Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, prompt, text)

	return &Generation{
		Text:       text,
		CostUSD:    b.pricing.Cost(usage),
		TokensUsed: usage.TotalTokens,
		Backend:    b.name,
		Model:      b.model,
	}, nil
}
