package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend generates text with an OpenAI chat model.
type OpenAIBackend struct {
	name    string
	model   string
	pricing Pricing
	client  openai.Client
}

// OpenAIConfig configures an OpenAI backend.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Pricing Pricing
}

// NewOpenAIBackend creates an OpenAI backend registered as name.
func NewOpenAIBackend(name string, cfg OpenAIConfig, opts ...option.RequestOption) (*OpenAIBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai model is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(trimmed))
	}
	reqOpts = append(reqOpts, opts...)

	return &OpenAIBackend{
		name:    name,
		model:   cfg.Model,
		pricing: cfg.Pricing,
		client:  openai.NewClient(reqOpts...),
	}, nil
}

// Name returns the backend identifier.
func (b *OpenAIBackend) Name() string {
	return b.name
}

// Generate sends a prompt to OpenAI.
func (b *OpenAIBackend) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, newGenerationError(b.name, apiErr.StatusCode, err)
		}
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("openai API error: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("openai returned no choices")}
	}

	content := resp.Choices[0].Message.Content
	usage := usageOrEstimate(&Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}, prompt, content)

	return &Generation{
		Text:       content,
		CostUSD:    b.pricing.Cost(usage),
		TokensUsed: usage.TotalTokens,
		Backend:    b.name,
		Model:      b.model,
	}, nil
}
