package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when discovery finds nothing usable.
const DefaultGeminiModel = "gemini-2.5-flash"

// geminiPreference is the discovery order for an unset model.
var geminiPreference = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-flash-latest",
	"gemini-2.5-pro",
	"gemini-2.0-pro",
	"gemini-pro-latest",
}

// GoogleBackend generates text with a Gemini model.
type GoogleBackend struct {
	name    string
	model   string
	pricing Pricing
	client  *genai.Client
}

// GoogleConfig configures a Gemini backend. An empty Model triggers discovery.
type GoogleConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Pricing Pricing
}

// NewGoogleBackend creates a Gemini backend registered as name.
func NewGoogleBackend(ctx context.Context, name string, cfg GoogleConfig) (*GoogleBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = discoverGeminiModel(ctx, client)
	}

	return &GoogleBackend{
		name:    name,
		model:   model,
		pricing: cfg.Pricing,
		client:  client,
	}, nil
}

// Name returns the backend identifier.
func (b *GoogleBackend) Name() string {
	return b.name
}

// Model returns the Gemini model in use, after discovery.
func (b *GoogleBackend) Model() string {
	return b.model
}

// Generate sends a prompt to Gemini.
func (b *GoogleBackend) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	var genCfg *genai.GenerateContentConfig
	if maxTokens > 0 {
		genCfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(maxTokens)}
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), genCfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code != 0 {
			return nil, newGenerationError(b.name, apiErr.Code, err)
		}
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("google API error: %w", err)}
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("google returned no candidates")}
	}

	var content strings.Builder
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				content.WriteString(part.Text)
			}
		}
	}

	text := content.String()
	var reported *Usage
	if resp.UsageMetadata != nil {
		reported = &Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	usage := usageOrEstimate(reported, prompt, text)

	return &Generation{
		Text:       text,
		CostUSD:    b.pricing.Cost(usage),
		TokensUsed: usage.TotalTokens,
		Backend:    b.name,
		Model:      b.model,
	}, nil
}

func discoverGeminiModel(ctx context.Context, client *genai.Client) string {
	page, err := client.Models.List(ctx, nil)
	if err != nil {
		return DefaultGeminiModel
	}
	names := make([]string, 0, len(page.Items))
	for _, m := range page.Items {
		if m == nil {
			continue
		}
		names = append(names, m.Name)
	}
	return pickGeminiModel(names)
}

// pickGeminiModel chooses from listed model names ("models/<id>" or "<id>").
func pickGeminiModel(names []string) string {
	available := make(map[string]bool, len(names))
	var firstGemini string
	for _, name := range names {
		id := strings.TrimPrefix(name, "models/")
		available[id] = true
		if firstGemini == "" && strings.Contains(id, "gemini") {
			firstGemini = id
		}
	}
	for _, preferred := range geminiPreference {
		if available[preferred] {
			return preferred
		}
	}
	if firstGemini != "" {
		return firstGemini
	}
	return DefaultGeminiModel
}
