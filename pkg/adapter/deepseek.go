package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekBackend generates text with a DeepSeek model.
// DeepSeek uses an OpenAI-compatible API format.
type DeepSeekBackend struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	pricing    Pricing
	httpClient *http.Client
}

// DeepSeekConfig configures a DeepSeek backend.
type DeepSeekConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Pricing Pricing
	Timeout time.Duration
}

type deepseekRequest struct {
	Model     string            `json:"model"`
	Messages  []deepseekMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens,omitempty"`
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewDeepSeekBackend creates a DeepSeek backend registered as name.
func NewDeepSeekBackend(name string, cfg DeepSeekConfig) (*DeepSeekBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = deepseekBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &DeepSeekBackend{
		name:       name,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		baseURL:    baseURL,
		pricing:    cfg.Pricing,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the backend identifier.
func (b *DeepSeekBackend) Name() string {
	return b.name
}

// Generate sends a prompt to DeepSeek.
func (b *DeepSeekBackend) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	reqBody := deepseekRequest{
		Model: b.model,
		Messages: []deepseekMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("deepseek API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newGenerationError(b.name, resp.StatusCode,
			fmt.Errorf("deepseek API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var dsResp deepseekResponse
	if err := json.Unmarshal(body, &dsResp); err != nil {
		return nil, &GenerationError{Backend: b.name, Status: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if dsResp.Error != nil {
		return nil, &GenerationError{Backend: b.name, Status: resp.StatusCode, Err: fmt.Errorf("deepseek API error: %s (type: %s, code: %s)",
			dsResp.Error.Message, dsResp.Error.Type, dsResp.Error.Code)}
	}

	if len(dsResp.Choices) == 0 {
		return nil, &GenerationError{Backend: b.name, Status: resp.StatusCode, Err: fmt.Errorf("deepseek returned no choices")}
	}

	content := dsResp.Choices[0].Message.Content
	usage := usageOrEstimate(dsResp.Usage, prompt, content)

	return &Generation{
		Text:       content,
		CostUSD:    b.pricing.Cost(usage),
		TokensUsed: usage.TotalTokens,
		Backend:    b.name,
		Model:      b.model,
	}, nil
}
