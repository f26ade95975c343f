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

const ollamaDefaultURL = "http://localhost:11434"

// OllamaConfig configures a local Ollama backend.
type OllamaConfig struct {
	URL     string
	Model   string
	Pricing Pricing
	Timeout time.Duration
}

// OllamaBackend generates text with a locally served Ollama model.
type OllamaBackend struct {
	name       string
	baseURL    string
	model      string
	pricing    Pricing
	httpClient *http.Client
}

type ollamaResponse struct {
	Model       string `json:"model"`
	Response    string `json:"response"`
	Done        bool   `json:"done"`
	PromptCount int    `json:"prompt_eval_count"`
	EvalCount   int    `json:"eval_count"`
}

// NewOllamaBackend creates an Ollama backend registered as name.
func NewOllamaBackend(name string, cfg OllamaConfig) (*OllamaBackend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	url := strings.TrimRight(cfg.URL, "/")
	if url == "" {
		url = ollamaDefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &OllamaBackend{
		name:       name,
		baseURL:    url,
		model:      cfg.Model,
		pricing:    cfg.Pricing,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the backend identifier.
func (b *OllamaBackend) Name() string {
	return b.name
}

// Generate sends a non-streaming generate request to Ollama.
func (b *OllamaBackend) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	ollamaReq := map[string]interface{}{
		"model":  b.model,
		"prompt": prompt,
		"stream": false,
	}
	if maxTokens > 0 {
		ollamaReq["options"] = map[string]interface{}{"num_predict": maxTokens}
	}

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, &GenerationError{Backend: b.name, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, newGenerationError(b.name, resp.StatusCode,
			fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, &GenerationError{Backend: b.name, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	usage := usageOrEstimate(&Usage{
		PromptTokens:     ollamaResp.PromptCount,
		CompletionTokens: ollamaResp.EvalCount,
	}, prompt, ollamaResp.Response)

	model := ollamaResp.Model
	if model == "" {
		model = b.model
	}
	return &Generation{
		Text:       ollamaResp.Response,
		CostUSD:    b.pricing.Cost(usage),
		TokensUsed: usage.TotalTokens,
		Backend:    b.name,
		Model:      model,
	}, nil
}

// Health checks that the Ollama server is reachable.
func (b *OllamaBackend) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check returned status %d", resp.StatusCode)
	}
	return nil
}
