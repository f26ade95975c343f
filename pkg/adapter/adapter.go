package adapter

import "context"

// Backend produces text for a prompt and reports what the call cost.
type Backend interface {
	// Generate sends a prompt to the backend. maxTokens bounds the completion.
	Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error)
}

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generation is the outcome of one backend invocation.
type Generation struct {
	Text       string  `json:"text"`
	CostUSD    float64 `json:"cost_usd"`
	TokensUsed int     `json:"tokens_used"`
	Backend    string  `json:"backend"`
	Model      string  `json:"model,omitempty"`
}
