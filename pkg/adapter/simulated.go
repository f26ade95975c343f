package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SimulatedConfig describes a deterministic local stand-in for a model.
type SimulatedConfig struct {
	Label        string
	Latency      time.Duration
	BaseTokens   int
	CostPerToken float64
	Model        string
}

// SimulatedBackend returns canned or templated text after a fixed latency.
// It needs no credentials and is used for local runs and tests.
type SimulatedBackend struct {
	name   string
	cfg    SimulatedConfig
	canned map[string]string
}

// NewSimulatedBackend creates a simulated backend registered as name.
func NewSimulatedBackend(name string, cfg SimulatedConfig) *SimulatedBackend {
	if cfg.Label == "" {
		cfg.Label = name
	}
	if cfg.Model == "" {
		cfg.Model = "simulated"
	}
	return &SimulatedBackend{
		name: name,
		cfg:  cfg,
		canned: map[string]string{
			"2+2": "The answer is 4.",
			"2*2": "The answer is 4.",
		},
	}
}

// Name returns the backend identifier.
func (b *SimulatedBackend) Name() string {
	return b.name
}

// Generate waits for the configured latency and returns a deterministic reply.
func (b *SimulatedBackend) Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error) {
	if err := sleepWithContext(ctx, b.cfg.Latency); err != nil {
		return nil, &GenerationError{Backend: b.name, Err: err}
	}

	completion := b.cfg.BaseTokens
	if maxTokens > 0 && completion > maxTokens {
		completion = maxTokens
	}
	tokens := countWords(prompt) + completion

	return &Generation{
		Text:       b.reply(prompt),
		CostUSD:    float64(tokens) * b.cfg.CostPerToken,
		TokensUsed: tokens,
		Backend:    b.name,
		Model:      b.cfg.Model,
	}, nil
}

func (b *SimulatedBackend) reply(prompt string) string {
	for needle, answer := range b.canned {
		if strings.Contains(prompt, needle) {
			return answer
		}
	}
	return fmt.Sprintf("[%s] Processed request: %s...", b.cfg.Label, preview(prompt, 20))
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
