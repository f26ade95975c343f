package adapter

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestSimulatedBackendCostModel(t *testing.T) {
	b := NewSimulatedBackend("gpt-4o-sim", SimulatedConfig{Label: "GPT-4o", BaseTokens: 100, CostPerToken: 0.00003})

	gen, err := b.Generate(context.Background(), "explain the theory of relativity", 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.TokensUsed != 105 {
		t.Fatalf("expected 105 tokens, got %d", gen.TokensUsed)
	}
	if math.Abs(gen.CostUSD-105*0.00003) > 1e-12 {
		t.Fatalf("unexpected cost %f", gen.CostUSD)
	}
	if !strings.HasPrefix(gen.Text, "[GPT-4o] Processed request: explain the theory o") {
		t.Fatalf("unexpected text %q", gen.Text)
	}
	if gen.Backend != "gpt-4o-sim" {
		t.Fatalf("expected backend name, got %q", gen.Backend)
	}
}

func TestSimulatedBackendCapsCompletion(t *testing.T) {
	b := NewSimulatedBackend("llama-3", SimulatedConfig{BaseTokens: 50, CostPerToken: 0.000005})

	gen, err := b.Generate(context.Background(), "one two three", 10)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gen.TokensUsed != 13 {
		t.Fatalf("expected completion capped at max tokens, got %d", gen.TokensUsed)
	}
}

func TestSimulatedBackendCannedAnswer(t *testing.T) {
	b := NewSimulatedBackend("phi-3-mini", SimulatedConfig{Label: "Phi-3", BaseTokens: 20})

	for _, prompt := range []string{"What is 2+2?", "what is 2*2"} {
		gen, err := b.Generate(context.Background(), prompt, 100)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if gen.Text != "The answer is 4." {
			t.Fatalf("prompt %q: unexpected text %q", prompt, gen.Text)
		}
	}
}

func TestSimulatedBackendHonorsCancellation(t *testing.T) {
	b := NewSimulatedBackend("slow", SimulatedConfig{Latency: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := b.Generate(ctx, "hello", 10)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Backend != "slow" {
		t.Fatalf("expected GenerationError for slow, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("generate did not return promptly")
	}
}
