package adapter

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
)

func TestOpenAIGenerate(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":"four"},"finish_reason":"stop"}],` +
			`"usage":{"prompt_tokens":1000,"completion_tokens":100,"total_tokens":1100}}`))
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend("gpt-4o", OpenAIConfig{
		APIKey:  "sk-test",
		Model:   "gpt-4o",
		BaseURL: srv.URL,
		Pricing: Pricing{PromptPer1K: 0.0025, CompletionPer1K: 0.01},
	}, option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	gen, err := b.Generate(context.Background(), "what is two plus two", 50)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(body, `"max_completion_tokens":50`) || !strings.Contains(body, "what is two plus two") {
		t.Fatalf("unexpected request body %s", body)
	}
	if gen.Text != "four" || gen.TokensUsed != 1100 || gen.Model != "gpt-4o" {
		t.Fatalf("unexpected generation %+v", gen)
	}
	if math.Abs(gen.CostUSD-0.0035) > 1e-12 {
		t.Fatalf("unexpected cost %f", gen.CostUSD)
	}
}

func TestOpenAIStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend("gpt-4o", OpenAIConfig{APIKey: "sk-bad", Model: "gpt-4o", BaseURL: srv.URL}, option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	_, err = b.Generate(context.Background(), "hi", 10)
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Status != http.StatusUnauthorized || genErr.Backend != "gpt-4o" {
		t.Fatalf("expected 401 GenerationError, got %v", err)
	}
}
