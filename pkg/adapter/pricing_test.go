package adapter

import (
	"math"
	"testing"
)

func TestPricingCost(t *testing.T) {
	p := Pricing{PromptPer1K: 0.0025, CompletionPer1K: 0.01}
	got := p.Cost(Usage{PromptTokens: 2000, CompletionTokens: 500})
	if math.Abs(got-0.01) > 1e-12 {
		t.Fatalf("expected 0.01, got %f", got)
	}
	if (Pricing{}).Cost(Usage{PromptTokens: 100}) != 0 {
		t.Fatalf("zero pricing should cost nothing")
	}
	if (Pricing{PromptPer1K: -1}).Cost(Usage{PromptTokens: 1000}) != 0 {
		t.Fatalf("negative cost should clamp to zero")
	}
}

func TestUsageOrEstimate(t *testing.T) {
	reported := usageOrEstimate(&Usage{PromptTokens: 7, CompletionTokens: 3}, "ignored", "ignored")
	if reported.TotalTokens != 10 {
		t.Fatalf("expected reported usage to be kept, got %+v", reported)
	}

	estimated := usageOrEstimate(nil, "one two three four five six seven eight nine ten", "a b c d e f g h i j")
	if estimated.PromptTokens != 13 || estimated.CompletionTokens != 13 || estimated.TotalTokens != 26 {
		t.Fatalf("unexpected estimate %+v", estimated)
	}
}
