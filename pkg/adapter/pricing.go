package adapter

import (
	"math"
	"strings"
)

// Pricing is a per-1k-token price for one model.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// Cost returns the USD cost of usage under p.
func (p Pricing) Cost(usage Usage) float64 {
	promptCost := (float64(usage.PromptTokens) / 1000.0) * p.PromptPer1K
	completionCost := (float64(usage.CompletionTokens) / 1000.0) * p.CompletionPer1K
	cost := promptCost + completionCost
	if cost < 0 || math.IsNaN(cost) {
		return 0
	}
	return cost
}

func normalizeUsage(u *Usage) Usage {
	if u == nil {
		return Usage{}
	}
	usage := *u
	if usage.TotalTokens == 0 && (usage.PromptTokens > 0 || usage.CompletionTokens > 0) {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

// usageOrEstimate returns provider usage when reported, otherwise an
// estimate of 1.3 tokens per word for both sides of the exchange.
func usageOrEstimate(u *Usage, prompt, completion string) Usage {
	usage := normalizeUsage(u)
	if usage.TotalTokens > 0 {
		return usage
	}
	usage.PromptTokens = EstimateTokens(prompt)
	usage.CompletionTokens = EstimateTokens(completion)
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage
}

// EstimateTokens approximates a token count from whitespace-separated words.
func EstimateTokens(text string) int {
	return int(float64(countWords(text)) * 1.3)
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
