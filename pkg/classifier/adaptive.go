package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zen-systems/tierroute/pkg/adapter"
	"github.com/zen-systems/tierroute/pkg/metrics"
)

const defaultAdaptiveMaxTokens = 128

var errEmptyReply = errors.New("classifier returned empty response")

// AdaptiveClassifier asks a reasoning backend for the tier and falls back
// to a rule evaluator whenever the backend cannot give a usable answer.
type AdaptiveClassifier struct {
	name      string
	backend   adapter.Backend
	fallback  Classifier
	maxTokens int
	logger    zerolog.Logger
}

// AdaptiveOption configures an AdaptiveClassifier.
type AdaptiveOption func(*AdaptiveClassifier)

// WithMaxTokens sets the completion budget for the reasoning call.
func WithMaxTokens(n int) AdaptiveOption {
	return func(c *AdaptiveClassifier) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithLogger sets the logger used for degraded classifications.
func WithLogger(logger zerolog.Logger) AdaptiveOption {
	return func(c *AdaptiveClassifier) {
		c.logger = logger
	}
}

// NewAdaptiveClassifier creates an adaptive classifier over the backend
// registered as name, with fallback used on any failure.
func NewAdaptiveClassifier(name string, backend adapter.Backend, fallback Classifier, opts ...AdaptiveOption) (*AdaptiveClassifier, error) {
	if backend == nil {
		return nil, errors.New("adaptive classifier requires a reasoning backend")
	}
	if fallback == nil {
		return nil, errors.New("adaptive classifier requires a fallback classifier")
	}
	c := &AdaptiveClassifier{
		name:      name,
		backend:   backend,
		fallback:  fallback,
		maxTokens: defaultAdaptiveMaxTokens,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Classify returns the backend's verdict, or the fallback's on failure.
// While the backend is simulated the fallback decides without a call.
func (c *AdaptiveClassifier) Classify(ctx context.Context, prompt string) Result {
	if adapter.IsSimulated(c.backend) {
		return c.fallback.Classify(ctx, prompt)
	}
	result, err := c.classifyRemote(ctx, prompt)
	if err != nil {
		metrics.ClassifierFallbacks.Inc()
		c.logger.Warn().Err(err).
			Str("backend", c.name).
			Int("prompt_len", len(prompt)).
			Msg("adaptive classification degraded to rules")
		return c.fallback.Classify(ctx, prompt)
	}
	return result
}

func (c *AdaptiveClassifier) classifyRemote(ctx context.Context, prompt string) (Result, error) {
	gen, err := c.backend.Generate(ctx, buildClassifierPrompt(prompt), c.maxTokens)
	if err != nil {
		return Result{}, err
	}
	if gen == nil || strings.TrimSpace(gen.Text) == "" {
		return Result{}, errEmptyReply
	}

	pick, err := parseClassifierResponse(gen.Text)
	if err != nil {
		return Result{}, fmt.Errorf("classifier response invalid: %w", err)
	}

	tier, err := ParseTier(pick.tier())
	if err != nil {
		tier = TierModerate
	}
	rationale := strings.TrimSpace(pick.rationale())
	if rationale == "" {
		rationale = "adaptive classification"
	}

	return Result{
		Tier:      tier,
		Rationale: fmt.Sprintf("[%s classifier] %s", c.name, rationale),
	}, nil
}

// classifierPick accepts both the current field names and the older
// difficulty/reasoning pair.
type classifierPick struct {
	Tier       string `json:"tier"`
	Rationale  string `json:"rationale"`
	Difficulty string `json:"difficulty"`
	Reasoning  string `json:"reasoning"`
}

func (p *classifierPick) tier() string {
	if p.Tier != "" {
		return p.Tier
	}
	return p.Difficulty
}

func (p *classifierPick) rationale() string {
	if p.Rationale != "" {
		return p.Rationale
	}
	return p.Reasoning
}

func parseClassifierResponse(content string) (*classifierPick, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var pick classifierPick
	if err := json.Unmarshal([]byte(content), &pick); err != nil {
		return nil, err
	}
	return &pick, nil
}

func buildClassifierPrompt(userPrompt string) string {
	var sb strings.Builder
	sb.WriteString("Analyze this user prompt and classify its complexity for LLM routing.\n\n")
	sb.WriteString("User prompt:\n")
	sb.WriteString(userPrompt)
	sb.WriteString("\n\nClassification rules:\n")
	sb.WriteString("- simple: basic facts, math, definitions, greetings (small model)\n")
	sb.WriteString("- moderate: code tasks, explanations, how-to questions (medium model)\n")
	sb.WriteString("- complex: deep analysis, creative writing, multi-step reasoning (large model)\n\n")
	sb.WriteString("Return ONLY JSON: {\"tier\":\"simple|moderate|complex\",\"rationale\":\"brief explanation\"}.\n")
	return sb.String()
}
