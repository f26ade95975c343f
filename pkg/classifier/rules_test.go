package classifier

import (
	"context"
	"strings"
	"testing"
)

func TestRuleClassifier(t *testing.T) {
	rc, err := NewRuleClassifier(RuleConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tests := []struct {
		name      string
		prompt    string
		tier      Tier
		rationale string
	}{
		{
			name:      "short arithmetic",
			prompt:    "What is 2+2?",
			tier:      TierSimple,
			rationale: "Short prompt with no complex keywords.",
		},
		{
			name:      "keyword under length threshold",
			prompt:    "Write Python code for fibonacci",
			tier:      TierModerate,
			rationale: "Contains complex keyword/pattern: 'code'",
		},
		{
			name:      "keyword match is case insensitive",
			prompt:    "QUANTUM stuff",
			tier:      TierModerate,
			rationale: "Contains complex keyword/pattern: 'quantum'",
		},
		{
			name:      "medium length without keyword",
			prompt:    strings.Repeat("a", 150),
			tier:      TierModerate,
			rationale: "Prompt length (150 chars) exceeds 100.",
		},
		{
			name:      "long prompt wins over keywords",
			prompt:    strings.Repeat("explain ", 75),
			tier:      TierComplex,
			rationale: "Prompt length (600 chars) exceeds 500.",
		},
		{
			name:      "exactly 500 is not complex",
			prompt:    strings.Repeat("b", 500),
			tier:      TierModerate,
			rationale: "Prompt length (500 chars) exceeds 100.",
		},
		{
			name:      "exactly 100 is simple",
			prompt:    strings.Repeat("b", 100),
			tier:      TierSimple,
			rationale: "Short prompt with no complex keywords.",
		},
		{
			name:      "runes not bytes",
			prompt:    strings.Repeat("é", 101),
			tier:      TierModerate,
			rationale: "Prompt length (101 chars) exceeds 100.",
		},
		{
			name:      "empty prompt",
			prompt:    "",
			tier:      TierSimple,
			rationale: "Short prompt with no complex keywords.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rc.Classify(context.Background(), tt.prompt)
			if got.Tier != tt.tier {
				t.Fatalf("tier: got %s want %s", got.Tier, tt.tier)
			}
			if got.Rationale != tt.rationale {
				t.Fatalf("rationale: got %q want %q", got.Rationale, tt.rationale)
			}
		})
	}
}

func TestRuleClassifierFirstKeywordWins(t *testing.T) {
	rc, err := NewRuleClassifier(RuleConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got := rc.Classify(context.Background(), "compare this python class")
	if got.Rationale != "Contains complex keyword/pattern: 'python'" {
		t.Fatalf("expected list order to decide, got %q", got.Rationale)
	}
}

func TestRuleClassifierIdempotent(t *testing.T) {
	rc, err := NewRuleClassifier(RuleConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	prompts := []string{"hi", "analyze the data", strings.Repeat("z", 700)}
	for _, p := range prompts {
		first := rc.Classify(context.Background(), p)
		for i := 0; i < 5; i++ {
			if again := rc.Classify(context.Background(), p); again != first {
				t.Fatalf("prompt %q: %+v != %+v", p, again, first)
			}
		}
	}
}

func TestRuleClassifierCustomConfig(t *testing.T) {
	rc, err := NewRuleClassifier(RuleConfig{
		ComplexLength:  20,
		ModerateLength: 10,
		Keywords:       []string{`refactor(ing)?`},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if got := rc.Classify(context.Background(), "Refactoring now"); got.Tier != TierModerate {
		t.Fatalf("expected keyword hit, got %+v", got)
	}
	if got := rc.Classify(context.Background(), "write some code"); got.Tier != TierModerate || !strings.Contains(got.Rationale, "exceeds 10") {
		t.Fatalf("default keywords should be replaced, got %+v", got)
	}
	if got := rc.Classify(context.Background(), strings.Repeat("x", 21)); got.Tier != TierComplex {
		t.Fatalf("expected complex, got %+v", got)
	}
}

func TestRuleClassifierInvalidPattern(t *testing.T) {
	if _, err := NewRuleClassifier(RuleConfig{Keywords: []string{"("}}); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestParseTier(t *testing.T) {
	for _, in := range []string{"simple", " Moderate ", "COMPLEX"} {
		if _, err := ParseTier(in); err != nil {
			t.Fatalf("ParseTier(%q): %v", in, err)
		}
	}
	if _, err := ParseTier("expert"); err == nil {
		t.Fatal("expected error for unknown tier")
	}
	if TierSimple.Rank() >= TierModerate.Rank() || TierModerate.Rank() >= TierComplex.Rank() {
		t.Fatal("tiers should rank simple < moderate < complex")
	}
}
