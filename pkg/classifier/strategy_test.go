package classifier

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestStrategiesNew(t *testing.T) {
	s := NewStrategies()
	judge := &scriptedBackend{reply: `{"tier":"complex","rationale":"r"}`}

	tests := []struct {
		name     string
		strategy string
		deps     Deps
		adaptive bool
	}{
		{"rule", "rule", Deps{}, false},
		{"rules alias", "Rules", Deps{}, false},
		{"adaptive", "adaptive", Deps{Reasoning: judge, ReasoningName: "judge", Logger: zerolog.Nop()}, true},
		{"llm alias", "llm", Deps{Reasoning: judge, ReasoningName: "judge", Logger: zerolog.Nop()}, true},
		{"adaptive without backend degrades", "adaptive", Deps{Logger: zerolog.Nop()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := s.New(tt.strategy, tt.deps)
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			_, isAdaptive := c.(*AdaptiveClassifier)
			if isAdaptive != tt.adaptive {
				t.Fatalf("expected adaptive=%v, got %T", tt.adaptive, c)
			}
		})
	}
}

func TestStrategiesUnknown(t *testing.T) {
	if _, err := NewStrategies().New("oracle", Deps{}); err == nil {
		t.Fatal("expected unknown strategy error")
	}
}

func TestStrategiesInvalidRuleConfig(t *testing.T) {
	_, err := NewStrategies().New("rule", Deps{Rules: RuleConfig{Keywords: []string{"[unclosed"}}})
	if err == nil {
		t.Fatal("expected pattern compile error")
	}
}

func TestStrategiesRegisterCustom(t *testing.T) {
	s := NewStrategies()
	s.Register("always-complex", func(Deps) (Classifier, error) {
		return fixed{Result{Tier: TierComplex, Rationale: "fixed"}}, nil
	})

	c, err := s.New("always-complex", Deps{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := c.Classify(context.Background(), "hi"); got.Tier != TierComplex {
		t.Fatalf("unexpected result %+v", got)
	}
}

type fixed struct{ r Result }

func (f fixed) Classify(context.Context, string) Result { return f.r }
