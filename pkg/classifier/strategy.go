package classifier

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zen-systems/tierroute/pkg/adapter"
)

// Strategy names.
const (
	StrategyRule     = "rule"
	StrategyAdaptive = "adaptive"
)

// Deps carries what a strategy may need at construction.
type Deps struct {
	Rules RuleConfig
	// Reasoning is the backend the adaptive strategy consults; nil when
	// none is configured.
	Reasoning          adapter.Backend
	ReasoningName      string
	ReasoningMaxTokens int
	Logger             zerolog.Logger
}

// Factory builds a classifier from deps.
type Factory func(deps Deps) (Classifier, error)

// Strategies is a name-keyed registry of classifier factories.
type Strategies struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewStrategies returns a registry holding the rule and adaptive
// strategies, plus the "rules" and "llm" aliases.
func NewStrategies() *Strategies {
	s := &Strategies{factories: make(map[string]Factory)}
	s.Register(StrategyRule, newRule)
	s.Register("rules", newRule)
	s.Register(StrategyAdaptive, newAdaptive)
	s.Register("llm", newAdaptive)
	return s
}

// Register adds or replaces a strategy.
func (s *Strategies) Register(name string, f Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[strings.ToLower(name)] = f
}

// New builds the named strategy. Unknown names are an error.
func (s *Strategies) New(name string, deps Deps) (Classifier, error) {
	s.mu.RLock()
	f, ok := s.factories[strings.ToLower(strings.TrimSpace(name))]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown classifier strategy %q (known: %s)", name, strings.Join(s.Names(), ", "))
	}
	return f(deps)
}

// Names returns the registered strategy names, sorted.
func (s *Strategies) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.factories))
	for name := range s.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newRule(deps Deps) (Classifier, error) {
	return NewRuleClassifier(deps.Rules)
}

// newAdaptive degrades to the rule evaluator when no reasoning backend is
// available.
func newAdaptive(deps Deps) (Classifier, error) {
	rules, err := NewRuleClassifier(deps.Rules)
	if err != nil {
		return nil, err
	}
	if deps.Reasoning == nil {
		deps.Logger.Warn().Msg("no reasoning backend configured; adaptive classifier uses rules")
		return rules, nil
	}
	if adapter.IsSimulated(deps.Reasoning) {
		deps.Logger.Info().Str("backend", deps.ReasoningName).Msg("reasoning backend is simulated; rules decide until its key is set")
	}
	return NewAdaptiveClassifier(deps.ReasoningName, deps.Reasoning, rules,
		WithMaxTokens(deps.ReasoningMaxTokens),
		WithLogger(deps.Logger),
	)
}
