package classifier

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// DefaultKeywords are checked in order; the first match wins.
var DefaultKeywords = []string{
	"code", "python", "function", "class",
	"analyze", "summarize", "compare", "explain", "evaluate", "discuss",
	"quantum", "physics", "mathematics",
}

// RuleConfig tunes the rule evaluator. Zero values take the defaults.
type RuleConfig struct {
	ComplexLength  int
	ModerateLength int
	// Keywords are case-insensitive regular expressions.
	Keywords []string
}

// RuleClassifier is the deterministic length-and-keyword evaluator.
type RuleClassifier struct {
	complexLength  int
	moderateLength int
	patterns       []keywordPattern
}

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

// NewRuleClassifier compiles cfg. An invalid keyword pattern is an error.
func NewRuleClassifier(cfg RuleConfig) (*RuleClassifier, error) {
	rc := &RuleClassifier{
		complexLength:  cfg.ComplexLength,
		moderateLength: cfg.ModerateLength,
	}
	if rc.complexLength <= 0 {
		rc.complexLength = 500
	}
	if rc.moderateLength <= 0 {
		rc.moderateLength = 100
	}

	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	for _, kw := range keywords {
		re, err := regexp.Compile("(?i)" + kw)
		if err != nil {
			return nil, fmt.Errorf("compile keyword %q: %w", kw, err)
		}
		rc.patterns = append(rc.patterns, keywordPattern{keyword: kw, re: re})
	}
	return rc, nil
}

// Classify applies, in order: long prompt, keyword hit, medium prompt, default.
// A keyword hit yields moderate, never complex.
func (c *RuleClassifier) Classify(_ context.Context, prompt string) Result {
	n := utf8.RuneCountInString(prompt)

	if n > c.complexLength {
		return Result{
			Tier:      TierComplex,
			Rationale: fmt.Sprintf("Prompt length (%d chars) exceeds %d.", n, c.complexLength),
		}
	}

	for _, p := range c.patterns {
		if p.re.MatchString(prompt) {
			return Result{
				Tier:      TierModerate,
				Rationale: fmt.Sprintf("Contains complex keyword/pattern: '%s'", p.keyword),
			}
		}
	}

	if n > c.moderateLength {
		return Result{
			Tier:      TierModerate,
			Rationale: fmt.Sprintf("Prompt length (%d chars) exceeds %d.", n, c.moderateLength),
		}
	}

	return Result{Tier: TierSimple, Rationale: "Short prompt with no complex keywords."}
}
