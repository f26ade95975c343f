// Package classifier estimates how difficult a prompt is.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Tier is a coarse difficulty bucket used as a routing key.
type Tier string

const (
	TierSimple   Tier = "simple"
	TierModerate Tier = "moderate"
	TierComplex  Tier = "complex"
)

// ErrInvalidTier is returned by ParseTier for unknown names.
var ErrInvalidTier = errors.New("invalid tier")

// Tiers returns all tiers from least to most capable.
func Tiers() []Tier {
	return []Tier{TierSimple, TierModerate, TierComplex}
}

// ParseTier parses a tier name, ignoring case and surrounding space.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	return t, nil
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierSimple, TierModerate, TierComplex:
		return true
	}
	return false
}

// Rank orders tiers by capability; unknown tiers rank -1.
func (t Tier) Rank() int {
	for i, known := range Tiers() {
		if t == known {
			return i
		}
	}
	return -1
}

func (t Tier) String() string {
	return string(t)
}

// Result is a classification outcome.
type Result struct {
	Tier      Tier   `json:"tier"`
	Rationale string `json:"rationale"`
}

// Classifier assigns a tier to a prompt. Classify never fails; internal
// errors degrade to a best-effort result.
type Classifier interface {
	Classify(ctx context.Context, prompt string) Result
}
