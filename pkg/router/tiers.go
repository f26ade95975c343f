package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zen-systems/tierroute/pkg/classifier"
)

// TierTable maps each tier to a registered backend name.
type TierTable map[classifier.Tier]string

// DefaultTierTable is the three-tier table used without configuration.
func DefaultTierTable() TierTable {
	return TierTable{
		classifier.TierSimple:   "phi-3-mini",
		classifier.TierModerate: "gemini-flash",
		classifier.TierComplex:  "gpt-4o",
	}
}

// TierTableFromConfig parses the tiers section of the routing config.
func TierTableFromConfig(m map[string]string) (TierTable, error) {
	table := make(TierTable, len(m))
	for name, backend := range m {
		tier, err := classifier.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("tiers: %w", err)
		}
		if strings.TrimSpace(backend) == "" {
			return nil, fmt.Errorf("tiers: %s has no backend", tier)
		}
		table[tier] = strings.TrimSpace(backend)
	}
	if err := table.validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func (t TierTable) validate() error {
	if t[classifier.TierComplex] == "" {
		return errors.New("tiers: a complex backend is required")
	}
	return nil
}

// backendFor returns the backend for tier. A missing entry falls open to
// the complex backend and substituted is true.
func (t TierTable) backendFor(tier classifier.Tier) (name string, substituted bool) {
	if name, ok := t[tier]; ok && name != "" {
		return name, false
	}
	return t[classifier.TierComplex], true
}

// escalation lists the distinct backends of tiers above tier, in order.
func (t TierTable) escalation(tier classifier.Tier, from string) []string {
	seen := map[string]bool{from: true}
	var out []string
	for _, next := range classifier.Tiers() {
		if next.Rank() <= tier.Rank() {
			continue
		}
		name, ok := t[next]
		if !ok || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func (t TierTable) clone() TierTable {
	out := make(TierTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
