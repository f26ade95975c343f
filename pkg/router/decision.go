package router

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zen-systems/tierroute/pkg/classifier"
)

// PreviewLength is the number of runes of the prompt kept in a record.
const PreviewLength = 50

// DecisionRecord is the persisted account of one routed prompt.
type DecisionRecord struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	PromptPreview string          `json:"prompt_preview"`
	Tier          classifier.Tier `json:"difficulty"`
	Rationale     string          `json:"reasoning"`
	Backend       string          `json:"model"`
	CostUSD       float64         `json:"cost"`
	TokensUsed    int             `json:"tokens"`
	LatencyMs     float64         `json:"latency_ms"`
}

// Decision is what Route returns: the record plus the generated text.
type Decision struct {
	Record DecisionRecord
	Text   string
	Model  string
}

var errInvalidRecord = errors.New("invalid decision record")

// Validate checks the record invariants.
func (r DecisionRecord) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: missing id", errInvalidRecord)
	case !r.Tier.Valid():
		return fmt.Errorf("%w: tier %q", errInvalidRecord, r.Tier)
	case r.Backend == "":
		return fmt.Errorf("%w: missing backend", errInvalidRecord)
	case r.CostUSD < 0 || math.IsNaN(r.CostUSD):
		return fmt.Errorf("%w: cost %v", errInvalidRecord, r.CostUSD)
	case r.TokensUsed < 0:
		return fmt.Errorf("%w: tokens %d", errInvalidRecord, r.TokensUsed)
	case r.LatencyMs < 0 || math.IsNaN(r.LatencyMs):
		return fmt.Errorf("%w: latency %v", errInvalidRecord, r.LatencyMs)
	}
	return nil
}

func promptPreview(prompt string) string {
	r := []rune(prompt)
	if len(r) <= PreviewLength {
		return prompt
	}
	return string(r[:PreviewLength])
}
