// Package aggregate applies the post-routing quality guards and turns the
// surviving provider result into a caller-facing food record.
package aggregate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/food-enrich/services/providers"
	"github.com/upb/food-enrich/services/routing"
)

// ConfidenceFloor is the confidence below which a result is flagged
const ConfidenceFloor = 0.3

// Guard tags
const (
	GuardReplacedPrefix     = "guard:replaced:"
	GuardWeakNoAlternative  = "guard:weak-and-no-alternative"
	TagConfidenceBelowFloor = "confidence:below-floor"
)

// AggregateResult is the final selection after guards
type AggregateResult struct {
	Final         *providers.ProviderResult                     `json:"final"`
	GuardsApplied []string                                      `json:"guards_applied"`
	Decision      routing.Decision                              `json:"decision"`
	WhyPicked     string                                        `json:"why_picked"`
	Tried         map[providers.ProviderID]routing.AttemptStats `json:"tried,omitempty"`
}

// Aggregator re-checks router output
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger}
}

// AggregateResults applies the weak-minimal guard against the router's
// candidate set and the confidence floor check. Running it on its own output
// (or on a result the router already guarded) changes nothing further.
func (a *Aggregator) AggregateResults(rr *routing.RouterResult) AggregateResult {
	out := AggregateResult{GuardsApplied: []string{}}
	if rr == nil || rr.Chosen == nil {
		out.Decision = routing.DecisionNoResults
		if rr != nil {
			out.WhyPicked = rr.WhyPicked
			out.Tried = rr.Tried
		}
		return out
	}

	out.Final = rr.Chosen
	out.Decision = rr.Decision
	out.WhyPicked = rr.WhyPicked
	out.Tried = rr.Tried

	switch {
	case rr.Decision == routing.DecisionGuard:
		out.GuardsApplied = append(out.GuardsApplied, GuardReplacedPrefix+string(rr.Chosen.Provider))
	case routing.IsWeakMinimal(rr.Chosen):
		if alt := routing.RichestAlternative(rr.Candidates, rr.Chosen); alt != nil {
			out.Final = alt
			out.Decision = routing.DecisionGuard
			out.WhyPicked = fmt.Sprintf(routing.ReasonGuardReplacedFmt, alt.Provider)
			out.GuardsApplied = append(out.GuardsApplied, GuardReplacedPrefix+string(alt.Provider))
		} else {
			out.GuardsApplied = append(out.GuardsApplied, GuardWeakNoAlternative)
		}
	}

	if out.Final.Confidence < ConfidenceFloor {
		out.GuardsApplied = append(out.GuardsApplied, TagConfidenceBelowFloor)
		a.logger.Info("chosen result below confidence floor",
			zap.String("provider", string(out.Final.Provider)),
			zap.Float64("confidence", out.Final.Confidence),
			zap.Float64("floor", ConfidenceFloor),
		)
	}

	return out
}
