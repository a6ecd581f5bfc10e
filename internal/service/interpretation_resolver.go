package service

import (
	"github.com/clinimetric-scale-server/internal/domain"
)

// InterpretationResolver maps a score onto a severity band.
type InterpretationResolver struct{}

// InterpretationOutcome is the result of resolving one score.
// Interpretation is nil when no rule matched.
type InterpretationOutcome struct {
	Interpretation *domain.Interpretation
	Matched        bool
	// Matches counts every rule containing the score; more than one means the
	// rule set overlaps and the lowest-starting rule was chosen.
	Matches int
}

// Overlapping reports whether more than one rule contained the score.
func (o InterpretationOutcome) Overlapping() bool {
	return o.Matches > 1
}

// NewInterpretationResolver creates a new interpretation resolver
func NewInterpretationResolver() *InterpretationResolver {
	return &InterpretationResolver{}
}

// Interpret selects the first rule, ascending by MinScore, with MinScore <= score <= MaxScore.
// It never fails; a score outside every range yields an outcome with Matched false.
func (r *InterpretationResolver) Interpret(score float64, rules []domain.InterpretationRule) InterpretationOutcome {
	var outcome InterpretationOutcome
	for _, rule := range sortedRules(rules) {
		if score < rule.MinScore || score > rule.MaxScore {
			continue
		}
		outcome.Matches++
		if outcome.Matched {
			continue
		}
		outcome.Matched = true
		outcome.Interpretation = &domain.Interpretation{
			Label:           rule.Label,
			Severity:        rule.Severity,
			Description:     rule.Description,
			Recommendations: rule.Recommendations,
			MinScore:        rule.MinScore,
			MaxScore:        rule.MaxScore,
		}
	}
	return outcome
}
