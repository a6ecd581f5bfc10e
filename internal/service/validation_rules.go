package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/clinimetric-scale-server/internal/domain"
)

// Rule names. They are stable identifiers for EvaluateRule.
const (
	RuleBasicFields           = "basic_fields"
	RuleItemCount             = "item_count"
	RuleItemNumbering         = "item_numbering"
	RuleItemText              = "item_text"
	RuleItemIDs               = "item_ids"
	RuleQuestionType          = "question_type"
	RuleOptionCoverage        = "option_coverage"
	RuleDuplicateOptions      = "duplicate_option_values"
	RuleResponseGroupRef      = "response_group_reference"
	RuleSubscaleEmpty         = "subscale_empty"
	RuleSubscaleItemRange     = "subscale_item_range"
	RuleSubscaleDuplicate     = "subscale_duplicate_items"
	RuleInterpretationRange   = "interpretation_range"
	RuleInterpretationScope   = "interpretation_scope"
	RuleInterpretationOverlap = "interpretation_overlap"
	RuleInterpretationGap     = "interpretation_gap"
	RuleInterpretationCover   = "interpretation_coverage"
	RuleScoreRange            = "score_range_consistency"
)

func defaultValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Name:        RuleBasicFields,
			Type:        domain.IssueMissingField,
			Severity:    domain.SeverityError,
			Description: "id, name, abbreviation and description must be present",
			Check:       checkBasicFields,
		},
		{
			Name:        RuleItemCount,
			Type:        domain.IssueItemCount,
			Severity:    domain.SeverityWarning,
			Description: "totalItems should equal the number of items",
			Check:       checkItemCount,
		},
		{
			Name:        RuleItemNumbering,
			Type:        domain.IssueItemNumbering,
			Severity:    domain.SeverityError,
			Description: "item numbers must form the contiguous sequence 1..N",
			Check:       checkItemNumbering,
		},
		{
			Name:        RuleItemText,
			Type:        domain.IssueItemText,
			Severity:    domain.SeverityError,
			Description: "every item needs display text",
			Check:       checkItemText,
		},
		{
			Name:        RuleItemIDs,
			Type:        domain.IssueDuplicateItemID,
			Severity:    domain.SeverityError,
			Description: "every item needs a unique id",
			Check:       checkItemIDs,
		},
		{
			Name:        RuleQuestionType,
			Type:        domain.IssueQuestionType,
			Severity:    domain.SeverityError,
			Description: "question types must be known",
			Check:       checkQuestionType,
		},
		{
			Name:        RuleOptionCoverage,
			Type:        domain.IssueNoOptions,
			Severity:    domain.SeverityError,
			Description: "categorical items must resolve to at least one response option",
			Check:       checkOptionCoverage,
		},
		{
			Name:        RuleDuplicateOptions,
			Type:        domain.IssueDuplicateOption,
			Severity:    domain.SeverityError,
			Description: "option values within one set must be distinct",
			Check:       checkDuplicateOptions,
		},
		{
			Name:        RuleResponseGroupRef,
			Type:        domain.IssueUnknownGroup,
			Severity:    domain.SeverityWarning,
			Description: "response group references should name a declared group",
			Check:       checkResponseGroupRefs,
		},
		{
			Name:        RuleSubscaleEmpty,
			Type:        domain.IssueSubscaleEmpty,
			Severity:    domain.SeverityError,
			Description: "subscales must contain items",
			Check:       checkSubscaleEmpty,
		},
		{
			Name:        RuleSubscaleItemRange,
			Type:        domain.IssueSubscaleItemRange,
			Severity:    domain.SeverityError,
			Description: "subscale members must lie within 1..totalItems",
			Check:       checkSubscaleItemRange,
		},
		{
			Name:        RuleSubscaleDuplicate,
			Type:        domain.IssueSubscaleDuplicate,
			Severity:    domain.SeverityWarning,
			Description: "subscale members should be listed once",
			Check:       checkSubscaleDuplicates,
		},
		{
			Name:        RuleInterpretationRange,
			Type:        domain.IssueInvalidRange,
			Severity:    domain.SeverityError,
			Description: "minScore must not exceed maxScore",
			Check:       checkInterpretationRanges,
		},
		{
			Name:        RuleInterpretationScope,
			Type:        domain.IssueUnknownScope,
			Severity:    domain.SeverityError,
			Description: "subscale-scoped rules must name a declared subscale",
			Check:       checkInterpretationScopes,
		},
		{
			Name:        RuleInterpretationOverlap,
			Type:        domain.IssueOverlap,
			Severity:    domain.SeverityError,
			Description: "rules of one scope must not overlap",
			Check:       checkInterpretationOverlap,
		},
		{
			Name:        RuleInterpretationGap,
			Type:        domain.IssueGap,
			Severity:    domain.SeverityWarning,
			Description: "adjacent rules should leave no gap",
			Check:       checkInterpretationGaps,
		},
		{
			Name:        RuleInterpretationCover,
			Type:        domain.IssueRangeCoverage,
			Severity:    domain.SeverityWarning,
			Description: "total-score rules should span the declared score range",
			Check:       checkInterpretationCoverage,
		},
		{
			Name:        RuleScoreRange,
			Type:        domain.IssueScoreRangeMismatch,
			Severity:    domain.SeverityWarning,
			Description: "theoretical maximum should equal scoreRangeMax",
			Check:       checkScoreRange,
		},
	}
}

func checkBasicFields(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	required := []struct {
		name  string
		value string
	}{
		{"id", scale.ID},
		{"name", scale.Name},
		{"abbreviation", scale.Abbreviation},
		{"description", scale.Description},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			findings = append(findings, Finding{Message: fmt.Sprintf("scale %s is required", field.name)})
		}
	}
	return findings
}

func checkItemCount(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	if scale.TotalItems == len(scale.Items) {
		return nil
	}
	return []Finding{{
		Message: fmt.Sprintf("totalItems is %d but %d items are defined", scale.TotalItems, len(scale.Items)),
	}}
}

func checkItemNumbering(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	if len(scale.Items) == 0 {
		return []Finding{{Message: "scale defines no items"}}
	}

	var findings []Finding
	seen := make(map[int]bool, len(scale.Items))
	for _, item := range scale.Items {
		if seen[item.Number] {
			findings = append(findings, Finding{
				ItemNumber: item.Number,
				Message:    fmt.Sprintf("item number %d is used more than once", item.Number),
			})
		}
		seen[item.Number] = true
	}

	expected := len(scale.Items)
	if scale.TotalItems > expected {
		expected = scale.TotalItems
	}
	var missing []string
	for n := 1; n <= expected; n++ {
		if !seen[n] {
			missing = append(missing, fmt.Sprint(n))
		}
	}
	if len(missing) > 0 {
		findings = append(findings, Finding{
			Message: fmt.Sprintf("item numbers are not contiguous from 1 to %d: missing %s", expected, strings.Join(missing, ", ")),
		})
	}

	for _, n := range sortedKeys(seen) {
		if n < 1 || n > expected {
			findings = append(findings, Finding{
				ItemNumber: n,
				Message:    fmt.Sprintf("item number %d is outside 1..%d", n, expected),
			})
		}
	}
	return findings
}

func checkItemText(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	for _, item := range scale.Items {
		if strings.TrimSpace(item.Text) == "" {
			findings = append(findings, Finding{
				ItemNumber: item.Number,
				Message:    fmt.Sprintf("item %d has no text", item.Number),
			})
		}
	}
	return findings
}

func checkItemIDs(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	seen := make(map[string]int, len(scale.Items))
	for _, item := range scale.Items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			findings = append(findings, Finding{
				ItemNumber: item.Number,
				Message:    fmt.Sprintf("item %d has no id", item.Number),
			})
			continue
		}
		if first, ok := seen[id]; ok {
			findings = append(findings, Finding{
				ItemNumber: item.Number,
				Message:    fmt.Sprintf("item %d reuses id %q of item %d", item.Number, id, first),
			})
			continue
		}
		seen[id] = item.Number
	}
	return findings
}

func checkQuestionType(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	for _, item := range scale.Items {
		if !item.QuestionType.IsValid() {
			findings = append(findings, Finding{
				ItemNumber: item.Number,
				Message:    fmt.Sprintf("item %d has unknown question type %q", item.Number, item.QuestionType),
			})
		}
	}
	return findings
}

func checkOptionCoverage(scale *domain.Scale, resolver *ResponseOptionResolver) []Finding {
	var findings []Finding
	for i := range scale.Items {
		item := &scale.Items[i]
		if !item.QuestionType.RequiresOptions() {
			continue
		}
		if _, err := resolver.Resolve(item, scale); errors.Is(err, domain.ErrNoOptionsAvailable) {
			findings = append(findings, Finding{
				ItemNumber: item.Number,
				Message:    fmt.Sprintf("item %d requires response options but none resolve from item, group or global scope", item.Number),
			})
		}
	}
	return findings
}

func checkDuplicateOptions(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	dup := func(options []domain.ResponseOption) []string {
		var values []string
		for i := 1; i < len(options); i++ {
			for j := 0; j < i; j++ {
				if options[i].Value.Equal(options[j].Value) {
					values = append(values, options[i].Value.String())
					break
				}
			}
		}
		return values
	}

	for _, v := range dup(scale.ResponseOptions) {
		findings = append(findings, Finding{Message: fmt.Sprintf("global option value %q is defined more than once", v)})
	}
	for _, g := range scale.ResponseGroups {
		for _, v := range dup(g.Options) {
			findings = append(findings, Finding{Message: fmt.Sprintf("response group %s defines option value %q more than once", g.Key, v)})
		}
	}
	for _, item := range scale.Items {
		for _, v := range dup(item.Options) {
			findings = append(findings, Finding{
				ItemNumber: item.Number,
				Message:    fmt.Sprintf("item %d defines option value %q more than once", item.Number, v),
			})
		}
	}
	return findings
}

func checkResponseGroupRefs(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	for _, item := range scale.Items {
		if item.ResponseGroup == "" {
			continue
		}
		if _, ok := scale.ResponseGroupByKey(item.ResponseGroup); !ok {
			findings = append(findings, Finding{
				ItemNumber: item.Number,
				Message:    fmt.Sprintf("item %d references unknown response group %q", item.Number, item.ResponseGroup),
			})
		}
	}
	return findings
}

func checkSubscaleEmpty(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	for _, sub := range scale.Subscales {
		if len(sub.Items) == 0 {
			findings = append(findings, Finding{
				SubscaleID: sub.ID,
				Message:    fmt.Sprintf("subscale %s has no items", sub.ID),
			})
		}
	}
	return findings
}

func checkSubscaleItemRange(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	limit := scale.ExpectedItems()
	for _, sub := range scale.Subscales {
		for _, n := range sub.Items {
			if n < 1 || n > limit {
				findings = append(findings, Finding{
					SubscaleID: sub.ID,
					ItemNumber: n,
					Message:    fmt.Sprintf("subscale %s references item %d outside 1..%d", sub.ID, n, limit),
				})
			}
		}
	}
	return findings
}

func checkSubscaleDuplicates(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	for _, sub := range scale.Subscales {
		seen := make(map[int]bool, len(sub.Items))
		for _, n := range sub.Items {
			if seen[n] {
				findings = append(findings, Finding{
					SubscaleID: sub.ID,
					ItemNumber: n,
					Message:    fmt.Sprintf("subscale %s lists item %d more than once", sub.ID, n),
				})
			}
			seen[n] = true
		}
	}
	return findings
}

func checkInterpretationRanges(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	for _, r := range scale.InterpretationRules {
		if r.MinScore > r.MaxScore {
			findings = append(findings, Finding{
				SubscaleID: r.SubscaleID,
				Range:      formatRange(r),
				Message:    fmt.Sprintf("rule %q has minScore greater than maxScore", r.Label),
			})
		}
	}
	return findings
}

func checkInterpretationScopes(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	for _, r := range scale.InterpretationRules {
		if r.SubscaleID == "" {
			continue
		}
		if _, ok := scale.SubscaleByID(r.SubscaleID); !ok {
			findings = append(findings, Finding{
				SubscaleID: r.SubscaleID,
				Range:      formatRange(r),
				Message:    fmt.Sprintf("rule %q is scoped to unknown subscale %s", r.Label, r.SubscaleID),
			})
		}
	}
	return findings
}

// Overlap and gap checks compare each rule, in minScore order, with the earlier
// rule that reaches highest.
func checkInterpretationOverlap(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	for _, scope := range ruleScopes(scale) {
		sweepRules(scale.RulesForScope(scope), func(reach, next domain.InterpretationRule) {
			if next.MinScore <= reach.MaxScore {
				findings = append(findings, Finding{
					SubscaleID: scope,
					Range:      formatRange(reach) + " / " + formatRange(next),
					Message:    fmt.Sprintf("%s rules %q and %q overlap", scopeName(scope), reach.Label, next.Label),
				})
			}
		})
	}
	return findings
}

func checkInterpretationGaps(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	var findings []Finding
	for _, scope := range ruleScopes(scale) {
		sweepRules(scale.RulesForScope(scope), func(reach, next domain.InterpretationRule) {
			if next.MinScore <= reach.MaxScore {
				return
			}
			if reach.MaxScore+1 != next.MinScore {
				findings = append(findings, Finding{
					SubscaleID: scope,
					Range:      formatRange(reach) + " / " + formatRange(next),
					Message: fmt.Sprintf("%s rules leave a gap between %s and %s",
						scopeName(scope), formatScore(reach.MaxScore), formatScore(next.MinScore)),
				})
			}
		})
	}
	return findings
}

// sweepRules calls visit for each rule after the first, in minScore order,
// paired with the earlier rule that has the highest maxScore.
func sweepRules(rules []domain.InterpretationRule, visit func(reach, next domain.InterpretationRule)) {
	sorted := sortedRules(rules)
	if len(sorted) == 0 {
		return
	}
	reach := sorted[0]
	for _, next := range sorted[1:] {
		visit(reach, next)
		if next.MaxScore > reach.MaxScore {
			reach = next
		}
	}
}

func checkInterpretationCoverage(scale *domain.Scale, _ *ResponseOptionResolver) []Finding {
	rules := sortedRules(scale.RulesForScope(""))
	if len(rules) == 0 {
		return []Finding{{Message: "no interpretation rules are defined for the total score"}}
	}

	var findings []Finding
	if rules[0].MinScore > scale.ScoreRangeMin {
		findings = append(findings, Finding{
			Range:   formatRange(rules[0]),
			Message: fmt.Sprintf("lowest rule starts at %s but scoreRangeMin is %s", formatScore(rules[0].MinScore), formatScore(scale.ScoreRangeMin)),
		})
	}
	highest := rules[0].MaxScore
	for _, r := range rules[1:] {
		if r.MaxScore > highest {
			highest = r.MaxScore
		}
	}
	if scale.ScoreRangeMax > 0 && highest < scale.ScoreRangeMax {
		findings = append(findings, Finding{
			Message: fmt.Sprintf("highest rule ends at %s but scoreRangeMax is %s", formatScore(highest), formatScore(scale.ScoreRangeMax)),
		})
	}
	return findings
}

func checkScoreRange(scale *domain.Scale, resolver *ResponseOptionResolver) []Finding {
	maxOption, ok := ScaleMaxOptionScore(scale, resolver)
	if !ok {
		return nil
	}
	theoretical := maxOption * float64(scale.ExpectedItems())
	if theoretical == scale.ScoreRangeMax {
		return nil
	}
	return []Finding{{
		Message: fmt.Sprintf("theoretical maximum %s (%s x %d items) differs from scoreRangeMax %s",
			formatScore(theoretical), formatScore(maxOption), scale.ExpectedItems(), formatScore(scale.ScoreRangeMax)),
	}}
}

// ruleScopes lists "" for the total score followed by each distinct subscale
// scope in first-seen order.
func ruleScopes(scale *domain.Scale) []string {
	scopes := []string{""}
	seen := map[string]bool{"": true}
	for _, r := range scale.InterpretationRules {
		if !seen[r.SubscaleID] {
			seen[r.SubscaleID] = true
			scopes = append(scopes, r.SubscaleID)
		}
	}
	return scopes
}

// sortedRules returns a copy of rules ordered ascending by MinScore.
func sortedRules(rules []domain.InterpretationRule) []domain.InterpretationRule {
	out := make([]domain.InterpretationRule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinScore < out[j].MinScore
	})
	return out
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func scopeName(scope string) string {
	if scope == "" {
		return "total score"
	}
	return "subscale " + scope
}

func formatRange(r domain.InterpretationRule) string {
	return formatScore(r.MinScore) + "-" + formatScore(r.MaxScore)
}

func formatScore(v float64) string {
	return domain.NewValue(v).String()
}
