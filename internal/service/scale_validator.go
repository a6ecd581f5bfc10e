package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

// ScaleDefinitionValidator gates activation of scale definitions.
// It runs every rule against a definition and never stops at the first problem,
// so one pass yields a complete report for content authors.
type ScaleDefinitionValidator struct {
	logger   *logrus.Logger
	resolver *ResponseOptionResolver
	rules    []ValidationRule
}

// ValidationRule is one declarative check: a predicate, a fixed severity and
// the issue type its findings are reported under.
type ValidationRule struct {
	Name        string
	Type        domain.IssueType
	Severity    domain.Severity
	Description string
	Check       func(scale *domain.Scale, resolver *ResponseOptionResolver) []Finding
}

// Finding is a single rule violation before severity is attached.
type Finding struct {
	Message    string
	ItemNumber int
	SubscaleID string
	Range      string
}

// NewScaleDefinitionValidator creates a validator with the default rule set
func NewScaleDefinitionValidator(logger *logrus.Logger, resolver *ResponseOptionResolver) *ScaleDefinitionValidator {
	if resolver == nil {
		resolver = NewResponseOptionResolver()
	}
	return &ScaleDefinitionValidator{
		logger:   logger,
		resolver: resolver,
		rules:    defaultValidationRules(),
	}
}

// NewScaleDefinitionValidatorWithRules creates a validator that runs only the given rules
func NewScaleDefinitionValidatorWithRules(logger *logrus.Logger, resolver *ResponseOptionResolver, rules []ValidationRule) *ScaleDefinitionValidator {
	v := NewScaleDefinitionValidator(logger, resolver)
	v.rules = rules
	return v
}

// Rules returns the rules in evaluation order.
func (v *ScaleDefinitionValidator) Rules() []ValidationRule {
	out := make([]ValidationRule, len(v.rules))
	copy(out, v.rules)
	return out
}

// Validate runs every rule and assembles the report.
// IsValid is true iff no rule produced an error; warnings never block activation.
func (v *ScaleDefinitionValidator) Validate(scale *domain.Scale) *domain.ValidationReport {
	report := &domain.ValidationReport{
		Errors:   []domain.ValidationIssue{},
		Warnings: []domain.ValidationIssue{},
	}
	if scale == nil {
		report.Errors = append(report.Errors, domain.ValidationIssue{
			Type:     domain.IssueMissingField,
			Severity: domain.SeverityError,
			Message:  "scale definition is missing",
		})
		return report
	}

	report.ScaleID = scale.ID
	report.ContentHash = domain.ContentHash(scale)
	report.Stats = collectStats(scale)

	v.logger.WithField("scale_id", scale.ID).Debug("Validating scale definition")

	for _, rule := range v.rules {
		for _, issue := range v.evaluate(rule, scale) {
			if issue.Severity == domain.SeverityError {
				report.Errors = append(report.Errors, issue)
			} else {
				report.Warnings = append(report.Warnings, issue)
			}
		}
	}

	report.IsValid = len(report.Errors) == 0

	v.logger.WithFields(logrus.Fields{
		"scale_id": scale.ID,
		"is_valid": report.IsValid,
		"errors":   len(report.Errors),
		"warnings": len(report.Warnings),
	}).Info("Completed scale definition validation")

	return report
}

// EvaluateRule runs a single named rule, mainly for authoring tools and tests.
func (v *ScaleDefinitionValidator) EvaluateRule(name string, scale *domain.Scale) ([]domain.ValidationIssue, error) {
	for _, rule := range v.rules {
		if rule.Name == name {
			return v.evaluate(rule, scale), nil
		}
	}
	return nil, fmt.Errorf("unknown validation rule: %s", name)
}

// evaluate runs one rule. A panicking rule is reported as an error issue and
// the remaining rules still run.
func (v *ScaleDefinitionValidator) evaluate(rule ValidationRule, scale *domain.Scale) (issues []domain.ValidationIssue) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.WithFields(logrus.Fields{
				"scale_id": scale.ID,
				"rule":     rule.Name,
				"panic":    r,
			}).Warn("Validation rule failed")
			issues = []domain.ValidationIssue{{
				Type:     domain.IssueRuleFailure,
				Severity: domain.SeverityError,
				Message:  fmt.Sprintf("rule %s could not be evaluated: %v", rule.Name, r),
			}}
		}
	}()

	for _, f := range rule.Check(scale, v.resolver) {
		issues = append(issues, domain.ValidationIssue{
			Type:       rule.Type,
			Severity:   rule.Severity,
			Message:    f.Message,
			ItemNumber: f.ItemNumber,
			SubscaleID: f.SubscaleID,
			Range:      f.Range,
		})
	}
	return issues
}

func collectStats(scale *domain.Scale) domain.ValidationStats {
	options := len(scale.ResponseOptions)
	for _, g := range scale.ResponseGroups {
		options += len(g.Options)
	}
	for _, item := range scale.Items {
		options += len(item.Options)
	}
	return domain.ValidationStats{
		Items:               len(scale.Items),
		Subscales:           len(scale.Subscales),
		InterpretationRules: len(scale.InterpretationRules),
		ResponseOptions:     options,
	}
}
