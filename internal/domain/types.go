// Package domain contains the canonical schema for clinimetric scale definitions,
// patient responses and computed assessment results.
//
// Every structure in this package is a plain in-memory value. Storage layouts and
// transport encodings are mapped onto these types at the ingestion boundary
// (see package ingest) and never inspected inside the scoring core.
package domain

import (
	"errors"
)

// QuestionType describes how an item is answered.
// Categorical types require a discrete set of response options.
type QuestionType string

const (
	QuestionLikert       QuestionType = "likert"
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionYesNo        QuestionType = "yes_no"
	QuestionFreeText     QuestionType = "free_text"
	QuestionNumeric      QuestionType = "numeric"
)

// RequiresOptions reports whether items of this type must resolve to a
// non-empty option set. An empty question type is treated as categorical.
func (q QuestionType) RequiresOptions() bool {
	switch q {
	case QuestionFreeText, QuestionNumeric:
		return false
	default:
		return true
	}
}

// IsValid validates the question type.
func (q QuestionType) IsValid() bool {
	switch q {
	case "", QuestionLikert, QuestionSingleChoice, QuestionYesNo, QuestionFreeText, QuestionNumeric:
		return true
	default:
		return false
	}
}

func (q QuestionType) String() string {
	return string(q)
}

// ScoringMethod describes how item scores combine into the total.
type ScoringMethod string

const (
	ScoringSum ScoringMethod = "sum"
)

// ScaleStatus is the lifecycle state of a scale definition.
type ScaleStatus string

const (
	StatusDraft       ScaleStatus = "draft"
	StatusValidated   ScaleStatus = "validated"
	StatusActive      ScaleStatus = "active"
	StatusSuperseded  ScaleStatus = "superseded"
	StatusDeactivated ScaleStatus = "deactivated"
)

// IsValid validates the lifecycle state.
func (s ScaleStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusValidated, StatusActive, StatusSuperseded, StatusDeactivated:
		return true
	default:
		return false
	}
}

// HasBeenActive reports whether a scale in this state has ever been activated.
// Superseded and deactivated scales stay scoreable so historic assessments can be recomputed.
func (s ScaleStatus) HasBeenActive() bool {
	switch s {
	case StatusActive, StatusSuperseded, StatusDeactivated:
		return true
	default:
		return false
	}
}

func (s ScaleStatus) String() string {
	return string(s)
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// IssueType identifies the validator rule that produced an issue.
type IssueType string

const (
	IssueMissingField       IssueType = "MISSING_FIELD"
	IssueItemCount          IssueType = "ITEM_COUNT"
	IssueItemNumbering      IssueType = "ITEM_NUMBERING"
	IssueItemText           IssueType = "ITEM_TEXT"
	IssueDuplicateItemID    IssueType = "DUPLICATE_ITEM_ID"
	IssueQuestionType       IssueType = "QUESTION_TYPE"
	IssueNoOptions          IssueType = "NO_OPTIONS"
	IssueDuplicateOption    IssueType = "DUPLICATE_OPTION_VALUE"
	IssueUnknownGroup       IssueType = "UNKNOWN_RESPONSE_GROUP"
	IssueSubscaleEmpty      IssueType = "SUBSCALE_EMPTY"
	IssueSubscaleItemRange  IssueType = "SUBSCALE_ITEM_RANGE"
	IssueSubscaleDuplicate  IssueType = "SUBSCALE_DUPLICATE_ITEM"
	IssueInvalidRange       IssueType = "INVALID_RANGE"
	IssueOverlap            IssueType = "OVERLAP"
	IssueGap                IssueType = "GAP"
	IssueRangeCoverage      IssueType = "RANGE_COVERAGE"
	IssueUnknownScope       IssueType = "UNKNOWN_SCOPE"
	IssueScoreRangeMismatch IssueType = "SCORE_RANGE_MISMATCH"
	IssueRuleFailure        IssueType = "RULE_FAILURE"
	IssueParse              IssueType = "PARSE_ERROR"
)

// FlagCode identifies a runtime soft failure recorded against a single response.
type FlagCode string

const (
	FlagUnmappableResponse FlagCode = "UNMAPPABLE_RESPONSE"
	FlagUnknownItem        FlagCode = "UNKNOWN_ITEM"
	FlagNoOptions          FlagCode = "NO_OPTIONS_AVAILABLE"
	FlagDuplicateResponse  FlagCode = "DUPLICATE_RESPONSE"
	FlagSkipped            FlagCode = "SKIPPED"
)

// AnomalyCode identifies a data-quality anomaly in an assessment result.
type AnomalyCode string

const (
	AnomalyNoInterpretationMatch AnomalyCode = "NO_INTERPRETATION_MATCH"
	AnomalyOverlappingRules      AnomalyCode = "OVERLAPPING_INTERPRETATION_RULES"
	AnomalyIncomplete            AnomalyCode = "INCOMPLETE_ASSESSMENT"
)

// Sentinel errors. Callers match with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrNoOptionsAvailable    = errors.New("no response options available")
	ErrNotApplicable         = errors.New("response options not applicable to question type")
	ErrUnmappableResponse    = errors.New("response value does not match any option")
	ErrUnknownItem           = errors.New("response references unknown item")
	ErrEmptyResponses        = errors.New("no responses supplied")
	ErrScaleNotActive        = errors.New("scale has never been activated")
	ErrInvalidTransition     = errors.New("invalid lifecycle transition")
	ErrValidationFailed      = errors.New("scale definition failed validation")
	ErrNoInterpretationMatch = errors.New("score does not fall into any interpretation range")
	ErrUnchangedContent      = errors.New("new version has identical content hash")
)
