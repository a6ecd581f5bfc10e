package domain

import (
	"time"
)

// Scale Definition Models

// Scale is a versioned clinical measurement instrument definition.
type Scale struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Abbreviation  string        `json:"abbreviation" yaml:"abbreviation"`
	Description   string        `json:"description" yaml:"description"`
	Category      string        `json:"category,omitempty" yaml:"category,omitempty"`
	TotalItems    int           `json:"totalItems" yaml:"totalItems"`
	ScoringMethod ScoringMethod `json:"scoringMethod,omitempty" yaml:"scoringMethod,omitempty"`
	ScoreRangeMin float64       `json:"scoreRangeMin" yaml:"scoreRangeMin"`
	ScoreRangeMax float64       `json:"scoreRangeMax" yaml:"scoreRangeMax"`

	Items               []Item               `json:"items" yaml:"items"`
	ResponseGroups      []ResponseGroup      `json:"responseGroups,omitempty" yaml:"responseGroups,omitempty"`
	ResponseOptions     []ResponseOption     `json:"responseOptions,omitempty" yaml:"responseOptions,omitempty"`
	Subscales           []Subscale           `json:"subscales,omitempty" yaml:"subscales,omitempty"`
	InterpretationRules []InterpretationRule `json:"interpretationRules,omitempty" yaml:"interpretationRules,omitempty"`

	// Lifecycle metadata, excluded from the content hash.
	Status      ScaleStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Version     int         `json:"version,omitempty" yaml:"version,omitempty"`
	ContentHash string      `json:"contentHash,omitempty" yaml:"contentHash,omitempty"`
	CreatedAt   time.Time   `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt   time.Time   `json:"updatedAt,omitempty" yaml:"-"`
}

// Item is a single question within a scale.
type Item struct {
	ID            string       `json:"id" yaml:"id"`
	Number        int          `json:"number" yaml:"number"`
	Text          string       `json:"text" yaml:"text"`
	QuestionType  QuestionType `json:"questionType,omitempty" yaml:"questionType,omitempty"`
	ResponseGroup string       `json:"responseGroup,omitempty" yaml:"responseGroup,omitempty"`
	ReverseScored bool         `json:"reverseScored,omitempty" yaml:"reverseScored,omitempty"`
	Alert         *ItemAlert   `json:"alert,omitempty" yaml:"alert,omitempty"`

	// Item-specific options take precedence over group and global options.
	Options []ResponseOption `json:"options,omitempty" yaml:"options,omitempty"`
}

// ItemAlert marks an item whose answer needs clinical attention,
// e.g. a suicidality question, once its effective score reaches Threshold.
type ItemAlert struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Message   string  `json:"message" yaml:"message"`
}

// ResponseOption is a (value, label, score) triple.
type ResponseOption struct {
	Value Value   `json:"value" yaml:"value"`
	Label string  `json:"label" yaml:"label"`
	Score float64 `json:"score" yaml:"score"`
	Order int     `json:"order,omitempty" yaml:"order,omitempty"`
}

// ResponseGroup is a named, ordered bundle of options shared by a subset of items.
type ResponseGroup struct {
	Key     string           `json:"key" yaml:"key"`
	Name    string           `json:"name,omitempty" yaml:"name,omitempty"`
	Options []ResponseOption `json:"options" yaml:"options"`
}

// Subscale is a named subset of item numbers scored independently of the total.
type Subscale struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Items       []int    `json:"items" yaml:"items"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Reliability *float64 `json:"reliability,omitempty" yaml:"reliability,omitempty"`
}

// InterpretationRule maps the closed range [MinScore, MaxScore] to a severity label.
// An empty SubscaleID scopes the rule to the total score.
type InterpretationRule struct {
	MinScore        float64  `json:"minScore" yaml:"minScore"`
	MaxScore        float64  `json:"maxScore" yaml:"maxScore"`
	Label           string   `json:"label" yaml:"label"`
	Severity        string   `json:"severity,omitempty" yaml:"severity,omitempty"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Recommendations []string `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	SubscaleID      string   `json:"subscaleId,omitempty" yaml:"subscaleId,omitempty"`
}

// ItemByNumber returns the item with the given sequential number.
func (s *Scale) ItemByNumber(number int) (*Item, bool) {
	for i := range s.Items {
		if s.Items[i].Number == number {
			return &s.Items[i], true
		}
	}
	return nil, false
}

// ResponseGroupByKey looks up a response group.
func (s *Scale) ResponseGroupByKey(key string) (*ResponseGroup, bool) {
	for i := range s.ResponseGroups {
		if s.ResponseGroups[i].Key == key {
			return &s.ResponseGroups[i], true
		}
	}
	return nil, false
}

// SubscaleByID looks up a subscale.
func (s *Scale) SubscaleByID(id string) (*Subscale, bool) {
	for i := range s.Subscales {
		if s.Subscales[i].ID == id {
			return &s.Subscales[i], true
		}
	}
	return nil, false
}

// RulesForScope returns the interpretation rules for the total score (scope "")
// or for the given subscale, in declaration order.
func (s *Scale) RulesForScope(subscaleID string) []InterpretationRule {
	var rules []InterpretationRule
	for _, r := range s.InterpretationRules {
		if r.SubscaleID == subscaleID {
			rules = append(rules, r)
		}
	}
	return rules
}

// ExpectedItems is the denominator for completion math.
func (s *Scale) ExpectedItems() int {
	if s.TotalItems > 0 {
		return s.TotalItems
	}
	return len(s.Items)
}

// Input Models

// Response is one submitted answer. It is never persisted by the core.
type Response struct {
	ItemID     string `json:"itemId"`
	Value      Value  `json:"value"`
	WasSkipped bool   `json:"wasSkipped,omitempty"`
}

// Output Models

// OptionSource records which of the three scopes supplied an item's options.
type OptionSource string

const (
	SourceItem   OptionSource = "item"
	SourceGroup  OptionSource = "group"
	SourceGlobal OptionSource = "global"
)

// OptionSet is the ordered set of options that applies to one item.
type OptionSet struct {
	Source  OptionSource     `json:"source"`
	Options []ResponseOption `json:"options"`
}

// MaxScore returns the highest option score in the set.
func (o OptionSet) MaxScore() float64 {
	max := 0.0
	for i, opt := range o.Options {
		if i == 0 || opt.Score > max {
			max = opt.Score
		}
	}
	return max
}

// ItemScore is the effective score of one mapped response.
type ItemScore struct {
	ItemID         string  `json:"itemId"`
	ItemNumber     int     `json:"itemNumber"`
	NominalScore   float64 `json:"nominalScore"`
	EffectiveScore float64 `json:"effectiveScore"`
	Reversed       bool    `json:"reversed,omitempty"`
}

// ItemFlag records a soft failure for a single response.
type ItemFlag struct {
	ItemID     string   `json:"itemId"`
	ItemNumber int      `json:"itemNumber,omitempty"`
	Code       FlagCode `json:"code"`
	Message    string   `json:"message"`
}

// ScoreResult is the output of the scoring engine.
type ScoreResult struct {
	Raw                  float64     `json:"raw"`
	ValidResponses       int         `json:"validResponses"`
	TotalItems           int         `json:"totalItems"`
	CompletionPercentage float64     `json:"completionPercentage"`
	ItemScores           []ItemScore `json:"itemScores"`
	Flags                []ItemFlag  `json:"flags,omitempty"`
}

// EffectiveScores indexes item scores by item number.
func (r *ScoreResult) EffectiveScores() map[int]float64 {
	scores := make(map[int]float64, len(r.ItemScores))
	for _, s := range r.ItemScores {
		scores[s.ItemNumber] = s.EffectiveScore
	}
	return scores
}

// TotalScore is the total-score block of an assessment result.
type TotalScore struct {
	Raw                  float64 `json:"raw"`
	ValidResponses       int     `json:"validResponses"`
	CompletionPercentage float64 `json:"completionPercentage"`
}

// Interpretation is the severity band a score falls into.
type Interpretation struct {
	Label           string   `json:"label"`
	Severity        string   `json:"severity,omitempty"`
	Description     string   `json:"description,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	MinScore        float64  `json:"minScore"`
	MaxScore        float64  `json:"maxScore"`
}

// SubscaleScore is the aggregated result for one subscale.
type SubscaleScore struct {
	SubscaleID     string          `json:"subscaleId"`
	Name           string          `json:"name"`
	Score          float64         `json:"score"`
	MaxScore       float64         `json:"maxScore"`
	Percentile     float64         `json:"percentile"`
	AnsweredItems  int             `json:"answeredItems"`
	MissingItems   []int           `json:"missingItems,omitempty"`
	Interpretation *Interpretation `json:"interpretation,omitempty"`
}

// Anomaly is a data-quality annotation on an assessment result.
type Anomaly struct {
	Code       AnomalyCode `json:"code"`
	Scope      string      `json:"scope"`
	Message    string      `json:"message"`
	Score      float64     `json:"score"`
	SubscaleID string      `json:"subscaleId,omitempty"`
}

// TriggeredAlert is raised when an alert item reaches its threshold.
type TriggeredAlert struct {
	ItemID     string  `json:"itemId"`
	ItemNumber int     `json:"itemNumber"`
	Score      float64 `json:"score"`
	Message    string  `json:"message"`
}

// AssessmentResult is the complete, reproducible output of processing one assessment.
type AssessmentResult struct {
	ScaleID        string           `json:"scaleId"`
	ContentHash    string           `json:"contentHash"`
	TotalScore     TotalScore       `json:"totalScore"`
	SubscaleScores []SubscaleScore  `json:"subscaleScores"`
	Interpretation *Interpretation  `json:"interpretation"`
	Complete       bool             `json:"complete"`
	ItemScores     []ItemScore      `json:"itemScores"`
	Flags          []ItemFlag       `json:"flags,omitempty"`
	Anomalies      []Anomaly        `json:"anomalies,omitempty"`
	Alerts         []TriggeredAlert `json:"alerts,omitempty"`
	ComputedAt     time.Time        `json:"computedAt"`
}

// Validation Report Models

// ValidationIssue is one finding of the scale definition validator.
type ValidationIssue struct {
	Type       IssueType `json:"type"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	ItemNumber int       `json:"itemNumber,omitempty"`
	SubscaleID string    `json:"subscaleId,omitempty"`
	Range      string    `json:"range,omitempty"`
}

// ValidationStats summarises the size of a definition.
type ValidationStats struct {
	Items               int `json:"items"`
	Subscales           int `json:"subscales"`
	InterpretationRules int `json:"interpretationRules"`
	ResponseOptions     int `json:"responseOptions"`
}

// ValidationReport is the exhaustive diagnostic for one scale definition.
type ValidationReport struct {
	ScaleID     string            `json:"scaleId"`
	Source      string            `json:"source,omitempty"`
	ContentHash string            `json:"contentHash,omitempty"`
	IsValid     bool              `json:"isValid"`
	Errors      []ValidationIssue `json:"errors"`
	Warnings    []ValidationIssue `json:"warnings"`
	Stats       ValidationStats   `json:"stats"`
}

// HasIssue reports whether the report contains an issue of the given type.
func (r *ValidationReport) HasIssue(t IssueType) bool {
	return r.CountIssues(t) > 0
}

// CountIssues counts errors and warnings of the given type.
func (r *ValidationReport) CountIssues(t IssueType) int {
	n := 0
	for _, e := range r.Errors {
		if e.Type == t {
			n++
		}
	}
	for _, w := range r.Warnings {
		if w.Type == t {
			n++
		}
	}
	return n
}

// BatchReport aggregates validation of many definitions.
type BatchReport struct {
	Total       int                 `json:"total"`
	Valid       int                 `json:"valid"`
	Invalid     int                 `json:"invalid"`
	SuccessRate float64             `json:"successRate"`
	Reports     []*ValidationReport `json:"reports"`
}
