// Package ingest maps external scale definitions and response submissions onto
// the canonical domain schema.
//
// Source documents come in JSON or YAML and use both camelCase and snake_case
// field names; subscale item lists may arrive as arrays or as text blobs such
// as "1,2,3". All of that is resolved here through explicit alias tables so the
// scoring core only ever sees domain types.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clinimetric-scale-server/internal/domain"
)

// Format is a source document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// IsValid validates the format.
func (f Format) IsValid() bool {
	return f == FormatJSON || f == FormatYAML
}

// DetectFormat picks a format from a file extension, defaulting to JSON.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeScale parses one scale definition document.
func DecodeScale(data []byte, format Format) (*domain.Scale, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	return MapScale(doc)
}

// Entry is one definition from a multi-definition document. Err is set when
// the element could not be mapped; ID is then a best-effort read of its "id".
type Entry struct {
	Source string
	ID     string
	Scale  *domain.Scale
	Err    error
}

// DecodeScales parses a document holding either a single definition, a list of
// definitions, or an object with a "scales" list. Any unmappable element fails
// the whole document; use DecodeScaleEntries to keep the others.
func DecodeScales(data []byte, format Format) ([]*domain.Scale, error) {
	entries, err := DecodeScaleEntries(data, format)
	if err != nil {
		return nil, err
	}
	scales := make([]*domain.Scale, 0, len(entries))
	for _, e := range entries {
		if e.Err != nil {
			return nil, e.Err
		}
		scales = append(scales, e.Scale)
	}
	return scales, nil
}

// DecodeScaleEntries is DecodeScales with per-element failures. The error is
// non-nil only when the document itself cannot be parsed.
func DecodeScaleEntries(data []byte, format Format) ([]Entry, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}

	if m, ok := asMap(doc); ok {
		if list, found := m["scales"]; found {
			doc = list
		}
	}

	elems, isList := doc.([]any)
	if !isList {
		elems = []any{doc}
	}

	entries := make([]Entry, 0, len(elems))
	for i, elem := range elems {
		path := ""
		if isList {
			path = fmt.Sprintf("[%d]", i)
		}
		scale, err := mapScaleAt(path, elem)
		entry := Entry{Source: path, Scale: scale, Err: err}
		if scale != nil {
			entry.ID = scale.ID
		} else {
			entry.ID = peekID(elem)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// peekID reads the id of an element that failed to map, if it has one.
func peekID(elem any) string {
	m, ok := asMap(elem)
	if !ok {
		return ""
	}
	for _, key := range scaleFields["id"] {
		if id, ok := m[key].(string); ok {
			return id
		}
	}
	return ""
}

// DecodeResponses parses a response submission: either a bare list or an
// object with a "responses" list.
func DecodeResponses(data []byte, format Format) ([]domain.Response, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	return MapResponses(doc)
}

// MapScale converts a generic decoded object into a Scale.
func MapScale(doc any) (*domain.Scale, error) {
	return mapScaleAt("", doc)
}

// MapResponses converts a generic decoded list into responses.
func MapResponses(doc any) ([]domain.Response, error) {
	if m, ok := asMap(doc); ok {
		doc = m["responses"]
	}
	elems, ok := doc.([]any)
	if !ok {
		return nil, domain.NewValidationError("responses", "expected a list of responses", doc)
	}

	var errs error
	responses := make([]domain.Response, 0, len(elems))
	for i, elem := range elems {
		rec, ok := newRecord(fmt.Sprintf("responses[%d]", i), elem, &errs)
		if !ok {
			break
		}
		resp := domain.Response{
			ItemID:     rec.str(responseFields, "itemId"),
			WasSkipped: rec.boolean(responseFields, "wasSkipped"),
		}
		if v, found := rec.raw(responseFields, "value"); found {
			resp.Value = domain.NewValue(v)
		}
		if resp.ItemID == "" {
			rec.fail("itemId", "item id is required", nil)
		}
		responses = append(responses, resp)
	}
	if errs != nil {
		return nil, errs
	}
	return responses, nil
}

func mapScaleAt(path string, doc any) (*domain.Scale, error) {
	var errs error
	rec, ok := newRecord(path, doc, &errs)
	if !ok {
		return nil, errs
	}

	scale := &domain.Scale{
		ID:            rec.str(scaleFields, "id"),
		Name:          rec.str(scaleFields, "name"),
		Abbreviation:  rec.str(scaleFields, "abbreviation"),
		Description:   rec.str(scaleFields, "description"),
		Category:      rec.str(scaleFields, "category"),
		TotalItems:    rec.integer(scaleFields, "totalItems"),
		ScoringMethod: domain.ScoringMethod(strings.ToLower(rec.str(scaleFields, "scoringMethod"))),
		ScoreRangeMin: rec.number(scaleFields, "scoreRangeMin"),
		ScoreRangeMax: rec.number(scaleFields, "scoreRangeMax"),
		Status:        domain.ScaleStatus(strings.ToLower(rec.str(scaleFields, "status"))),
		Version:       rec.integer(scaleFields, "version"),
	}
	if scale.ScoringMethod == "" {
		scale.ScoringMethod = domain.ScoringSum
	}

	for _, r := range rec.list(scaleFields, "items") {
		scale.Items = append(scale.Items, mapItem(r))
	}
	for _, r := range rec.list(scaleFields, "responseGroups") {
		scale.ResponseGroups = append(scale.ResponseGroups, domain.ResponseGroup{
			Key:     r.str(groupFields, "key"),
			Name:    r.str(groupFields, "name"),
			Options: mapOptions(r.list(groupFields, "options")),
		})
	}
	scale.ResponseOptions = mapOptions(rec.list(scaleFields, "responseOptions"))
	for _, r := range rec.list(scaleFields, "subscales") {
		scale.Subscales = append(scale.Subscales, mapSubscale(r))
	}
	for _, r := range rec.list(scaleFields, "interpretationRules") {
		scale.InterpretationRules = append(scale.InterpretationRules, mapRule(r))
	}

	if errs != nil {
		return nil, errs
	}
	scale.ContentHash = domain.ContentHash(scale)
	return scale, nil
}

func mapItem(r record) domain.Item {
	item := domain.Item{
		ID:            r.str(itemFields, "id"),
		Number:        r.integer(itemFields, "number"),
		Text:          r.str(itemFields, "text"),
		QuestionType:  normalizeQuestionType(r.str(itemFields, "questionType")),
		ResponseGroup: r.str(itemFields, "responseGroup"),
		ReverseScored: r.boolean(itemFields, "reverseScored"),
		Options:       mapOptions(r.list(itemFields, "options")),
	}
	if a, ok := r.child(itemFields, "alert"); ok {
		item.Alert = &domain.ItemAlert{
			Threshold: a.number(alertFields, "threshold"),
			Message:   a.str(alertFields, "message"),
		}
	}
	return item
}

func mapOptions(records []record) []domain.ResponseOption {
	if len(records) == 0 {
		return nil
	}
	options := make([]domain.ResponseOption, 0, len(records))
	for i, r := range records {
		opt := domain.ResponseOption{
			Label: r.str(optionFields, "label"),
			Score: r.number(optionFields, "score"),
			Order: r.integer(optionFields, "order"),
		}
		if v, ok := r.raw(optionFields, "value"); ok {
			opt.Value = domain.NewValue(v)
		} else {
			opt.Value = domain.NewValue(opt.Score)
		}
		if opt.Order == 0 {
			opt.Order = i + 1
		}
		options = append(options, opt)
	}
	return options
}

func mapSubscale(r record) domain.Subscale {
	sub := domain.Subscale{
		ID:          r.str(subscaleFields, "id"),
		Name:        r.str(subscaleFields, "name"),
		Description: r.str(subscaleFields, "description"),
		Reliability: r.optionalNumber(subscaleFields, "reliability"),
	}
	if v, ok := r.raw(subscaleFields, "items"); ok {
		items, err := ParseItemList(v)
		if err != nil {
			r.fail("items", err.Error(), v)
		}
		sub.Items = items
	}
	return sub
}

func mapRule(r record) domain.InterpretationRule {
	rule := domain.InterpretationRule{
		MinScore:        r.number(ruleFields, "minScore"),
		MaxScore:        r.number(ruleFields, "maxScore"),
		Label:           r.str(ruleFields, "label"),
		Severity:        r.str(ruleFields, "severity"),
		Description:     r.str(ruleFields, "description"),
		Recommendations: r.stringList(ruleFields, "recommendations"),
		SubscaleID:      r.str(ruleFields, "subscaleId"),
	}
	if strings.EqualFold(rule.SubscaleID, "total") {
		rule.SubscaleID = ""
	}
	return rule
}

// normalizeQuestionType accepts the spellings seen in source documents.
func normalizeQuestionType(s string) domain.QuestionType {
	key := strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(s))
	switch key {
	case "singlechoice", "single_choice", "multiple_choice", "choice":
		return domain.QuestionSingleChoice
	case "yesno", "yes_no", "boolean":
		return domain.QuestionYesNo
	case "freetext", "free_text", "text":
		return domain.QuestionFreeText
	case "number":
		return domain.QuestionNumeric
	default:
		return domain.QuestionType(key)
	}
}

func decodeDocument(data []byte, format Format) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.NewValidationError("document", "document is empty", nil)
	}

	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return doc, nil
}
