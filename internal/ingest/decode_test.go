package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinimetric-scale-server/internal/domain"
)

const camelJSON = `{
  "id": "gad7",
  "name": "Generalized Anxiety Disorder 7",
  "abbreviation": "GAD-7",
  "description": "Anxiety screening",
  "totalItems": 2,
  "scoreRangeMin": 0,
  "scoreRangeMax": 6,
  "responseOptions": [
    {"value": 0, "label": "Not at all", "score": 0},
    {"value": 1, "label": "Several days", "score": 1},
    {"value": 2, "label": "More than half the days", "score": 2},
    {"value": 3, "label": "Nearly every day", "score": 3}
  ],
  "items": [
    {"id": "gad7_1", "number": 1, "text": "Feeling nervous", "questionType": "likert"},
    {"id": "gad7_2", "number": 2, "text": "Not being able to stop worrying", "reverseScored": true,
     "alert": {"threshold": 2, "message": "check in"}}
  ],
  "subscales": [{"id": "core", "name": "Core", "items": [1, 2], "reliability": 0.89}],
  "interpretationRules": [
    {"minScore": 0, "maxScore": 2, "label": "minimal", "recommendations": ["monitor"]},
    {"minScore": 3, "maxScore": 6, "label": "elevated", "subscaleId": "total"}
  ]
}`

const snakeYAML = `
scale_id: gad7
title: Generalized Anxiety Disorder 7
short_name: GAD-7
description: Anxiety screening
total_items: 2
score_range_min: 0
score_range_max: 6
response_groups:
  - group_key: freq
    options:
      - option_value: "0"
        option_label: Not at all
        score_value: 0
      - option_value: "3"
        option_label: Nearly every day
        score_value: 3
questions:
  - item_id: gad7_1
    item_number: 1
    question_text: Feeling nervous
    response_group: freq
  - item_id: gad7_2
    item_number: "2"
    question_text: Not being able to stop worrying
    is_reverse: "true"
    question_type: Single-Choice
    response_options:
      - {value: yes, score: 1}
      - {value: no, score: 0}
sub_scales:
  - subscale_id: core
    name: Core
    item_numbers: "1, 2"
interpretation_rules:
  - min_score: 0
    max_score: 2
    severity_label: minimal
    recommendations: monitor
`

func TestDecodeScale_CamelCaseJSON(t *testing.T) {
	scale, err := DecodeScale([]byte(camelJSON), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "gad7", scale.ID)
	assert.Equal(t, "GAD-7", scale.Abbreviation)
	assert.Equal(t, 2, scale.TotalItems)
	assert.Equal(t, 6.0, scale.ScoreRangeMax)
	assert.Equal(t, domain.ScoringSum, scale.ScoringMethod)
	require.Len(t, scale.ResponseOptions, 4)
	assert.Equal(t, domain.Value("2"), scale.ResponseOptions[2].Value)
	assert.Equal(t, 3, scale.ResponseOptions[2].Order)

	require.Len(t, scale.Items, 2)
	assert.Equal(t, domain.QuestionLikert, scale.Items[0].QuestionType)
	assert.True(t, scale.Items[1].ReverseScored)
	require.NotNil(t, scale.Items[1].Alert)
	assert.Equal(t, 2.0, scale.Items[1].Alert.Threshold)

	require.Len(t, scale.Subscales, 1)
	assert.Equal(t, []int{1, 2}, scale.Subscales[0].Items)
	require.NotNil(t, scale.Subscales[0].Reliability)
	assert.Equal(t, 0.89, *scale.Subscales[0].Reliability)

	require.Len(t, scale.InterpretationRules, 2)
	assert.Equal(t, []string{"monitor"}, scale.InterpretationRules[0].Recommendations)
	assert.Equal(t, "", scale.InterpretationRules[1].SubscaleID)
	assert.Equal(t, domain.ContentHash(scale), scale.ContentHash)
}

func TestDecodeScale_SnakeCaseYAML(t *testing.T) {
	scale, err := DecodeScale([]byte(snakeYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "gad7", scale.ID)
	assert.Equal(t, "Generalized Anxiety Disorder 7", scale.Name)
	assert.Equal(t, "GAD-7", scale.Abbreviation)
	assert.Equal(t, 2, scale.TotalItems)

	require.Len(t, scale.ResponseGroups, 1)
	assert.Equal(t, "freq", scale.ResponseGroups[0].Key)
	assert.Len(t, scale.ResponseGroups[0].Options, 2)
	assert.Equal(t, "Not at all", scale.ResponseGroups[0].Options[0].Label)

	require.Len(t, scale.Items, 2)
	assert.Equal(t, "freq", scale.Items[0].ResponseGroup)
	assert.Equal(t, 2, scale.Items[1].Number)
	assert.True(t, scale.Items[1].ReverseScored)
	assert.Equal(t, domain.QuestionSingleChoice, scale.Items[1].QuestionType)
	require.Len(t, scale.Items[1].Options, 2)
	assert.Equal(t, domain.Value("yes"), scale.Items[1].Options[0].Value)

	assert.Equal(t, []int{1, 2}, scale.Subscales[0].Items)
	assert.Equal(t, "minimal", scale.InterpretationRules[0].Label)
	assert.Equal(t, []string{"monitor"}, scale.InterpretationRules[0].Recommendations)
}

func TestDecodeScale_BothConventionsAgree(t *testing.T) {
	camel := `{"id":"x","name":"X","abbreviation":"X","description":"d","totalItems":1,
	  "items":[{"id":"x1","number":1,"text":"t","reverseScored":true}],
	  "responseOptions":[{"value":"0","label":"no","score":0}]}`
	snake := `{"scale_id":"x","name":"X","abbr":"X","description":"d","total_items":1,
	  "questions":[{"item_id":"x1","item_number":1,"question_text":"t","reverse_scored":true}],
	  "response_options":[{"option_value":"0","option_label":"no","score_value":0}]}`

	a, err := DecodeScale([]byte(camel), FormatJSON)
	require.NoError(t, err)
	b, err := DecodeScale([]byte(snake), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, a.ContentHash, b.ContentHash)
}

func TestDecodeScale_TypeErrorsCarryPath(t *testing.T) {
	doc := `{"id":"x","items":[{"id":"a","number":1},{"id":"b","number":"two"}]}`

	_, err := DecodeScale([]byte(doc), FormatJSON)
	require.Error(t, err)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "items[1].number", verr.Field)
}

func TestDecodeScale_RejectsBooleanNumbers(t *testing.T) {
	_, err := DecodeScale([]byte(`{"id":"x","totalItems":true}`), FormatJSON)
	require.Error(t, err)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "totalItems", verr.Field)

	_, err = DecodeScale([]byte("id: x\nscoreRangeMax: false\n"), FormatYAML)
	require.Error(t, err)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "scoreRangeMax", verr.Field)

	scale, err := DecodeScale([]byte(`{"id":"x","totalItems":"3"}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 3, scale.TotalItems)
}

func TestDecodeScale_Malformed(t *testing.T) {
	_, err := DecodeScale([]byte(""), FormatJSON)
	assert.Error(t, err)

	_, err = DecodeScale([]byte("{not json"), FormatJSON)
	assert.Error(t, err)

	_, err = DecodeScale([]byte(`[1,2]`), FormatJSON)
	assert.Error(t, err)

	_, err = DecodeScale([]byte(`{"items":"nope"}`), FormatJSON)
	assert.Error(t, err)

	_, err = DecodeScale([]byte(`{}`), Format("toml"))
	assert.Error(t, err)
}

func TestDecodeScales(t *testing.T) {
	scales, err := DecodeScales([]byte(`{"scales":[{"id":"a"},{"id":"b"}]}`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, scales, 2)
	assert.Equal(t, "b", scales[1].ID)

	scales, err = DecodeScales([]byte(`- id: a`), FormatYAML)
	require.NoError(t, err)
	require.Len(t, scales, 1)

	scales, err = DecodeScales([]byte(`{"id":"solo"}`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, scales, 1)
	assert.Equal(t, "solo", scales[0].ID)
}

func TestDecodeScaleEntries_KeepsGoodElements(t *testing.T) {
	doc := `[{"id":"a"},{"id":"b","totalItems":"lots"},{"name":"no id","items":"x"},{"id":"c"}]`

	entries, err := DecodeScaleEntries([]byte(doc), FormatJSON)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.NoError(t, entries[0].Err)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "[0]", entries[0].Source)

	assert.Error(t, entries[1].Err)
	assert.Nil(t, entries[1].Scale)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, "[1]", entries[1].Source)

	assert.Error(t, entries[2].Err)
	assert.Empty(t, entries[2].ID)

	assert.NoError(t, entries[3].Err)
	assert.Equal(t, "c", entries[3].Scale.ID)

	_, err = DecodeScales([]byte(doc), FormatJSON)
	assert.Error(t, err)
}

func TestDecodeScaleEntries_SingleDocument(t *testing.T) {
	entries, err := DecodeScaleEntries([]byte(`{"id":"solo"}`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Source)
	assert.Equal(t, "solo", entries[0].ID)

	_, err = DecodeScaleEntries([]byte("{not json"), FormatJSON)
	assert.Error(t, err)
}

func TestDecodeResponses(t *testing.T) {
	doc := `{"responses":[
	  {"itemId":"a","value":2},
	  {"item_id":"b","response_value":"yes"},
	  {"item_id":"c","skipped":true},
	  {"itemId":"d","value":1.5}
	]}`

	responses, err := DecodeResponses([]byte(doc), FormatJSON)
	require.NoError(t, err)
	require.Len(t, responses, 4)

	assert.Equal(t, domain.Response{ItemID: "a", Value: "2"}, responses[0])
	assert.Equal(t, domain.Value("yes"), responses[1].Value)
	assert.True(t, responses[2].WasSkipped)
	assert.Equal(t, domain.Value("1.5"), responses[3].Value)

	_, err = DecodeResponses([]byte(`[{"value":1}]`), FormatJSON)
	assert.Error(t, err)

	_, err = DecodeResponses([]byte(`{"answers":[]}`), FormatJSON)
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("phq9.yaml"))
	assert.Equal(t, FormatYAML, DetectFormat("PHQ9.YML"))
	assert.Equal(t, FormatJSON, DetectFormat("phq9.json"))
	assert.Equal(t, FormatJSON, DetectFormat("phq9"))
}
