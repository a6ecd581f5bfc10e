package mcp

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinimetric-scale-server/internal/config"
	"github.com/clinimetric-scale-server/internal/domain"
)

const gad2JSON = `{
  "id": "gad2",
  "name": "Generalized Anxiety Disorder 2",
  "abbreviation": "GAD-2",
  "description": "Two item anxiety screen",
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
    {"id": "gad2_1", "number": 1, "text": "Feeling nervous, anxious or on edge"},
    {"id": "gad2_2", "number": 2, "text": "Not being able to stop or control worrying"}
  ],
  "interpretationRules": [
    {"minScore": 0, "maxScore": 2, "label": "negative"},
    {"minScore": 3, "maxScore": 6, "label": "positive screen"}
  ]
}`

// brokenYAML numbers both items 1.
const brokenYAML = `
id: broken
name: Broken
abbreviation: BRK
description: Duplicate item numbers
total_items: 2
score_range_min: 0
score_range_max: 2
options:
  - {value: 0, label: "No", score: 0}
  - {value: 1, label: "Yes", score: 1}
items:
  - {id: b1, number: 1, text: First}
  - {id: b2, number: 1, text: Second}
interpretation_rules:
  - {min_score: 0, max_score: 2, label: any}
`

func newTestLiteServer(t *testing.T) *LiteServer {
	t.Helper()

	dataDir := t.TempDir()
	scalesDir := filepath.Join(dataDir, "scales")
	require.NoError(t, os.MkdirAll(scalesDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(scalesDir, "gad2.json"), []byte(gad2JSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(scalesDir, "broken.yaml"), []byte(brokenYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(scalesDir, "notes.json"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(scalesDir, "README.md"), []byte("ignored"), 0644))

	cfg := &config.LiteConfig{
		DataDir:          dataDir,
		ScalesDir:        scalesDir,
		CacheMaxItems:    100,
		CacheTTL:         time.Hour,
		BatchConcurrency: 2,
		RecordResults:    true,
		Transport:        "stdio",
		LogLevel:         "error",
		LogFormat:        "json",
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	server, err := NewLiteServer(context.Background(), cfg, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	return server
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	var parts []string
	for _, c := range result.Content {
		text, ok := c.(*mcp.TextContent)
		require.True(t, ok)
		parts = append(parts, text.Text)
	}
	return strings.Join(parts, "\n")
}

func TestNewLiteServer_LoadsScales(t *testing.T) {
	server := newTestLiteServer(t)

	loaded := server.Loaded()
	assert.Equal(t, 3, loaded.Files)
	assert.Equal(t, 2, loaded.Loaded)
	assert.Equal(t, 1, loaded.Activated)
	assert.Equal(t, 1, loaded.Rejected)

	result, out, err := server.handleListScales(context.Background(), nil, ListScalesArgs{Status: "active"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	summaries := out.([]ScaleSummary)
	require.Len(t, summaries, 1)
	assert.Equal(t, "gad2", summaries[0].ID)
	assert.Equal(t, 1, summaries[0].Version)

	result, _, err = server.handleListScales(context.Background(), nil, ListScalesArgs{Status: "draft"})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "broken")

	result, _, err = server.handleListScales(context.Background(), nil, ListScalesArgs{Status: "retired"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestLiteServer_ValidateScale(t *testing.T) {
	server := newTestLiteServer(t)
	ctx := context.Background()

	result, out, err := server.handleValidateScale(ctx, nil, ValidateScaleArgs{Definition: gad2JSON})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.True(t, out.(*domain.ValidationReport).IsValid)
	assert.Contains(t, textOf(t, result), "is valid")

	result, out, err = server.handleValidateScale(ctx, nil, ValidateScaleArgs{Definition: brokenYAML, Format: "yaml"})
	require.NoError(t, err)
	report := out.(*domain.ValidationReport)
	assert.False(t, report.IsValid)
	assert.True(t, report.HasIssue(domain.IssueItemNumbering))
	assert.Contains(t, textOf(t, result), "is invalid")

	// The report cache answered the repeated gad2 validation from startup.
	assert.Positive(t, server.CacheStats().Hits)

	result, _, err = server.handleValidateScale(ctx, nil, ValidateScaleArgs{Definition: "{"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestLiteServer_ScoreAndRecord(t *testing.T) {
	server := newTestLiteServer(t)
	ctx := context.Background()

	args := ScoreAssessmentArgs{
		ScaleID:    "gad2",
		SubjectRef: "patient-1",
		Responses: []ResponseArg{
			{ItemID: "gad2_1", Value: 2},
			{ItemID: "gad2_2", Value: "1"},
		},
	}
	result, out, err := server.handleScoreAssessment(ctx, nil, args)
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))
	scored := out.(*domain.AssessmentResult)
	assert.Equal(t, 3.0, scored.TotalScore.Raw)
	assert.Equal(t, "positive screen", scored.Interpretation.Label)
	assert.Contains(t, textOf(t, result), "Raw score 3")

	result, out, err = server.handleListAssessments(ctx, nil, ListAssessmentsArgs{ScaleID: "gad2"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	records := out.([]AssessmentSummary)
	require.Len(t, records, 1)
	assert.Equal(t, "patient-1", records[0].SubjectRef)
	assert.Equal(t, "positive screen", records[0].Label)

	result, out, err = server.handleExportAssessments(ctx, nil, ExportAssessmentsArgs{})
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))
	export := out.(ExportAssessmentsResult)
	assert.EqualValues(t, 1, export.Count)
	assert.FileExists(t, export.FilePath)
}

func TestLiteServer_ScoreInline(t *testing.T) {
	server := newTestLiteServer(t)
	ctx := context.Background()

	result, out, err := server.handleScoreAssessment(ctx, nil, ScoreAssessmentArgs{
		Definition: gad2JSON,
		Responses:  []ResponseArg{{ItemID: "gad2_1", Value: 0}, {ItemID: "gad2_2", Skipped: true}},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))
	scored := out.(*domain.AssessmentResult)
	assert.Equal(t, 0.0, scored.TotalScore.Raw)
	assert.Equal(t, 50.0, scored.TotalScore.CompletionPercentage)

	result, out, err = server.handleScoreAssessment(ctx, nil, ScoreAssessmentArgs{
		Definition: brokenYAML,
		Format:     "yaml",
		Responses:  []ResponseArg{{ItemID: "b1", Value: 1}},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.False(t, out.(*domain.ValidationReport).IsValid)

	result, _, err = server.handleScoreAssessment(ctx, nil, ScoreAssessmentArgs{})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, _, err = server.handleScoreAssessment(ctx, nil, ScoreAssessmentArgs{ScaleID: "broken",
		Responses: []ResponseArg{{ItemID: "b1", Value: 1}}})
	require.NoError(t, err)
	assert.True(t, result.IsError, "draft scales are not scoreable")
}

func TestLiteServer_InterpretScore(t *testing.T) {
	server := newTestLiteServer(t)
	ctx := context.Background()

	result, _, err := server.handleInterpretScore(ctx, nil, InterpretScoreArgs{ScaleID: "gad2", Score: 1})
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), "negative")

	result, _, err = server.handleInterpretScore(ctx, nil, InterpretScoreArgs{ScaleID: "gad2", Score: 40})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "not covered")

	result, _, err = server.handleInterpretScore(ctx, nil, InterpretScoreArgs{ScaleID: "missing", Score: 1})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
