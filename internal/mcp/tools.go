package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
	"github.com/clinimetric-scale-server/internal/ingest"
)

// ValidateScaleArgs defines parameters for the validate_scale tool
type ValidateScaleArgs struct {
	Definition string `json:"definition" jsonschema:"scale definition document as JSON or YAML text"`
	Format     string `json:"format,omitempty" jsonschema:"json or yaml; defaults to json"`
}

// ResponseArg is one answered or skipped item.
type ResponseArg struct {
	ItemID  string `json:"item_id" jsonschema:"id of the answered item"`
	Value   any    `json:"value,omitempty" jsonschema:"selected option value, number or free text"`
	Skipped bool   `json:"skipped,omitempty" jsonschema:"true when the item was deliberately skipped"`
}

// ScoreAssessmentArgs defines parameters for the score_assessment tool
type ScoreAssessmentArgs struct {
	ScaleID    string        `json:"scale_id,omitempty" jsonschema:"id of a loaded, active scale"`
	Definition string        `json:"definition,omitempty" jsonschema:"inline scale definition used instead of scale_id"`
	Format     string        `json:"format,omitempty" jsonschema:"format of the inline definition: json or yaml"`
	SubjectRef string        `json:"subject_ref,omitempty" jsonschema:"opaque reference to the assessed subject"`
	Responses  []ResponseArg `json:"responses" jsonschema:"item responses"`
}

// InterpretScoreArgs defines parameters for the interpret_score tool
type InterpretScoreArgs struct {
	ScaleID    string  `json:"scale_id" jsonschema:"id of a loaded scale"`
	Score      float64 `json:"score" jsonschema:"total or subscale score to interpret"`
	SubscaleID string  `json:"subscale_id,omitempty" jsonschema:"subscale whose rules apply; empty for the total score"`
}

// ListScalesArgs defines parameters for the list_scales tool
type ListScalesArgs struct {
	Status string `json:"status,omitempty" jsonschema:"lifecycle status filter: draft, validated, active, superseded or deactivated"`
}

// ListAssessmentsArgs defines parameters for the list_assessments tool
type ListAssessmentsArgs struct {
	ScaleID string `json:"scale_id,omitempty" jsonschema:"only list assessments of this scale"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum records to return (default 20)"`
	Offset  int    `json:"offset,omitempty" jsonschema:"records to skip"`
}

// ExportAssessmentsArgs defines parameters for the export_assessments tool
type ExportAssessmentsArgs struct{}

// ScaleSummary is one entry of the list_scales result.
type ScaleSummary struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Abbreviation string             `json:"abbreviation"`
	Status       domain.ScaleStatus `json:"status"`
	Version      int                `json:"version"`
	TotalItems   int                `json:"total_items"`
	ContentHash  string             `json:"content_hash"`
}

// AssessmentSummary is one entry of the list_assessments result.
type AssessmentSummary struct {
	ID           string    `json:"id"`
	ScaleID      string    `json:"scale_id"`
	SubjectRef   string    `json:"subject_ref,omitempty"`
	RawScore     float64   `json:"raw_score"`
	Completion   float64   `json:"completion_percentage"`
	Label        string    `json:"label,omitempty"`
	AnomalyCount int       `json:"anomaly_count"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// ExportAssessmentsResult defines the result of export_assessments
type ExportAssessmentsResult struct {
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
}

func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "validate_scale",
		Description: "Validate a clinimetric scale definition and return every error and warning found.",
	}, s.handleValidateScale)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "score_assessment",
		Description: "Score item responses against a loaded scale or an inline definition, with subscales, interpretation, flags and alerts.",
	}, s.handleScoreAssessment)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "interpret_score",
		Description: "Resolve the severity band of a score using a scale's interpretation rules.",
	}, s.handleInterpretScore)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_scales",
		Description: "List the loaded scales, optionally filtered by lifecycle status.",
	}, s.handleListScales)

	registered := 4
	if s.results != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "list_assessments",
			Description: "List recorded assessments, newest first.",
		}, s.handleListAssessments)

		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "export_assessments",
			Description: "Export all recorded assessments to a JSON file for backup.",
		}, s.handleExportAssessments)
		registered += 2
	}

	s.logger.WithField("tool_count", registered).Info("Registered MCP tools")
}

func (s *LiteServer) handleValidateScale(ctx context.Context, req *mcp.CallToolRequest, args ValidateScaleArgs) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "validate_scale").Debug("Tool invoked")

	scale, err := ingest.DecodeScale([]byte(args.Definition), parseFormat(args.Format))
	if err != nil {
		return s.createErrorResult("definition could not be parsed", err), nil, nil
	}

	report := s.catalog.ValidateDefinition(ctx, scale)
	summary := fmt.Sprintf("Scale %s is valid with %d warning(s)", report.ScaleID, len(report.Warnings))
	if !report.IsValid {
		summary = fmt.Sprintf("Scale %s is invalid: %d error(s), %d warning(s)", report.ScaleID, len(report.Errors), len(report.Warnings))
	}
	return jsonResult(summary, report), report, nil
}

func (s *LiteServer) handleScoreAssessment(ctx context.Context, req *mcp.CallToolRequest, args ScoreAssessmentArgs) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{
		"tool":     "score_assessment",
		"scale_id": args.ScaleID,
		"inline":   args.Definition != "",
	}).Debug("Tool invoked")

	responses := make([]domain.Response, 0, len(args.Responses))
	for _, r := range args.Responses {
		responses = append(responses, domain.Response{
			ItemID:     r.ItemID,
			Value:      domain.NewValue(r.Value),
			WasSkipped: r.Skipped,
		})
	}

	var (
		result *domain.AssessmentResult
		err    error
	)
	switch {
	case args.Definition != "":
		scale, decodeErr := ingest.DecodeScale([]byte(args.Definition), parseFormat(args.Format))
		if decodeErr != nil {
			return s.createErrorResult("definition could not be parsed", decodeErr), nil, nil
		}
		var report *domain.ValidationReport
		result, report, err = s.catalog.PreviewScore(ctx, scale, responses)
		if err != nil && report != nil && !report.IsValid {
			return s.createErrorResult(fmt.Sprintf("definition has %d validation error(s)", len(report.Errors)), err), report, nil
		}
	case args.ScaleID != "":
		result, err = s.catalog.Score(ctx, args.ScaleID, args.SubjectRef, responses)
	default:
		return s.createErrorResult("either scale_id or definition is required", nil), nil, nil
	}
	if err != nil {
		return s.createErrorResult("assessment could not be scored", err), nil, nil
	}

	summary := fmt.Sprintf("Raw score %s (%.0f%% complete)", formatScore(result.TotalScore.Raw), result.TotalScore.CompletionPercentage)
	if result.Interpretation != nil {
		summary += ": " + result.Interpretation.Label
	}
	if len(result.Alerts) > 0 {
		summary += fmt.Sprintf("; %d alert(s) triggered", len(result.Alerts))
	}
	return jsonResult(summary, result), result, nil
}

func (s *LiteServer) handleInterpretScore(ctx context.Context, req *mcp.CallToolRequest, args InterpretScoreArgs) (*mcp.CallToolResult, any, error) {
	outcome, err := s.catalog.Interpret(ctx, args.ScaleID, args.Score, args.SubscaleID)
	if err != nil {
		return s.createErrorResult("score could not be interpreted", err), nil, nil
	}

	summary := fmt.Sprintf("Score %s is not covered by any interpretation rule", formatScore(args.Score))
	if outcome.Matched {
		summary = fmt.Sprintf("Score %s: %s", formatScore(args.Score), outcome.Interpretation.Label)
	}
	out := map[string]any{
		"matched":        outcome.Matched,
		"overlapping":    outcome.Overlapping(),
		"interpretation": outcome.Interpretation,
	}
	return jsonResult(summary, out), out, nil
}

func (s *LiteServer) handleListScales(ctx context.Context, req *mcp.CallToolRequest, args ListScalesArgs) (*mcp.CallToolResult, any, error) {
	status := domain.ScaleStatus(args.Status)
	if status != "" && !status.IsValid() {
		return s.createErrorResult("unknown status "+args.Status, nil), nil, nil
	}

	scales, err := s.catalog.List(ctx, status)
	if err != nil {
		return s.createErrorResult("scales could not be listed", err), nil, nil
	}

	summaries := make([]ScaleSummary, 0, len(scales))
	for _, sc := range scales {
		summaries = append(summaries, ScaleSummary{
			ID:           sc.ID,
			Name:         sc.Name,
			Abbreviation: sc.Abbreviation,
			Status:       sc.Status,
			Version:      sc.Version,
			TotalItems:   sc.TotalItems,
			ContentHash:  sc.ContentHash,
		})
	}
	return jsonResult(fmt.Sprintf("%d scale(s)", len(summaries)), summaries), summaries, nil
}

func (s *LiteServer) handleListAssessments(ctx context.Context, req *mcp.CallToolRequest, args ListAssessmentsArgs) (*mcp.CallToolResult, any, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}

	records, err := s.results.ListByScale(ctx, args.ScaleID, limit, args.Offset)
	if err != nil {
		return s.createErrorResult("assessments could not be listed", err), nil, nil
	}

	summaries := make([]AssessmentSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, AssessmentSummary{
			ID:           r.ID,
			ScaleID:      r.ScaleID,
			SubjectRef:   r.SubjectRef,
			RawScore:     r.RawScore,
			Completion:   r.Completion,
			Label:        r.Label,
			AnomalyCount: r.AnomalyCount,
			RecordedAt:   r.RecordedAt,
		})
	}
	return jsonResult(fmt.Sprintf("%d assessment(s)", len(summaries)), summaries), summaries, nil
}

func (s *LiteServer) handleExportAssessments(ctx context.Context, req *mcp.CallToolRequest, args ExportAssessmentsArgs) (*mcp.CallToolResult, any, error) {
	exportDir := s.config.ExportDir()
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return s.createErrorResult("failed to create export directory", err), nil, nil
	}

	filePath := filepath.Join(exportDir, fmt.Sprintf("assessments_export_%s.json", time.Now().Format("20060102_150405")))
	file, err := os.Create(filePath)
	if err != nil {
		return s.createErrorResult("failed to create export file", err), nil, nil
	}
	defer file.Close()

	if err := s.results.ExportJSON(ctx, file); err != nil {
		s.logger.WithError(err).Error("Failed to export assessments")
		return s.createErrorResult("failed to export assessments", err), nil, nil
	}

	count, _ := s.results.Count(ctx)
	out := ExportAssessmentsResult{FilePath: filePath, Count: count}
	return jsonResult(fmt.Sprintf("Exported %d assessment(s) to %s", count, filePath), out), out, nil
}

// createErrorResult creates a standardized error result for tool calls
func (s *LiteServer) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}

// jsonResult pairs a one-line summary with the indented JSON payload.
func jsonResult(summary string, payload any) *mcp.CallToolResult {
	content := []mcp.Content{&mcp.TextContent{Text: summary}}
	if data, err := json.MarshalIndent(payload, "", "  "); err == nil {
		content = append(content, &mcp.TextContent{Text: string(data)})
	}
	return &mcp.CallToolResult{Content: content}
}

func parseFormat(format string) ingest.Format {
	f := ingest.Format(format)
	if f.IsValid() {
		return f
	}
	return ingest.FormatJSON
}

func formatScore(v float64) string {
	return fmt.Sprintf("%g", v)
}
