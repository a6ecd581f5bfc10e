package service

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinimetric-scale-server/internal/domain"
)

func anomalyCodes(result *domain.AssessmentResult) []domain.AnomalyCode {
	var codes []domain.AnomalyCode
	for _, a := range result.Anomalies {
		codes = append(codes, a.Code)
	}
	return codes
}

func TestAssessmentOrchestrator_CompleteSevere(t *testing.T) {
	scale := phq9Scale()
	orchestrator := NewAssessmentOrchestrator(testLogger(), WithClock(fixedClock))

	result, err := orchestrator.ProcessAssessment(scale, uniformResponses(scale, 9, "3"))
	require.NoError(t, err)

	assert.Equal(t, 27.0, result.TotalScore.Raw)
	assert.Equal(t, 100.0, result.TotalScore.CompletionPercentage)
	assert.True(t, result.Complete)
	require.NotNil(t, result.Interpretation)
	assert.Equal(t, "severe", result.Interpretation.Label)
	assert.Empty(t, result.Anomalies)
	assert.Equal(t, fixedTime, result.ComputedAt)
	assert.Equal(t, domain.ContentHash(scale), result.ContentHash)

	require.Len(t, result.SubscaleScores, 2)
	assert.Equal(t, 9.0, result.SubscaleScores[0].Score)
	assert.Equal(t, 100.0, result.SubscaleScores[0].Percentile)
	assert.Nil(t, result.SubscaleScores[0].Interpretation)

	require.Len(t, result.Alerts, 1)
	assert.Equal(t, 9, result.Alerts[0].ItemNumber)
}

func TestAssessmentOrchestrator_PartialStillInterpreted(t *testing.T) {
	scale := phq9Scale()
	orchestrator := NewAssessmentOrchestrator(testLogger(), WithClock(fixedClock))

	result, err := orchestrator.ProcessAssessment(scale, uniformResponses(scale, 7, "3"))
	require.NoError(t, err)

	assert.Equal(t, 21.0, result.TotalScore.Raw)
	assert.Equal(t, 7, result.TotalScore.ValidResponses)
	assert.InDelta(t, 77.78, result.TotalScore.CompletionPercentage, 0.001)
	assert.False(t, result.Complete)
	require.NotNil(t, result.Interpretation)
	assert.Equal(t, "severe", result.Interpretation.Label)
	assert.Equal(t, []domain.AnomalyCode{domain.AnomalyIncomplete}, anomalyCodes(result))
	assert.Empty(t, result.Alerts)
}

func TestAssessmentOrchestrator_UnderDeclaredTotalItems(t *testing.T) {
	scale := phq9Scale()
	scale.TotalItems = 5
	orchestrator := NewAssessmentOrchestrator(testLogger(), WithClock(fixedClock))

	result, err := orchestrator.ProcessAssessment(scale, uniformResponses(scale, 5, "1"))
	require.NoError(t, err)
	assert.Equal(t, 55.56, result.TotalScore.CompletionPercentage)
	assert.False(t, result.Complete)

	result, err = orchestrator.ProcessAssessment(scale, uniformResponses(scale, 9, "1"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.TotalScore.CompletionPercentage)
	assert.True(t, result.Complete)
}

func TestAssessmentOrchestrator_Rejections(t *testing.T) {
	orchestrator := NewAssessmentOrchestrator(testLogger())

	scale := phq9Scale()
	_, err := orchestrator.ProcessAssessment(scale, nil)
	assert.True(t, errors.Is(err, domain.ErrEmptyResponses))

	for _, status := range []domain.ScaleStatus{"", domain.StatusDraft, domain.StatusValidated} {
		scale.Status = status
		_, err = orchestrator.ProcessAssessment(scale, uniformResponses(scale, 9, "1"))
		assert.True(t, errors.Is(err, domain.ErrScaleNotActive), "status %q", status)

		var scaleErr *domain.ScaleError
		require.True(t, errors.As(err, &scaleErr))
		assert.Equal(t, "phq9", scaleErr.ScaleID)
	}

	_, err = orchestrator.ProcessAssessment(nil, uniformResponses(phq9Scale(), 1, "1"))
	assert.Error(t, err)
}

func TestAssessmentOrchestrator_RetiredScalesStayScoreable(t *testing.T) {
	orchestrator := NewAssessmentOrchestrator(testLogger())

	for _, status := range []domain.ScaleStatus{domain.StatusSuperseded, domain.StatusDeactivated} {
		scale := phq9Scale()
		scale.Status = status
		result, err := orchestrator.ProcessAssessment(scale, uniformResponses(scale, 9, "1"))
		require.NoError(t, err)
		assert.Equal(t, "mild", result.Interpretation.Label)
	}
}

func TestAssessmentOrchestrator_NoInterpretationMatch(t *testing.T) {
	scale := phq9Scale()
	scale.InterpretationRules = []domain.InterpretationRule{
		{MinScore: 0, MaxScore: 8, Label: "low"},
		{MinScore: 10, MaxScore: 27, Label: "high"},
		{MinScore: 0, MaxScore: 1, Label: "calm", SubscaleID: "somatic"},
	}
	orchestrator := NewAssessmentOrchestrator(testLogger())

	result, err := orchestrator.ProcessAssessment(scale, uniformResponses(scale, 9, "1"))
	require.NoError(t, err)

	assert.Equal(t, 9.0, result.TotalScore.Raw)
	assert.Nil(t, result.Interpretation)
	assert.True(t, result.Complete)
	require.Len(t, result.Anomalies, 2)
	assert.Equal(t, domain.AnomalyNoInterpretationMatch, result.Anomalies[0].Code)
	assert.Equal(t, "total", result.Anomalies[0].Scope)
	assert.Equal(t, domain.AnomalyNoInterpretationMatch, result.Anomalies[1].Code)
	assert.Equal(t, "somatic", result.Anomalies[1].SubscaleID)
	assert.Nil(t, result.SubscaleScores[0].Interpretation)
}

func TestAssessmentOrchestrator_OverlappingRulesAnomaly(t *testing.T) {
	scale := phq9Scale()
	scale.InterpretationRules = []domain.InterpretationRule{
		{MinScore: 5, MaxScore: 27, Label: "elevated"},
		{MinScore: 0, MaxScore: 10, Label: "normal"},
	}
	orchestrator := NewAssessmentOrchestrator(testLogger())

	result, err := orchestrator.ProcessAssessment(scale, uniformResponses(scale, 9, "1"))
	require.NoError(t, err)

	require.NotNil(t, result.Interpretation)
	assert.Equal(t, "normal", result.Interpretation.Label)
	assert.Equal(t, []domain.AnomalyCode{domain.AnomalyOverlappingRules}, anomalyCodes(result))
}

func TestAssessmentOrchestrator_SubscaleInterpretation(t *testing.T) {
	scale := phq9Scale()
	scale.InterpretationRules = append(scale.InterpretationRules,
		domain.InterpretationRule{MinScore: 0, MaxScore: 4, Label: "low somatic", SubscaleID: "somatic"},
		domain.InterpretationRule{MinScore: 5, MaxScore: 9, Label: "high somatic", SubscaleID: "somatic"},
	)
	orchestrator := NewAssessmentOrchestrator(testLogger())

	result, err := orchestrator.ProcessAssessment(scale, uniformResponses(scale, 9, "2"))
	require.NoError(t, err)

	require.NotNil(t, result.SubscaleScores[0].Interpretation)
	assert.Equal(t, "high somatic", result.SubscaleScores[0].Interpretation.Label)
	assert.Nil(t, result.SubscaleScores[1].Interpretation)
}

func TestAssessmentOrchestrator_Deterministic(t *testing.T) {
	orchestrator := NewAssessmentOrchestrator(testLogger(), WithClock(fixedClock))
	responses := []domain.Response{
		{ItemID: "phq9_9", Value: "2"},
		{ItemID: "phq9_1", Value: "1"},
		{ItemID: "phq9_4", Value: "bogus"},
		{ItemID: "phq9_2", WasSkipped: true},
		{ItemID: "phq9_5", Value: "3"},
	}

	first, err := orchestrator.ProcessAssessment(phq9Scale(), responses)
	require.NoError(t, err)
	second, err := orchestrator.ProcessAssessment(phq9Scale(), responses)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
