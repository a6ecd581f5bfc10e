package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinimetric-scale-server/internal/domain"
)

func TestBatchValidator_ValidateBatch(t *testing.T) {
	validator := NewScaleDefinitionValidator(testLogger(), nil)
	batch := NewBatchValidator(testLogger(), validator, 3)

	var scales []*domain.Scale
	for i := 0; i < 10; i++ {
		scale := phq9Scale()
		scale.ID = fmt.Sprintf("scale-%d", i)
		if i%2 == 1 {
			scale.Items[0].Text = ""
		}
		scales = append(scales, scale)
	}
	scales = append(scales, nil)

	report := batch.ValidateBatch(context.Background(), scales)

	assert.Equal(t, 11, report.Total)
	assert.Equal(t, 5, report.Valid)
	assert.Equal(t, 6, report.Invalid)
	assert.Equal(t, 45.45, report.SuccessRate)
	require.Len(t, report.Reports, 11)
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("scale-%d", i), report.Reports[i].ScaleID)
		assert.Equal(t, i%2 == 0, report.Reports[i].IsValid)
	}
	assert.False(t, report.Reports[10].IsValid)
}

func TestBatchValidator_CancelledContext(t *testing.T) {
	validator := NewScaleDefinitionValidator(testLogger(), nil)
	batch := NewBatchValidator(testLogger(), validator, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := batch.ValidateBatch(ctx, []*domain.Scale{phq9Scale(), phq9Scale()})

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 0, report.Valid)
	assert.Equal(t, 0.0, report.SuccessRate)
	for _, r := range report.Reports {
		require.NotNil(t, r)
		assert.Equal(t, domain.IssueRuleFailure, r.Errors[0].Type)
	}
}

func TestBatchValidator_Empty(t *testing.T) {
	batch := NewBatchValidator(testLogger(), NewScaleDefinitionValidator(testLogger(), nil), 2)

	report := batch.ValidateBatch(context.Background(), nil)

	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 0.0, report.SuccessRate)
}

func TestBatchValidator_ValidateInputsReportsDecodeFailures(t *testing.T) {
	validator := NewScaleDefinitionValidator(testLogger(), nil)
	batch := NewBatchValidator(testLogger(), validator, 2)

	inputs := []BatchInput{
		{Source: "a.json", ID: "phq9", Scale: phq9Scale()},
		{Source: "b.yaml[1]", ID: "broken", Err: fmt.Errorf("totalItems: expected an integer")},
		{Source: "c.json", Err: fmt.Errorf("failed to read c.json")},
	}

	report := batch.ValidateInputs(context.Background(), inputs)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Valid)
	assert.Equal(t, 2, report.Invalid)
	require.Len(t, report.Reports, 3)

	assert.True(t, report.Reports[0].IsValid)
	assert.Equal(t, "a.json", report.Reports[0].Source)

	assert.False(t, report.Reports[1].IsValid)
	assert.Equal(t, "broken", report.Reports[1].ScaleID)
	assert.Equal(t, "b.yaml[1]", report.Reports[1].Source)
	assert.True(t, report.Reports[1].HasIssue(domain.IssueParse))
	assert.Contains(t, report.Reports[1].Errors[0].Message, "expected an integer")

	assert.Equal(t, "c.json", report.Reports[2].Source)
	assert.True(t, report.Reports[2].HasIssue(domain.IssueParse))
}
