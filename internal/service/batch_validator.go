package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

// BatchValidator validates many definitions with bounded concurrency.
// A definition that crashes its validation is reported as invalid and the
// rest of the batch continues.
type BatchValidator struct {
	logger      *logrus.Logger
	validator   *ScaleDefinitionValidator
	concurrency int
}

// NewBatchValidator creates a batch validator running at most concurrency validations at once
func NewBatchValidator(logger *logrus.Logger, validator *ScaleDefinitionValidator, concurrency int) *BatchValidator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchValidator{
		logger:      logger,
		validator:   validator,
		concurrency: concurrency,
	}
}

// BatchInput is one definition handed to a batch. Err marks a definition
// that could not be read or decoded; it is reported as a PARSE_ERROR without
// being validated.
type BatchInput struct {
	Source string
	ID     string
	Scale  *domain.Scale
	Err    error
}

// ValidateBatch returns one report per input, in input order.
// Cancelling ctx stops scheduling new validations; unscheduled entries are
// reported as invalid.
func (b *BatchValidator) ValidateBatch(ctx context.Context, scales []*domain.Scale) *domain.BatchReport {
	inputs := make([]BatchInput, len(scales))
	for i, scale := range scales {
		inputs[i] = BatchInput{Scale: scale}
	}
	return b.ValidateInputs(ctx, inputs)
}

// ValidateInputs is ValidateBatch for inputs that may already have failed
// decoding. A failed input never stops the others.
func (b *BatchValidator) ValidateInputs(ctx context.Context, inputs []BatchInput) *domain.BatchReport {
	reports := make([]*domain.ValidationReport, len(inputs))
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for i, in := range inputs {
		if in.Err != nil {
			reports[i] = parseFailedReport(in)
			continue
		}
		if !b.acquire(ctx, sem) {
			for j := i; j < len(inputs); j++ {
				if inputs[j].Err != nil {
					reports[j] = parseFailedReport(inputs[j])
				} else {
					reports[j] = failedReport(inputs[j].Scale, ctx.Err())
				}
				reports[j].Source = inputs[j].Source
			}
			break
		}

		wg.Add(1)
		go func(i int, in BatchInput) {
			defer wg.Done()
			defer func() { <-sem }()
			report := b.validateOne(in.Scale)
			report.Source = in.Source
			reports[i] = report
		}(i, in)
	}
	wg.Wait()

	batch := &domain.BatchReport{
		Total:   len(reports),
		Reports: reports,
	}
	for _, r := range reports {
		if r.IsValid {
			batch.Valid++
		} else {
			batch.Invalid++
		}
	}
	if batch.Total > 0 {
		batch.SuccessRate = round2(float64(batch.Valid) / float64(batch.Total) * 100)
	}

	b.logger.WithFields(logrus.Fields{
		"total":        batch.Total,
		"valid":        batch.Valid,
		"invalid":      batch.Invalid,
		"success_rate": batch.SuccessRate,
	}).Info("Completed batch validation")

	return batch
}

// acquire takes a worker slot unless ctx is already done.
func (b *BatchValidator) acquire(ctx context.Context, sem chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case sem <- struct{}{}:
		return true
	}
}

func (b *BatchValidator) validateOne(scale *domain.Scale) (report *domain.ValidationReport) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("panic", r).Error("Scale validation crashed")
			report = failedReport(scale, fmt.Errorf("validation crashed: %v", r))
		}
	}()
	return b.validator.Validate(scale)
}

func parseFailedReport(in BatchInput) *domain.ValidationReport {
	return &domain.ValidationReport{
		ScaleID: in.ID,
		Source:  in.Source,
		Errors: []domain.ValidationIssue{{
			Type:     domain.IssueParse,
			Severity: domain.SeverityError,
			Message:  in.Err.Error(),
		}},
		Warnings: []domain.ValidationIssue{},
	}
}

func failedReport(scale *domain.Scale, err error) *domain.ValidationReport {
	report := &domain.ValidationReport{
		Errors: []domain.ValidationIssue{{
			Type:     domain.IssueRuleFailure,
			Severity: domain.SeverityError,
			Message:  err.Error(),
		}},
		Warnings: []domain.ValidationIssue{},
	}
	if scale != nil {
		report.ScaleID = scale.ID
	}
	return report
}
