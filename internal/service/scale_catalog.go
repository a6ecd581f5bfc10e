package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

// ScaleCatalog is the application service behind the HTTP, MCP and CLI surfaces.
// It connects the pure scoring core to the persistence, cache and audit ports.
type ScaleCatalog struct {
	logger       *logrus.Logger
	repo         domain.ScaleRepository
	cache        domain.ReportCache
	results      domain.ResultStore
	validator    *ScaleDefinitionValidator
	lifecycle    *ScaleLifecycle
	orchestrator *AssessmentOrchestrator
	now          func() time.Time
}

// CatalogOption configures a ScaleCatalog.
type CatalogOption func(*ScaleCatalog)

// WithReportCache caches validation reports by content hash.
func WithReportCache(cache domain.ReportCache) CatalogOption {
	return func(c *ScaleCatalog) {
		c.cache = cache
	}
}

// WithResultStore records every scored assessment.
func WithResultStore(store domain.ResultStore) CatalogOption {
	return func(c *ScaleCatalog) {
		c.results = store
	}
}

// WithCatalogClock overrides the clock used for timestamps.
func WithCatalogClock(now func() time.Time) CatalogOption {
	return func(c *ScaleCatalog) {
		c.now = now
	}
}

// NewScaleCatalog creates a new scale catalog
func NewScaleCatalog(
	logger *logrus.Logger,
	repo domain.ScaleRepository,
	validator *ScaleDefinitionValidator,
	orchestrator *AssessmentOrchestrator,
	opts ...CatalogOption,
) *ScaleCatalog {
	c := &ScaleCatalog{
		logger:       logger,
		repo:         repo,
		validator:    validator,
		orchestrator: orchestrator,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lifecycle = NewScaleLifecycle(c.now)
	return c
}

// ValidateDefinition validates a definition, reusing a cached report when the
// same content was validated before.
func (c *ScaleCatalog) ValidateDefinition(ctx context.Context, scale *domain.Scale) *domain.ValidationReport {
	if scale == nil {
		return c.validator.Validate(nil)
	}
	hash := domain.ContentHash(scale)

	if c.cache != nil {
		if report, ok := c.cache.Get(ctx, hash); ok {
			c.logger.WithField("scale_id", scale.ID).Debug("Validation report served from cache")
			return report
		}
	}

	report := c.validator.Validate(scale)

	if c.cache != nil {
		if err := c.cache.Set(ctx, hash, report); err != nil {
			c.logger.WithError(err).WithField("scale_id", scale.ID).Warn("Failed to cache validation report")
		}
	}
	return report
}

// Import validates a definition and stores it as a new draft, or as validated
// when the report has no errors. Content identical to a stored version is not
// stored again.
func (c *ScaleCatalog) Import(ctx context.Context, scale *domain.Scale) (*domain.Scale, *domain.ValidationReport, error) {
	report := c.ValidateDefinition(ctx, scale)
	if scale == nil {
		return nil, report, domain.ErrValidationFailed
	}

	hash := domain.ContentHash(scale)
	existing, err := c.repo.GetByHash(ctx, scale.ID, hash)
	switch {
	case err == nil:
		c.logger.WithFields(logrus.Fields{
			"scale_id":     scale.ID,
			"content_hash": hash,
			"status":       existing.Status,
		}).Info("Scale content already stored")
		return existing, report, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, report, fmt.Errorf("failed to look up scale version: %w", err)
	}

	scale.Status = domain.StatusDraft
	scale.ContentHash = hash
	scale.Version = 0
	now := c.now().UTC()
	scale.CreatedAt = now
	scale.UpdatedAt = now

	if report.IsValid {
		if err := c.lifecycle.MarkValidated(scale, report); err != nil {
			return nil, report, err
		}
	}

	if err := c.repo.Save(ctx, scale); err != nil {
		return nil, report, fmt.Errorf("failed to store scale: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"scale_id":     scale.ID,
		"content_hash": hash,
		"status":       scale.Status,
	}).Info("Imported scale definition")

	return scale, report, nil
}

// Activate activates a stored version. An empty contentHash selects the most
// recently stored version. A currently active version with different content
// is superseded.
func (c *ScaleCatalog) Activate(ctx context.Context, id, contentHash string) (*domain.Scale, *domain.ValidationReport, error) {
	candidate, err := c.load(ctx, id, contentHash)
	if err != nil {
		return nil, nil, err
	}

	report := c.ValidateDefinition(ctx, candidate)

	current, err := c.repo.GetActive(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if err := c.lifecycle.Activate(candidate, report); err != nil {
			return nil, report, err
		}
		if err := c.repo.Save(ctx, candidate); err != nil {
			return nil, report, fmt.Errorf("failed to activate scale: %w", err)
		}
	case err != nil:
		return nil, report, fmt.Errorf("failed to load active scale: %w", err)
	case current.ContentHash == domain.ContentHash(candidate):
		return current, report, nil
	default:
		if err := c.lifecycle.Supersede(current, candidate, report); err != nil {
			return nil, report, err
		}
		if err := c.repo.Supersede(ctx, current, candidate); err != nil {
			return nil, report, fmt.Errorf("failed to supersede scale: %w", err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"scale_id":     candidate.ID,
		"content_hash": candidate.ContentHash,
		"version":      candidate.Version,
	}).Info("Activated scale")

	return candidate, report, nil
}

// Deactivate retires the active version of a scale.
func (c *ScaleCatalog) Deactivate(ctx context.Context, id string) (*domain.Scale, error) {
	scale, err := c.repo.GetActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.lifecycle.Deactivate(scale); err != nil {
		return nil, err
	}
	if err := c.repo.SetStatus(ctx, scale.ID, scale.ContentHash, scale.Status); err != nil {
		return nil, fmt.Errorf("failed to deactivate scale: %w", err)
	}

	c.logger.WithField("scale_id", id).Info("Deactivated scale")
	return scale, nil
}

// Get returns the latest stored version of a scale.
func (c *ScaleCatalog) Get(ctx context.Context, id string) (*domain.Scale, error) {
	return c.repo.Get(ctx, id)
}

// List returns the latest version of every scale, optionally filtered by status.
func (c *ScaleCatalog) List(ctx context.Context, status domain.ScaleStatus) ([]*domain.Scale, error) {
	return c.repo.List(ctx, status)
}

// Score processes an assessment against the active version of a stored scale
// and records the result when a result store is configured.
func (c *ScaleCatalog) Score(ctx context.Context, id, subjectRef string, responses []domain.Response) (*domain.AssessmentResult, error) {
	scale, err := c.repo.GetActive(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := c.orchestrator.ProcessAssessment(scale, responses)
	if err != nil {
		return nil, err
	}

	if c.results != nil {
		record := &domain.AssessmentRecord{
			ID:           uuid.New().String(),
			ScaleID:      result.ScaleID,
			ContentHash:  result.ContentHash,
			SubjectRef:   subjectRef,
			RawScore:     result.TotalScore.Raw,
			Completion:   result.TotalScore.CompletionPercentage,
			Responses:    responses,
			Result:       result,
			RecordedAt:   c.now().UTC(),
			AnomalyCount: len(result.Anomalies),
		}
		if result.Interpretation != nil {
			record.Label = result.Interpretation.Label
		}
		if err := c.results.Save(ctx, record); err != nil {
			c.logger.WithError(err).WithField("scale_id", id).Error("Failed to record assessment result")
		}
	}

	return result, nil
}

// PreviewScore scores responses against an unstored definition. The definition
// is activated in memory only, and only when its validation report has no
// errors; an invalid definition returns the report with ErrValidationFailed.
func (c *ScaleCatalog) PreviewScore(ctx context.Context, scale *domain.Scale, responses []domain.Response) (*domain.AssessmentResult, *domain.ValidationReport, error) {
	report := c.ValidateDefinition(ctx, scale)
	if scale == nil || !report.IsValid {
		id := ""
		if scale != nil {
			id = scale.ID
		}
		return nil, report, &domain.ScaleError{ScaleID: id, Err: domain.ErrValidationFailed}
	}

	preview := *scale
	if !preview.Status.HasBeenActive() {
		preview.Status = ""
		if err := c.lifecycle.Activate(&preview, report); err != nil {
			return nil, report, err
		}
	}

	result, err := c.orchestrator.ProcessAssessment(&preview, responses)
	if err != nil {
		return nil, report, err
	}
	return result, report, nil
}

// Interpret resolves a score against the rules of one scope of a stored scale.
func (c *ScaleCatalog) Interpret(ctx context.Context, id string, score float64, subscaleID string) (InterpretationOutcome, error) {
	scale, err := c.repo.Get(ctx, id)
	if err != nil {
		return InterpretationOutcome{}, err
	}
	if subscaleID != "" {
		if _, ok := scale.SubscaleByID(subscaleID); !ok {
			return InterpretationOutcome{}, fmt.Errorf("subscale %s: %w", subscaleID, domain.ErrNotFound)
		}
	}
	return c.orchestrator.Interpret(scale, score, subscaleID), nil
}

func (c *ScaleCatalog) load(ctx context.Context, id, contentHash string) (*domain.Scale, error) {
	if contentHash != "" {
		return c.repo.GetByHash(ctx, id, contentHash)
	}
	return c.repo.Get(ctx, id)
}
