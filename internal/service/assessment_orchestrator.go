package service

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

const totalScope = "total"

// AssessmentOrchestrator composes scoring, subscale aggregation and
// interpretation into a single operation. Given the same scale, responses and
// clock it always produces the same result.
type AssessmentOrchestrator struct {
	logger      *logrus.Logger
	resolver    *ResponseOptionResolver
	scorer      *ScoringEngine
	aggregator  *SubscaleAggregator
	interpreter *InterpretationResolver
	now         func() time.Time
}

// OrchestratorOption configures an AssessmentOrchestrator.
type OrchestratorOption func(*AssessmentOrchestrator)

// WithClock overrides the source of ComputedAt.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *AssessmentOrchestrator) {
		o.now = now
	}
}

// NewAssessmentOrchestrator creates a new assessment orchestrator
func NewAssessmentOrchestrator(logger *logrus.Logger, opts ...OrchestratorOption) *AssessmentOrchestrator {
	resolver := NewResponseOptionResolver()
	o := &AssessmentOrchestrator{
		logger:      logger,
		resolver:    resolver,
		scorer:      NewScoringEngine(logger, resolver),
		aggregator:  NewSubscaleAggregator(logger, resolver),
		interpreter: NewInterpretationResolver(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessAssessment scores responses against a scale definition.
//
// Only two conditions reject the request outright: an empty response list and a
// scale that has never been activated. Everything else is soft: per-item
// problems become flags, missing interpretations become anomalies.
func (o *AssessmentOrchestrator) ProcessAssessment(scale *domain.Scale, responses []domain.Response) (*domain.AssessmentResult, error) {
	if scale == nil {
		return nil, fmt.Errorf("scale definition is required: %w", domain.ErrNotFound)
	}
	if len(responses) == 0 {
		return nil, &domain.ScaleError{ScaleID: scale.ID, Err: domain.ErrEmptyResponses}
	}
	if !scale.Status.HasBeenActive() {
		return nil, &domain.ScaleError{ScaleID: scale.ID, Err: domain.ErrScaleNotActive}
	}

	o.logger.WithFields(logrus.Fields{
		"scale_id":  scale.ID,
		"responses": len(responses),
	}).Debug("Processing assessment")

	scored := o.scorer.Score(scale, responses)

	result := &domain.AssessmentResult{
		ScaleID:     scale.ID,
		ContentHash: scale.ContentHash,
		TotalScore: domain.TotalScore{
			Raw:                  scored.Raw,
			ValidResponses:       scored.ValidResponses,
			CompletionPercentage: scored.CompletionPercentage,
		},
		Complete:   scored.ValidResponses >= scored.TotalItems,
		ItemScores: scored.ItemScores,
		Flags:      scored.Flags,
	}
	if result.ContentHash == "" {
		result.ContentHash = domain.ContentHash(scale)
	}

	if !result.Complete {
		result.Anomalies = append(result.Anomalies, domain.Anomaly{
			Code:  domain.AnomalyIncomplete,
			Scope: totalScope,
			Score: scored.Raw,
			Message: fmt.Sprintf("%d of %d items have a valid response (%.2f%%)",
				scored.ValidResponses, scored.TotalItems, scored.CompletionPercentage),
		})
	}

	result.Interpretation = o.interpret(scale, scored.Raw, "", result)

	result.SubscaleScores = o.aggregator.Aggregate(scale, scored.EffectiveScores())
	for i := range result.SubscaleScores {
		sub := &result.SubscaleScores[i]
		if len(scale.RulesForScope(sub.SubscaleID)) == 0 {
			continue
		}
		sub.Interpretation = o.interpret(scale, sub.Score, sub.SubscaleID, result)
	}

	result.Alerts = triggeredAlerts(scale, scored.ItemScores)
	for _, alert := range result.Alerts {
		o.logger.WithFields(logrus.Fields{
			"scale_id":    scale.ID,
			"item_number": alert.ItemNumber,
			"score":       alert.Score,
		}).Warn("Item alert triggered")
	}

	result.ComputedAt = o.now().UTC()

	o.logger.WithFields(logrus.Fields{
		"scale_id":   scale.ID,
		"raw":        result.TotalScore.Raw,
		"completion": result.TotalScore.CompletionPercentage,
		"anomalies":  len(result.Anomalies),
	}).Info("Processed assessment")

	return result, nil
}

// Interpret resolves a single score against the rules of one scope.
// An empty subscaleID selects the total-score rules.
func (o *AssessmentOrchestrator) Interpret(scale *domain.Scale, score float64, subscaleID string) InterpretationOutcome {
	return o.interpreter.Interpret(score, scale.RulesForScope(subscaleID))
}

// interpret resolves one scope and records anomalies on the result.
func (o *AssessmentOrchestrator) interpret(scale *domain.Scale, score float64, subscaleID string, result *domain.AssessmentResult) *domain.Interpretation {
	outcome := o.Interpret(scale, score, subscaleID)
	scope := totalScope
	if subscaleID != "" {
		scope = subscaleID
	}

	if !outcome.Matched {
		result.Anomalies = append(result.Anomalies, domain.Anomaly{
			Code:       domain.AnomalyNoInterpretationMatch,
			Scope:      scope,
			SubscaleID: subscaleID,
			Score:      score,
			Message:    fmt.Sprintf("interpretation unavailable: %v", domain.ErrNoInterpretationMatch),
		})
		o.logger.WithFields(logrus.Fields{
			"scale_id": scale.ID,
			"scope":    scope,
			"score":    score,
			"anomaly":  domain.AnomalyNoInterpretationMatch,
		}).Warn("No interpretation rule matched")
		return nil
	}

	if outcome.Overlapping() {
		result.Anomalies = append(result.Anomalies, domain.Anomaly{
			Code:       domain.AnomalyOverlappingRules,
			Scope:      scope,
			SubscaleID: subscaleID,
			Score:      score,
			Message:    fmt.Sprintf("%d rules contain this score; using %q", outcome.Matches, outcome.Interpretation.Label),
		})
		o.logger.WithFields(logrus.Fields{
			"scale_id": scale.ID,
			"scope":    scope,
			"score":    score,
			"anomaly":  domain.AnomalyOverlappingRules,
		}).Warn("Overlapping interpretation rules")
	}

	return outcome.Interpretation
}

func triggeredAlerts(scale *domain.Scale, scores []domain.ItemScore) []domain.TriggeredAlert {
	var alerts []domain.TriggeredAlert
	for _, s := range scores {
		item, ok := scale.ItemByNumber(s.ItemNumber)
		if !ok || item.Alert == nil {
			continue
		}
		if s.EffectiveScore >= item.Alert.Threshold {
			alerts = append(alerts, domain.TriggeredAlert{
				ItemID:     item.ID,
				ItemNumber: item.Number,
				Score:      s.EffectiveScore,
				Message:    item.Alert.Message,
			})
		}
	}
	return alerts
}
