package service

import (
	"fmt"
	"time"

	"github.com/clinimetric-scale-server/internal/domain"
)

// transitions lists the allowed lifecycle moves. An empty status is a draft.
var transitions = map[domain.ScaleStatus][]domain.ScaleStatus{
	domain.StatusDraft:     {domain.StatusValidated, domain.StatusActive},
	domain.StatusValidated: {domain.StatusValidated, domain.StatusActive},
	domain.StatusActive:    {domain.StatusSuperseded, domain.StatusDeactivated},
}

// ScaleLifecycle enforces Draft -> Validated -> Active -> {Superseded | Deactivated}.
// The only path into Active is a validation report with no errors for the exact
// content being activated.
type ScaleLifecycle struct {
	now func() time.Time
}

// NewScaleLifecycle creates a lifecycle state machine
func NewScaleLifecycle(now func() time.Time) *ScaleLifecycle {
	if now == nil {
		now = time.Now
	}
	return &ScaleLifecycle{now: now}
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to domain.ScaleStatus) bool {
	if from == "" {
		from = domain.StatusDraft
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// MarkValidated moves a draft to Validated when the report has no errors.
func (l *ScaleLifecycle) MarkValidated(scale *domain.Scale, report *domain.ValidationReport) error {
	if err := l.checkReport(scale, report); err != nil {
		return err
	}
	return l.move(scale, domain.StatusValidated)
}

// Activate moves a draft or validated scale to Active.
func (l *ScaleLifecycle) Activate(scale *domain.Scale, report *domain.ValidationReport) error {
	if err := l.checkReport(scale, report); err != nil {
		return err
	}
	if scale.Version == 0 {
		scale.Version = 1
	}
	return l.move(scale, domain.StatusActive)
}

// Supersede activates next as the successor of the active version current.
// The content hashes must differ; current is marked Superseded, never edited.
func (l *ScaleLifecycle) Supersede(current, next *domain.Scale, report *domain.ValidationReport) error {
	if current.Status != domain.StatusActive {
		return &domain.ScaleError{
			ScaleID: current.ID,
			Err:     fmt.Errorf("%w: cannot supersede a %s scale", domain.ErrInvalidTransition, statusName(current.Status)),
		}
	}

	currentHash := current.ContentHash
	if currentHash == "" {
		currentHash = domain.ContentHash(current)
	}
	if currentHash == domain.ContentHash(next) {
		return &domain.ScaleError{ScaleID: next.ID, Err: domain.ErrUnchangedContent}
	}

	if err := l.checkReport(next, report); err != nil {
		return err
	}
	if !CanTransition(next.Status, domain.StatusActive) {
		return &domain.ScaleError{
			ScaleID: next.ID,
			Err:     fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, statusName(next.Status), domain.StatusActive),
		}
	}

	next.Version = current.Version + 1
	if err := l.move(next, domain.StatusActive); err != nil {
		return err
	}
	return l.move(current, domain.StatusSuperseded)
}

// Deactivate retires an active scale. Deactivated scales are kept for
// recomputing historic assessments.
func (l *ScaleLifecycle) Deactivate(scale *domain.Scale) error {
	return l.move(scale, domain.StatusDeactivated)
}

func (l *ScaleLifecycle) checkReport(scale *domain.Scale, report *domain.ValidationReport) error {
	if report == nil || !report.IsValid {
		return &domain.ScaleError{ScaleID: scale.ID, Err: domain.ErrValidationFailed}
	}
	hash := domain.ContentHash(scale)
	if report.ContentHash != "" && report.ContentHash != hash {
		return &domain.ScaleError{
			ScaleID: scale.ID,
			Err:     fmt.Errorf("%w: report was produced for different content", domain.ErrValidationFailed),
		}
	}
	scale.ContentHash = hash
	return nil
}

func (l *ScaleLifecycle) move(scale *domain.Scale, to domain.ScaleStatus) error {
	if !CanTransition(scale.Status, to) {
		return &domain.ScaleError{
			ScaleID: scale.ID,
			Err:     fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, statusName(scale.Status), to),
		}
	}
	scale.Status = to
	scale.UpdatedAt = l.now().UTC()
	return nil
}

func statusName(s domain.ScaleStatus) string {
	if s == "" {
		return string(domain.StatusDraft)
	}
	return string(s)
}
