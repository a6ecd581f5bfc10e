package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

// MemoryScaleRepository keeps scale versions in process memory.
// It backs the standalone servers and the CLI.
type MemoryScaleRepository struct {
	mu       sync.RWMutex
	versions map[string][]*domain.Scale
	log      *logrus.Logger
}

// NewMemoryScaleRepository creates an empty in-memory repository
func NewMemoryScaleRepository(logger *logrus.Logger) *MemoryScaleRepository {
	return &MemoryScaleRepository{
		versions: make(map[string][]*domain.Scale),
		log:      logger,
	}
}

// Save stores a copy of the scale, replacing any version with the same content hash.
func (r *MemoryScaleRepository) Save(ctx context.Context, scale *domain.Scale) error {
	if scale == nil || scale.ID == "" {
		return fmt.Errorf("saving scale: %w", domain.NewValidationError("id", "scale id is required", nil))
	}
	hash := scale.ContentHash
	if hash == "" {
		hash = domain.ContentHash(scale)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveLocked(scale, hash)
	return nil
}

// Supersede updates the stored status of current and stores next under one lock.
func (r *MemoryScaleRepository) Supersede(ctx context.Context, current, next *domain.Scale) error {
	if current == nil || next == nil || next.ID == "" {
		return fmt.Errorf("superseding scale: %w", domain.NewValidationError("id", "scale id is required", nil))
	}
	hash := next.ContentHash
	if hash == "" {
		hash = domain.ContentHash(next)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var old *domain.Scale
	for _, v := range r.versions[current.ID] {
		if v.ContentHash == current.ContentHash {
			old = v
			break
		}
	}
	if old == nil {
		return fmt.Errorf("scale %s@%s: %w", current.ID, current.ContentHash, domain.ErrNotFound)
	}
	old.Status = current.Status
	r.saveLocked(next, hash)
	return nil
}

func (r *MemoryScaleRepository) saveLocked(scale *domain.Scale, hash string) {
	stored := cloneScale(scale)
	stored.ContentHash = hash

	versions := r.versions[scale.ID]
	for i, v := range versions {
		if v.ContentHash == hash {
			versions[i] = stored
			r.log.WithFields(logrus.Fields{
				"scale_id":     scale.ID,
				"content_hash": hash,
				"status":       stored.Status,
			}).Debug("Scale version replaced")
			return
		}
	}
	r.versions[scale.ID] = append(versions, stored)

	r.log.WithFields(logrus.Fields{
		"scale_id":     scale.ID,
		"content_hash": hash,
		"status":       stored.Status,
	}).Debug("Scale version stored")
}

// Get returns the most recently updated version of a scale.
func (r *MemoryScaleRepository) Get(ctx context.Context, id string) (*domain.Scale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := latestVersion(r.versions[id], "")
	if latest == nil {
		return nil, fmt.Errorf("scale %s: %w", id, domain.ErrNotFound)
	}
	return cloneScale(latest), nil
}

// GetActive returns the active version of a scale.
func (r *MemoryScaleRepository) GetActive(ctx context.Context, id string) (*domain.Scale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.versions[id] {
		if v.Status == domain.StatusActive {
			return cloneScale(v), nil
		}
	}
	return nil, fmt.Errorf("active scale %s: %w", id, domain.ErrNotFound)
}

// GetByHash returns a specific version of a scale.
func (r *MemoryScaleRepository) GetByHash(ctx context.Context, id, contentHash string) (*domain.Scale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.versions[id] {
		if v.ContentHash == contentHash {
			return cloneScale(v), nil
		}
	}
	return nil, fmt.Errorf("scale %s@%s: %w", id, contentHash, domain.ErrNotFound)
}

// SetStatus moves a stored version to a new lifecycle state.
func (r *MemoryScaleRepository) SetStatus(ctx context.Context, id, contentHash string, status domain.ScaleStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.versions[id] {
		if v.ContentHash == contentHash {
			v.Status = status
			return nil
		}
	}
	return fmt.Errorf("scale %s@%s: %w", id, contentHash, domain.ErrNotFound)
}

// List returns the latest version of every scale ordered by id.
// A non-empty status restricts the result to versions in that state.
func (r *MemoryScaleRepository) List(ctx context.Context, status domain.ScaleStatus) ([]*domain.Scale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.versions))
	for id := range r.versions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	scales := make([]*domain.Scale, 0, len(ids))
	for _, id := range ids {
		if latest := latestVersion(r.versions[id], status); latest != nil {
			scales = append(scales, cloneScale(latest))
		}
	}
	return scales, nil
}

// latestVersion prefers the last update; ties go to the later insertion.
func latestVersion(versions []*domain.Scale, status domain.ScaleStatus) *domain.Scale {
	var latest *domain.Scale
	for _, v := range versions {
		if status != "" && v.Status != status {
			continue
		}
		if latest == nil || !v.UpdatedAt.Before(latest.UpdatedAt) {
			latest = v
		}
	}
	return latest
}

func cloneScale(s *domain.Scale) *domain.Scale {
	c := *s
	c.Items = make([]domain.Item, len(s.Items))
	for i, item := range s.Items {
		if item.Alert != nil {
			alert := *item.Alert
			item.Alert = &alert
		}
		item.Options = cloneOptions(item.Options)
		c.Items[i] = item
	}
	c.ResponseOptions = cloneOptions(s.ResponseOptions)
	if s.ResponseGroups != nil {
		c.ResponseGroups = make([]domain.ResponseGroup, len(s.ResponseGroups))
		for i, g := range s.ResponseGroups {
			g.Options = cloneOptions(g.Options)
			c.ResponseGroups[i] = g
		}
	}
	if s.Subscales != nil {
		c.Subscales = make([]domain.Subscale, len(s.Subscales))
		for i, sub := range s.Subscales {
			sub.Items = append([]int(nil), sub.Items...)
			if sub.Reliability != nil {
				r := *sub.Reliability
				sub.Reliability = &r
			}
			c.Subscales[i] = sub
		}
	}
	if s.InterpretationRules != nil {
		c.InterpretationRules = make([]domain.InterpretationRule, len(s.InterpretationRules))
		for i, rule := range s.InterpretationRules {
			rule.Recommendations = append([]string(nil), rule.Recommendations...)
			c.InterpretationRules[i] = rule
		}
	}
	return &c
}

func cloneOptions(opts []domain.ResponseOption) []domain.ResponseOption {
	if opts == nil {
		return nil
	}
	return append([]domain.ResponseOption(nil), opts...)
}
