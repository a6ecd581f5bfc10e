package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clinimetric-scale-server/internal/domain"
)

// BreakerConfig represents circuit breaker configuration
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MaxFailures uint32
}

// BreakerRepository guards a scale repository with a circuit breaker so a failing
// database fails fast instead of stalling every request.
type BreakerRepository struct {
	next    domain.ScaleRepository
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// NewBreakerRepository wraps next with a circuit breaker
func NewBreakerRepository(next domain.ScaleRepository, config BreakerConfig, logger *logrus.Logger) *BreakerRepository {
	if config.Name == "" {
		config.Name = "scale-repository"
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	maxFailures := config.MaxFailures

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Lookups that miss and definitions that fail validation are answers, not outages.
		IsSuccessful: func(err error) bool {
			var validationErr *domain.ValidationError
			return err == nil || errors.Is(err, domain.ErrNotFound) || errors.As(err, &validationErr)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &BreakerRepository{
		next:    next,
		breaker: breaker,
		log:     logger,
	}
}

// State reports the breaker state for health checks.
func (r *BreakerRepository) State() gobreaker.State {
	return r.breaker.State()
}

func (r *BreakerRepository) Get(ctx context.Context, id string) (*domain.Scale, error) {
	return r.getScale(func() (*domain.Scale, error) {
		return r.next.Get(ctx, id)
	})
}

func (r *BreakerRepository) GetActive(ctx context.Context, id string) (*domain.Scale, error) {
	return r.getScale(func() (*domain.Scale, error) {
		return r.next.GetActive(ctx, id)
	})
}

func (r *BreakerRepository) GetByHash(ctx context.Context, id, contentHash string) (*domain.Scale, error) {
	return r.getScale(func() (*domain.Scale, error) {
		return r.next.GetByHash(ctx, id, contentHash)
	})
}

func (r *BreakerRepository) Save(ctx context.Context, scale *domain.Scale) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.next.Save(ctx, scale)
	})
	return err
}

func (r *BreakerRepository) SetStatus(ctx context.Context, id, contentHash string, status domain.ScaleStatus) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.next.SetStatus(ctx, id, contentHash, status)
	})
	return err
}

func (r *BreakerRepository) Supersede(ctx context.Context, current, next *domain.Scale) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.next.Supersede(ctx, current, next)
	})
	return err
}

func (r *BreakerRepository) List(ctx context.Context, status domain.ScaleStatus) ([]*domain.Scale, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.next.List(ctx, status)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.Scale), nil
}

func (r *BreakerRepository) getScale(fn func() (*domain.Scale, error)) (*domain.Scale, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Scale), nil
}
