package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

// ScoringEngine converts raw responses into per-item effective scores and a total.
// Problems with individual responses are recorded as flags and the item is left
// out of the sum; scoring never aborts because of a single response.
type ScoringEngine struct {
	logger   *logrus.Logger
	resolver *ResponseOptionResolver
}

// NewScoringEngine creates a new scoring engine
func NewScoringEngine(logger *logrus.Logger, resolver *ResponseOptionResolver) *ScoringEngine {
	if resolver == nil {
		resolver = NewResponseOptionResolver()
	}
	return &ScoringEngine{
		logger:   logger,
		resolver: resolver,
	}
}

// Score computes effective item scores, the raw total and completion.
func (e *ScoringEngine) Score(scale *domain.Scale, responses []domain.Response) *domain.ScoreResult {
	byID := make(map[string]*domain.Item, len(scale.Items))
	for i := range scale.Items {
		byID[scale.Items[i].ID] = &scale.Items[i]
	}

	result := &domain.ScoreResult{
		TotalItems: completionBase(scale),
		ItemScores: []domain.ItemScore{},
	}
	scored := make(map[string]bool, len(responses))

	for _, resp := range responses {
		item, ok := byID[resp.ItemID]
		if !ok {
			result.Flags = append(result.Flags, domain.ItemFlag{
				ItemID:  resp.ItemID,
				Code:    domain.FlagUnknownItem,
				Message: fmt.Sprintf("%v: %s", domain.ErrUnknownItem, resp.ItemID),
			})
			continue
		}

		if scored[item.ID] {
			result.Flags = append(result.Flags, domain.ItemFlag{
				ItemID:     item.ID,
				ItemNumber: item.Number,
				Code:       domain.FlagDuplicateResponse,
				Message:    fmt.Sprintf("item %d already has a scored response; later response ignored", item.Number),
			})
			continue
		}

		if resp.WasSkipped || resp.Value.IsEmpty() {
			result.Flags = append(result.Flags, domain.ItemFlag{
				ItemID:     item.ID,
				ItemNumber: item.Number,
				Code:       domain.FlagSkipped,
				Message:    fmt.Sprintf("item %d was skipped", item.Number),
			})
			continue
		}

		score, flag := e.scoreItem(scale, item, resp.Value)
		if flag != nil {
			e.logger.WithFields(logrus.Fields{
				"scale_id":    scale.ID,
				"item_number": item.Number,
				"flag":        flag.Code,
			}).Warn("Response excluded from score")
			result.Flags = append(result.Flags, *flag)
			continue
		}

		scored[item.ID] = true
		result.ItemScores = append(result.ItemScores, score)
	}

	sort.SliceStable(result.ItemScores, func(i, j int) bool {
		return result.ItemScores[i].ItemNumber < result.ItemScores[j].ItemNumber
	})
	for _, s := range result.ItemScores {
		result.Raw += s.EffectiveScore
	}
	result.ValidResponses = len(result.ItemScores)
	result.CompletionPercentage = completion(result.ValidResponses, result.TotalItems)

	e.logger.WithFields(logrus.Fields{
		"scale_id":        scale.ID,
		"raw":             result.Raw,
		"valid_responses": result.ValidResponses,
		"flags":           len(result.Flags),
	}).Debug("Scored responses")

	return result
}

// scoreItem maps one answered response onto its effective score.
func (e *ScoringEngine) scoreItem(scale *domain.Scale, item *domain.Item, value domain.Value) (domain.ItemScore, *domain.ItemFlag) {
	score := domain.ItemScore{ItemID: item.ID, ItemNumber: item.Number}

	switch item.QuestionType {
	case domain.QuestionFreeText:
		return score, nil
	case domain.QuestionNumeric:
		v, ok := value.Float()
		if !ok {
			return score, unmappable(item, value)
		}
		score.NominalScore = v
		score.EffectiveScore = v
		return score, nil
	}

	set, err := e.resolver.Resolve(item, scale)
	if err != nil {
		if errors.Is(err, domain.ErrNoOptionsAvailable) {
			return score, &domain.ItemFlag{
				ItemID:     item.ID,
				ItemNumber: item.Number,
				Code:       domain.FlagNoOptions,
				Message:    err.Error(),
			}
		}
		return score, unmappable(item, value)
	}

	opt, ok := MatchOption(set, value)
	if !ok {
		return score, unmappable(item, value)
	}

	score.NominalScore = opt.Score
	score.EffectiveScore = opt.Score
	if item.ReverseScored {
		score.EffectiveScore = ReverseScore(set, opt.Score)
		score.Reversed = true
	}
	return score, nil
}

// ReverseScore inverts a nominal score within its resolved option set:
// max(option scores) - nominal. Applying it twice yields the nominal score.
func ReverseScore(set domain.OptionSet, nominal float64) float64 {
	return set.MaxScore() - nominal
}

func unmappable(item *domain.Item, value domain.Value) *domain.ItemFlag {
	return &domain.ItemFlag{
		ItemID:     item.ID,
		ItemNumber: item.Number,
		Code:       domain.FlagUnmappableResponse,
		Message:    fmt.Sprintf("item %d: %v: %q", item.Number, domain.ErrUnmappableResponse, value.String()),
	}
}

// completionBase is the completion denominator. A declared totalItems below the
// real item count is only a warning, so the defined items set the floor and
// completion stays within 100.
func completionBase(scale *domain.Scale) int {
	if n := len(scale.Items); n > scale.ExpectedItems() {
		return n
	}
	return scale.ExpectedItems()
}

// completion is answered/expected as a percentage rounded to two decimals.
func completion(answered, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	if answered > expected {
		answered = expected
	}
	return round2(float64(answered) / float64(expected) * 100)
}
