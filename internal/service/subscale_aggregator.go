package service

import (
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

// SubscaleAggregator sums effective item scores per declared subscale.
type SubscaleAggregator struct {
	logger   *logrus.Logger
	resolver *ResponseOptionResolver
}

// NewSubscaleAggregator creates a new subscale aggregator
func NewSubscaleAggregator(logger *logrus.Logger, resolver *ResponseOptionResolver) *SubscaleAggregator {
	if resolver == nil {
		resolver = NewResponseOptionResolver()
	}
	return &SubscaleAggregator{
		logger:   logger,
		resolver: resolver,
	}
}

// Aggregate computes one SubscaleScore per subscale, in declaration order.
// scores maps item numbers to effective scores; members without a score count
// as zero and are listed in MissingItems. Interpretation is left to the caller.
func (a *SubscaleAggregator) Aggregate(scale *domain.Scale, scores map[int]float64) []domain.SubscaleScore {
	maxOption, _ := ScaleMaxOptionScore(scale, a.resolver)
	results := make([]domain.SubscaleScore, 0, len(scale.Subscales))

	for _, sub := range scale.Subscales {
		out := domain.SubscaleScore{
			SubscaleID: sub.ID,
			Name:       sub.Name,
		}

		members := distinctMembers(sub.Items)
		for _, n := range members {
			if s, ok := scores[n]; ok {
				out.Score += s
				out.AnsweredItems++
			} else {
				out.MissingItems = append(out.MissingItems, n)
			}
		}

		out.MaxScore = maxOption * float64(len(members))
		if out.MaxScore > 0 {
			out.Percentile = round2(out.Score / out.MaxScore * 100)
		}

		a.logger.WithFields(logrus.Fields{
			"scale_id":    scale.ID,
			"subscale_id": sub.ID,
			"score":       out.Score,
			"missing":     len(out.MissingItems),
		}).Debug("Aggregated subscale")

		results = append(results, out)
	}

	return results
}

// distinctMembers drops repeated item numbers, keeping first occurrence order.
func distinctMembers(items []int) []int {
	seen := make(map[int]bool, len(items))
	out := make([]int, 0, len(items))
	for _, n := range items {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
