package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/clinimetric-scale-server/internal/domain"
)

// ResponseOptionResolver decides which response options apply to an item.
//
// Precedence, highest first: options bound to the item itself, options of the
// item's response group, scale-global options. The first non-empty source wins;
// sources are never merged.
type ResponseOptionResolver struct{}

// NewResponseOptionResolver creates a new resolver
func NewResponseOptionResolver() *ResponseOptionResolver {
	return &ResponseOptionResolver{}
}

// Resolve returns the ordered option set for an item.
// It returns domain.ErrNotApplicable for free-form question types and
// domain.ErrNoOptionsAvailable when a categorical item has no options in any scope.
func (r *ResponseOptionResolver) Resolve(item *domain.Item, scale *domain.Scale) (domain.OptionSet, error) {
	if !item.QuestionType.RequiresOptions() {
		return domain.OptionSet{}, fmt.Errorf("item %d (%s): %w", item.Number, item.QuestionType, domain.ErrNotApplicable)
	}

	if len(item.Options) > 0 {
		return domain.OptionSet{Source: domain.SourceItem, Options: orderedCopy(item.Options)}, nil
	}

	if item.ResponseGroup != "" {
		if group, ok := scale.ResponseGroupByKey(item.ResponseGroup); ok && len(group.Options) > 0 {
			return domain.OptionSet{Source: domain.SourceGroup, Options: orderedCopy(group.Options)}, nil
		}
	}

	if len(scale.ResponseOptions) > 0 {
		return domain.OptionSet{Source: domain.SourceGlobal, Options: orderedCopy(scale.ResponseOptions)}, nil
	}

	return domain.OptionSet{}, fmt.Errorf("item %d: %w", item.Number, domain.ErrNoOptionsAvailable)
}

// MatchOption finds the option whose value equals the submitted value.
func MatchOption(set domain.OptionSet, value domain.Value) (domain.ResponseOption, bool) {
	for _, opt := range set.Options {
		if opt.Value.Equal(value) {
			return opt, true
		}
	}
	return domain.ResponseOption{}, false
}

// ScaleMaxOptionScore is the per-item ceiling used for theoretical and subscale maxima.
// Global options define it when present; otherwise it is the highest score any
// categorical item can resolve to. The second return value is false when the
// scale has no resolvable options at all.
func ScaleMaxOptionScore(scale *domain.Scale, resolver *ResponseOptionResolver) (float64, bool) {
	if len(scale.ResponseOptions) > 0 {
		return domain.OptionSet{Options: scale.ResponseOptions}.MaxScore(), true
	}

	max := math.Inf(-1)
	for i := range scale.Items {
		set, err := resolver.Resolve(&scale.Items[i], scale)
		if err != nil || len(set.Options) == 0 {
			continue
		}
		if m := set.MaxScore(); m > max {
			max = m
		}
	}
	if math.IsInf(max, -1) {
		return 0, false
	}
	return max, true
}

// orderedCopy returns the options sorted by their explicit Order, keeping
// declaration order for ties. The caller's slice is never reordered.
func orderedCopy(options []domain.ResponseOption) []domain.ResponseOption {
	out := make([]domain.ResponseOption, len(options))
	copy(out, options)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
