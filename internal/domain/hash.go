package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// hashedContent is the subset of a Scale that defines its clinical content.
// Lifecycle state, version numbers and timestamps do not change the hash.
type hashedContent struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	Abbreviation        string               `json:"abbreviation"`
	Description         string               `json:"description"`
	Category            string               `json:"category"`
	TotalItems          int                  `json:"totalItems"`
	ScoringMethod       ScoringMethod        `json:"scoringMethod"`
	ScoreRangeMin       float64              `json:"scoreRangeMin"`
	ScoreRangeMax       float64              `json:"scoreRangeMax"`
	Items               []Item               `json:"items,omitempty"`
	ResponseGroups      []ResponseGroup      `json:"responseGroups,omitempty"`
	ResponseOptions     []ResponseOption     `json:"responseOptions,omitempty"`
	Subscales           []Subscale           `json:"subscales,omitempty"`
	InterpretationRules []InterpretationRule `json:"interpretationRules,omitempty"`
}

// ContentHash returns the hex sha256 of the scale's canonical content.
// Two definitions with the same hash are the same version.
func ContentHash(s *Scale) string {
	content := hashedContent{
		ID:                  s.ID,
		Name:                s.Name,
		Abbreviation:        s.Abbreviation,
		Description:         s.Description,
		Category:            s.Category,
		TotalItems:          s.TotalItems,
		ScoringMethod:       s.ScoringMethod,
		ScoreRangeMin:       s.ScoreRangeMin,
		ScoreRangeMax:       s.ScoreRangeMax,
		Items:               s.Items,
		ResponseGroups:      normalizeGroups(s.ResponseGroups),
		ResponseOptions:     s.ResponseOptions,
		Subscales:           normalizeSubscales(s.Subscales),
		InterpretationRules: s.InterpretationRules,
	}
	// Struct fields marshal in declaration order, so the encoding is canonical.
	data, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Empty and nil member lists encode identically so definitions hash the same
// after a round trip through storage.
func normalizeGroups(groups []ResponseGroup) []ResponseGroup {
	out := make([]ResponseGroup, len(groups))
	for i, g := range groups {
		if len(g.Options) == 0 {
			g.Options = nil
		}
		out[i] = g
	}
	return out
}

func normalizeSubscales(subscales []Subscale) []Subscale {
	out := make([]Subscale, len(subscales))
	for i, sub := range subscales {
		if len(sub.Items) == 0 {
			sub.Items = nil
		}
		out[i] = sub
	}
	return out
}
