package service

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var fixedTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedTime
}

// phq9Scale builds a nine-item depression questionnaire with global 0-3 options.
func phq9Scale() *domain.Scale {
	items := make([]domain.Item, 9)
	for i := range items {
		items[i] = domain.Item{
			ID:           fmt.Sprintf("phq9_%d", i+1),
			Number:       i + 1,
			Text:         fmt.Sprintf("Question %d", i+1),
			QuestionType: domain.QuestionLikert,
		}
	}
	items[8].Alert = &domain.ItemAlert{Threshold: 1, Message: "Thoughts of self-harm reported"}

	return &domain.Scale{
		ID:            "phq9",
		Name:          "Patient Health Questionnaire-9",
		Abbreviation:  "PHQ-9",
		Description:   "Depression severity screening",
		Category:      "depression",
		TotalItems:    9,
		ScoringMethod: domain.ScoringSum,
		ScoreRangeMin: 0,
		ScoreRangeMax: 27,
		Items:         items,
		ResponseOptions: []domain.ResponseOption{
			{Value: "0", Label: "Not at all", Score: 0, Order: 1},
			{Value: "1", Label: "Several days", Score: 1, Order: 2},
			{Value: "2", Label: "More than half the days", Score: 2, Order: 3},
			{Value: "3", Label: "Nearly every day", Score: 3, Order: 4},
		},
		Subscales: []domain.Subscale{
			{ID: "somatic", Name: "Somatic", Items: []int{3, 4, 5}},
			{ID: "cognitive", Name: "Cognitive-affective", Items: []int{1, 2, 6, 7, 8, 9}},
		},
		InterpretationRules: []domain.InterpretationRule{
			{MinScore: 0, MaxScore: 4, Label: "minimal", Severity: "none"},
			{MinScore: 5, MaxScore: 9, Label: "mild", Severity: "mild"},
			{MinScore: 10, MaxScore: 14, Label: "moderate", Severity: "moderate"},
			{MinScore: 15, MaxScore: 19, Label: "moderately severe", Severity: "moderately_severe"},
			{MinScore: 20, MaxScore: 27, Label: "severe", Severity: "severe"},
		},
		Status: domain.StatusActive,
	}
}

// uniformResponses answers the first n items of a scale with the same value.
func uniformResponses(scale *domain.Scale, n int, value string) []domain.Response {
	responses := make([]domain.Response, 0, n)
	for i := 0; i < n && i < len(scale.Items); i++ {
		responses = append(responses, domain.Response{ItemID: scale.Items[i].ID, Value: domain.Value(value)})
	}
	return responses
}
