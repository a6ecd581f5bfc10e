package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinimetric-scale-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func gad2Scale(text string) *domain.Scale {
	reliability := 0.82
	scale := &domain.Scale{
		ID:            "gad2",
		Name:          "Generalized Anxiety Disorder 2",
		TotalItems:    2,
		ScoringMethod: domain.ScoringSum,
		ScoreRangeMax: 6,
		Items: []domain.Item{
			{ID: "gad2_1", Number: 1, Text: text, QuestionType: domain.QuestionLikert, ResponseGroup: "freq"},
			{ID: "gad2_2", Number: 2, Text: "Not being able to stop worrying", QuestionType: domain.QuestionLikert,
				Alert: &domain.ItemAlert{Threshold: 3, Message: "Daily uncontrollable worry"},
				Options: []domain.ResponseOption{
					{Value: "no", Label: "No", Score: 0, Order: 1},
					{Value: "yes", Label: "Yes", Score: 3, Order: 2},
				}},
		},
		ResponseGroups: []domain.ResponseGroup{{
			Key:  "freq",
			Name: "Frequency",
			Options: []domain.ResponseOption{
				{Value: "0", Label: "Not at all", Score: 0, Order: 1},
				{Value: "3", Label: "Nearly every day", Score: 3, Order: 2},
			},
		}},
		ResponseOptions: []domain.ResponseOption{{Value: "0", Label: "Never", Score: 0, Order: 1}},
		Subscales:       []domain.Subscale{{ID: "worry", Name: "Worry", Items: []int{1, 2}, Reliability: &reliability}},
		InterpretationRules: []domain.InterpretationRule{
			{MinScore: 0, MaxScore: 2, Label: "minimal"},
			{MinScore: 3, MaxScore: 6, Label: "positive screen", Recommendations: []string{"Administer GAD-7"}},
		},
	}
	scale.ContentHash = domain.ContentHash(scale)
	return scale
}

func TestMemoryScaleRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryScaleRepository(quietLogger())

	scale := gad2Scale("Feeling nervous")
	scale.Status = domain.StatusDraft
	require.NoError(t, repo.Save(ctx, scale))

	got, err := repo.Get(ctx, "gad2")
	require.NoError(t, err)
	assert.Equal(t, scale, got)
	assert.Equal(t, scale.ContentHash, domain.ContentHash(got))

	// Stored copies are isolated from caller mutation.
	got.Items[1].Alert.Threshold = 99
	got.Subscales[0].Items[0] = 42
	again, err := repo.GetByHash(ctx, "gad2", scale.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, 3.0, again.Items[1].Alert.Threshold)
	assert.Equal(t, 1, again.Subscales[0].Items[0])
}

func TestMemoryScaleRepository_Versions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryScaleRepository(quietLogger())

	v1 := gad2Scale("Feeling nervous")
	v1.Status = domain.StatusActive
	v1.Version = 1
	v1.UpdatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, v1))

	v2 := gad2Scale("Feeling nervous, anxious or on edge")
	v2.Status = domain.StatusDraft
	v2.UpdatedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, v2))

	latest, err := repo.Get(ctx, "gad2")
	require.NoError(t, err)
	assert.Equal(t, v2.ContentHash, latest.ContentHash)

	active, err := repo.GetActive(ctx, "gad2")
	require.NoError(t, err)
	assert.Equal(t, v1.ContentHash, active.ContentHash)

	require.NoError(t, repo.SetStatus(ctx, "gad2", v1.ContentHash, domain.StatusSuperseded))
	_, err = repo.GetActive(ctx, "gad2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := repo.List(ctx, domain.StatusSuperseded)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, v1.ContentHash, list[0].ContentHash)

	list, err = repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, v2.ContentHash, list[0].ContentHash)
}

func TestMemoryScaleRepository_Supersede(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryScaleRepository(quietLogger())

	v1 := gad2Scale("Feeling nervous")
	v1.Status = domain.StatusActive
	v1.Version = 1
	require.NoError(t, repo.Save(ctx, v1))

	v2 := gad2Scale("Feeling nervous, anxious or on edge")
	v2.Status = domain.StatusActive
	v2.Version = 2

	missing := *v1
	missing.ContentHash = "nohash"
	missing.Status = domain.StatusSuperseded
	assert.ErrorIs(t, repo.Supersede(ctx, &missing, v2), domain.ErrNotFound)

	active, err := repo.GetActive(ctx, "gad2")
	require.NoError(t, err)
	assert.Equal(t, v1.ContentHash, active.ContentHash)
	_, err = repo.GetByHash(ctx, "gad2", v2.ContentHash)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	current := *v1
	current.Status = domain.StatusSuperseded
	require.NoError(t, repo.Supersede(ctx, &current, v2))

	active, err = repo.GetActive(ctx, "gad2")
	require.NoError(t, err)
	assert.Equal(t, v2.ContentHash, active.ContentHash)

	old, err := repo.GetByHash(ctx, "gad2", v1.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuperseded, old.Status)
}

func TestMemoryScaleRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryScaleRepository(quietLogger())

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetByHash(ctx, "missing", "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.SetStatus(ctx, "missing", "abc", domain.StatusActive)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Error(t, repo.Save(ctx, &domain.Scale{}))

	list, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}
