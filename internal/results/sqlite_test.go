package results

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinimetric-scale-server/internal/domain"
)

func sampleRecord(id, scaleID string, raw float64, at time.Time) *domain.AssessmentRecord {
	return &domain.AssessmentRecord{
		ID:          id,
		ScaleID:     scaleID,
		ContentHash: "9f2c",
		SubjectRef:  "patient-17",
		RawScore:    raw,
		Completion:  100,
		Label:       "mild",
		Responses: []domain.Response{
			{ItemID: "phq9_1", Value: "1"},
			{ItemID: "phq9_2", Value: "", WasSkipped: true},
		},
		Result: &domain.AssessmentResult{
			ScaleID:     scaleID,
			ContentHash: "9f2c",
			TotalScore:  domain.TotalScore{Raw: raw, ValidResponses: 1, CompletionPercentage: 100},
			Interpretation: &domain.Interpretation{
				Label: "mild", MinScore: 5, MaxScore: 9,
			},
			ComputedAt: at,
		},
		RecordedAt: at,
	}
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "results.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	record := sampleRecord("a1", "phq9", 7, at)
	require.NoError(t, store.Save(ctx, record))

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "phq9", got.ScaleID)
	assert.Equal(t, 7.0, got.RawScore)
	assert.Equal(t, "mild", got.Label)
	assert.True(t, at.Equal(got.RecordedAt))
	assert.Equal(t, record.Responses, got.Responses)
	require.NotNil(t, got.Result)
	assert.Equal(t, "mild", got.Result.Interpretation.Label)
}

func TestSQLiteStore_SaveAssignsID(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	record := sampleRecord("", "phq9", 3, time.Time{})
	require.NoError(t, store.Save(ctx, record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.RecordedAt.IsZero())

	assert.Error(t, store.Save(ctx, &domain.AssessmentRecord{}))
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_ListCountDelete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, sampleRecord("a1", "phq9", 4, base)))
	require.NoError(t, store.Save(ctx, sampleRecord("a2", "phq9", 9, base.Add(time.Hour))))
	require.NoError(t, store.Save(ctx, sampleRecord("b1", "gad7", 12, base.Add(2*time.Hour))))

	phq9, err := store.ListByScale(ctx, "phq9", 10, 0)
	require.NoError(t, err)
	require.Len(t, phq9, 2)
	assert.Equal(t, "a2", phq9[0].ID, "newest first")

	all, err := store.ListByScale(ctx, "", 2, 1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a2", all[0].ID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, store.Delete(ctx, "a1"))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	source := createTestStore(t)
	defer source.Close()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, source.Save(ctx, sampleRecord("a1", "phq9", 4, base)))
	require.NoError(t, source.Save(ctx, sampleRecord("a2", "phq9", 9, base.Add(time.Minute))))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))
	assert.Contains(t, buf.String(), `"count": 2`)

	target := createTestStore(t)
	defer target.Close()
	require.NoError(t, target.Save(ctx, sampleRecord("a1", "phq9", 4, base)))

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	_, _, err = target.ImportJSON(ctx, bytes.NewReader([]byte("not json")))
	assert.Error(t, err)
}
