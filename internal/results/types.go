// Package results stores processed assessments for audit and recomputation.
// Every record carries the submitted responses and the full result, keyed by the
// content hash of the scale version that produced it.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/clinimetric-scale-server/internal/domain"
)

// Store defines the interface for assessment result storage operations.
type Store interface {
	// Save stores a record, replacing any record with the same ID.
	// A missing ID or RecordedAt is filled in.
	Save(ctx context.Context, record *domain.AssessmentRecord) error

	// Get retrieves a record by ID. Missing records return domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.AssessmentRecord, error)

	// ListByScale returns records newest first. An empty scaleID lists all scales.
	ListByScale(ctx context.Context, scaleID string, limit, offset int) ([]*domain.AssessmentRecord, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int64, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON exports all records to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports records from a JSON reader, skipping IDs already stored.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ResultsExport represents the JSON export format.
type ResultsExport struct {
	Version    string                     `json:"version"`
	ExportedAt time.Time                  `json:"exported_at"`
	Count      int                        `json:"count"`
	Results    []*domain.AssessmentRecord `json:"results"`
}

// maxExportLimit is the maximum number of records to export at once.
const maxExportLimit = 1000000

func prepareRecord(record *domain.AssessmentRecord) error {
	if record == nil || record.ScaleID == "" {
		return domain.NewValidationError("scale_id", "assessment record requires a scale id", nil)
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	return nil
}

func encodePayload(record *domain.AssessmentRecord) (responses, result []byte, err error) {
	responseList := record.Responses
	if responseList == nil {
		responseList = []domain.Response{}
	}
	if responses, err = json.Marshal(responseList); err != nil {
		return nil, nil, fmt.Errorf("failed to encode responses: %w", err)
	}
	if result, err = json.Marshal(record.Result); err != nil {
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return responses, result, nil
}

func decodePayload(record *domain.AssessmentRecord, responses, result []byte) error {
	if err := json.Unmarshal(responses, &record.Responses); err != nil {
		return fmt.Errorf("failed to decode responses: %w", err)
	}
	if err := json.Unmarshal(result, &record.Result); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*domain.AssessmentRecord, error) {
	record := &domain.AssessmentRecord{}
	var responses, result []byte

	err := s.Scan(
		&record.ID, &record.ScaleID, &record.ContentHash, &record.SubjectRef,
		&record.RawScore, &record.Completion, &record.Label, &record.AnomalyCount,
		&responses, &result, &record.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	record.RecordedAt = record.RecordedAt.UTC()

	if err := decodePayload(record, responses, result); err != nil {
		return nil, err
	}
	return record, nil
}

func writeExport(writer io.Writer, records []*domain.AssessmentRecord) error {
	export := &ResultsExport{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Count:      len(records),
		Results:    records,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importRecords(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export ResultsExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, record := range export.Results {
		if record.ID != "" {
			if _, err := store.Get(ctx, record.ID); err == nil {
				skipped++
				continue
			} else if !isNotFound(err) {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
		}

		if err := store.Save(ctx, record); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
