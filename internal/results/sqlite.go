package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/clinimetric-scale-server/internal/domain"
)

const recordColumns = `id, scale_id, content_hash, subject_ref, raw_score, completion_percentage,
	label, anomaly_count, responses, result, recorded_at`

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite result store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessment_results (
		id TEXT PRIMARY KEY,
		scale_id TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		subject_ref TEXT DEFAULT '',
		raw_score REAL NOT NULL,
		completion_percentage REAL NOT NULL,
		label TEXT DEFAULT '',
		anomaly_count INTEGER NOT NULL DEFAULT 0,
		responses TEXT NOT NULL,
		result TEXT NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_results_scale ON assessment_results(scale_id, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_results_subject ON assessment_results(subject_ref);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or replaces an assessment record.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.AssessmentRecord) error {
	if err := prepareRecord(record); err != nil {
		return err
	}
	responses, result, err := encodePayload(record)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessment_results (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject_ref = excluded.subject_ref,
			label = excluded.label,
			anomaly_count = excluded.anomaly_count,
			responses = excluded.responses,
			result = excluded.result
	`,
		record.ID,
		record.ScaleID,
		record.ContentHash,
		record.SubjectRef,
		record.RawScore,
		record.Completion,
		record.Label,
		record.AnomalyCount,
		string(responses),
		string(result),
		record.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM assessment_results WHERE id = ?`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return record, nil
}

// ListByScale returns records newest first with pagination.
func (s *SQLiteStore) ListByScale(ctx context.Context, scaleID string, limit, offset int) ([]*domain.AssessmentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM assessment_results
		WHERE (? = '' OR scale_id = ?)
		ORDER BY recorded_at DESC, id
		LIMIT ? OFFSET ?
	`, scaleID, scaleID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*domain.AssessmentRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// Count returns the total number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assessment_results").Scan(&count)
	return count, err
}

// Delete removes a record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM assessment_results WHERE id = ?", id)
	return err
}

// ExportJSON exports all records to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.ListByScale(ctx, "", maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}
	return writeExport(writer, all)
}

// ImportJSON imports records from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importRecords(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
