package domain

import (
	"context"
	"time"
)

// ScaleRepository is the persistence port for scale definitions.
// Implementations live outside the scoring core; the core only ever receives
// complete definitions from it.
type ScaleRepository interface {
	// Get returns the most recent version stored for a scale id.
	Get(ctx context.Context, id string) (*Scale, error)
	// GetActive returns the version currently in the active state.
	GetActive(ctx context.Context, id string) (*Scale, error)
	// GetByHash returns the version of a scale with the given content hash.
	GetByHash(ctx context.Context, id, contentHash string) (*Scale, error)
	// Save stores a definition, replacing all of its child records atomically.
	Save(ctx context.Context, scale *Scale) error
	// SetStatus moves a stored version to a new lifecycle state.
	SetStatus(ctx context.Context, id, contentHash string, status ScaleStatus) error
	// Supersede stores next and moves current to its new state as one unit.
	// On error neither change is visible.
	Supersede(ctx context.Context, current, next *Scale) error
	// List returns the latest version of every scale, optionally filtered by status.
	List(ctx context.Context, status ScaleStatus) ([]*Scale, error)
}

// AssessmentRecord is the audit record of one processed assessment.
type AssessmentRecord struct {
	ID           string            `json:"id"`
	ScaleID      string            `json:"scale_id"`
	ContentHash  string            `json:"content_hash"`
	SubjectRef   string            `json:"subject_ref,omitempty"`
	RawScore     float64           `json:"raw_score"`
	Completion   float64           `json:"completion_percentage"`
	Label        string            `json:"label,omitempty"`
	Responses    []Response        `json:"responses"`
	Result       *AssessmentResult `json:"result"`
	RecordedAt   time.Time         `json:"recorded_at"`
	AnomalyCount int               `json:"anomaly_count"`
}

// ResultStore records processed assessments for audit and recomputation.
type ResultStore interface {
	Save(ctx context.Context, record *AssessmentRecord) error
}

// ReportCache caches validation reports by scale content hash.
type ReportCache interface {
	Get(ctx context.Context, contentHash string) (*ValidationReport, bool)
	Set(ctx context.Context, contentHash string, report *ValidationReport) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
