package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
)

const applicationName = "clinimetric-scale-server"

// Config holds pool settings for the scale store.
type Config struct {
	Host             string
	Port             int
	Database         string
	Username         string
	Password         string
	SSLMode          string
	MaxConns         int32
	MinConns         int32
	MaxConnLife      time.Duration
	MaxConnIdle      time.Duration
	StatementTimeout time.Duration
	ConnectAttempts  int
	RetryDelay       time.Duration
}

// ConfigFromDomain maps the application database settings onto pool settings.
func ConfigFromDomain(cfg domain.DatabaseConfig) Config {
	maxConns := int32(cfg.MaxOpenConns)
	if maxConns <= 0 {
		maxConns = 10
	}
	minConns := int32(cfg.MaxIdleConns)
	if minConns > maxConns {
		minConns = maxConns
	}
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return Config{
		Host:             cfg.Host,
		Port:             cfg.Port,
		Database:         cfg.Database,
		Username:         cfg.Username,
		Password:         cfg.Password,
		SSLMode:          cfg.SSLMode,
		MaxConns:         maxConns,
		MinConns:         minConns,
		MaxConnLife:      cfg.ConnMaxLifetime,
		MaxConnIdle:      30 * time.Minute,
		StatementTimeout: cfg.StatementTimeout,
		ConnectAttempts:  attempts,
		RetryDelay:       2 * time.Second,
	}
}

// PoolSummary is a point-in-time view of the connection pool.
type PoolSummary struct {
	MaxConns      int32 `json:"max_conns"`
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
}

// DB wraps the pgxpool.Pool backing the scale repository.
type DB struct {
	Pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewConnection opens the pool and waits for the server to answer a ping,
// retrying up to ConnectAttempts times.
func NewConnection(ctx context.Context, config Config, logger *logrus.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn(config))
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	poolConfig.MaxConnLifetime = config.MaxConnLife
	poolConfig.MaxConnIdleTime = config.MaxConnIdle
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	if config.StatementTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(config.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	attempts := config.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if attempt >= attempts {
			pool.Close()
			return nil, fmt.Errorf("pinging database after %d attempt(s): %w", attempt, err)
		}
		logger.WithError(err).WithField("attempt", attempt).Warn("Database not ready, retrying")
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("waiting for database: %w", ctx.Err())
		case <-time.After(config.RetryDelay):
		}
	}

	logger.WithFields(logrus.Fields{
		"host":              config.Host,
		"port":              config.Port,
		"database":          config.Database,
		"max_conns":         config.MaxConns,
		"statement_timeout": config.StatementTimeout,
	}).Info("Scale store connection pool established")

	return &DB{Pool: pool, log: logger}, nil
}

func dsn(c Config) string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
	)
}

// Close closes the pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info("Database connection pool closed")
	}
}

// Health pings the database; it backs the "database" health check.
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Stats returns connection pool statistics.
func (db *DB) Stats() *pgxpool.Stat {
	return db.Pool.Stat()
}

// Summary condenses Stats for logging.
func (db *DB) Summary() PoolSummary {
	s := db.Pool.Stat()
	return PoolSummary{
		MaxConns:      s.MaxConns(),
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
	}
}
