// Package config provides configuration management for the scale servers.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases: scales are loaded from a directory and
// assessment results go to a local SQLite file.
type LiteConfig struct {
	// Data storage
	DataDir   string // Base directory for data files
	ScalesDir string // Directory of scale definition files loaded at startup

	// Cache settings
	CacheMaxItems int           // Maximum validation reports in memory
	CacheTTL      time.Duration // Default cache TTL

	// Scoring
	BatchConcurrency int  // Parallel validations in a batch
	RecordResults    bool // Store scored assessments in the results database

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".clinimetric")

	return &LiteConfig{
		DataDir:          dataDir,
		ScalesDir:        filepath.Join(dataDir, "scales"),
		CacheMaxItems:    1000,
		CacheTTL:         24 * time.Hour,
		BatchConcurrency: 4,
		RecordResults:    true,
		Transport:        "stdio",
		HTTPPort:         8080,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data directories
	if v := os.Getenv("CLINIMETRIC_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.ScalesDir = filepath.Join(v, "scales")
	}
	if v := os.Getenv("CLINIMETRIC_SCALES_DIR"); v != "" {
		cfg.ScalesDir = v
	}

	// Cache settings
	if v := os.Getenv("CLINIMETRIC_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("CLINIMETRIC_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// Scoring
	if v := os.Getenv("CLINIMETRIC_BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchConcurrency = n
		}
	}
	if v := os.Getenv("CLINIMETRIC_RECORD_RESULTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RecordResults = b
		}
	}

	// Transport
	if v := os.Getenv("CLINIMETRIC_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("CLINIMETRIC_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	// Logging
	if v := os.Getenv("CLINIMETRIC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CLINIMETRIC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ResultsDBPath returns the path to the assessment results SQLite database.
func (c *LiteConfig) ResultsDBPath() string {
	return filepath.Join(c.DataDir, "results.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directories if they don't exist.
func (c *LiteConfig) EnsureDataDir() error {
	for _, dir := range []string{c.DataDir, c.ExportDir(), c.ScalesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
