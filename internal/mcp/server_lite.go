// Package mcp provides the MCP server implementation.
// The lite server requires no external databases: scales are loaded from a
// directory into memory and assessment results go to a local SQLite file.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/cache"
	litecfg "github.com/clinimetric-scale-server/internal/config"
	"github.com/clinimetric-scale-server/internal/logging"
	"github.com/clinimetric-scale-server/internal/repository"
	"github.com/clinimetric-scale-server/internal/results"
	"github.com/clinimetric-scale-server/internal/service"
)

// LiteServer is a lightweight MCP server that requires no external databases.
type LiteServer struct {
	config    *litecfg.LiteConfig
	mcpServer *mcp.Server
	catalog   *service.ScaleCatalog
	results   results.Store
	cache     *cache.MemoryReportCache
	loaded    LoadSummary
	version   string
	logger    *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithResultsStore sets a custom assessment results store.
func WithResultsStore(store results.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.results = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(version string) LiteServerOption {
	return func(s *LiteServer) error {
		s.version = version
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance and loads the
// scales directory.
func NewLiteServer(ctx context.Context, cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config:  cfg,
		logger:  logging.NewLite(cfg.LogLevel, cfg.LogFormat),
		version: "v1.0.0",
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Ensure data directory exists
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	server.cache = cache.NewMemoryReportCache(cfg.CacheMaxItems, cfg.CacheTTL)

	if server.results == nil && cfg.RecordResults {
		store, err := results.NewSQLiteStore(cfg.ResultsDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create results store: %w", err)
		}
		server.results = store
	}

	repo := repository.NewMemoryScaleRepository(server.logger)
	validator := service.NewScaleDefinitionValidator(server.logger, nil)
	orchestrator := service.NewAssessmentOrchestrator(server.logger)

	catalogOpts := []service.CatalogOption{service.WithReportCache(server.cache)}
	if server.results != nil {
		catalogOpts = append(catalogOpts, service.WithResultStore(server.results))
	}
	server.catalog = service.NewScaleCatalog(server.logger, repo, validator, orchestrator, catalogOpts...)

	summary, err := loadScales(ctx, cfg.ScalesDir, server.catalog, server.logger)
	if err != nil {
		server.Close()
		return nil, err
	}
	server.loaded = summary

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    "clinimetric-scale-server-lite",
		Version: server.version,
	}, nil)
	server.registerTools()

	server.logger.Info("Lite server initialized successfully")
	return server, nil
}

// Start runs the MCP server on the configured transport until ctx is cancelled.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.WithField("transport", s.config.Transport).Info("Starting clinimetric MCP server (lite)")

	switch s.config.Transport {
	case "http":
		return s.serveHTTP(ctx)
	case "stdio", "":
		if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported transport: %s", s.config.Transport)
	}
}

func (s *LiteServer) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", httpServer.Addr).Info("MCP HTTP transport listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("MCP HTTP transport failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.results != nil {
		if err := s.results.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close results store")
			return err
		}
	}
	return nil
}

// Loaded reports what was loaded from the scales directory at startup.
func (s *LiteServer) Loaded() LoadSummary {
	return s.loaded
}

// CacheStats returns validation report cache statistics.
func (s *LiteServer) CacheStats() cache.Stats {
	return s.cache.Stats()
}
