package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
	"github.com/clinimetric-scale-server/internal/middleware"
	"github.com/clinimetric-scale-server/internal/service"
)

// maxBodyBytes bounds request bodies and live-channel messages.
const maxBodyBytes = 4 << 20

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	catalog       *service.ScaleCatalog
	batch         *service.BatchValidator
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
	limiter       *middleware.RateLimiter
	upgrader      websocket.Upgrader
	checks        map[string]HealthCheck
	version       string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithHealthCheck adds a named dependency probe to /health.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// NewServer creates a new HTTP server instance
func NewServer(
	configManager domain.ConfigManager,
	catalog *service.ScaleCatalog,
	batch *service.BatchValidator,
	logger *logrus.Logger,
	opts ...ServerOption,
) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if gin.Mode() != gin.TestMode {
		if cfg.Logging.Level == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	s := &Server{
		configManager: configManager,
		catalog:       catalog,
		batch:         batch,
		logger:        logger,
		router:        gin.New(),
		checks:        make(map[string]HealthCheck),
		version:       cfg.MCP.ServerVersion,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.AuditLogger(logger))
	if cfg.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, logger)
		s.router.Use(s.limiter.Handler())
	}

	s.setupRoutes(cfg.Server.RequestTimeout)
	return s
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{
			"addr": addr,
			"tls":  cfg.TLSEnabled,
		}).Info("HTTP server listening")

		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if s.limiter != nil {
		go s.sweepLimiter(ctx)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.limiter.Cleanup(); removed > 0 {
				s.logger.WithField("removed", removed).Debug("Evicted idle rate limit clients")
			}
		}
	}
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(requestTimeout time.Duration) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")

	// The live channel is long-lived and must not inherit the request deadline.
	v1.GET("/scales/validate/live", s.handleLiveValidation)

	timed := v1.Group("")
	if requestTimeout > 0 {
		timed.Use(middleware.RequestTimeout(requestTimeout))
	}
	{
		timed.POST("/scales/validate", s.handleValidate)
		timed.POST("/scales/validate/batch", s.handleValidateBatch)
		timed.POST("/scales", s.handleImport)
		timed.GET("/scales", s.handleList)
		timed.GET("/scales/:id", s.handleGet)
		timed.POST("/scales/:id/activate", s.handleActivate)
		timed.POST("/scales/:id/deactivate", s.handleDeactivate)
		timed.POST("/scales/:id/assessments", s.handleScore)
		timed.POST("/scales/:id/interpret", s.handleInterpret)
		timed.POST("/assessments/score", s.handleScoreInline)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		err := s.checks[name](ctx)
		cancel()
		if err != nil {
			s.logger.WithError(err).WithField("check", name).Warn("Health check failed")
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().UTC(),
		"version":   s.version,
		"checks":    checks,
	})
}
