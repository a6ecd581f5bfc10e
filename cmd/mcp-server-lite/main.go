// Package main provides the lightweight entry point for the clinimetric MCP server.
// This version requires no external databases: scales are loaded from a directory
// and results are recorded to SQLite.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/clinimetric-scale-server/internal/config"
	"github.com/clinimetric-scale-server/internal/logging"
	"github.com/clinimetric-scale-server/internal/mcp"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()
	logger := logging.NewLite(cfg.LogLevel, cfg.LogFormat)

	logger.WithField("data_dir", cfg.DataDir).Info("Starting clinimetric MCP server (lite)")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	server, err := mcp.NewLiteServer(ctx, cfg, mcp.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("Clinimetric MCP server (lite) stopped")
}
