// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/storagegw/storagegw/pkg/adapters/http"
	"github.com/storagegw/storagegw/pkg/blobstore"
	"github.com/storagegw/storagegw/pkg/config"
	"github.com/storagegw/storagegw/pkg/gateway"
	"github.com/storagegw/storagegw/pkg/observability/logging"
	"github.com/storagegw/storagegw/pkg/observability/metrics"

	// Storage backend registrations
	_ "github.com/storagegw/storagegw/pkg/blobstore/filesystem"
	_ "github.com/storagegw/storagegw/pkg/blobstore/memory"
	_ "github.com/storagegw/storagegw/pkg/blobstore/postgres"
	_ "github.com/storagegw/storagegw/pkg/blobstore/s3"
	_ "github.com/storagegw/storagegw/pkg/blobstore/sqlite"
)

var (
	// Version is set via ldflags during build
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	port := flag.Int("port", 8080, "HTTP port to listen on")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Print version
	if *version {
		fmt.Printf("Storage Gateway Server\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		os.Exit(0)
	}

	// Initialize logger
	logger := logging.New(logging.Config{
		Level:  "info",
		Format: "json",
	})
	logger.Info("Starting Storage Gateway Server",
		"version", Version,
		"build_time", BuildTime)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		// If config file doesn't exist, use defaults
		logger.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	// Override port if specified
	if *port != 8080 {
		cfg.Server.Port = *port
	}

	initCtx := context.Background()

	// Build the provider registry from configuration
	reg := gateway.NewRegistry()
	for _, pc := range cfg.EnabledProviders() {
		backend, err := blobstore.Providers.New(initCtx, pc.Type, pc.Params)
		if err != nil {
			logger.Error("Failed to initialize storage backend",
				"provider", pc.Name,
				"type", pc.Type,
				"error", err)
			os.Exit(1)
		}

		p := gateway.NewProvider(pc.Name, pc.Type, pc.Priority, pc.Name == cfg.Primary, backend)
		if err := reg.Register(p); err != nil {
			logger.Error("Failed to register provider", "provider", pc.Name, "error", err)
			os.Exit(1)
		}
		logger.Info("Registered storage provider",
			"provider", pc.Name,
			"type", pc.Type,
			"priority", pc.Priority)
	}

	// Initialize metrics
	m := metrics.New()

	// Start health monitoring; the first sweep runs before Start returns so
	// provider selection sees fresh health state.
	monitor := gateway.NewMonitor(reg, gateway.MonitorConfig{
		Interval:     cfg.Health.Interval,
		ProbeTimeout: cfg.Health.ProbeTimeout,
	}, logger, m)
	if err := monitor.Start(initCtx); err != nil {
		logger.Error("Failed to start health monitor", "error", err)
		os.Exit(1)
	}
	defer monitor.Stop()

	// Initialize selection and the gateway orchestrator
	sel := gateway.NewSelector(reg, gateway.SelectorConfig{
		InitialProvider: cfg.Primary,
		ProbeTimeout:    cfg.Health.ProbeTimeout,
		StaleAfter:      cfg.Health.StaleThreshold,
	})
	gw := gateway.New(reg, sel, gateway.Options{
		Logger:  logger,
		Metrics: m,
	})
	defer gw.Close(context.Background())

	if current, err := gw.CurrentProvider(); err == nil {
		logger.Info("Current provider selected", "provider", current)
	}

	// Initialize HTTP adapter
	handler := httpAdapter.New(gw, logger, m)
	logger.Info("Initialized HTTP adapter")

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server in goroutine
	go func() {
		logger.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}
