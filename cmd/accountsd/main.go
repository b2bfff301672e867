// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command accountsd starts the contacts account aggregation server.
//
// accountsd merges the account type catalog with the registered and
// device-local accounts into one queryable view:
//
//   - Asynchronous, generation-tagged source loads with coalesced reloads
//   - YAML type descriptors resolved to capabilities and field schemas
//   - Filesystem invalidation (descriptor dir and account file watching)
//   - WebSocket push of account change events
//
// Usage:
//
//	go run ./cmd/accountsd
//	go run ./cmd/accountsd -port 9090 -catalog-dir ./descriptors
//
// With account and preference files:
//
//	go run ./cmd/accountsd -accounts-file ./accounts.yaml -prefs-file ./prefs.yaml
//
// With a config file (flags override file values):
//
//	go run ./cmd/accountsd -config /etc/accountsd/accountsd.yaml
//
// With file logging:
//
//	go run ./cmd/accountsd -log-dir /var/log/accountsd -log-level debug
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/accounts/health
//
//	# Merged account list
//	curl http://localhost:8080/v1/accounts | jq
//
//	# Accounts with resolved type capabilities
//	curl http://localhost:8080/v1/accounts/info | jq
//
//	# Force a refresh of every source
//	curl -X POST http://localhost:8080/v1/accounts/reload
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/GZOSP/packages-apps-Contacts/cmd/accountsd/config"
	"github.com/GZOSP/packages-apps-Contacts/pkg/logging"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts"
	"github.com/GZOSP/packages-apps-Contacts/services/accounts/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Config file (ACCOUNTSD_CONFIG, then ~/.accountsd/accountsd.yaml when empty)")
	port := flag.Int("port", config.DefaultPort, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	catalogDir := flag.String("catalog-dir", config.DefaultCatalogDir, "Directory scanned for account type descriptors")
	accountsFile := flag.String("accounts-file", "", "YAML file listing registered and device-local accounts")
	prefsFile := flag.String("prefs-file", "", "YAML file holding stored preferences")
	logDir := flag.String("log-dir", "", "Directory for JSON log files (file logging disabled when empty)")
	logLevel := flag.String("log-level", config.DefaultLogLevel, "Minimum log level (debug, info, warn, error)")
	noWatch := flag.Bool("no-watch", false, "Disable filesystem invalidation watching")
	watchDebounce := flag.Duration("watch-debounce", config.DefaultWatchDebounceMS*time.Millisecond, "Quiet period before a burst of file changes coalesces")
	flag.Parse()

	if err := config.Load(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fileCfg := config.Global

	// Explicit flags beat the config file; the file beats built-in defaults.
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if !setFlags["port"] {
		*port = fileCfg.Server.GetPort()
	}
	if !setFlags["debug"] {
		*debug = fileCfg.Server.Debug
	}
	if !setFlags["catalog-dir"] {
		*catalogDir = fileCfg.Sources.GetCatalogDir()
	}
	if !setFlags["accounts-file"] {
		*accountsFile = fileCfg.Sources.AccountsFile
	}
	if !setFlags["prefs-file"] {
		*prefsFile = fileCfg.Sources.PrefsFile
	}
	if !setFlags["log-dir"] {
		*logDir = fileCfg.Logging.Dir
	}
	if !setFlags["log-level"] {
		*logLevel = fileCfg.Logging.GetLevel()
	}
	if !setFlags["no-watch"] {
		*noWatch = fileCfg.Watcher.Disabled
	}
	if !setFlags["watch-debounce"] {
		*watchDebounce = fileCfg.Watcher.GetDebounce()
	}

	// Set Gin mode
	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Logs go to stderr. A person watching a terminal gets the text
	// handler; under a pipe, unit file, or log collector switch to JSON.
	interactive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	appLogger := logging.New(logging.Config{
		Level:   level,
		LogDir:  *logDir,
		Service: "accountsd",
		JSON:    !*debug && !interactive,
	})
	slog.SetDefault(appLogger.Slog())

	// Init tracing and metrics
	shutdown, err := telemetry.Init(context.Background(), telemetryConfig(fileCfg.Telemetry))
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}

	meter := otel.Meter("accountsd")
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		log.Fatalf("failed to create metrics: %v", err)
	}

	// Create service from the merged flag and file settings
	cfg := accounts.DefaultServiceConfig()
	cfg.CatalogDir = *catalogDir
	cfg.AccountsFile = *accountsFile
	cfg.PrefsFile = *prefsFile
	cfg.PrimaryProviderType = fileCfg.Sources.GetPrimaryProvider()
	cfg.ExecutorLimit = fileCfg.Sources.GetExecutorLimit()
	cfg.DisableWatch = *noWatch
	cfg.WatchDebounce = *watchDebounce
	cfg.Logger = slog.Default()

	svc, err := accounts.NewService(cfg)
	if err != nil {
		log.Fatalf("failed to start accounts service: %v", err)
	}

	// Catalog size gauge. Catalog() and Len() tolerate the pre-bootstrap
	// nil snapshot, so the callback is safe from the first scrape on.
	if _, err := metrics.RegisterCatalogTypes(meter, func() int64 {
		return int64(svc.Manager.Catalog().Len())
	}); err != nil {
		slog.Warn("catalog gauge unavailable", "error", err)
	}

	// Create handlers
	handlers := accounts.NewHandlers(svc)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	if *debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("accountsd"))
	router.Use(telemetry.RequestMetrics(metrics))

	// Prometheus scrape endpoint. The handler is nil unless telemetry
	// initialized the prometheus exporter.
	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	// Register routes under /v1/accounts
	v1 := router.Group("/v1")
	accounts.RegisterRoutes(v1, handlers)

	// Print startup banner
	printBanner(*port, !*noWatch)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down accountsd")
		svc.Close()
		if err := shutdown(context.Background()); err != nil {
			slog.Error("telemetry shutdown failed", slog.String("error", err.Error()))
		}
		appLogger.Close()
		os.Exit(0)
	}()

	// Start server
	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting accountsd", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// telemetryConfig maps file settings onto the telemetry stack. Empty
// fields keep the OTEL_* environment defaults.
func telemetryConfig(tc config.TelemetryConfig) telemetry.Config {
	out := telemetry.DefaultConfig()
	if tc.Environment != "" {
		out.Environment = tc.Environment
	}
	if tc.TraceExporter != "" {
		out.TraceExporter = tc.TraceExporter
	}
	if tc.MetricExporter != "" {
		out.MetricExporter = tc.MetricExporter
	}
	if tc.OTLPEndpoint != "" {
		out.OTLPEndpoint = tc.OTLPEndpoint
	}
	out.SampleRate = tc.GetSampleRate()
	out.AllowDegraded = tc.AllowDegraded
	return out
}

func printBanner(port int, watching bool) {
	watchStatus := "DISABLED (POST /reload only)"
	if watching {
		watchStatus = "ENABLED (filesystem invalidation)"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                     CONTACTS ACCOUNTS SERVER                      ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Invalidation-driven account and type aggregation over HTTP.      ║
║  Watcher: %-53s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/accounts/health               │  ║
║  │                                                             │  ║
║  │ # Merged account list                                       │  ║
║  │ curl http://localhost:%d/v1/accounts | jq                 │  ║
║  │                                                             │  ║
║  │ # Registered type descriptors                               │  ║
║  │ curl http://localhost:%d/v1/accounts/types | jq           │  ║
║  │                                                             │  ║
║  │ # Force a refresh of every source                           │  ║
║  │ curl -X POST http://localhost:%d/v1/accounts/reload       │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Accounts: /accounts, /accounts/info, /accounts/default      ║
║  ├── Catalog: /types, /types/lookup, /kinds                      ║
║  ├── Change feed: /watch (WebSocket), POST /reload               ║
║  └── Ops: /health, /ready, /metrics                              ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, watchStatus, port, port, port, port)
}
