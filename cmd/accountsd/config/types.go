// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import "time"

const (
	// CurrentConfigVersion stamps files written by this build.
	CurrentConfigVersion = "1.0.0"

	DefaultPort            = 8080
	DefaultCatalogDir      = "./descriptors"
	DefaultPrimaryProvider = "com.google"
	DefaultExecutorLimit   = 4
	DefaultWatchDebounceMS = 500
	DefaultLogLevel        = "info"
)

// Config is the on-disk configuration for accountsd.
//
// Precedence at startup: command-line flags override file values, and
// file values override the built-in defaults. Fields left empty in the
// file fall back through the Get* accessors.
type Config struct {
	// Meta tracks the schema version and write history of the file.
	Meta ConfigMeta `yaml:"meta"`

	// Server: HTTP listener settings
	Server ServerConfig `yaml:"server"`

	// Sources: where descriptors, accounts and preferences live on disk
	Sources SourcesConfig `yaml:"sources"`

	// Watcher: filesystem invalidation behavior
	Watcher WatcherConfig `yaml:"watcher"`

	// Logging: level plus optional file logging
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry: trace and metric exporter overrides
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ConfigMeta records when and by what the file was written.
type ConfigMeta struct {
	Version    string `yaml:"version"`
	CreatedAt  int64  `yaml:"created_at"`  // unix millis
	ModifiedAt int64  `yaml:"modified_at"` // unix millis
	ModifiedBy string `yaml:"modified_by"` // e.g. accountsd
}

// newConfigMeta returns metadata for a freshly written config.
func newConfigMeta() ConfigMeta {
	now := time.Now().UnixMilli()
	return ConfigMeta{
		Version:    CurrentConfigVersion,
		CreatedAt:  now,
		ModifiedAt: now,
		ModifiedBy: "accountsd",
	}
}

// CreatedAtTime returns the creation timestamp as a time.Time.
func (m ConfigMeta) CreatedAtTime() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// ModifiedAtTime returns the modification timestamp as a time.Time.
func (m ConfigMeta) ModifiedAtTime() time.Time {
	return time.UnixMilli(m.ModifiedAt)
}

type ServerConfig struct {
	Port  int  `yaml:"port" validate:"gte=0,lte=65535"` // e.g. 8080
	Debug bool `yaml:"debug"`                           // gin debug mode and request logging
}

// GetPort returns the configured port, or DefaultPort when unset.
func (s ServerConfig) GetPort() int {
	if s.Port <= 0 {
		return DefaultPort
	}
	return s.Port
}

type SourcesConfig struct {
	// CatalogDir is scanned for account type descriptor files.
	CatalogDir string `yaml:"catalog_dir"` // e.g. ./descriptors

	// AccountsFile lists the registered and device-local accounts. Empty
	// means only the device-local placeholder account is served.
	AccountsFile string `yaml:"accounts_file,omitempty"`

	// PrefsFile holds stored preferences such as the default account key.
	PrefsFile string `yaml:"prefs_file,omitempty"`

	// PrimaryProvider is the account type treated as the primary provider
	// for default-account selection and placeholder dedup.
	PrimaryProvider string `yaml:"primary_provider" validate:"omitempty,accounttype"`

	// ExecutorLimit caps concurrently running source loads.
	ExecutorLimit int64 `yaml:"executor_limit" validate:"gte=0"`
}

// GetCatalogDir returns the descriptor directory, or DefaultCatalogDir
// when unset.
func (s SourcesConfig) GetCatalogDir() string {
	if s.CatalogDir == "" {
		return DefaultCatalogDir
	}
	return s.CatalogDir
}

// GetPrimaryProvider returns the primary provider account type, or
// DefaultPrimaryProvider when unset.
func (s SourcesConfig) GetPrimaryProvider() string {
	if s.PrimaryProvider == "" {
		return DefaultPrimaryProvider
	}
	return s.PrimaryProvider
}

// GetExecutorLimit returns the source load concurrency cap, or
// DefaultExecutorLimit when unset.
func (s SourcesConfig) GetExecutorLimit() int64 {
	if s.ExecutorLimit <= 0 {
		return DefaultExecutorLimit
	}
	return s.ExecutorLimit
}

type WatcherConfig struct {
	// Disabled turns filesystem invalidation off. Refreshes then happen
	// only through POST /v1/accounts/reload.
	Disabled bool `yaml:"disabled"`

	// DebounceMS is the quiet period before a burst of file changes
	// collapses into one invalidation signal.
	DebounceMS int `yaml:"debounce_ms" validate:"gte=0"` // e.g. 500
}

// GetDebounce returns the watcher quiet period, or the default 500ms
// when unset.
func (w WatcherConfig) GetDebounce() time.Duration {
	ms := w.DebounceMS
	if ms <= 0 {
		ms = DefaultWatchDebounceMS
	}
	return time.Duration(ms) * time.Millisecond
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"` // file logging disabled when empty
}

// GetLevel returns the minimum log level, or DefaultLogLevel when unset.
func (l LoggingConfig) GetLevel() string {
	if l.Level == "" {
		return DefaultLogLevel
	}
	return l.Level
}

// TelemetryConfig overrides the telemetry stack's exporter selection.
// Empty fields inherit the OTEL_* environment defaults, so a generated
// config never shadows the standard OpenTelemetry variables.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment,omitempty"`
	TraceExporter  string  `yaml:"trace_exporter,omitempty" validate:"omitempty,oneof=otlp stdout none"`
	MetricExporter string  `yaml:"metric_exporter,omitempty" validate:"omitempty,oneof=prometheus stdout none"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint,omitempty"`
	SampleRate     float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`

	// AllowDegraded keeps startup alive when an exporter cannot be
	// constructed. A missing collector must not block account serving.
	AllowDegraded bool `yaml:"allow_degraded"`
}

// GetSampleRate returns the trace sampling fraction. Zero falls back to
// full sampling; tracing is disabled with trace_exporter "none", not a
// zero rate.
func (t TelemetryConfig) GetSampleRate() float64 {
	if t.SampleRate <= 0 {
		return 1.0
	}
	return t.SampleRate
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Meta: newConfigMeta(),
		Server: ServerConfig{
			Port: DefaultPort,
		},
		Sources: SourcesConfig{
			CatalogDir:      DefaultCatalogDir,
			PrimaryProvider: DefaultPrimaryProvider,
			ExecutorLimit:   DefaultExecutorLimit,
		},
		Watcher: WatcherConfig{
			DebounceMS: DefaultWatchDebounceMS,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
		Telemetry: TelemetryConfig{
			SampleRate:    1.0,
			AllowDegraded: true,
		},
	}
}
