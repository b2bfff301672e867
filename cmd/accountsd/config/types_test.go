// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package config contains unit tests for configuration types.

# Testing Strategy

These tests verify:
  - Default values are correctly applied
  - Getter methods fall back when fields are unset
  - ConfigMeta is properly initialized
  - DefaultConfig produces a servable configuration
*/
package config

import (
	"testing"
	"time"

	"github.com/GZOSP/packages-apps-Contacts/pkg/validation"
)

// -----------------------------------------------------------------------------
// Getter Fallback Tests
// -----------------------------------------------------------------------------

// TestServerConfig_GetPort verifies default fallback.
func TestServerConfig_GetPort(t *testing.T) {
	tests := []struct {
		name     string
		config   ServerConfig
		expected int
	}{
		{
			name:     "returns configured value",
			config:   ServerConfig{Port: 9090},
			expected: 9090,
		},
		{
			name:     "returns default when zero",
			config:   ServerConfig{},
			expected: DefaultPort,
		},
		{
			name:     "returns default when negative",
			config:   ServerConfig{Port: -1},
			expected: DefaultPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetPort(); got != tt.expected {
				t.Errorf("GetPort() = %d, want %d", got, tt.expected)
			}
		})
	}
}

// TestSourcesConfig_GetCatalogDir verifies default fallback.
func TestSourcesConfig_GetCatalogDir(t *testing.T) {
	tests := []struct {
		name     string
		config   SourcesConfig
		expected string
	}{
		{
			name:     "returns configured value",
			config:   SourcesConfig{CatalogDir: "/etc/descriptors"},
			expected: "/etc/descriptors",
		},
		{
			name:     "returns default when empty",
			config:   SourcesConfig{},
			expected: DefaultCatalogDir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetCatalogDir(); got != tt.expected {
				t.Errorf("GetCatalogDir() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestSourcesConfig_GetPrimaryProvider verifies default fallback.
func TestSourcesConfig_GetPrimaryProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   SourcesConfig
		expected string
	}{
		{
			name:     "returns configured value",
			config:   SourcesConfig{PrimaryProvider: "com.example.sync"},
			expected: "com.example.sync",
		},
		{
			name:     "returns default when empty",
			config:   SourcesConfig{},
			expected: DefaultPrimaryProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetPrimaryProvider(); got != tt.expected {
				t.Errorf("GetPrimaryProvider() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestSourcesConfig_GetExecutorLimit verifies default fallback.
func TestSourcesConfig_GetExecutorLimit(t *testing.T) {
	tests := []struct {
		name     string
		config   SourcesConfig
		expected int64
	}{
		{
			name:     "returns configured value",
			config:   SourcesConfig{ExecutorLimit: 8},
			expected: 8,
		},
		{
			name:     "returns default when zero",
			config:   SourcesConfig{ExecutorLimit: 0},
			expected: DefaultExecutorLimit,
		},
		{
			name:     "returns default when negative",
			config:   SourcesConfig{ExecutorLimit: -2},
			expected: DefaultExecutorLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetExecutorLimit(); got != tt.expected {
				t.Errorf("GetExecutorLimit() = %d, want %d", got, tt.expected)
			}
		})
	}
}

// TestWatcherConfig_GetDebounce verifies millisecond conversion and fallback.
func TestWatcherConfig_GetDebounce(t *testing.T) {
	tests := []struct {
		name     string
		config   WatcherConfig
		expected time.Duration
	}{
		{
			name:     "returns configured value",
			config:   WatcherConfig{DebounceMS: 250},
			expected: 250 * time.Millisecond,
		},
		{
			name:     "returns default when zero",
			config:   WatcherConfig{},
			expected: DefaultWatchDebounceMS * time.Millisecond,
		},
		{
			name:     "returns default when negative",
			config:   WatcherConfig{DebounceMS: -100},
			expected: DefaultWatchDebounceMS * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetDebounce(); got != tt.expected {
				t.Errorf("GetDebounce() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestLoggingConfig_GetLevel verifies default fallback.
func TestLoggingConfig_GetLevel(t *testing.T) {
	tests := []struct {
		name     string
		config   LoggingConfig
		expected string
	}{
		{
			name:     "returns configured value",
			config:   LoggingConfig{Level: "debug"},
			expected: "debug",
		},
		{
			name:     "returns default when empty",
			config:   LoggingConfig{},
			expected: DefaultLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetLevel(); got != tt.expected {
				t.Errorf("GetLevel() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestTelemetryConfig_GetSampleRate verifies the full-sampling fallback.
func TestTelemetryConfig_GetSampleRate(t *testing.T) {
	tests := []struct {
		name     string
		config   TelemetryConfig
		expected float64
	}{
		{
			name:     "returns configured value",
			config:   TelemetryConfig{SampleRate: 0.25},
			expected: 0.25,
		},
		{
			name:     "returns full sampling when zero",
			config:   TelemetryConfig{},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.GetSampleRate(); got != tt.expected {
				t.Errorf("GetSampleRate() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// ConfigMeta Tests
// -----------------------------------------------------------------------------

// TestNewConfigMeta verifies metadata initialization.
func TestNewConfigMeta(t *testing.T) {
	before := time.Now().UnixMilli()
	meta := newConfigMeta()
	after := time.Now().UnixMilli()

	if meta.Version != CurrentConfigVersion {
		t.Errorf("Version = %q, want %q", meta.Version, CurrentConfigVersion)
	}

	if meta.ModifiedBy != "accountsd" {
		t.Errorf("ModifiedBy = %q, want %q", meta.ModifiedBy, "accountsd")
	}

	if meta.CreatedAt < before || meta.CreatedAt > after {
		t.Errorf("CreatedAt %d not between %d and %d", meta.CreatedAt, before, after)
	}

	if meta.ModifiedAt < before || meta.ModifiedAt > after {
		t.Errorf("ModifiedAt %d not between %d and %d", meta.ModifiedAt, before, after)
	}

	// CreatedAt and ModifiedAt should be equal for new config
	if meta.CreatedAt != meta.ModifiedAt {
		t.Errorf("CreatedAt (%d) != ModifiedAt (%d) for new config",
			meta.CreatedAt, meta.ModifiedAt)
	}
}

// TestConfigMeta_TimeConversion verifies timestamp helper methods.
func TestConfigMeta_TimeConversion(t *testing.T) {
	now := time.Now()
	meta := ConfigMeta{
		CreatedAt:  now.UnixMilli(),
		ModifiedAt: now.UnixMilli(),
	}

	// Allow 1ms tolerance due to conversion precision
	if meta.CreatedAtTime().Sub(now).Abs() > time.Millisecond {
		t.Errorf("CreatedAtTime() differs by more than 1ms from original")
	}

	if meta.ModifiedAtTime().Sub(now).Abs() > time.Millisecond {
		t.Errorf("ModifiedAtTime() differs by more than 1ms from original")
	}
}

// -----------------------------------------------------------------------------
// DefaultConfig Tests
// -----------------------------------------------------------------------------

// TestDefaultConfig_HasMeta verifies metadata is included.
func TestDefaultConfig_HasMeta(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Meta.Version == "" {
		t.Error("Meta.Version should not be empty")
	}

	if cfg.Meta.CreatedAt == 0 {
		t.Error("Meta.CreatedAt should not be zero")
	}

	if cfg.Meta.ModifiedBy == "" {
		t.Error("Meta.ModifiedBy should not be empty")
	}
}

// TestDefaultConfig_ServerDefaults verifies listener configuration.
func TestDefaultConfig_ServerDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}

	if cfg.Server.Debug {
		t.Error("Server.Debug should be false by default")
	}
}

// TestDefaultConfig_SourceDefaults verifies source configuration.
func TestDefaultConfig_SourceDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Sources.CatalogDir != DefaultCatalogDir {
		t.Errorf("Sources.CatalogDir = %q, want %q",
			cfg.Sources.CatalogDir, DefaultCatalogDir)
	}

	if cfg.Sources.PrimaryProvider != DefaultPrimaryProvider {
		t.Errorf("Sources.PrimaryProvider = %q, want %q",
			cfg.Sources.PrimaryProvider, DefaultPrimaryProvider)
	}

	if cfg.Sources.AccountsFile != "" {
		t.Errorf("Sources.AccountsFile = %q, want empty", cfg.Sources.AccountsFile)
	}
}

// TestDefaultConfig_TelemetryDefaults verifies exporter fields stay empty
// so the OTEL_* environment variables remain authoritative.
func TestDefaultConfig_TelemetryDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Telemetry.TraceExporter != "" {
		t.Errorf("Telemetry.TraceExporter = %q, want empty", cfg.Telemetry.TraceExporter)
	}

	if cfg.Telemetry.OTLPEndpoint != "" {
		t.Errorf("Telemetry.OTLPEndpoint = %q, want empty", cfg.Telemetry.OTLPEndpoint)
	}

	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Telemetry.SampleRate = %v, want %v", cfg.Telemetry.SampleRate, 1.0)
	}

	if !cfg.Telemetry.AllowDegraded {
		t.Error("Telemetry.AllowDegraded should be true by default")
	}
}

// TestDefaultConfig_Validates verifies the defaults pass their own rules.
func TestDefaultConfig_Validates(t *testing.T) {
	if err := validation.Struct(DefaultConfig()); err != nil {
		t.Errorf("DefaultConfig() fails validation: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Constants Tests
// -----------------------------------------------------------------------------

// TestConstants verifies constant values are as expected.
func TestConstants(t *testing.T) {
	if DefaultPort != 8080 {
		t.Errorf("DefaultPort = %d, want %d", DefaultPort, 8080)
	}

	if DefaultCatalogDir != "./descriptors" {
		t.Errorf("DefaultCatalogDir = %q, want %q", DefaultCatalogDir, "./descriptors")
	}

	if DefaultPrimaryProvider != "com.google" {
		t.Errorf("DefaultPrimaryProvider = %q, want %q", DefaultPrimaryProvider, "com.google")
	}

	if DefaultExecutorLimit != 4 {
		t.Errorf("DefaultExecutorLimit = %d, want %d", DefaultExecutorLimit, 4)
	}

	if DefaultWatchDebounceMS != 500 {
		t.Errorf("DefaultWatchDebounceMS = %d, want %d", DefaultWatchDebounceMS, 500)
	}

	if DefaultLogLevel != "info" {
		t.Errorf("DefaultLogLevel = %q, want %q", DefaultLogLevel, "info")
	}

	if CurrentConfigVersion != "1.0.0" {
		t.Errorf("CurrentConfigVersion = %q, want %q", CurrentConfigVersion, "1.0.0")
	}
}
