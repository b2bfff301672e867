// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the accountsd configuration file.
//
// The file location resolves in order: the explicit -config flag, the
// ACCOUNTSD_CONFIG environment variable, then ~/.accountsd/accountsd.yaml.
// A missing file is written with defaults on first run so the schema is
// discoverable. ACCOUNTSD_* environment variables override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/GZOSP/packages-apps-Contacts/pkg/validation"
)

var (
	// Global holds the loaded configuration. Call Load before reading it.
	Global Config
	once   sync.Once
)

// Load reads the configuration into Global exactly once. path may be
// empty; see the package doc for the resolution order.
func Load(path string) error {
	var err error
	once.Do(func() {
		err = loadInternal(path)
	})
	return err
}

func loadInternal(path string) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return err
	}
	cfg, err := readConfig(resolved)
	if err != nil {
		return err
	}
	Global = cfg
	return nil
}

// resolvePath picks the config file location.
func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if env := os.Getenv("ACCOUNTSD_CONFIG"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate home directory: %w", err)
	}
	return filepath.Join(home, ".accountsd", "accountsd.yaml"), nil
}

// readConfig loads one file, creating it with defaults on first run,
// then applies environment overrides and validates the result.
func readConfig(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return Config{}, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := validation.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// createDefault writes a fresh default config for first runs.
func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides lets ACCOUNTSD_* variables override file values.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("ACCOUNTSD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ACCOUNTSD_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("ACCOUNTSD_CATALOG_DIR"); v != "" {
		cfg.Sources.CatalogDir = v
	}
	if v := os.Getenv("ACCOUNTSD_ACCOUNTS_FILE"); v != "" {
		cfg.Sources.AccountsFile = v
	}
	if v := os.Getenv("ACCOUNTSD_PREFS_FILE"); v != "" {
		cfg.Sources.PrefsFile = v
	}
	if v := os.Getenv("ACCOUNTSD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ACCOUNTSD_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	return nil
}
