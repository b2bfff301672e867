// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command accountsctl is a client for a running accountsd server.
//
// It queries the merged account list, the registered type catalog, and the
// default account, triggers manual reloads, and follows the change feed over
// a WebSocket. Every command talks to the HTTP API, so accountsctl can run
// on a different host than the server it inspects.
//
// Usage:
//
//	accountsctl accounts list --writable
//	accountsctl accounts info
//	accountsctl accounts default
//	accountsctl types list
//	accountsctl types lookup com.google
//	accountsctl kinds vnd.android.cursor.item/email_v2 --type com.google
//	accountsctl reload catalog
//	accountsctl watch
//	accountsctl status
//
// The server address resolves in order: the --server flag, the
// ACCOUNTSCTL_SERVER_URL environment variable, the config file, and finally
// http://localhost:8080.
package main

import (
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the optional accountsctl configuration. The file lives at
// ~/.config/accountsctl/config.yaml unless ACCOUNTSCTL_CONFIG points
// somewhere else. A missing file is fine; every field has a default.
type Config struct {
	// Server is the accountsd base URL, e.g. "http://accounts.local:8080".
	Server string `yaml:"server"`

	// Personality is the default output style: full, standard, minimal
	// or machine. The --personality flag overrides it.
	Personality string `yaml:"personality"`

	// TimeoutSeconds bounds every HTTP request. Zero means 30 seconds.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

var config Config

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// loadConfig reads the optional config file into the global config. Only a
// file that exists but cannot be parsed is fatal.
func loadConfig() {
	configPath := os.Getenv("ACCOUNTSCTL_CONFIG")
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		configPath = filepath.Join(home, ".config", "accountsctl", "config.yaml")
	}

	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		return
	}

	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		log.Fatalf("Error parsing %s: %v", configPath, err)
	}
}
