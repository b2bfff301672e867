// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/GZOSP/packages-apps-Contacts/pkg/ux"
	"github.com/spf13/cobra"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type readyResponse struct {
	Ready        bool `json:"ready"`
	CatalogTypes int  `json:"catalog_types"`
}

// statusReport is the combined view printed by `accountsctl status`.
type statusReport struct {
	Server       string `json:"server"`
	Status       string `json:"status"`
	Version      string `json:"version"`
	Ready        bool   `json:"ready"`
	CatalogTypes int    `json:"catalog_types"`
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runStatus shows server health and readiness.
//
// # Description
//
// Combines GET /v1/accounts/health and GET /v1/accounts/ready into one
// report. Readiness returns 503 until the first catalog snapshot has been
// applied; that is reported, not treated as a transport failure.
//
// # Outputs
//
// Prints the report to stdout, or raw JSON with --json. Exits non-zero
// when the server is degraded or not ready.
func runStatus(cmd *cobra.Command, args []string) {
	report := statusReport{Server: getServerBaseURL()}

	var health healthResponse
	if err := apiGet("/v1/accounts/health", &health); err != nil {
		fail(err)
	}
	report.Status = health.Status
	report.Version = health.Version

	var ready readyResponse
	if err := apiGet("/v1/accounts/ready", &ready); err != nil {
		// Not-ready is carried as a 503 with a regular body; anything
		// else is a real failure.
		var ae *apiError
		if !errors.As(err, &ae) || ae.Status != 503 {
			fail(err)
		}
		_ = json.Unmarshal([]byte(ae.Message), &ready)
	}
	report.Ready = ready.Ready
	report.CatalogTypes = ready.CatalogTypes

	if jsonOutput {
		outputJSON(report)
	} else {
		printStatusReport(report)
	}

	if report.Status != "healthy" || !report.Ready {
		os.Exit(1)
	}
}

// printStatusReport prints the human readable status view.
func printStatusReport(report statusReport) {
	ux.Title(fmt.Sprintf("accountsd %s", report.Version))
	ux.KeyValue("server", report.Server)
	ux.KeyValue("status", report.Status)
	ux.KeyValue("ready", strconv.FormatBool(report.Ready))
	ux.KeyValue("catalog types", strconv.Itoa(report.CatalogTypes))

	if report.Status == "healthy" && report.Ready {
		ux.Success("serving")
	} else {
		ux.Warning("degraded or not ready")
	}
}
