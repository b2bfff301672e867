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
	"fmt"
	"os"

	"github.com/GZOSP/packages-apps-Contacts/pkg/ux"
	"github.com/spf13/cobra"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

type reloadRequest struct {
	Source string `json:"source"`
}

type reloadResponse struct {
	Triggered []string `json:"triggered"`
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runReload triggers a source refresh on the server.
//
// # Description
//
// Posts /v1/accounts/reload with the source given as the positional
// argument: "catalog" refreshes the type descriptors, "local" the local
// account probe, and "all" (the default) both. The server coalesces the
// request with any reload already running, so repeated invocations are
// safe.
//
// # Inputs
//
//   - args[0]: optional source, one of catalog, local, all (default all)
//
// # Outputs
//
// Prints the triggered signal kinds to stdout, or raw JSON with --json.
func runReload(cmd *cobra.Command, args []string) {
	source := "all"
	if len(args) == 1 {
		source = args[0]
	}
	switch source {
	case "catalog", "local", "all":
	default:
		fmt.Fprintf(os.Stderr, "Invalid source %q: must be catalog, local or all\n", source)
		os.Exit(1)
	}

	var resp reloadResponse
	post := func() error {
		return apiPost("/v1/accounts/reload", reloadRequest{Source: source}, &resp)
	}

	// The spinner writes progress lines to stdout, which would corrupt
	// piped JSON, so --json issues the request bare.
	if jsonOutput {
		if err := post(); err != nil {
			fail(err)
		}
		outputJSON(resp)
		return
	}

	if err := ux.WithSpinner(fmt.Sprintf("Requesting %s reload", source), post); err != nil {
		os.Exit(1)
	}

	for _, kind := range resp.Triggered {
		ux.AccountLine(kind, ux.IconArrow, "")
	}
}
