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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newReloadServer(t *testing.T, gotBody *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/accounts/reload" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		*gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"triggered":["package_changed","locale_changed"]}`))
	}))
}

func TestRunReload_DefaultsToAll(t *testing.T) {
	resetGlobals(t)

	var gotBody string
	server := newReloadServer(t, &gotBody)
	defer server.Close()
	serverURL = server.URL

	output := captureStdout(func() {
		runReload(reloadCmd, nil)
	})

	if gotBody != `{"source":"all"}` {
		t.Errorf("request body = %q, want source all", gotBody)
	}
	if !strings.Contains(output, "OK: Requesting all reload\n") {
		t.Errorf("missing success line:\n%s", output)
	}
	if !strings.Contains(output, "→\tpackage_changed\t\n") {
		t.Errorf("missing triggered signal line:\n%s", output)
	}
	if !strings.Contains(output, "→\tlocale_changed\t\n") {
		t.Errorf("missing triggered signal line:\n%s", output)
	}
}

func TestRunReload_CatalogSource(t *testing.T) {
	resetGlobals(t)

	var gotBody string
	server := newReloadServer(t, &gotBody)
	defer server.Close()
	serverURL = server.URL

	captureStdout(func() {
		runReload(reloadCmd, []string{"catalog"})
	})

	if gotBody != `{"source":"catalog"}` {
		t.Errorf("request body = %q, want source catalog", gotBody)
	}
}

func TestRunReload_JSON(t *testing.T) {
	resetGlobals(t)

	var gotBody string
	server := newReloadServer(t, &gotBody)
	defer server.Close()
	serverURL = server.URL
	jsonOutput = true

	output := captureStdout(func() {
		runReload(reloadCmd, []string{"local"})
	})

	// The whole stdout stream must stay parseable; no spinner lines.
	var resp reloadResponse
	if err := json.Unmarshal([]byte(output), &resp); err != nil {
		t.Fatalf("--json output is not valid JSON: %v\n%s", err, output)
	}
	if len(resp.Triggered) != 2 {
		t.Errorf("triggered = %v", resp.Triggered)
	}
	if strings.Contains(output, "PROGRESS:") {
		t.Errorf("--json output must not carry progress lines:\n%s", output)
	}
}
