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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GZOSP/packages-apps-Contacts/pkg/ux"
)

// Constants for default connection settings
const (
	DefaultServerPort = 8080
	DefaultServerHost = "localhost"
)

// apiError carries a non-2xx response from the accounts API.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// errorBody is the wire form of an API error response.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

// getServerBaseURL returns the address of the accountsd server.
func getServerBaseURL() string {
	// 1. Priority: the --server flag
	if serverURL != "" {
		return strings.TrimRight(serverURL, "/")
	}
	// 2. Environment variable (used by tests and container overrides)
	if url := os.Getenv("ACCOUNTSCTL_SERVER_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	// 3. Config file
	if config.Server != "" {
		return strings.TrimRight(config.Server, "/")
	}
	// 4. Default: standard host/port
	return fmt.Sprintf("http://%s:%d", DefaultServerHost, DefaultServerPort)
}

// requestTimeout returns the per-request HTTP timeout.
func requestTimeout() time.Duration {
	if config.TimeoutSeconds > 0 {
		return time.Duration(config.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// apiGet issues a GET against the accounts API and decodes the JSON response
// into out. Non-2xx statuses come back as an *apiError.
func apiGet(path string, out interface{}) error {
	client := &http.Client{Timeout: requestTimeout()}

	resp, err := client.Get(getServerBaseURL() + path)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)

	return decodeResponse(resp, out)
}

// apiPost issues a POST with a JSON payload and decodes the JSON response
// into out. Non-2xx statuses come back as an *apiError.
func apiPost(path string, payload interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	client := &http.Client{Timeout: requestTimeout()}

	req, err := http.NewRequest("POST", getServerBaseURL()+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)

	return decodeResponse(resp, out)
}

// decodeResponse turns a non-2xx response into an *apiError and otherwise
// decodes the body into out. A nil out discards the body.
func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}

		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
			apiErr.Message = eb.Error
			apiErr.Code = eb.Code
			if eb.Details != "" {
				apiErr.Message += ": " + eb.Details
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		slog.Error("failed to close response body", "error", err)
	}
}

// outputJSON prints v as indented JSON for scripting.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

// fail prints err in the current personality and exits non-zero.
func fail(err error) {
	ux.Error(err.Error())
	os.Exit(1)
}
