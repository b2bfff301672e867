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
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/GZOSP/packages-apps-Contacts/pkg/ux"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// watchEvent mirrors one change notification from the watch socket.
type watchEvent struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Time   time.Time `json:"time"`
	Detail string    `json:"detail"`
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runWatch follows account change events until interrupted.
//
// # Description
//
// Connects to the /v1/accounts/watch WebSocket and prints one line per
// change event as the server pushes it. Ctrl-C closes the connection
// cleanly.
//
// # Outputs
//
// Prints events to stdout; with --json each event is one JSON line.
//
// # Limitations
//
//   - Events emitted before the connection is established are not replayed.
func runWatch(cmd *cobra.Command, args []string) {
	wsURL, err := watchURL(getServerBaseURL())
	if err != nil {
		fail(err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fail(fmt.Errorf("connecting to %s: %w", wsURL, err))
	}
	defer conn.Close()

	if !jsonOutput {
		ux.Info("watching for account changes (Ctrl-C to stop)")
	}

	// Reader goroutine: closed `done` means the server went away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var event watchEvent
			if err := conn.ReadJSON(&event); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					ux.Error(fmt.Sprintf("connection lost: %v", err))
				}
				return
			}
			printEvent(event)
		}
	}()

	select {
	case <-done:
		os.Exit(1)
	case <-interrupt:
		// Ask the server to close the connection, then wait briefly for
		// the reader to drain.
		err := conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			return
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

// watchURL converts the HTTP base URL into the watch WebSocket URL.
func watchURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL %q: unsupported scheme %q", base, u.Scheme)
	}
	u.Path = "/v1/accounts/watch"
	return u.String(), nil
}

// printEvent prints one change event in the current output mode.
func printEvent(event watchEvent) {
	if jsonOutput {
		line, err := json.Marshal(event)
		if err != nil {
			return
		}
		fmt.Println(string(line))
		return
	}

	detail := event.Detail
	if detail == "" {
		detail = event.Time.Format(time.RFC3339)
	}
	ux.AccountLine(event.Kind, ux.IconArrow, detail)
}
