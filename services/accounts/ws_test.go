// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package accounts

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/signal"
)

func TestHandlers_HandleWatch_PushesChangeEvents(t *testing.T) {
	svc, accountsPath := newTestService(t)
	router := setupTestRouter(svc)

	server := httptest.NewServer(router)
	defer server.Close()

	// Settle the bootstrap so its notifications are not part of the test.
	resp, err := http.Get(server.URL + "/v1/accounts")
	if err != nil {
		t.Fatalf("bootstrap list: %v", err)
	}
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/accounts/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial watch socket: %v", err)
	}
	defer conn.Close()

	// The handshake completes before the handler subscribes to the bus;
	// give the subscription a moment to land.
	time.Sleep(200 * time.Millisecond)

	writeTestFile(t, accountsPath, testAccountsWithCarolYAML)
	resp, err = http.Post(server.URL+"/v1/accounts/reload", "application/json",
		strings.NewReader(`{"source": "local"}`))
	if err != nil {
		t.Fatalf("trigger reload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("reload status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var event WatchEventResponse
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read watch event: %v", err)
	}
	if event.Kind != "accounts_changed" {
		t.Errorf("event kind = %q, want accounts_changed", event.Kind)
	}
	if event.ID == "" {
		t.Error("event ID is empty")
	}
}

func TestHandlers_HandleWatch_ClientDisconnectCleansUp(t *testing.T) {
	svc, _ := newTestService(t)
	router := setupTestRouter(svc)

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/accounts/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial watch socket: %v", err)
	}
	conn.Close()

	// After the client drops, the handler must unsubscribe; later emits
	// must not panic or block the bus.
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		svc.Bus.Emit(signal.NewEvent(signal.KindAccountsChanged, "disconnect probe"))
		time.Sleep(10 * time.Millisecond)
	}
}
