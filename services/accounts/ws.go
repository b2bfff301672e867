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

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/GZOSP/packages-apps-Contacts/services/accounts/signal"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// watchBuffer is how many undelivered events a watch connection may lag
// behind before events are dropped. Bus handlers must never block, so a
// slow consumer loses events instead of stalling the apply goroutine.
const watchBuffer = 32

// HandleWatch handles GET /v1/accounts/watch.
//
// Description:
//
//	Upgrades the connection to a WebSocket and pushes one WatchEventResponse
//	per applied account change until the client disconnects. Events emitted
//	while the client is not keeping up are dropped; consumers that need a
//	consistent view should re-query the list endpoints after each event.
func (h *Handlers) HandleWatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := requestLogger(c, requestID, "HandleWatch")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()
	logger.Info("Watch client connected")

	events := make(chan signal.Event, watchBuffer)
	subID := h.svc.Bus.Subscribe(func(e signal.Event) {
		select {
		case events <- e:
		default:
			// Slow consumer; drop rather than block the emitter.
		}
	}, signal.KindAccountsChanged)
	defer h.svc.Bus.Unsubscribe(subID)

	// The read loop exists to notice the client going away. Inbound
	// payloads are ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			logger.Info("Watch client disconnected")
			return
		case e := <-events:
			if err := ws.WriteJSON(toWatchEventResponse(e)); err != nil {
				logger.Warn("Failed to write watch event", "error", err)
				return
			}
		}
	}
}
