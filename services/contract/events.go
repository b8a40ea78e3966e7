// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package contract

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// eventWriteTimeout bounds each write to an event stream.
	eventWriteTimeout = 10 * time.Second

	// eventPingInterval keeps idle event streams alive through proxies.
	eventPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HandleEvents handles GET /v1/contracts/events.
//
// Description:
//
//	Upgrades to a WebSocket and sends a JSON ReloadEvent for the current
//	catalog, if one is loaded, then one for every catalog installed
//	afterwards. A catalog installed during the handshake is sent once.
//	Client messages are read and discarded; the stream ends
//	when the client closes, a write fails or Close is called.
//
// Response:
//
//	101 Switching Protocols: ReloadEvent messages follow
//	400 Bad Request: Not a WebSocket handshake
func (h *Handlers) HandleEvents(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleEvents")

	// Subscribe before the handshake completes so that no catalog
	// installed after the client connects is missed.
	events, cancel := h.service.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		requestsTotal.WithLabelValues("events", strconv.Itoa(http.StatusBadRequest)).Inc()
		return
	}
	defer conn.Close()
	requestsTotal.WithLabelValues("events", strconv.Itoa(http.StatusSwitchingProtocols)).Inc()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var sent ReloadEvent
	if st := h.service.Status(); st.Loaded {
		sent = ReloadEvent{Hash: st.Hash, Types: st.Types, LoadedAt: *st.LoadedAt}
		if err := writeEvent(conn, sent); err != nil {
			logger.Debug("event write failed", slog.String("error", err.Error()))
			return
		}
	}

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-h.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(eventWriteTimeout))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if sameInstall(ev, sent) {
				continue
			}
			if err := writeEvent(conn, ev); err != nil {
				logger.Debug("event write failed", slog.String("error", err.Error()))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// sameInstall reports whether a and b announce the same catalog install.
// The buffered event for the catalog reported by Status carries its hash
// and load time.
func sameInstall(a, b ReloadEvent) bool {
	return a.Hash != "" && a.Hash == b.Hash && a.LoadedAt.Equal(b.LoadedAt)
}

func writeEvent(conn *websocket.Conn, ev ReloadEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
