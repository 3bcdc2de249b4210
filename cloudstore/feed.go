// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudstore

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// FeedKey identifies a deleted row in a feed event.
type FeedKey struct {
	ID string `json:"id"`
}

// FeedEvent is one change notification pushed over the websocket feed.
// Inserts and updates carry the full new row; deletes carry only the key.
type FeedEvent struct {
	Type  string         `json:"eventType"`
	Table string         `json:"table"`
	New   map[string]any `json:"new,omitempty"`
	Old   *FeedKey       `json:"old,omitempty"`
}

type subKey struct {
	owner string
	table string
}

// Hub fans change events out to websocket subscribers. A subscriber only
// receives events for its own owner and the table it asked for.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu   sync.RWMutex
	subs map[subKey]map[*feedConn]bool
}

type feedConn struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes to the connection
}

func (c *feedConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// NewHub creates a new change-feed hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[subKey]map[*feedConn]bool),
	}
}

// HandleWS upgrades the request and registers the connection as a
// subscriber for the table named in the query string. The connection is
// held open until the client closes it.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		http.Error(w, "Missing owner identity", http.StatusUnauthorized)
		return
	}

	table := r.URL.Query().Get("table")
	if _, ok := tableColumns[table]; !ok {
		http.Error(w, "Unknown table", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade feed connection", "error", err)
		return
	}

	fc := &feedConn{conn: conn}
	key := subKey{owner: id.Owner, table: table}
	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*feedConn]bool)
	}
	h.subs[key][fc] = true
	h.mu.Unlock()

	h.logger.Debug("Feed subscriber connected", "owner", id.Owner, "table", table)

	// Drain inbound frames until the peer disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.subs[key], fc)
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
	h.mu.Unlock()
	_ = conn.Close()
	h.logger.Debug("Feed subscriber disconnected", "owner", id.Owner, "table", table)
}

// Broadcast delivers an event to every subscriber of the owner and table.
// Connections that fail to write are dropped on their next read.
func (h *Hub) Broadcast(owner string, ev FeedEvent) {
	key := subKey{owner: owner, table: ev.Table}
	h.mu.RLock()
	conns := make([]*feedConn, 0, len(h.subs[key]))
	for fc := range h.subs[key] {
		conns = append(conns, fc)
	}
	h.mu.RUnlock()

	for _, fc := range conns {
		if err := fc.writeJSON(ev); err != nil {
			h.logger.Warn("Failed to push feed event", "table", ev.Table, "error", err)
			_ = fc.conn.Close()
		}
	}
}
