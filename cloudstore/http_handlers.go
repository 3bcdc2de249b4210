// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudstore

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPHandlers provides the REST surface of the store: owner-scoped CRUD
// under /v1/{table} plus the websocket change feed under /v1/realtime.
type HTTPHandlers struct {
	service *Service
	hub     *Hub
	logger  *slog.Logger
}

// NewHTTPHandlers creates a new instance of store handlers
func NewHTTPHandlers(service *Service, hub *Hub, logger *slog.Logger) *HTTPHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandlers{
		service: service,
		hub:     hub,
		logger:  logger,
	}
}

// Register wires the handlers into a mux. Callers are expected to wrap the
// returned routes in JWTAuth.Middleware.
func (h *HTTPHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/{table}", h.HandleInsert)
	mux.HandleFunc("GET /v1/{table}", h.HandleList)
	mux.HandleFunc("PATCH /v1/{table}/{id}", h.HandleUpdate)
	mux.HandleFunc("DELETE /v1/{table}/{id}", h.HandleDelete)
	if h.hub != nil {
		mux.HandleFunc("GET /v1/realtime", h.hub.HandleWS)
	}
}

// HandleInsert creates a row in the owner's slice of a table
func (h *HTTPHandlers) HandleInsert(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", "Missing owner identity")
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	created, err := h.service.Insert(r.Context(), id.Owner, r.PathValue("table"), payload)
	if err != nil {
		h.logger.Error("Failed to insert row", "table", r.PathValue("table"), "error", err)
		h.writeError(w, http.StatusBadRequest, "insert_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		h.logger.Error("Failed to encode insert response", "error", err)
	}
}

// HandleList returns every row the owner has in a table
func (h *HTTPHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", "Missing owner identity")
		return
	}

	rows, err := h.service.List(r.Context(), id.Owner, r.PathValue("table"))
	if err != nil {
		h.logger.Error("Failed to list rows", "table", r.PathValue("table"), "error", err)
		h.writeError(w, http.StatusBadRequest, "list_failed", err.Error())
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		h.logger.Error("Failed to encode list response", "error", err)
	}
}

// HandleUpdate applies a partial update to one of the owner's rows
func (h *HTTPHandlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", "Missing owner identity")
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	err := h.service.Update(r.Context(), id.Owner, r.PathValue("table"), r.PathValue("id"), payload)
	if err != nil {
		h.logger.Error("Failed to update row", "table", r.PathValue("table"), "id", r.PathValue("id"), "error", err)
		h.writeError(w, http.StatusBadRequest, "update_failed", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes one of the owner's rows
func (h *HTTPHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", "Missing owner identity")
		return
	}

	err := h.service.Delete(r.Context(), id.Owner, r.PathValue("table"), r.PathValue("id"))
	if err != nil {
		h.logger.Error("Failed to delete row", "table", r.PathValue("table"), "id", r.PathValue("id"), "error", err)
		h.writeError(w, http.StatusBadRequest, "delete_failed", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeError writes a JSON error response
func (h *HTTPHandlers) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
