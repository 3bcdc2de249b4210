// Package cloudsync replicates the local finance store to a remote
// multi-tenant store and back: a mirror layer pushes local writes as they
// commit, a reconciler performs push-then-pull full synchronization, and a
// realtime merge applies a live change feed. All inbound paths converge on
// one idempotent apply-record operation.
// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// RemoteStore is the remote table API the sync engine runs against. Rows are
// snake_case records whose "id" is a globally unique identifier assigned by
// the remote side; every row belongs to the authenticated owner.
type RemoteStore interface {
	// Insert creates a row and returns it as stored, including its id.
	Insert(ctx context.Context, table string, payload localstore.Record) (localstore.Record, error)
	// Update applies a partial update to the row with the given id.
	Update(ctx context.Context, table, id string, payload localstore.Record) error
	// Delete removes the row with the given id; missing rows are a no-op.
	Delete(ctx context.Context, table, id string) error
	// Select returns every row owned by the authenticated principal.
	Select(ctx context.Context, table string) ([]localstore.Record, error)
}

// HTTPRemote talks to the cloudstore REST API with bearer-token auth.
type HTTPRemote struct {
	BaseURL string
	Token   func(context.Context) (string, error)
	HTTP    *http.Client
}

// NewHTTPRemote creates a remote-store client for the given base URL.
func NewHTTPRemote(baseURL string, token func(context.Context) (string, error)) *HTTPRemote {
	return &HTTPRemote{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := r.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("remote store returned %d: %s", resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (r *HTTPRemote) Insert(ctx context.Context, table string, payload localstore.Record) (localstore.Record, error) {
	var created localstore.Record
	if err := r.do(ctx, http.MethodPost, "/v1/"+url.PathEscape(table), payload, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *HTTPRemote) Update(ctx context.Context, table, id string, payload localstore.Record) error {
	return r.do(ctx, http.MethodPatch, "/v1/"+url.PathEscape(table)+"/"+url.PathEscape(id), payload, nil)
}

func (r *HTTPRemote) Delete(ctx context.Context, table, id string) error {
	return r.do(ctx, http.MethodDelete, "/v1/"+url.PathEscape(table)+"/"+url.PathEscape(id), nil, nil)
}

func (r *HTTPRemote) Select(ctx context.Context, table string) ([]localstore.Record, error) {
	var rows []localstore.Record
	if err := r.do(ctx, http.MethodGet, "/v1/"+url.PathEscape(table), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
