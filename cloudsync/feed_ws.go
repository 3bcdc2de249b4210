// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudsync

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

// WebsocketFeed consumes the cloudstore realtime endpoint. One connection
// is opened per subscribed table; the server filters events to the owner
// identified by the bearer token.
type WebsocketFeed struct {
	URL    string // ws:// or wss:// base, e.g. "ws://localhost:8080"
	Token  func(context.Context) (string, error)
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// NewWebsocketFeed creates a feed client for the given base URL.
func NewWebsocketFeed(baseURL string, token func(context.Context) (string, error), logger *slog.Logger) *WebsocketFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsocketFeed{
		URL:    baseURL,
		Token:  token,
		Dialer: websocket.DefaultDialer,
		Logger: logger,
	}
}

// Subscribe opens the feed for one table. The returned channel closes when
// ctx is cancelled or the connection drops; the caller decides whether to
// resubscribe (a full reconcile covers anything missed meanwhile).
func (f *WebsocketFeed) Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, error) {
	token, err := f.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	endpoint := f.URL + "/v1/realtime?table=" + url.QueryEscape(table)

	conn, resp, err := f.Dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial feed (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial feed: %w", err)
	}

	ch := make(chan ChangeEvent)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			var ev ChangeEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					f.Logger.Warn("feed connection closed", "table", table, "error", err)
				}
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
