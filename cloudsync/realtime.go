// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// ChangeEvent is one entry of the remote change feed, scoped server-side to
// the authenticated owner.
type ChangeEvent struct {
	Type  EventType         `json:"eventType"`
	Table string            `json:"table"`
	New   localstore.Record `json:"new"`
	Old   *ChangeKey        `json:"old"`
}

// EventType is the kind of change a feed event describes.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeKey carries the remote id of a deleted row.
type ChangeKey struct {
	ID string `json:"id"`
}

// Feed delivers remote change events for one table. The channel closes when
// ctx is cancelled or the feed ends.
type Feed interface {
	Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, error)
}

// SetupRealtimeSync subscribes to the change feed of every mirrored table
// and applies events through the same apply-record path the reconciler
// uses, so a replayed event converges to the same state. The returned
// teardown is safe to call multiple times: it stops accepting new events
// immediately, lets in-flight applies finish, and waits for them.
func (e *Engine) SetupRealtimeSync(ownerID string) (cancel func(), err error) {
	if e.feed == nil {
		return nil, fmt.Errorf("cloudsync: no change feed configured")
	}
	ctx, stop := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	for _, table := range localstore.Tables {
		ch, err := e.feed.Subscribe(ctx, table)
		if err != nil {
			stop()
			wg.Wait()
			return nil, fmt.Errorf("failed to subscribe to %s feed: %w", table, err)
		}
		wg.Add(1)
		go func(table string, ch <-chan ChangeEvent) {
			defer wg.Done()
			// Applies run on a detached context so a teardown racing a
			// delivered event never interrupts a half-written record; the
			// ctx check only stops new events from being accepted.
			applyCtx := context.WithoutCancel(ctx)
			for ev := range ch {
				if ctx.Err() != nil {
					return // teardown has begun, accept nothing further
				}
				e.applyFeedEvent(applyCtx, ev)
			}
		}(table, ch)
	}
	e.logger.Info("realtime sync started", "owner", ownerID)

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			wg.Wait()
			e.logger.Info("realtime sync stopped", "owner", ownerID)
		})
	}, nil
}

func (e *Engine) applyFeedEvent(ctx context.Context, ev ChangeEvent) {
	switch ev.Type {
	case EventInsert, EventUpdate:
		if ev.New == nil {
			return
		}
		if _, err := applyRemoteRecord(ctx, e.store, ev.Table, ev.New); err != nil {
			e.logger.Error("realtime apply failed", "table", ev.Table, "error", err)
		}
	case EventDelete:
		if ev.Old == nil || ev.Old.ID == "" {
			return
		}
		if _, err := deleteByRemoteID(ctx, e.store, ev.Table, ev.Old.ID); err != nil {
			e.logger.Error("realtime delete failed", "table", ev.Table, "remote_id", ev.Old.ID, "error", err)
		}
	}
}
