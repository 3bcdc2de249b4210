// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudsync

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// TableSummary reports what one reconcile pass did to one table. A failed
// table carries only Error; its counters are meaningless.
type TableSummary struct {
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
	Deleted int    `json:"deleted"`
	Pushed  int    `json:"pushed"`
	Error   string `json:"error,omitempty"`
}

// Summary maps each table to its reconcile outcome.
type Summary map[string]TableSummary

// Engine owns full reconciliation and the realtime merge. The in-progress
// guard is a single-slot compare-and-swap held by the engine itself, not
// ambient process state.
type Engine struct {
	store   *localstore.Store
	remote  RemoteStore
	feed    Feed
	ownerID func() string
	logger  *slog.Logger

	syncing atomic.Bool
}

// NewEngine creates a sync engine. feed may be nil when realtime merge is
// not used.
func NewEngine(store *localstore.Store, remote RemoteStore, feed Feed, ownerID func() string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, remote: remote, feed: feed, ownerID: ownerID, logger: logger}
}

// SyncFromCloud runs a full push-then-pull reconciliation and returns a
// per-table change summary. A second call while one is already running
// returns an empty summary without doing anything; so does a call while no
// owner is signed in. Tables are processed in dependency order so parents
// always sync before the records referencing them. A table whose fetch
// fails is recorded in the summary and does not stop later tables.
func (e *Engine) SyncFromCloud(ctx context.Context) Summary {
	summary := Summary{}
	if !e.syncing.CompareAndSwap(false, true) {
		e.logger.Warn("sync already in progress, skipping")
		return summary
	}
	defer e.syncing.Store(false)

	owner := e.ownerID()
	if owner == "" {
		e.logger.Warn("no owner signed in, aborting sync")
		return summary
	}
	e.logger.Info("starting full sync", "owner", owner)

	for _, table := range localstore.Tables {
		summary[table] = e.syncTable(ctx, table, owner)
		ts := summary[table]
		if ts.Error != "" {
			e.logger.Error("table sync failed", "table", table, "error", ts.Error)
		} else {
			e.logger.Info("table synced", "table", table,
				"added", ts.Added, "updated", ts.Updated, "deleted", ts.Deleted, "pushed", ts.Pushed)
		}
	}
	return summary
}

func (e *Engine) syncTable(ctx context.Context, table, owner string) TableSummary {
	var ts TableSummary

	// Step 1: push local-only records (no remoteId yet) to the remote store.
	locals, err := e.store.List(ctx, table)
	if err != nil {
		return TableSummary{Error: err.Error()}
	}
	for _, rec := range locals {
		if remoteID, _ := rec["remoteId"].(string); remoteID != "" {
			continue
		}
		if err := e.pushLocalRecord(ctx, table, rec, owner); err != nil {
			// Typically an unresolved parent reference; the next pass will
			// retry once the parent has synced.
			e.logger.Error("failed to push local record", "table", table, "id", rec["id"], "error", err)
			continue
		}
		ts.Pushed++
	}

	// Step 2: fetch every remote record owned by the principal.
	remoteRecs, err := e.remote.Select(ctx, table)
	if err != nil {
		return TableSummary{Error: err.Error()}
	}

	// Step 3: upsert remote records through the shared apply path.
	remoteIDs := make(map[string]bool, len(remoteRecs))
	for _, remote := range remoteRecs {
		id, _ := remote["id"].(string)
		remoteIDs[id] = true
		outcome, err := applyRemoteRecord(ctx, e.store, table, remote)
		if err != nil {
			e.logger.Error("failed to apply remote record", "table", table, "remote_id", id, "error", err)
			continue
		}
		switch outcome {
		case applyAdded:
			ts.Added++
		case applyUpdated:
			ts.Updated++
		}
	}

	// Step 4: delete ghosts, meaning local records whose remote counterpart is
	// gone. This is how remote-side deletions propagate.
	locals, err = e.store.List(ctx, table)
	if err != nil {
		ts.Error = err.Error()
		return ts
	}
	for _, rec := range locals {
		remoteID, _ := rec["remoteId"].(string)
		if remoteID == "" || remoteIDs[remoteID] {
			continue
		}
		rctx := localstore.WithRemoteOrigin(ctx)
		if err := e.store.Delete(rctx, table, localID(rec)); err != nil {
			e.logger.Error("failed to delete ghost record", "table", table, "id", rec["id"], "error", err)
			continue
		}
		ts.Deleted++
	}
	return ts
}

// pushLocalRecord inserts one local-only record remotely and stores the
// returned remote id locally (loopback-suppressed).
func (e *Engine) pushLocalRecord(ctx context.Context, table string, rec localstore.Record, owner string) error {
	resolved, err := resolveLocalRefs(ctx, e.store, rec)
	if err != nil {
		return err
	}
	resolved["ownerId"] = owner
	created, err := e.remote.Insert(ctx, table, ToRemote(resolved))
	if err != nil {
		return err
	}
	remoteID, _ := created["id"].(string)
	rctx := localstore.WithRemoteOrigin(ctx)
	return e.store.Update(rctx, table, localID(rec), localstore.Record{
		"remoteId": remoteID,
		"ownerId":  owner,
	})
}
