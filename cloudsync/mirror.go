// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudsync

import (
	"context"
	"log/slog"
	"sync"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// Mirror replicates local writes to the remote store. It registers one
// observer per mirrored table on the store's post-commit bus and pushes on
// a worker goroutine, so the remote round trip never blocks a local write.
// A failed push is logged and left for the next reconcile pass; the local
// mutation has already committed and is never rolled back.
type Mirror struct {
	store   *localstore.Store
	remote  RemoteStore
	ownerID func() string // empty while signed out; pushes are skipped
	logger  *slog.Logger

	queue   chan localstore.Event
	pending sync.WaitGroup

	// stopMu orders enqueues against shutdown: an observer holding it
	// either finishes its enqueue before Stop closes the queue or sees
	// stopping and backs off.
	stopMu   sync.Mutex
	stopping bool
	stopOnce sync.Once
	done     chan struct{}
}

// NewMirror creates a mirror for every table in localstore.Tables.
func NewMirror(store *localstore.Store, remote RemoteStore, ownerID func() string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		store:   store,
		remote:  remote,
		ownerID: ownerID,
		logger:  logger,
		queue:   make(chan localstore.Event, 256),
		done:    make(chan struct{}),
	}
}

// Start registers the observers and launches the push worker.
func (m *Mirror) Start(ctx context.Context) {
	for _, table := range localstore.Tables {
		m.store.RegisterObserver(table, m.observe)
	}
	go m.worker(ctx)
}

// Stop drains the queue and stops the worker. Safe to call multiple times.
func (m *Mirror) Stop() {
	m.stopOnce.Do(func() {
		m.stopMu.Lock()
		m.stopping = true
		m.stopMu.Unlock()
		m.pending.Wait()
		close(m.queue)
		<-m.done
	})
}

// Flush blocks until every queued push has been attempted.
func (m *Mirror) Flush() { m.pending.Wait() }

func (m *Mirror) observe(ev localstore.Event) {
	if ev.Origin == localstore.OriginRemote {
		return // loopback: this write came from a remote apply
	}
	if m.ownerID() == "" {
		return // single-user local mode, no remote to mirror to
	}
	m.stopMu.Lock()
	if m.stopping {
		m.stopMu.Unlock()
		return
	}
	m.pending.Add(1)
	overflow := false
	select {
	case m.queue <- ev:
	default:
		// Queue overflow: drop the push. The record stays local-only (or
		// stale) and is repaired by the next full reconcile.
		m.pending.Done()
		overflow = true
	}
	m.stopMu.Unlock()
	if overflow {
		m.logger.Warn("mirror queue full, dropping push", "table", ev.Table, "op", ev.Op, "id", ev.ID)
	}
}

func (m *Mirror) worker(ctx context.Context) {
	defer close(m.done)
	for ev := range m.queue {
		m.push(ctx, ev)
		m.pending.Done()
	}
}

func (m *Mirror) push(ctx context.Context, ev localstore.Event) {
	switch ev.Op {
	case localstore.OpInsert:
		m.pushInsert(ctx, ev)
	case localstore.OpUpdate:
		m.pushUpdate(ctx, ev)
	case localstore.OpDelete:
		m.pushDelete(ctx, ev)
	}
}

// pushInsert mirrors a local create: resolve foreign keys, map to the
// remote shape, insert, and store the returned remote id back on the local
// record through a loopback-suppressed update.
func (m *Mirror) pushInsert(ctx context.Context, ev localstore.Event) {
	owner := m.ownerID()
	resolved, err := resolveLocalRefs(ctx, m.store, ev.Record)
	if err != nil {
		m.logger.Error("mirror insert resolve failed", "table", ev.Table, "id", ev.ID, "error", err)
		return
	}
	resolved["ownerId"] = owner
	payload := ToRemote(resolved)

	created, err := m.remote.Insert(ctx, ev.Table, payload)
	if err != nil {
		// Leave the record local-only; the reconciler picks it up later.
		m.logger.Error("mirror insert failed", "table", ev.Table, "id", ev.ID, "error", err)
		return
	}
	remoteID, _ := created["id"].(string)
	rctx := localstore.WithRemoteOrigin(ctx)
	if err := m.store.Update(rctx, ev.Table, ev.ID, localstore.Record{
		"remoteId": remoteID,
		"ownerId":  owner,
	}); err != nil {
		m.logger.Error("failed to store remote id", "table", ev.Table, "id", ev.ID, "error", err)
	}
}

// pushUpdate mirrors a local update as a remote partial update keyed by the
// record's remote id. Records not yet pushed have nothing to update.
func (m *Mirror) pushUpdate(ctx context.Context, ev localstore.Event) {
	remoteID, _ := ev.Record["remoteId"].(string)
	if remoteID == "" {
		return
	}
	resolved, err := resolveLocalRefs(ctx, m.store, ev.Changed)
	if err != nil {
		m.logger.Error("mirror update resolve failed", "table", ev.Table, "id", ev.ID, "error", err)
		return
	}
	payload := ToRemote(resolved)
	if len(payload) == 0 {
		return
	}
	if err := m.remote.Update(ctx, ev.Table, remoteID, payload); err != nil {
		m.logger.Error("mirror update failed", "table", ev.Table, "id", ev.ID, "error", err)
	}
}

func (m *Mirror) pushDelete(ctx context.Context, ev localstore.Event) {
	remoteID, _ := ev.Record["remoteId"].(string)
	if remoteID == "" {
		return
	}
	if err := m.remote.Delete(ctx, ev.Table, remoteID); err != nil {
		m.logger.Error("mirror delete failed", "table", ev.Table, "id", ev.ID, "error", err)
	}
}
