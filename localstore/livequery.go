// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"sync"
)

// LiveQuery is a standing query over one table. Its current result set is
// delivered on C immediately after registration and again after every
// committed write to the table. Slow consumers only ever miss intermediate
// states: the channel always holds the latest result.
type LiveQuery struct {
	C <-chan []Record

	store  *Store
	table  string
	filter func(Record) bool
	ch     chan []Record

	mu     sync.Mutex
	closed bool
}

// Watch registers a live query over table. A nil filter matches every
// record. Close the query to stop receiving updates.
func (s *Store) Watch(table string, filter func(Record) bool) (*LiveQuery, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	q := &LiveQuery{
		store:  s,
		table:  table,
		filter: filter,
		ch:     make(chan []Record, 1),
	}
	q.C = q.ch

	s.queryMu.Lock()
	s.queries[table] = append(s.queries[table], q)
	s.queryMu.Unlock()

	q.recompute()
	return q, nil
}

// Close detaches the query from the store. Safe to call multiple times.
func (q *LiveQuery) Close() {
	q.store.queryMu.Lock()
	defer q.store.queryMu.Unlock()
	qs := q.store.queries[q.table]
	for i, other := range qs {
		if other == q {
			q.store.queries[q.table] = append(qs[:i], qs[i+1:]...)
			break
		}
	}
	q.closeLocked()
}

func (q *LiveQuery) closeLocked() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

func (q *LiveQuery) recompute() {
	recs, err := q.store.List(context.Background(), q.table)
	if err != nil {
		q.store.logger.Error("live query recompute failed", "table", q.table, "error", err)
		return
	}
	matched := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if q.filter == nil || q.filter(rec) {
			matched = append(matched, rec)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	// Replace a stale undelivered result instead of blocking the writer.
	select {
	case <-q.ch:
	default:
	}
	q.ch <- matched
}

func (s *Store) refreshQueries(table string) {
	s.queryMu.Lock()
	qs := make([]*LiveQuery, len(s.queries[table]))
	copy(qs, s.queries[table])
	s.queryMu.Unlock()
	for _, q := range qs {
		q.recompute()
	}
}
