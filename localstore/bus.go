// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package localstore

import "context"

// Op identifies the kind of write an event describes.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Origin says where a write came from. Writes applied from the remote store
// carry OriginRemote so the mirror layer does not echo them back (loopback
// suppression). The origin travels out-of-band on the context, never as a
// persisted record field.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

type contextKey string

const originKey contextKey = "mutation_origin"

// WithRemoteOrigin marks every write performed under ctx as originating from
// a remote apply.
func WithRemoteOrigin(ctx context.Context) context.Context {
	return context.WithValue(ctx, originKey, OriginRemote)
}

func originFromContext(ctx context.Context) Origin {
	if o, ok := ctx.Value(originKey).(Origin); ok {
		return o
	}
	return OriginLocal
}

// Event describes one committed write. Record holds the full row as stored
// (post-write for inserts/updates, prior row for deletes). Changed holds
// only the columns touched by an update.
type Event struct {
	Table   string
	Op      Op
	ID      int64
	Record  Record
	Changed Record
	Origin  Origin
}

// Observer receives committed events for one table. Observers are invoked
// synchronously after the transaction commits, in registration order, while
// the store's write lock is still held: an observer that needs to write back
// must hand off to another goroutine (the mirror layer queues its pushes).
type Observer func(Event)

// RegisterObserver subscribes fn to every committed write on table.
func (s *Store) RegisterObserver(table string, fn Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers[table] = append(s.observers[table], fn)
}

func (s *Store) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	s.obsMu.RLock()
	for _, ev := range events {
		for _, fn := range s.observers[ev.Table] {
			fn(ev)
		}
	}
	s.obsMu.RUnlock()

	touched := make(map[string]bool)
	for _, ev := range events {
		touched[ev.Table] = true
	}
	for table := range touched {
		s.refreshQueries(table)
	}
}
