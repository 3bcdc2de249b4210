// Package localstore provides the embedded per-device record store for the
// finance app: table-scoped CRUD over SQLite with auto-incrementing local
// identifiers, multi-table transactions, a synchronous post-commit observer
// bus, and live queries that recompute on every write to their table.
//
// The store holds no business invariants beyond uniqueness of the local id;
// balance rules live in the ledger package, sync rules in cloudsync.
// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Record is a single row of a table, keyed by column name. Values carry the
// SQLite affinity types: int64, float64, string, bool (for *Is* columns) or nil.
type Record = map[string]any

// ErrNotFound is returned by Get when no row carries the requested id.
var ErrNotFound = errors.New("localstore: record not found")

// Store manages the local SQLite database and its change notification bus.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	writeMu sync.Mutex // serialize write transactions (single SQLite writer)

	obsMu     sync.RWMutex
	observers map[string][]Observer

	queryMu sync.Mutex
	queries map[string][]*LiveQuery
}

// Open opens (or creates) the database at path, applies the schema and seeds
// the default categories and wallet on first run.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewStore(db, logger)
}

// NewStore wraps an existing SQLite handle. The schema is created if missing
// and default records are seeded into an empty database.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// SQLite has a single writer and the PRAGMAs apply per connection, so
	// the whole store runs on one pooled connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := createSchema(db); err != nil {
		return nil, err
	}
	s := &Store{
		db:        db,
		logger:    logger,
		observers: make(map[string][]Observer),
		queries:   make(map[string][]*LiveQuery),
	}
	if err := s.seedDefaults(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle for read-only inspection in tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes every live query and the underlying database.
func (s *Store) Close() error {
	s.queryMu.Lock()
	for _, qs := range s.queries {
		for _, q := range qs {
			q.closeLocked()
		}
	}
	s.queries = make(map[string][]*LiveQuery)
	s.queryMu.Unlock()
	return s.db.Close()
}

// Tx is a multi-table write transaction. Events for the writes performed
// through it are delivered to observers and live queries only after commit.
type Tx struct {
	store  *Store
	tx     *sql.Tx
	origin Origin
	events []Event
}

// WithTx runs fn inside a single write transaction. If fn returns an error
// the transaction is rolled back and no observer sees any of its writes.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &Tx{store: s, tx: sqlTx, origin: originFromContext(ctx)}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.dispatch(tx.events)
	return nil
}

// Insert adds a record and returns its auto-assigned local id.
func (s *Store) Insert(ctx context.Context, table string, rec Record) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.Insert(ctx, table, rec)
		return err
	})
	return id, err
}

// Update overwrites the given fields of the record with the given id.
func (s *Store) Update(ctx context.Context, table string, id int64, fields Record) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.Update(ctx, table, id, fields)
	})
}

// Delete removes the record with the given id. Deleting a missing record is
// a no-op.
func (s *Store) Delete(ctx context.Context, table string, id int64) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.Delete(ctx, table, id)
	})
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, table string, id int64) (Record, error) {
	return get(ctx, s.db, table, id)
}

// List returns every record of the table ordered by local id.
func (s *Store) List(ctx context.Context, table string) ([]Record, error) {
	return list(ctx, s.db, table, "", nil)
}

// FindBy returns the first record whose column equals value, or nil when no
// row matches.
func (s *Store) FindBy(ctx context.Context, table, column string, value any) (Record, error) {
	return findBy(ctx, s.db, table, column, value)
}

// ListBy returns every record whose column equals value, ordered by id.
func (s *Store) ListBy(ctx context.Context, table, column string, value any) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return list(ctx, s.db, table, fmt.Sprintf(`WHERE %q = ?`, column), []any{value})
}

// Insert adds a record inside the transaction and returns its local id.
func (t *Tx) Insert(ctx context.Context, table string, rec Record) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	cols := make([]string, 0, len(rec))
	for col := range rec {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	values := make([]any, 0, len(cols))
	quoted := make([]string, 0, len(cols))
	ph := make([]string, 0, len(cols))
	for _, col := range cols {
		quoted = append(quoted, fmt.Sprintf("%q", col))
		ph = append(ph, "?")
		values = append(values, rec[col])
	}
	query := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`,
		table, strings.Join(quoted, ", "), strings.Join(ph, ", "))
	res, err := t.tx.ExecContext(ctx, query, values...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	stored, err := get(ctx, t.tx, table, id)
	if err != nil {
		return 0, err
	}
	t.events = append(t.events, Event{Table: table, Op: OpInsert, ID: id, Record: stored, Origin: t.origin})
	return id, nil
}

// Update overwrites the given fields of a record inside the transaction.
func (t *Tx) Update(ctx context.Context, table string, id int64, fields Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	sets := make([]string, 0, len(cols))
	values := make([]any, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, fmt.Sprintf("%q = ?", col))
		values = append(values, fields[col])
	}
	values = append(values, id)
	query := fmt.Sprintf(`UPDATE %q SET %s WHERE id = ?`, table, strings.Join(sets, ", "))
	res, err := t.tx.ExecContext(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s id=%d: %w", table, id, ErrNotFound)
	}
	stored, err := get(ctx, t.tx, table, id)
	if err != nil {
		return err
	}
	// Changed-field set travels with the event so the mirror can issue a
	// partial remote update.
	changed := make(Record, len(fields))
	for col := range fields {
		changed[col] = stored[col]
	}
	t.events = append(t.events, Event{Table: table, Op: OpUpdate, ID: id, Record: stored, Changed: changed, Origin: t.origin})
	return nil
}

// Delete removes a record inside the transaction. Missing rows are ignored.
func (t *Tx) Delete(ctx context.Context, table string, id int64) error {
	if err := checkTable(table); err != nil {
		return err
	}
	prior, err := get(ctx, t.tx, table, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, table), id); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	t.events = append(t.events, Event{Table: table, Op: OpDelete, ID: id, Record: prior, Origin: t.origin})
	return nil
}

// Get returns the record with the given id inside the transaction.
func (t *Tx) Get(ctx context.Context, table string, id int64) (Record, error) {
	return get(ctx, t.tx, table, id)
}

// FindBy returns the first record whose column equals value, or nil.
func (t *Tx) FindBy(ctx context.Context, table, column string, value any) (Record, error) {
	return findBy(ctx, t.tx, table, column, value)
}

// List returns every record of the table inside the transaction.
func (t *Tx) List(ctx context.Context, table string) ([]Record, error) {
	return list(ctx, t.tx, table, "", nil)
}

// ListBy returns every record whose column equals value inside the transaction.
func (t *Tx) ListBy(ctx context.Context, table, column string, value any) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return list(ctx, t.tx, table, fmt.Sprintf(`WHERE %q = ?`, column), []any{value})
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func get(ctx context.Context, q querier, table string, id int64) (Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	recs, err := list(ctx, q, table, "WHERE id = ?", []any{id})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("get %s id=%d: %w", table, id, ErrNotFound)
	}
	return recs[0], nil
}

func findBy(ctx context.Context, q querier, table, column string, value any) (Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	recs, err := listLimit(ctx, q, table, fmt.Sprintf(`WHERE %q = ?`, column), []any{value}, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func list(ctx context.Context, q querier, table, where string, args []any) ([]Record, error) {
	return listLimit(ctx, q, table, where, args, 0)
}

// listLimit builds the query in clause order; a zero limit means no limit.
func listLimit(ctx context.Context, q querier, table, where string, args []any, limit int) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT * FROM %q %s ORDER BY id`, table, where)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var results []Record
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec := make(Record, len(columns))
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			rec[col] = val
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}
	return results, nil
}
