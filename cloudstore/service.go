// Package cloudstore is the remote multi-tenant store the finance app
// mirrors into: owner-scoped REST CRUD over Postgres plus a websocket
// change feed. Rows carry server-assigned uuid identifiers; every query is
// scoped to the authenticated owner.
// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// tableColumns lists the writable columns of every synced table. Anything
// else in an inbound payload is rejected, which keeps the generic SQL
// building safe.
var tableColumns = map[string]map[string]bool{
	"categories":    set("name", "type", "color", "icon", "is_system"),
	"wallets":       set("name", "type", "balance"),
	"goals":         set("name", "target_amount", "current_amount", "target_date", "is_withdrawn"),
	"debts":         set("name", "total_amount", "remaining_amount", "start_date", "status"),
	"budgets":       set("category_id", "limit", "period"),
	"transactions":  set("amount", "category_id", "wallet_id", "date", "note", "created_at"),
	"transfers":     set("amount", "from_wallet_id", "to_wallet_id", "date", "note", "created_at"),
	"goal_deposits": set("goal_id", "amount", "date", "wallet_id", "kind", "created_at"),
	"debt_payments": set("debt_id", "amount", "date", "wallet_id", "created_at"),
}

func set(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

// Service implements the owner-scoped table CRUD over a pgx pool. Every
// successful write is broadcast on the hub so connected devices converge
// without waiting for their next full sync.
type Service struct {
	pool   *pgxpool.Pool
	hub    *Hub
	logger *slog.Logger
}

// NewService creates the store service. hub may be nil when no realtime
// feed is wanted.
func NewService(pool *pgxpool.Pool, hub *Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, hub: hub, logger: logger}
}

// InitSchema creates the store tables if they do not exist yet.
func (s *Service) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id    TEXT NOT NULL,
			name       TEXT NOT NULL,
			type       TEXT NOT NULL,
			color      TEXT NOT NULL DEFAULT '',
			icon       TEXT NOT NULL DEFAULT '',
			is_system  BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS wallets (
			id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id  TEXT NOT NULL,
			name     TEXT NOT NULL,
			type     TEXT NOT NULL,
			balance  BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS goals (
			id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id        TEXT NOT NULL,
			name           TEXT NOT NULL,
			target_amount  BIGINT NOT NULL,
			current_amount BIGINT NOT NULL DEFAULT 0,
			target_date    TEXT NOT NULL DEFAULT '',
			is_withdrawn   BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS debts (
			id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id          TEXT NOT NULL,
			name             TEXT NOT NULL,
			total_amount     BIGINT NOT NULL,
			remaining_amount BIGINT NOT NULL,
			start_date       TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL DEFAULT 'pending'
		)`,
		`CREATE TABLE IF NOT EXISTS budgets (
			id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id     TEXT NOT NULL,
			category_id UUID NOT NULL,
			"limit"     BIGINT NOT NULL,
			period      TEXT NOT NULL DEFAULT 'monthly'
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id     TEXT NOT NULL,
			amount      BIGINT NOT NULL,
			category_id UUID NOT NULL,
			wallet_id   UUID NOT NULL,
			date        TEXT NOT NULL,
			note        TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS transfers (
			id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id        TEXT NOT NULL,
			amount         BIGINT NOT NULL,
			from_wallet_id UUID,
			to_wallet_id   UUID,
			date           TEXT NOT NULL,
			note           TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS goal_deposits (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id    TEXT NOT NULL,
			goal_id    UUID NOT NULL,
			amount     BIGINT NOT NULL,
			date       TEXT NOT NULL,
			wallet_id  UUID NOT NULL,
			kind       TEXT NOT NULL DEFAULT 'deposit',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS debt_payments (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id    TEXT NOT NULL,
			debt_id    UUID NOT NULL,
			amount     BIGINT NOT NULL,
			date       TEXT NOT NULL,
			wallet_id  UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_user ON categories(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_wallets_user ON wallets(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_user ON transfers(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_goal_deposits_user ON goal_deposits(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_debts_user ON debts(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_debt_payments_user ON debt_payments(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_budgets_user ON budgets(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func filterColumns(table string, payload map[string]any) (map[string]any, error) {
	allowed, ok := tableColumns[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	filtered := make(map[string]any, len(payload))
	for col, val := range payload {
		if col == "user_id" {
			continue // owner comes from the token, never from the payload
		}
		if !allowed[col] {
			return nil, fmt.Errorf("unknown column %q for table %q", col, table)
		}
		filtered[col] = val
	}
	return filtered, nil
}

// Insert creates a row for the owner and returns it as stored.
func (s *Service) Insert(ctx context.Context, owner, table string, payload map[string]any) (map[string]any, error) {
	filtered, err := filterColumns(table, payload)
	if err != nil {
		return nil, err
	}
	cols := []string{"user_id"}
	args := []any{owner}
	for col, val := range filtered {
		cols = append(cols, col)
		args = append(args, val)
	}
	quoted := make([]string, len(cols))
	ph := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = fmt.Sprintf("%q", col)
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s) RETURNING *`,
		table, strings.Join(quoted, ", "), strings.Join(ph, ", "))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	created, err := collectOne(rows)
	if err != nil {
		return nil, err
	}
	s.broadcast(owner, FeedEvent{Type: "INSERT", Table: table, New: created})
	return created, nil
}

// Update applies a partial update to an owner's row and broadcasts the new
// row state.
func (s *Service) Update(ctx context.Context, owner, table, id string, payload map[string]any) error {
	filtered, err := filterColumns(table, payload)
	if err != nil {
		return err
	}
	if len(filtered) == 0 {
		return nil
	}
	sets := make([]string, 0, len(filtered))
	args := make([]any, 0, len(filtered)+2)
	i := 1
	for col, val := range filtered {
		sets = append(sets, fmt.Sprintf("%q = $%d", col, i))
		args = append(args, val)
		i++
	}
	args = append(args, id, owner)
	query := fmt.Sprintf(`UPDATE %q SET %s WHERE id = $%d AND user_id = $%d RETURNING *`,
		table, strings.Join(sets, ", "), i, i+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	updated, err := collectOne(rows)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("no %s row with id %s", table, id)
		}
		return err
	}
	s.broadcast(owner, FeedEvent{Type: "UPDATE", Table: table, New: updated})
	return nil
}

// Delete removes an owner's row. Deleting a missing row is a no-op.
func (s *Service) Delete(ctx context.Context, owner, table, id string) error {
	if _, ok := tableColumns[table]; !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE id = $1 AND user_id = $2`, table), id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if tag.RowsAffected() > 0 {
		s.broadcast(owner, FeedEvent{Type: "DELETE", Table: table, Old: &FeedKey{ID: id}})
	}
	return nil
}

// List returns every row the owner has in the table.
func (s *Service) List(ctx context.Context, owner, table string) ([]map[string]any, error) {
	if _, ok := tableColumns[table]; !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT * FROM %q WHERE user_id = $1`, table), owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var results []map[string]any
	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}
	return results, nil
}

func (s *Service) broadcast(owner string, ev FeedEvent) {
	if s.hub != nil {
		s.hub.Broadcast(owner, ev)
	}
}

func collectOne(rows pgx.Rows) (map[string]any, error) {
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	return scanRow(rows)
}

// scanRow converts one pgx row into a JSON-friendly map: uuids become
// strings, timestamps become millisecond-precision ISO-8601.
func scanRow(rows pgx.Rows) (map[string]any, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("failed to read row values: %w", err)
	}
	rec := make(map[string]any, len(values))
	for i, fd := range rows.FieldDescriptions() {
		rec[fd.Name] = normalizeValue(values[i])
	}
	return rec, nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case time.Time:
		return val.UTC().Format("2006-01-02T15:04:05.000Z")
	default:
		return v
	}
}
