// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Mirrored table names, in foreign-key dependency order (dimension tables
// before fact tables). The sync engine relies on this ordering.
var Tables = []string{
	"categories",
	"wallets",
	"goals",
	"debts",
	"budgets",
	"transactions",
	"transfers",
	"goal_deposits",
	"debt_payments",
}

var tableSet = func() map[string]bool {
	m := make(map[string]bool, len(Tables))
	for _, t := range Tables {
		m[t] = true
	}
	return m
}()

func checkTable(table string) error {
	if !tableSet[table] {
		return fmt.Errorf("localstore: unknown table %q", table)
	}
	return nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			name      TEXT NOT NULL,
			type      TEXT NOT NULL CHECK (type IN ('expense','income')),
			color     TEXT NOT NULL DEFAULT '',
			icon      TEXT NOT NULL DEFAULT '',
			isSystem  INTEGER NOT NULL DEFAULT 0,
			ownerId   TEXT,
			remoteId  TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS wallets (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			name      TEXT NOT NULL,
			type      TEXT NOT NULL CHECK (type IN ('cash','bank','credit')),
			balance   INTEGER NOT NULL DEFAULT 0,
			ownerId   TEXT,
			remoteId  TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS goals (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL,
			targetAmount  INTEGER NOT NULL,
			currentAmount INTEGER NOT NULL DEFAULT 0,
			targetDate    TEXT NOT NULL DEFAULT '',
			isWithdrawn   INTEGER NOT NULL DEFAULT 0,
			ownerId       TEXT,
			remoteId      TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS debts (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			name            TEXT NOT NULL,
			totalAmount     INTEGER NOT NULL,
			remainingAmount INTEGER NOT NULL,
			startDate       TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','completed')),
			ownerId         TEXT,
			remoteId        TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS budgets (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			categoryId INTEGER NOT NULL,
			"limit"    INTEGER NOT NULL,
			period     TEXT NOT NULL DEFAULT 'monthly',
			ownerId    TEXT,
			remoteId   TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			amount     INTEGER NOT NULL,
			categoryId INTEGER NOT NULL,
			walletId   INTEGER NOT NULL,
			date       TEXT NOT NULL,
			note       TEXT NOT NULL DEFAULT '',
			createdAt  INTEGER NOT NULL,
			ownerId    TEXT,
			remoteId   TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS transfers (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			amount       INTEGER NOT NULL,
			fromWalletId INTEGER,
			toWalletId   INTEGER,
			date         TEXT NOT NULL,
			note         TEXT NOT NULL DEFAULT '',
			createdAt    INTEGER NOT NULL,
			ownerId      TEXT,
			remoteId     TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS goal_deposits (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			goalId    INTEGER NOT NULL,
			amount    INTEGER NOT NULL,
			date      TEXT NOT NULL,
			walletId  INTEGER NOT NULL,
			kind      TEXT NOT NULL DEFAULT 'deposit' CHECK (kind IN ('deposit','withdraw')),
			createdAt INTEGER NOT NULL,
			ownerId   TEXT,
			remoteId  TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS debt_payments (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			debtId    INTEGER NOT NULL,
			amount    INTEGER NOT NULL,
			date      TEXT NOT NULL,
			walletId  INTEGER NOT NULL,
			createdAt INTEGER NOT NULL,
			ownerId   TEXT,
			remoteId  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_remote ON categories(remoteId)`,
		`CREATE INDEX IF NOT EXISTS idx_wallets_remote ON wallets(remoteId)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions(walletId)`,
		`CREATE INDEX IF NOT EXISTS idx_goal_deposits_goal ON goal_deposits(goalId)`,
		`CREATE INDEX IF NOT EXISTS idx_debt_payments_debt ON debt_payments(debtId)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// seedDefaults populates the system categories and the default cash wallet
// into a fresh database. A store that already has categories is left alone.
func (s *Store) seedDefaults(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}
	if n > 0 {
		return nil
	}
	seed := []Record{
		{"name": "Ăn uống", "type": "expense", "color": "#ff7675", "icon": "utensils", "isSystem": 1},
		{"name": "Nhà ở", "type": "expense", "color": "#74b9ff", "icon": "home", "isSystem": 1},
		{"name": "Di chuyển", "type": "expense", "color": "#ffeaa7", "icon": "car", "isSystem": 1},
		{"name": "Giải trí", "type": "expense", "color": "#a29bfe", "icon": "gamepad-2", "isSystem": 1},
		{"name": "Lương", "type": "income", "color": "#55efc4", "icon": "briefcase", "isSystem": 1},
		{"name": "Khác", "type": "expense", "color": "#dfe6e9", "icon": "help-circle", "isSystem": 1},
		{"name": "Lãi gửi", "type": "income", "color": "#81ecec", "icon": "piggy-bank", "isSystem": 1},
	}
	return s.WithTx(ctx, func(tx *Tx) error {
		for _, rec := range seed {
			if _, err := tx.Insert(ctx, "categories", rec); err != nil {
				return err
			}
		}
		_, err := tx.Insert(ctx, "wallets", Record{"name": "Tiền mặt", "type": "cash", "balance": 0})
		return err
	})
}
