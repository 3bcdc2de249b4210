// Package ledger implements the atomic ledger-mutation protocol on top of
// the local store. Every balance-affecting operation runs inside one
// multi-table store transaction; edits follow a strict revert-then-reapply
// sequence so wallet balances and goal/debt running totals stay consistent
// no matter how a record is changed, including changing its kind.
// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// Service exposes the typed mutation operations. It owns no state besides
// the store handle; all serialization happens in the store's write path.
type Service struct {
	store  *localstore.Store
	logger *slog.Logger
}

// NewService creates a ledger service over the given store.
func NewService(store *localstore.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Store returns the underlying local store (for registering sync observers).
func (s *Service) Store() *localstore.Store { return s.store }

func nowMillis() int64 { return time.Now().UnixMilli() }

// adjustWalletTx applies delta to a wallet balance inside a transaction.
// A zero wallet id is ignored (money outside the tracked system).
func adjustWalletTx(ctx context.Context, tx *localstore.Tx, walletID, delta int64) error {
	if walletID == 0 || delta == 0 {
		return nil
	}
	rec, err := tx.Get(ctx, "wallets", walletID)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			// Wallet was deleted after the record referencing it; nothing to
			// adjust, mirroring how the app tolerates dangling references.
			return nil
		}
		return err
	}
	w := WalletFromRecord(rec)
	return tx.Update(ctx, "wallets", walletID, localstore.Record{"balance": w.Balance + delta})
}

// --- Wallets ---

// CreateWallet adds a wallet and returns its local id.
func (s *Service) CreateWallet(ctx context.Context, w Wallet) (int64, error) {
	return s.store.Insert(ctx, "wallets", localstore.Record{
		"name":    w.Name,
		"type":    w.Kind,
		"balance": w.Balance,
	})
}

// Wallets returns every wallet ordered by local id.
func (s *Service) Wallets(ctx context.Context) ([]Wallet, error) {
	recs, err := s.store.List(ctx, "wallets")
	if err != nil {
		return nil, err
	}
	wallets := make([]Wallet, 0, len(recs))
	for _, rec := range recs {
		wallets = append(wallets, WalletFromRecord(rec))
	}
	return wallets, nil
}

// UpdateWallet renames or retypes a wallet. The balance is authoritative
// and can only change through ledger mutations, never here.
func (s *Service) UpdateWallet(ctx context.Context, id int64, name, kind string) error {
	return s.store.Update(ctx, "wallets", id, localstore.Record{"name": name, "type": kind})
}

// DeleteWallet removes a wallet. Refused while any transaction, transfer,
// goal deposit or debt payment still references it.
func (s *Service) DeleteWallet(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		refs := []struct{ table, column string }{
			{"transactions", "walletId"},
			{"transfers", "fromWalletId"},
			{"transfers", "toWalletId"},
			{"goal_deposits", "walletId"},
			{"debt_payments", "walletId"},
		}
		for _, ref := range refs {
			rec, err := tx.FindBy(ctx, ref.table, ref.column, id)
			if err != nil {
				return err
			}
			if rec != nil {
				return fmt.Errorf("%w: %s", ErrWalletInUse, ref.table)
			}
		}
		return tx.Delete(ctx, "wallets", id)
	})
}

// --- Categories ---

// CreateCategory adds a user category.
func (s *Service) CreateCategory(ctx context.Context, c Category) (int64, error) {
	return s.store.Insert(ctx, "categories", localstore.Record{
		"name":     c.Name,
		"type":     c.Kind,
		"color":    c.Color,
		"icon":     c.Icon,
		"isSystem": boolInt(c.IsSystem),
	})
}

// UpdateCategory renames a user category. System categories are immutable.
func (s *Service) UpdateCategory(ctx context.Context, id int64, fields localstore.Record) error {
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		rec, err := tx.Get(ctx, "categories", id)
		if err != nil {
			return err
		}
		if CategoryFromRecord(rec).IsSystem {
			return ErrSystemCategory
		}
		return tx.Update(ctx, "categories", id, fields)
	})
}

// DeleteCategory removes a user category. System categories are undeletable.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		rec, err := tx.Get(ctx, "categories", id)
		if err != nil {
			if errors.Is(err, localstore.ErrNotFound) {
				return nil
			}
			return err
		}
		if CategoryFromRecord(rec).IsSystem {
			return ErrSystemCategory
		}
		return tx.Delete(ctx, "categories", id)
	})
}

// --- Budgets ---

// CreateBudget adds a spending limit for a category. At most one budget can
// exist per category; a duplicate is rejected before any write.
func (s *Service) CreateBudget(ctx context.Context, b Budget) (int64, error) {
	if b.Limit <= 0 {
		return 0, ErrInvalidAmount
	}
	var id int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		existing, err := tx.FindBy(ctx, "budgets", "categoryId", b.CategoryID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrBudgetExists
		}
		id, err = tx.Insert(ctx, "budgets", localstore.Record{
			"categoryId": b.CategoryID,
			"limit":      b.Limit,
			"period":     b.Period,
		})
		return err
	})
	return id, err
}

// UpdateBudget edits a budget, re-checking category uniqueness against every
// other budget.
func (s *Service) UpdateBudget(ctx context.Context, id int64, b Budget) error {
	if b.Limit <= 0 {
		return ErrInvalidAmount
	}
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		existing, err := tx.FindBy(ctx, "budgets", "categoryId", b.CategoryID)
		if err != nil {
			return err
		}
		if existing != nil && recInt(existing, "id") != id {
			return ErrBudgetExists
		}
		return tx.Update(ctx, "budgets", id, localstore.Record{
			"categoryId": b.CategoryID,
			"limit":      b.Limit,
			"period":     b.Period,
		})
	})
}

// DeleteBudget removes a budget.
func (s *Service) DeleteBudget(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, "budgets", id)
}
