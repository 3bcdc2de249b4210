// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"errors"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// categoryIsExpense reports whether the category applies a negative balance
// effect. A missing category counts as income, matching how the app treated
// records whose category had been deleted.
func categoryIsExpense(ctx context.Context, tx *localstore.Tx, categoryID int64) (bool, error) {
	rec, err := tx.Get(ctx, "categories", categoryID)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return CategoryFromRecord(rec).Kind == CategoryExpense, nil
}

// applyTransactionTx inserts a transaction and applies its wallet effect.
func applyTransactionTx(ctx context.Context, tx *localstore.Tx, t Transaction) (int64, error) {
	isExpense, err := categoryIsExpense(ctx, tx, t.CategoryID)
	if err != nil {
		return 0, err
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = nowMillis()
	}
	id, err := tx.Insert(ctx, "transactions", localstore.Record{
		"amount":     t.Amount,
		"categoryId": t.CategoryID,
		"walletId":   t.WalletID,
		"date":       t.Date,
		"note":       t.Note,
		"createdAt":  t.CreatedAt,
	})
	if err != nil {
		return 0, err
	}
	delta := t.Amount
	if isExpense {
		delta = -t.Amount
	}
	return id, adjustWalletTx(ctx, tx, t.WalletID, delta)
}

// revertTransactionTx undoes a transaction's wallet effect and deletes it.
func revertTransactionTx(ctx context.Context, tx *localstore.Tx, id int64) error {
	rec, err := tx.Get(ctx, "transactions", id)
	if err != nil {
		return err
	}
	prior := TransactionFromRecord(rec)
	wasExpense, err := categoryIsExpense(ctx, tx, prior.CategoryID)
	if err != nil {
		return err
	}
	delta := -prior.Amount
	if wasExpense {
		delta = prior.Amount
	}
	if err := adjustWalletTx(ctx, tx, prior.WalletID, delta); err != nil {
		return err
	}
	return tx.Delete(ctx, "transactions", id)
}

// applyTransferTx inserts a transfer and moves the money.
func applyTransferTx(ctx context.Context, tx *localstore.Tx, t Transfer) (int64, error) {
	if t.CreatedAt == 0 {
		t.CreatedAt = nowMillis()
	}
	id, err := tx.Insert(ctx, "transfers", localstore.Record{
		"amount":       t.Amount,
		"fromWalletId": nullableID(t.FromWalletID),
		"toWalletId":   nullableID(t.ToWalletID),
		"date":         t.Date,
		"note":         t.Note,
		"createdAt":    t.CreatedAt,
	})
	if err != nil {
		return 0, err
	}
	if err := adjustWalletTx(ctx, tx, t.FromWalletID, -t.Amount); err != nil {
		return 0, err
	}
	return id, adjustWalletTx(ctx, tx, t.ToWalletID, t.Amount)
}

// revertTransferTx undoes a transfer's wallet effects and deletes it.
func revertTransferTx(ctx context.Context, tx *localstore.Tx, id int64) error {
	rec, err := tx.Get(ctx, "transfers", id)
	if err != nil {
		return err
	}
	prior := TransferFromRecord(rec)
	if err := adjustWalletTx(ctx, tx, prior.FromWalletID, prior.Amount); err != nil {
		return err
	}
	if err := adjustWalletTx(ctx, tx, prior.ToWalletID, -prior.Amount); err != nil {
		return err
	}
	return tx.Delete(ctx, "transfers", id)
}

func validateTransaction(t Transaction) error {
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateTransfer(t Transfer) error {
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if t.FromWalletID == 0 && t.ToWalletID == 0 {
		return ErrNoWalletSelected
	}
	if t.FromWalletID != 0 && t.FromWalletID == t.ToWalletID {
		return ErrSameWallet
	}
	return nil
}

// CreateTransaction records an expense or income and applies its wallet
// effect atomically.
func (s *Service) CreateTransaction(ctx context.Context, t Transaction) (int64, error) {
	if err := validateTransaction(t); err != nil {
		return 0, err
	}
	var id int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		var err error
		id, err = applyTransactionTx(ctx, tx, t)
		return err
	})
	return id, err
}

// EditTransaction replaces a transaction with an edited version:
// revert-then-reapply inside one transaction. Returns the new local id.
func (s *Service) EditTransaction(ctx context.Context, id int64, t Transaction) (int64, error) {
	if err := validateTransaction(t); err != nil {
		return 0, err
	}
	var newID int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		if err := revertTransactionTx(ctx, tx, id); err != nil {
			return err
		}
		var err error
		newID, err = applyTransactionTx(ctx, tx, t)
		return err
	})
	return newID, err
}

// DeleteTransaction reverts a transaction's wallet effect and removes it.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		return revertTransactionTx(ctx, tx, id)
	})
}

// CreateTransfer records a wallet-to-wallet movement.
func (s *Service) CreateTransfer(ctx context.Context, t Transfer) (int64, error) {
	if err := validateTransfer(t); err != nil {
		return 0, err
	}
	var id int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		var err error
		id, err = applyTransferTx(ctx, tx, t)
		return err
	})
	return id, err
}

// EditTransfer replaces a transfer with an edited version.
func (s *Service) EditTransfer(ctx context.Context, id int64, t Transfer) (int64, error) {
	if err := validateTransfer(t); err != nil {
		return 0, err
	}
	var newID int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		if err := revertTransferTx(ctx, tx, id); err != nil {
			return err
		}
		var err error
		newID, err = applyTransferTx(ctx, tx, t)
		return err
	})
	return newID, err
}

// DeleteTransfer reverts a transfer's wallet effects and removes it.
func (s *Service) DeleteTransfer(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		return revertTransferTx(ctx, tx, id)
	})
}

// ConvertTransactionToTransfer turns an existing transaction into a
// transfer: the old record's effect is reverted and the record deleted, then
// the transfer is inserted and applied, all in one transaction.
func (s *Service) ConvertTransactionToTransfer(ctx context.Context, id int64, t Transfer) (int64, error) {
	if err := validateTransfer(t); err != nil {
		return 0, err
	}
	var newID int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		if err := revertTransactionTx(ctx, tx, id); err != nil {
			return err
		}
		var err error
		newID, err = applyTransferTx(ctx, tx, t)
		return err
	})
	return newID, err
}

// ConvertTransferToTransaction turns an existing transfer into a transaction.
func (s *Service) ConvertTransferToTransaction(ctx context.Context, id int64, t Transaction) (int64, error) {
	if err := validateTransaction(t); err != nil {
		return 0, err
	}
	var newID int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		if err := revertTransferTx(ctx, tx, id); err != nil {
			return err
		}
		var err error
		newID, err = applyTransactionTx(ctx, tx, t)
		return err
	})
	return newID, err
}
