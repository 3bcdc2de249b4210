// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

func debtStatus(remaining int64) string {
	if remaining == 0 {
		return DebtCompleted
	}
	return DebtPending
}

// CreateDebt registers a new debt. Remaining defaults to the full amount.
func (s *Service) CreateDebt(ctx context.Context, d Debt) (int64, error) {
	if d.TotalAmount <= 0 {
		return 0, ErrInvalidAmount
	}
	remaining := d.RemainingAmount
	if remaining == 0 {
		remaining = d.TotalAmount
	}
	return s.store.Insert(ctx, "debts", localstore.Record{
		"name":            d.Name,
		"totalAmount":     d.TotalAmount,
		"remainingAmount": remaining,
		"startDate":       d.StartDate,
		"status":          debtStatus(remaining),
	})
}

// UpdateDebt edits a debt's name, total amount or start date. The remaining
// amount is re-derived from the payment history so the sum-of-payments
// invariant keeps holding after the total changes.
func (s *Service) UpdateDebt(ctx context.Context, id int64, name string, totalAmount int64, startDate string) error {
	if totalAmount <= 0 {
		return ErrInvalidAmount
	}
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		payments, err := tx.ListBy(ctx, "debt_payments", "debtId", id)
		if err != nil {
			return err
		}
		var paid int64
		for _, p := range payments {
			paid += recInt(p, "amount")
		}
		remaining := totalAmount - paid
		if remaining < 0 {
			remaining = 0
		}
		return tx.Update(ctx, "debts", id, localstore.Record{
			"name":            name,
			"totalAmount":     totalAmount,
			"startDate":       startDate,
			"remainingAmount": remaining,
			"status":          debtStatus(remaining),
		})
	})
}

// DeleteDebt removes a debt together with its payment history, refunding
// every payment back to the wallet it came from.
func (s *Service) DeleteDebt(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		payments, err := tx.ListBy(ctx, "debt_payments", "debtId", id)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if err := adjustWalletTx(ctx, tx, recInt(p, "walletId"), recInt(p, "amount")); err != nil {
				return err
			}
			if err := tx.Delete(ctx, "debt_payments", recInt(p, "id")); err != nil {
				return err
			}
		}
		return tx.Delete(ctx, "debts", id)
	})
}

// paymentEffectTx applies a debt payment, capped at the remaining amount.
func paymentEffectTx(ctx context.Context, tx *localstore.Tx, p DebtPayment) (int64, error) {
	debtRec, err := tx.Get(ctx, "debts", p.DebtID)
	if err != nil {
		return 0, err
	}
	debt := DebtFromRecord(debtRec)
	walletRec, err := tx.Get(ctx, "wallets", p.WalletID)
	if err != nil {
		return 0, err
	}
	wallet := WalletFromRecord(walletRec)
	if wallet.Balance < p.Amount {
		return 0, ErrInsufficientFunds
	}
	actual := p.Amount
	if actual > debt.RemainingAmount {
		actual = debt.RemainingAmount
	}
	newRemaining := debt.RemainingAmount - actual
	if p.CreatedAt == 0 {
		p.CreatedAt = nowMillis()
	}
	if err := tx.Update(ctx, "wallets", wallet.ID, localstore.Record{"balance": wallet.Balance - actual}); err != nil {
		return 0, err
	}
	if err := tx.Update(ctx, "debts", debt.ID, localstore.Record{
		"remainingAmount": newRemaining,
		"status":          debtStatus(newRemaining),
	}); err != nil {
		return 0, err
	}
	return tx.Insert(ctx, "debt_payments", localstore.Record{
		"debtId":    debt.ID,
		"amount":    actual,
		"date":      p.Date,
		"walletId":  wallet.ID,
		"createdAt": p.CreatedAt,
	})
}

// revertPaymentTx undoes a payment (wallet refund, remaining restored,
// status re-derived) and deletes the record.
func revertPaymentTx(ctx context.Context, tx *localstore.Tx, id int64) error {
	rec, err := tx.Get(ctx, "debt_payments", id)
	if err != nil {
		return err
	}
	prior := DebtPaymentFromRecord(rec)

	if debtRec, err := tx.Get(ctx, "debts", prior.DebtID); err == nil {
		debt := DebtFromRecord(debtRec)
		remaining := debt.RemainingAmount + prior.Amount
		if remaining > debt.TotalAmount {
			remaining = debt.TotalAmount
		}
		if err := tx.Update(ctx, "debts", debt.ID, localstore.Record{
			"remainingAmount": remaining,
			"status":          debtStatus(remaining),
		}); err != nil {
			return err
		}
	}
	if err := adjustWalletTx(ctx, tx, prior.WalletID, prior.Amount); err != nil {
		return err
	}
	return tx.Delete(ctx, "debt_payments", id)
}

// PayDebt records a payment from a wallet against a debt. Paying more than
// the remaining amount applies only the remainder.
func (s *Service) PayDebt(ctx context.Context, debtID, walletID, amount int64, date string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	p := DebtPayment{DebtID: debtID, WalletID: walletID, Amount: amount, Date: date}
	var id int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		var err error
		id, err = paymentEffectTx(ctx, tx, p)
		return err
	})
	return id, err
}

// EditDebtPayment replaces a payment with an edited version via
// revert-then-reapply.
func (s *Service) EditDebtPayment(ctx context.Context, id int64, p DebtPayment) (int64, error) {
	if p.Amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var newID int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		if err := revertPaymentTx(ctx, tx, id); err != nil {
			return err
		}
		var err error
		newID, err = paymentEffectTx(ctx, tx, p)
		return err
	})
	return newID, err
}

// DeleteDebtPayment reverts a payment and removes it.
func (s *Service) DeleteDebtPayment(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		return revertPaymentTx(ctx, tx, id)
	})
}
