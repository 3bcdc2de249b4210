// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// CreateGoal adds a savings goal.
func (s *Service) CreateGoal(ctx context.Context, g Goal) (int64, error) {
	if g.TargetAmount <= 0 {
		return 0, ErrInvalidAmount
	}
	return s.store.Insert(ctx, "goals", localstore.Record{
		"name":          g.Name,
		"targetAmount":  g.TargetAmount,
		"currentAmount": g.CurrentAmount,
		"targetDate":    g.TargetDate,
		"isWithdrawn":   boolInt(g.IsWithdrawn),
	})
}

// UpdateGoal edits a goal's name, target amount or target date. The target
// may not drop below the amount already saved.
func (s *Service) UpdateGoal(ctx context.Context, id int64, name string, targetAmount int64, targetDate string) error {
	if targetAmount <= 0 {
		return ErrInvalidAmount
	}
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		rec, err := tx.Get(ctx, "goals", id)
		if err != nil {
			return err
		}
		if GoalFromRecord(rec).CurrentAmount > targetAmount {
			return ErrInvalidAmount
		}
		return tx.Update(ctx, "goals", id, localstore.Record{
			"name":         name,
			"targetAmount": targetAmount,
			"targetDate":   targetDate,
		})
	})
}

// DeleteGoal removes a goal together with its deposit history. The money
// already parked in the goal is not refunded to any wallet.
func (s *Service) DeleteGoal(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		deposits, err := tx.ListBy(ctx, "goal_deposits", "goalId", id)
		if err != nil {
			return err
		}
		for _, dep := range deposits {
			if err := tx.Delete(ctx, "goal_deposits", recInt(dep, "id")); err != nil {
				return err
			}
		}
		return tx.Delete(ctx, "goals", id)
	})
}

// depositEffectTx applies a goal deposit or withdrawal. For deposits the
// applied amount is capped at the goal's remaining capacity; the excess is
// never drawn from the wallet. Returns the record that was inserted.
func depositEffectTx(ctx context.Context, tx *localstore.Tx, d GoalDeposit) (int64, error) {
	goalRec, err := tx.Get(ctx, "goals", d.GoalID)
	if err != nil {
		return 0, err
	}
	goal := GoalFromRecord(goalRec)
	walletRec, err := tx.Get(ctx, "wallets", d.WalletID)
	if err != nil {
		return 0, err
	}
	wallet := WalletFromRecord(walletRec)
	if d.CreatedAt == 0 {
		d.CreatedAt = nowMillis()
	}

	switch d.Kind {
	case DepositKindDeposit:
		if wallet.Balance < d.Amount {
			return 0, ErrInsufficientFunds
		}
		actual := d.Amount
		if remaining := goal.TargetAmount - goal.CurrentAmount; actual > remaining {
			actual = remaining
		}
		if err := tx.Update(ctx, "wallets", wallet.ID, localstore.Record{"balance": wallet.Balance - actual}); err != nil {
			return 0, err
		}
		if err := tx.Update(ctx, "goals", goal.ID, localstore.Record{"currentAmount": goal.CurrentAmount + actual}); err != nil {
			return 0, err
		}
		return tx.Insert(ctx, "goal_deposits", localstore.Record{
			"goalId":    goal.ID,
			"amount":    actual,
			"date":      d.Date,
			"walletId":  wallet.ID,
			"kind":      DepositKindDeposit,
			"createdAt": d.CreatedAt,
		})

	case DepositKindWithdraw:
		if d.Amount > goal.CurrentAmount {
			return 0, ErrExceedsGoalBalance
		}
		newCurrent := goal.CurrentAmount - d.Amount
		withdrawn := goal.IsWithdrawn
		if goal.CurrentAmount >= goal.TargetAmount && newCurrent == 0 {
			withdrawn = true
		}
		if err := tx.Update(ctx, "wallets", wallet.ID, localstore.Record{"balance": wallet.Balance + d.Amount}); err != nil {
			return 0, err
		}
		if err := tx.Update(ctx, "goals", goal.ID, localstore.Record{
			"currentAmount": newCurrent,
			"isWithdrawn":   boolInt(withdrawn),
		}); err != nil {
			return 0, err
		}
		return tx.Insert(ctx, "goal_deposits", localstore.Record{
			"goalId":    goal.ID,
			"amount":    d.Amount,
			"date":      d.Date,
			"walletId":  wallet.ID,
			"kind":      DepositKindWithdraw,
			"createdAt": d.CreatedAt,
		})
	}
	return 0, ErrInvalidAmount
}

// revertDepositTx undoes a goal deposit or withdrawal exactly as it was
// applied and deletes the record. Running totals are clamped to the goal's
// valid range in case the goal was edited in between.
func revertDepositTx(ctx context.Context, tx *localstore.Tx, id int64) error {
	rec, err := tx.Get(ctx, "goal_deposits", id)
	if err != nil {
		return err
	}
	prior := GoalDepositFromRecord(rec)

	goalRec, err := tx.Get(ctx, "goals", prior.GoalID)
	if err == nil {
		goal := GoalFromRecord(goalRec)
		var newCurrent int64
		if prior.Kind == DepositKindWithdraw {
			newCurrent = goal.CurrentAmount + prior.Amount
			if newCurrent > goal.TargetAmount {
				newCurrent = goal.TargetAmount
			}
		} else {
			newCurrent = goal.CurrentAmount - prior.Amount
			if newCurrent < 0 {
				newCurrent = 0
			}
		}
		if err := tx.Update(ctx, "goals", goal.ID, localstore.Record{"currentAmount": newCurrent}); err != nil {
			return err
		}
	}

	delta := prior.Amount
	if prior.Kind == DepositKindWithdraw {
		delta = -prior.Amount
	}
	if err := adjustWalletTx(ctx, tx, prior.WalletID, delta); err != nil {
		return err
	}
	return tx.Delete(ctx, "goal_deposits", id)
}

func validateDeposit(d GoalDeposit) error {
	if d.Amount <= 0 {
		return ErrInvalidAmount
	}
	if d.Kind != DepositKindDeposit && d.Kind != DepositKindWithdraw {
		return ErrInvalidAmount
	}
	return nil
}

// DepositToGoal moves money from a wallet into a goal.
func (s *Service) DepositToGoal(ctx context.Context, goalID, walletID, amount int64, date string) (int64, error) {
	d := GoalDeposit{GoalID: goalID, WalletID: walletID, Amount: amount, Date: date, Kind: DepositKindDeposit}
	if err := validateDeposit(d); err != nil {
		return 0, err
	}
	var id int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		var err error
		id, err = depositEffectTx(ctx, tx, d)
		return err
	})
	return id, err
}

// WithdrawFromGoal moves money from a goal back into a wallet. Withdrawing
// more than the goal currently holds is rejected before any write.
func (s *Service) WithdrawFromGoal(ctx context.Context, goalID, walletID, amount int64, date string) (int64, error) {
	d := GoalDeposit{GoalID: goalID, WalletID: walletID, Amount: amount, Date: date, Kind: DepositKindWithdraw}
	if err := validateDeposit(d); err != nil {
		return 0, err
	}
	var id int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		var err error
		id, err = depositEffectTx(ctx, tx, d)
		return err
	})
	return id, err
}

// EditGoalDeposit replaces a goal deposit/withdrawal with an edited version,
// reverting the old effect and reapplying the new one atomically.
func (s *Service) EditGoalDeposit(ctx context.Context, id int64, d GoalDeposit) (int64, error) {
	if err := validateDeposit(d); err != nil {
		return 0, err
	}
	var newID int64
	err := s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		if err := revertDepositTx(ctx, tx, id); err != nil {
			return err
		}
		var err error
		newID, err = depositEffectTx(ctx, tx, d)
		return err
	})
	return newID, err
}

// DeleteGoalDeposit reverts a deposit/withdrawal effect and removes it.
func (s *Service) DeleteGoalDeposit(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(tx *localstore.Tx) error {
		return revertDepositTx(ctx, tx, id)
	})
}
