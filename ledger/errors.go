// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package ledger

import "errors"

// Invariant violations. All of these are rejected before any write commits;
// a ledger mutation either fully applies or leaves no trace.
var (
	ErrInvalidAmount      = errors.New("ledger: amount must be positive")
	ErrInsufficientFunds  = errors.New("ledger: wallet balance is insufficient")
	ErrSameWallet         = errors.New("ledger: transfer source and destination must differ")
	ErrNoWalletSelected   = errors.New("ledger: transfer needs at least one wallet")
	ErrBudgetExists       = errors.New("ledger: category already has a budget")
	ErrWalletInUse        = errors.New("ledger: wallet has dependent records")
	ErrSystemCategory     = errors.New("ledger: system categories cannot be modified")
	ErrExceedsGoalBalance = errors.New("ledger: withdrawal exceeds goal balance")
	ErrNotFound           = errors.New("ledger: record not found")
)
