// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// Kind constants for categories, wallets, goal deposits and debt status.
const (
	CategoryExpense = "expense"
	CategoryIncome  = "income"

	WalletCash   = "cash"
	WalletBank   = "bank"
	WalletCredit = "credit"

	DepositKindDeposit  = "deposit"
	DepositKindWithdraw = "withdraw"

	DebtPending   = "pending"
	DebtCompleted = "completed"
)

// Wallet is an account holding a running balance in integer currency units.
// The balance is authoritative and is mutated only by ledger operations.
type Wallet struct {
	ID       int64
	Name     string
	Kind     string // cash | bank | credit
	Balance  int64
	OwnerID  string
	RemoteID string
}

// Category classifies transactions as expense or income. System categories
// are seeded on first run and cannot be edited or deleted.
type Category struct {
	ID       int64
	Name     string
	Kind     string // expense | income
	Color    string
	Icon     string
	IsSystem bool
	OwnerID  string
	RemoteID string
}

// Transaction is a single expense or income. Amount is always positive; the
// sign of its balance effect comes from the category kind.
type Transaction struct {
	ID         int64
	Amount     int64
	CategoryID int64
	WalletID   int64
	Date       string
	Note       string
	CreatedAt  int64 // unix milliseconds
	OwnerID    string
	RemoteID   string
}

// Transfer moves money between two wallets. Either wallet may be zero
// (money entering or leaving the tracked system), but not both.
type Transfer struct {
	ID           int64
	Amount       int64
	FromWalletID int64 // 0 = outside the tracked system
	ToWalletID   int64 // 0 = outside the tracked system
	Date         string
	Note         string
	CreatedAt    int64
	OwnerID      string
	RemoteID     string
}

// Goal is a savings target funded by goal deposits.
type Goal struct {
	ID            int64
	Name          string
	TargetAmount  int64
	CurrentAmount int64
	TargetDate    string
	IsWithdrawn   bool
	OwnerID       string
	RemoteID      string
}

// GoalDeposit records money moved between a wallet and a goal.
type GoalDeposit struct {
	ID        int64
	GoalID    int64
	WalletID  int64
	Amount    int64
	Date      string
	Kind      string // deposit | withdraw
	CreatedAt int64
	OwnerID   string
	RemoteID  string
}

// Debt tracks an amount owed, paid down by debt payments.
type Debt struct {
	ID              int64
	Name            string
	TotalAmount     int64
	RemainingAmount int64
	StartDate       string
	Status          string // pending | completed
	OwnerID         string
	RemoteID        string
}

// DebtPayment records one payment against a debt.
type DebtPayment struct {
	ID        int64
	DebtID    int64
	WalletID  int64
	Amount    int64
	Date      string
	CreatedAt int64
	OwnerID   string
	RemoteID  string
}

// Budget is a spending limit for one category. At most one budget may exist
// per category.
type Budget struct {
	ID         int64
	CategoryID int64
	Limit      int64
	Period     string
	OwnerID    string
	RemoteID   string
}

// Record accessors. SQLite hands integers back as int64 and nullable
// columns as nil; these helpers normalize both.

func recInt(rec localstore.Record, key string) int64 {
	switch v := rec[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func recString(rec localstore.Record, key string) string {
	if s, ok := rec[key].(string); ok {
		return s
	}
	return ""
}

func recBool(rec localstore.Record, key string) bool {
	switch v := rec[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	}
	return false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// nullableID maps a zero wallet reference to NULL.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func WalletFromRecord(rec localstore.Record) Wallet {
	return Wallet{
		ID:       recInt(rec, "id"),
		Name:     recString(rec, "name"),
		Kind:     recString(rec, "type"),
		Balance:  recInt(rec, "balance"),
		OwnerID:  recString(rec, "ownerId"),
		RemoteID: recString(rec, "remoteId"),
	}
}

func CategoryFromRecord(rec localstore.Record) Category {
	return Category{
		ID:       recInt(rec, "id"),
		Name:     recString(rec, "name"),
		Kind:     recString(rec, "type"),
		Color:    recString(rec, "color"),
		Icon:     recString(rec, "icon"),
		IsSystem: recBool(rec, "isSystem"),
		OwnerID:  recString(rec, "ownerId"),
		RemoteID: recString(rec, "remoteId"),
	}
}

func TransactionFromRecord(rec localstore.Record) Transaction {
	return Transaction{
		ID:         recInt(rec, "id"),
		Amount:     recInt(rec, "amount"),
		CategoryID: recInt(rec, "categoryId"),
		WalletID:   recInt(rec, "walletId"),
		Date:       recString(rec, "date"),
		Note:       recString(rec, "note"),
		CreatedAt:  recInt(rec, "createdAt"),
		OwnerID:    recString(rec, "ownerId"),
		RemoteID:   recString(rec, "remoteId"),
	}
}

func TransferFromRecord(rec localstore.Record) Transfer {
	return Transfer{
		ID:           recInt(rec, "id"),
		Amount:       recInt(rec, "amount"),
		FromWalletID: recInt(rec, "fromWalletId"),
		ToWalletID:   recInt(rec, "toWalletId"),
		Date:         recString(rec, "date"),
		Note:         recString(rec, "note"),
		CreatedAt:    recInt(rec, "createdAt"),
		OwnerID:      recString(rec, "ownerId"),
		RemoteID:     recString(rec, "remoteId"),
	}
}

func GoalFromRecord(rec localstore.Record) Goal {
	return Goal{
		ID:            recInt(rec, "id"),
		Name:          recString(rec, "name"),
		TargetAmount:  recInt(rec, "targetAmount"),
		CurrentAmount: recInt(rec, "currentAmount"),
		TargetDate:    recString(rec, "targetDate"),
		IsWithdrawn:   recBool(rec, "isWithdrawn"),
		OwnerID:       recString(rec, "ownerId"),
		RemoteID:      recString(rec, "remoteId"),
	}
}

func GoalDepositFromRecord(rec localstore.Record) GoalDeposit {
	return GoalDeposit{
		ID:        recInt(rec, "id"),
		GoalID:    recInt(rec, "goalId"),
		WalletID:  recInt(rec, "walletId"),
		Amount:    recInt(rec, "amount"),
		Date:      recString(rec, "date"),
		Kind:      recString(rec, "kind"),
		CreatedAt: recInt(rec, "createdAt"),
		OwnerID:   recString(rec, "ownerId"),
		RemoteID:  recString(rec, "remoteId"),
	}
}

func DebtFromRecord(rec localstore.Record) Debt {
	return Debt{
		ID:              recInt(rec, "id"),
		Name:            recString(rec, "name"),
		TotalAmount:     recInt(rec, "totalAmount"),
		RemainingAmount: recInt(rec, "remainingAmount"),
		StartDate:       recString(rec, "startDate"),
		Status:          recString(rec, "status"),
		OwnerID:         recString(rec, "ownerId"),
		RemoteID:        recString(rec, "remoteId"),
	}
}

func DebtPaymentFromRecord(rec localstore.Record) DebtPayment {
	return DebtPayment{
		ID:        recInt(rec, "id"),
		DebtID:    recInt(rec, "debtId"),
		WalletID:  recInt(rec, "walletId"),
		Amount:    recInt(rec, "amount"),
		Date:      recString(rec, "date"),
		CreatedAt: recInt(rec, "createdAt"),
		OwnerID:   recString(rec, "ownerId"),
		RemoteID:  recString(rec, "remoteId"),
	}
}

func BudgetFromRecord(rec localstore.Record) Budget {
	return Budget{
		ID:         recInt(rec, "id"),
		CategoryID: recInt(rec, "categoryId"),
		Limit:      recInt(rec, "limit"),
		Period:     recString(rec, "period"),
		OwnerID:    recString(rec, "ownerId"),
		RemoteID:   recString(rec, "remoteId"),
	}
}
