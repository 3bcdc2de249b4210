package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := localstore.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, nil)
}

func mustWallet(t *testing.T, svc *Service, name string, balance int64) int64 {
	t.Helper()
	id, err := svc.CreateWallet(context.Background(), Wallet{Name: name, Kind: WalletCash, Balance: balance})
	require.NoError(t, err)
	return id
}

func mustCategory(t *testing.T, svc *Service, name, kind string) int64 {
	t.Helper()
	id, err := svc.CreateCategory(context.Background(), Category{Name: name, Kind: kind})
	require.NoError(t, err)
	return id
}

func walletBalance(t *testing.T, svc *Service, id int64) int64 {
	t.Helper()
	rec, err := svc.Store().Get(context.Background(), "wallets", id)
	require.NoError(t, err)
	return WalletFromRecord(rec).Balance
}

func TestUpdateWalletNeverTouchesBalance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id := mustWallet(t, svc, "Bank", 500000)
	require.NoError(t, svc.UpdateWallet(ctx, id, "Main bank", WalletBank))

	rec, err := svc.Store().Get(ctx, "wallets", id)
	require.NoError(t, err)
	w := WalletFromRecord(rec)
	require.Equal(t, "Main bank", w.Name)
	require.Equal(t, WalletBank, w.Kind)
	require.EqualValues(t, 500000, w.Balance)
}

func TestDeleteWalletRefusedWhileReferenced(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	walletID := mustWallet(t, svc, "Bank", 1000000)
	catID := mustCategory(t, svc, "Food", CategoryExpense)

	_, err := svc.CreateTransaction(ctx, Transaction{
		Amount: 50000, CategoryID: catID, WalletID: walletID, Date: "2026-01-02",
	})
	require.NoError(t, err)

	err = svc.DeleteWallet(ctx, walletID)
	require.ErrorIs(t, err, ErrWalletInUse)

	// Still present after the refused delete.
	_, err = svc.Store().Get(ctx, "wallets", walletID)
	require.NoError(t, err)
}

func TestDeleteWalletSucceedsOnceHistoryIsGone(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	walletID := mustWallet(t, svc, "Bank", 1000000)
	catID := mustCategory(t, svc, "Food", CategoryExpense)

	txID, err := svc.CreateTransaction(ctx, Transaction{
		Amount: 50000, CategoryID: catID, WalletID: walletID, Date: "2026-01-02",
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTransaction(ctx, txID))

	require.NoError(t, svc.DeleteWallet(ctx, walletID))
	_, err = svc.Store().Get(ctx, "wallets", walletID)
	require.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestSystemCategoryIsImmutable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cats, err := svc.Store().List(ctx, "categories")
	require.NoError(t, err)
	require.NotEmpty(t, cats)
	sysID := CategoryFromRecord(cats[0]).ID

	err = svc.UpdateCategory(ctx, sysID, localstore.Record{"name": "Renamed"})
	require.ErrorIs(t, err, ErrSystemCategory)
	err = svc.DeleteCategory(ctx, sysID)
	require.ErrorIs(t, err, ErrSystemCategory)
}

func TestUserCategoryLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id := mustCategory(t, svc, "Gym", CategoryExpense)
	require.NoError(t, svc.UpdateCategory(ctx, id, localstore.Record{"name": "Fitness"}))

	rec, err := svc.Store().Get(ctx, "categories", id)
	require.NoError(t, err)
	require.Equal(t, "Fitness", CategoryFromRecord(rec).Name)

	require.NoError(t, svc.DeleteCategory(ctx, id))
	_, err = svc.Store().Get(ctx, "categories", id)
	require.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestBudgetUniquePerCategory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	catID := mustCategory(t, svc, "Food", CategoryExpense)
	otherID := mustCategory(t, svc, "Rent", CategoryExpense)

	_, err := svc.CreateBudget(ctx, Budget{CategoryID: catID, Limit: 2000000, Period: "monthly"})
	require.NoError(t, err)

	_, err = svc.CreateBudget(ctx, Budget{CategoryID: catID, Limit: 3000000, Period: "monthly"})
	require.ErrorIs(t, err, ErrBudgetExists)

	budgets, err := svc.Store().ListBy(ctx, "budgets", "categoryId", catID)
	require.NoError(t, err)
	require.Len(t, budgets, 1, "failed create must leave no row behind")

	_, err = svc.CreateBudget(ctx, Budget{CategoryID: otherID, Limit: 1000000, Period: "monthly"})
	require.NoError(t, err)
}

func TestUpdateBudgetUniquenessExcludesSelf(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	catA := mustCategory(t, svc, "Food", CategoryExpense)
	catB := mustCategory(t, svc, "Rent", CategoryExpense)

	idA, err := svc.CreateBudget(ctx, Budget{CategoryID: catA, Limit: 2000000, Period: "monthly"})
	require.NoError(t, err)
	_, err = svc.CreateBudget(ctx, Budget{CategoryID: catB, Limit: 5000000, Period: "monthly"})
	require.NoError(t, err)

	// Raising its own limit keeps the same category and must pass.
	require.NoError(t, svc.UpdateBudget(ctx, idA, Budget{CategoryID: catA, Limit: 2500000, Period: "monthly"}))

	// Moving onto a category that already has a budget must fail.
	err = svc.UpdateBudget(ctx, idA, Budget{CategoryID: catB, Limit: 2500000, Period: "monthly"})
	require.ErrorIs(t, err, ErrBudgetExists)
}

func TestBudgetRejectsNonPositiveLimit(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateBudget(context.Background(), Budget{CategoryID: 1, Limit: 0, Period: "monthly"})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWalletsListsAllWithBalances(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustWallet(t, svc, "Bank", 500000)
	mustWallet(t, svc, "Savings", 2000000)

	wallets, err := svc.Wallets(ctx)
	require.NoError(t, err)
	// The seeded cash wallet plus the two created above.
	require.Len(t, wallets, 3)

	var total int64
	for _, w := range wallets {
		total += w.Balance
	}
	require.EqualValues(t, 2500000, total)
}
