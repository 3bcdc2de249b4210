package cloudsync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

func TestRealtimeRequiresFeed(t *testing.T) {
	store := newTestStore(t)
	engine := NewEngine(store, newFakeRemote(), nil, staticOwner("owner-1"), nil)

	_, err := engine.SetupRealtimeSync("owner-1")
	require.Error(t, err)
}

func TestRealtimeAppliesFeedEvents(t *testing.T) {
	store := newTestStore(t)
	feed := newFakeFeed()
	ctx := context.Background()

	engine := NewEngine(store, newFakeRemote(), feed, staticOwner("owner-1"), nil)
	cancel, err := engine.SetupRealtimeSync("owner-1")
	require.NoError(t, err)
	defer cancel()

	remoteID := uuid.NewString()
	feed.emit("wallets", ChangeEvent{
		Type: EventInsert, Table: "wallets",
		New: localstore.Record{
			"id": remoteID, "user_id": "owner-1", "name": "Phone wallet", "type": "bank", "balance": float64(90000),
		},
	})
	waitFor(t, func() bool {
		rec, err := store.FindBy(ctx, "wallets", "remoteId", remoteID)
		return err == nil && rec != nil
	}, "feed insert to apply")

	feed.emit("wallets", ChangeEvent{
		Type: EventUpdate, Table: "wallets",
		New: localstore.Record{
			"id": remoteID, "user_id": "owner-1", "name": "Phone wallet", "type": "bank", "balance": float64(150000),
		},
	})
	waitFor(t, func() bool {
		rec, err := store.FindBy(ctx, "wallets", "remoteId", remoteID)
		return err == nil && rec != nil && asInt64(rec["balance"]) == 150000
	}, "feed update to apply")

	feed.emit("wallets", ChangeEvent{
		Type: EventDelete, Table: "wallets",
		Old: &ChangeKey{ID: remoteID},
	})
	waitFor(t, func() bool {
		rec, err := store.FindBy(ctx, "wallets", "remoteId", remoteID)
		return err == nil && rec == nil
	}, "feed delete to apply")
}

// A replayed event must converge to the same state instead of duplicating.
func TestRealtimeReplayedEventIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	feed := newFakeFeed()
	ctx := context.Background()

	engine := NewEngine(store, newFakeRemote(), feed, staticOwner("owner-1"), nil)
	cancel, err := engine.SetupRealtimeSync("owner-1")
	require.NoError(t, err)
	defer cancel()

	remoteID := uuid.NewString()
	ev := ChangeEvent{
		Type: EventInsert, Table: "goals",
		New: localstore.Record{
			"id": remoteID, "user_id": "owner-1", "name": "Bike",
			"target_amount": float64(8000000), "current_amount": float64(0),
			"target_date": "2027-01-01", "is_withdrawn": false,
		},
	}
	feed.emit("goals", ev)
	feed.emit("goals", ev)

	waitFor(t, func() bool {
		rec, err := store.FindBy(ctx, "goals", "remoteId", remoteID)
		return err == nil && rec != nil
	}, "feed insert to apply")
	// Let the replica of the event drain through the consumer too.
	time.Sleep(50 * time.Millisecond)

	goals, err := store.ListBy(ctx, "goals", "remoteId", remoteID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
}

func TestRealtimeDeleteForUnknownRowIsNoop(t *testing.T) {
	store := newTestStore(t)
	feed := newFakeFeed()

	engine := NewEngine(store, newFakeRemote(), feed, staticOwner("owner-1"), nil)
	cancel, err := engine.SetupRealtimeSync("owner-1")
	require.NoError(t, err)
	defer cancel()

	feed.emit("debts", ChangeEvent{
		Type: EventDelete, Table: "debts",
		Old: &ChangeKey{ID: uuid.NewString()},
	})
	time.Sleep(50 * time.Millisecond)

	debts, err := store.List(context.Background(), "debts")
	require.NoError(t, err)
	require.Empty(t, debts)
}

func TestRealtimeTeardownIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	feed := newFakeFeed()
	ctx := context.Background()

	engine := NewEngine(store, newFakeRemote(), feed, staticOwner("owner-1"), nil)
	cancel, err := engine.SetupRealtimeSync("owner-1")
	require.NoError(t, err)

	cancel()
	cancel()

	// Events emitted after teardown are dropped, not applied.
	remoteID := uuid.NewString()
	feed.emit("wallets", ChangeEvent{
		Type: EventInsert, Table: "wallets",
		New: localstore.Record{
			"id": remoteID, "user_id": "owner-1", "name": "Late", "type": "cash", "balance": float64(0),
		},
	})
	time.Sleep(50 * time.Millisecond)

	rec, err := store.FindBy(ctx, "wallets", "remoteId", remoteID)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestRealtimeTeardownDoesNotTruncateInFlightApply(t *testing.T) {
	store := newTestStore(t)
	feed := newFakeFeed()
	ctx := context.Background()

	engine := NewEngine(store, newFakeRemote(), feed, staticOwner("owner-1"), nil)
	cancel, err := engine.SetupRealtimeSync("owner-1")
	require.NoError(t, err)

	remoteID := uuid.NewString()
	feed.emit("goals", ChangeEvent{
		Type: EventInsert, Table: "goals",
		New: localstore.Record{
			"id": remoteID, "user_id": "owner-1", "name": "Xe máy",
			"target_amount": float64(30000000), "current_amount": float64(1000000),
			"target_date": "2027-06-30", "is_withdrawn": false,
		},
	})
	cancel()

	// The event either never started applying or was applied whole; a
	// partially written row is a defect either way.
	goals, err := store.List(ctx, "goals")
	require.NoError(t, err)
	if len(goals) == 1 {
		require.Equal(t, remoteID, goals[0]["remoteId"])
		require.Equal(t, "Xe máy", goals[0]["name"])
		require.EqualValues(t, 30000000, goals[0]["targetAmount"])
		require.EqualValues(t, 1000000, goals[0]["currentAmount"])
	} else {
		require.Empty(t, goals)
	}
}
