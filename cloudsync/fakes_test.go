package cloudsync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

func newTestStore(t *testing.T) *localstore.Store {
	t.Helper()
	store, err := localstore.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// fakeRemote is an in-memory RemoteStore with server-assigned uuid row ids.
type fakeRemote struct {
	mu     sync.Mutex
	tables map[string][]localstore.Record

	inserts, updates, deletes int

	selectErr map[string]error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		tables:    make(map[string][]localstore.Record),
		selectErr: make(map[string]error),
	}
}

func cloneRecord(rec localstore.Record) localstore.Record {
	out := make(localstore.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// seed plants a remote row directly, as if another device had pushed it.
func (f *fakeRemote) seed(table string, rec localstore.Record) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec = cloneRecord(rec)
	id, _ := rec["id"].(string)
	if id == "" {
		id = uuid.NewString()
		rec["id"] = id
	}
	f.tables[table] = append(f.tables[table], rec)
	return id
}

func (f *fakeRemote) rows(table string) []localstore.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]localstore.Record, 0, len(f.tables[table]))
	for _, rec := range f.tables[table] {
		out = append(out, cloneRecord(rec))
	}
	return out
}

func (f *fakeRemote) row(table, id string) localstore.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.tables[table] {
		if rec["id"] == id {
			return cloneRecord(rec)
		}
	}
	return nil
}

func (f *fakeRemote) Insert(ctx context.Context, table string, payload localstore.Record) (localstore.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	rec := cloneRecord(payload)
	rec["id"] = uuid.NewString()
	f.tables[table] = append(f.tables[table], rec)
	return cloneRecord(rec), nil
}

func (f *fakeRemote) Update(ctx context.Context, table, id string, payload localstore.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	for _, rec := range f.tables[table] {
		if rec["id"] == id {
			for k, v := range payload {
				rec[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("no %s row with id %s", table, id)
}

func (f *fakeRemote) Delete(ctx context.Context, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	rows := f.tables[table]
	for i, rec := range rows {
		if rec["id"] == id {
			f.tables[table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeRemote) Select(ctx context.Context, table string) ([]localstore.Record, error) {
	f.mu.Lock()
	if err := f.selectErr[table]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()
	return f.rows(table), nil
}

// fakeFeed hands out buffered channels and closes them on ctx cancel, the
// same contract the websocket feed implements.
type fakeFeed struct {
	mu     sync.Mutex
	chans  map[string]chan ChangeEvent
	closed map[string]bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		chans:  make(map[string]chan ChangeEvent),
		closed: make(map[string]bool),
	}
}

func (f *fakeFeed) Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, error) {
	f.mu.Lock()
	ch := make(chan ChangeEvent, 16)
	f.chans[table] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.closed[table] {
			f.closed[table] = true
			close(ch)
		}
	}()
	return ch, nil
}

func (f *fakeFeed) emit(table string, ev ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed[table] {
		return
	}
	f.chans[table] <- ev
}

// waitFor polls until cond holds or the timeout passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func staticOwner(owner string) func() string {
	return func() string { return owner }
}
