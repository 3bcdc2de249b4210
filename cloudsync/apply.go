// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudsync

import (
	"context"
	"fmt"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// applyOutcome reports what applying one remote row did locally.
type applyOutcome int

const (
	applyAdded applyOutcome = iota
	applyUpdated
	applyUnchanged
)

// applyRemoteRecord upserts one remote row into the local store. This is the
// single convergence point shared by the reconciler's pull phase and the
// realtime merge: match by remoteId (falling back to a name match for the
// dimension tables so pre-existing local defaults are not duplicated), map
// the fields, resolve foreign keys to local ids and write with remote
// origin so the mirror does not echo the write back. A row whose mapped
// fields already match the local record is left untouched, so applying the
// same row twice converges and the second apply reports no change.
func applyRemoteRecord(ctx context.Context, store *localstore.Store, table string, remote localstore.Record) (applyOutcome, error) {
	remoteID, _ := remote["id"].(string)
	if remoteID == "" {
		return applyUnchanged, fmt.Errorf("remote %s record has no id", table)
	}

	local, err := store.FindBy(ctx, table, "remoteId", remoteID)
	if err != nil {
		return applyUnchanged, err
	}
	if local == nil && (table == "categories" || table == "wallets") {
		if name, ok := remote["name"].(string); ok {
			local, err = store.FindBy(ctx, table, "name", name)
			if err != nil {
				return applyUnchanged, err
			}
		}
	}

	fields := FromRemote(remote)
	fields, err = resolveRemoteRefs(ctx, store, fields)
	if err != nil {
		return applyUnchanged, err
	}
	fields["remoteId"] = remoteID

	rctx := localstore.WithRemoteOrigin(ctx)
	if local == nil {
		_, err = store.Insert(rctx, table, fields)
		if err != nil {
			return applyUnchanged, err
		}
		return applyAdded, nil
	}
	if fieldsMatch(local, fields) {
		return applyUnchanged, nil
	}
	if err := store.Update(rctx, table, localID(local), fields); err != nil {
		return applyUnchanged, err
	}
	return applyUpdated, nil
}

// fieldsMatch reports whether every mapped field already carries the same
// value on the local record, comparing numerics by value so SQLite's int64
// affinity matches the feed's float64 decoding.
func fieldsMatch(local, fields localstore.Record) bool {
	for col, want := range fields {
		if !valuesEqual(local[col], want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	an, aok := asNumber(a)
	bn, bok := asNumber(b)
	if aok && bok {
		return an == bn
	}
	return a == b
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// deleteByRemoteID removes the local record mirroring the given remote id,
// if one exists. Used by ghost deletion and by feed DELETE events.
func deleteByRemoteID(ctx context.Context, store *localstore.Store, table, remoteID string) (deleted bool, err error) {
	local, err := store.FindBy(ctx, table, "remoteId", remoteID)
	if err != nil {
		return false, err
	}
	if local == nil {
		return false, nil
	}
	rctx := localstore.WithRemoteOrigin(ctx)
	return true, store.Delete(rctx, table, localID(local))
}

func localID(rec localstore.Record) int64 {
	return asInt64(rec["id"])
}
