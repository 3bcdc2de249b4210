// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudsync

import (
	"context"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// foreignKeys maps every foreign-key field to the table it references.
var foreignKeys = map[string]string{
	"categoryId":   "categories",
	"walletId":     "wallets",
	"fromWalletId": "wallets",
	"toWalletId":   "wallets",
	"goalId":       "goals",
	"debtId":       "debts",
}

// resolveLocalRefs rewrites foreign-key fields holding local integer ids to
// the referenced record's remote identifier, looking each parent up in the
// local store. A parent without a remote id leaves the field untouched: the
// push is then expected to fail remotely and be retried once a reconcile
// pass has synced the parent first.
func resolveLocalRefs(ctx context.Context, store *localstore.Store, rec localstore.Record) (localstore.Record, error) {
	out := make(localstore.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for field, parentTable := range foreignKeys {
		val, ok := out[field]
		if !ok || val == nil {
			continue
		}
		localID := asInt64(val)
		if localID == 0 {
			continue
		}
		parent, err := store.Get(ctx, parentTable, localID)
		if err != nil {
			continue // dangling reference stays as-is
		}
		if remoteID, _ := parent["remoteId"].(string); remoteID != "" {
			out[field] = remoteID
		}
	}
	return out, nil
}

// resolveRemoteRefs rewrites foreign-key fields holding remote identifiers
// to the local record carrying that remoteId. Unknown parents leave the
// field as-is.
func resolveRemoteRefs(ctx context.Context, store *localstore.Store, rec localstore.Record) (localstore.Record, error) {
	out := make(localstore.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for field, parentTable := range foreignKeys {
		remoteID, ok := out[field].(string)
		if !ok || remoteID == "" {
			continue
		}
		parent, err := store.FindBy(ctx, parentTable, "remoteId", remoteID)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			out[field] = parent["id"]
		}
	}
	return out, nil
}
