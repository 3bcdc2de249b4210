// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudsync

import (
	"math"
	"time"

	"github.com/luuthuy2k1-code/finance-app/localstore"
)

// Field renames between the local camel-case schema and the remote
// snake-case schema. Fields not listed keep their name in both directions.
var localToRemoteFields = map[string]string{
	"categoryId":      "category_id",
	"walletId":        "wallet_id",
	"fromWalletId":    "from_wallet_id",
	"toWalletId":      "to_wallet_id",
	"isSystem":        "is_system",
	"targetAmount":    "target_amount",
	"currentAmount":   "current_amount",
	"targetDate":      "target_date",
	"isWithdrawn":     "is_withdrawn",
	"goalId":          "goal_id",
	"totalAmount":     "total_amount",
	"remainingAmount": "remaining_amount",
	"startDate":       "start_date",
	"debtId":          "debt_id",
	"ownerId":         "user_id",
}

var remoteToLocalFields = func() map[string]string {
	m := make(map[string]string, len(localToRemoteFields))
	for local, remote := range localToRemoteFields {
		m[remote] = local
	}
	return m
}()

// Boolean columns stored as 0/1 locally but as real booleans remotely.
var boolFields = map[string]bool{"isSystem": true, "isWithdrawn": true}

// Millisecond-precision ISO-8601, so created_at survives a round trip.
const createdAtLayout = "2006-01-02T15:04:05.000Z"

// ToRemote translates a local record into the remote wire shape: snake_case
// field names, created_at as an ISO-8601 string, booleans as booleans. The
// local id and remoteId never travel in the payload. Pure and total; the
// input record is not modified.
func ToRemote(rec localstore.Record) localstore.Record {
	out := make(localstore.Record, len(rec))
	for key, val := range rec {
		switch key {
		case "id", "remoteId":
			continue
		case "createdAt":
			out["created_at"] = time.UnixMilli(asInt64(val)).UTC().Format(createdAtLayout)
			continue
		}
		if boolFields[key] {
			val = asInt64(val) != 0
		}
		if remote, ok := localToRemoteFields[key]; ok {
			out[remote] = val
		} else {
			out[key] = val
		}
	}
	return out
}

// FromRemote translates a remote record into the local shape. The remote
// "id" is dropped; callers store it as remoteId themselves. Inverse of
// ToRemote on the shared field set.
func FromRemote(rec localstore.Record) localstore.Record {
	out := make(localstore.Record, len(rec))
	for key, val := range rec {
		switch key {
		case "id":
			continue
		case "created_at":
			if s, ok := val.(string); ok {
				if ts, err := time.Parse(time.RFC3339, s); err == nil {
					out["createdAt"] = ts.UnixMilli()
					continue
				}
			}
			out["createdAt"] = int64(0)
			continue
		}
		local, ok := remoteToLocalFields[key]
		if !ok {
			local = key
		}
		if boolFields[local] {
			out[local] = boolToInt(val)
			continue
		}
		out[local] = normalizeNumber(val)
	}
	return out
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case bool:
		if n {
			return 1
		}
	}
	return 0
}

func boolToInt(v any) int64 {
	switch b := v.(type) {
	case bool:
		if b {
			return 1
		}
		return 0
	default:
		return asInt64(v)
	}
}

// normalizeNumber collapses JSON's float64 back to int64 for whole values,
// keeping the local store's integer affinity intact.
func normalizeNumber(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return int64(f)
	}
	return v
}
