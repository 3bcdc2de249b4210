// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package cloudstore

import "context"

// identity is the authenticated principal of a request: the owner whose
// rows may be touched and the device that presented the token. Set by the
// JWT middleware, read by the handlers and the feed hub.
type identity struct {
	Owner  string
	Device string
}

type identityKey struct{}

func withIdentity(ctx context.Context, id identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFrom(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityKey{}).(identity)
	return id, ok
}
