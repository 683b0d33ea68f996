// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contentstore declares the narrow content-addressed store
// interface the round engine needs: add bytes, fetch by content id. The
// store itself is an external collaborator (spec.md §1).
package contentstore

import "context"

// Store is the content-addressed store seam.
type Store interface {
	// Add uploads bytes and returns the content id the store assigns them.
	Add(ctx context.Context, data []byte) (contentID string, err error)

	// Fetch returns the bytes previously stored under contentID.
	Fetch(ctx context.Context, contentID string) ([]byte, error)
}
