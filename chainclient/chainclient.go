// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainclient declares the narrow chain-client interface the round
// engine needs: current block, commit bytes, read commitments, set
// weights. The chain protocol itself is an external collaborator
// (spec.md §1) — this package never implements one.
package chainclient

import (
	"context"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
)

// Commitment is the on-chain commitment payload, spec.md §6. Field names
// match the wire format exactly so publisher and aggregator stay
// bit-compatible across validators.
type Commitment struct {
	V  uint    `json:"v"`
	R  uint64  `json:"r"`
	SE float64 `json:"se"`
	TE float64 `json:"te"`
	C  string  `json:"c"`
}

// Client is the chain client seam.
type Client interface {
	// CurrentBlock returns the chain's current block height.
	CurrentBlock(ctx context.Context) (int64, error)

	// Identities returns the current ChainIdentity for every validator and
	// miner uid known to the chain, keyed by uid.
	Identities(ctx context.Context) (map[int]roundtypes.ChainIdentity, error)

	// Commit submits a commitment binding this validator's hotkey to a
	// published content id.
	Commit(ctx context.Context, hotkey string, commitment Commitment) error

	// ReadCommitments returns every commitment currently recorded on chain
	// for the subnet, keyed by publishing hotkey.
	ReadCommitments(ctx context.Context) (map[string]Commitment, error)

	// SetWeights submits the final weight map for this round.
	SetWeights(ctx context.Context, weights map[int]float64) error

	// Reconnect drops and re-establishes the underlying chain connection,
	// used to clear any stuck state after a failed commit or weight
	// submission, per spec.md §5.
	Reconnect(ctx context.Context) error
}
