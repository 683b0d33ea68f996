// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainclienttest is an in-memory chainclient.Client test double,
// following the teacher's validatorstest/uptime-stub convention of one
// dedicated test package per collaborator interface.
package chainclienttest

import (
	"context"
	"sync"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/chainclient"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
)

// Fake is an in-memory chainclient.Client.
type Fake struct {
	mu sync.Mutex

	Block       int64
	Identities_ map[int]roundtypes.ChainIdentity
	Commitments map[string]chainclient.Commitment
	Weights     map[int]float64
	Reconnects  int

	// CommitErr / SetWeightsErr, when non-nil, are returned by the
	// corresponding call every time, to exercise retry/fallback paths.
	CommitErr     error
	SetWeightsErr error
}

// New returns an empty Fake at block 0.
func New() *Fake {
	return &Fake{
		Identities_: make(map[int]roundtypes.ChainIdentity),
		Commitments: make(map[string]chainclient.Commitment),
	}
}

func (f *Fake) CurrentBlock(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Block, nil
}

func (f *Fake) Identities(ctx context.Context) (map[int]roundtypes.ChainIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]roundtypes.ChainIdentity, len(f.Identities_))
	for k, v := range f.Identities_ {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) Commit(ctx context.Context, hotkey string, commitment chainclient.Commitment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommitErr != nil {
		return f.CommitErr
	}
	f.Commitments[hotkey] = commitment
	return nil
}

func (f *Fake) ReadCommitments(ctx context.Context) (map[string]chainclient.Commitment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]chainclient.Commitment, len(f.Commitments))
	for k, v := range f.Commitments {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) SetWeights(ctx context.Context, weights map[int]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetWeightsErr != nil {
		return f.SetWeightsErr
	}
	f.Weights = weights
	return nil
}

func (f *Fake) Reconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reconnects++
	return nil
}

// SetIdentity registers/updates a ChainIdentity, a convenience for tests.
func (f *Fake) SetIdentity(id roundtypes.ChainIdentity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Identities_[id.UID] = id
}
