// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transporttest is an in-memory transport.Wire test double.
package transporttest

import (
	"context"
	"sync"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/transport"
)

// Fake is an in-memory transport.Wire.
type Fake struct {
	mu sync.Mutex

	Handshakes map[int]*transport.HandshakeResponse
	Tasks      map[int]*transport.TaskResponse

	// StartRoundFailures/DispatchTaskFailures, when set for a uid, fail that many
	// times before succeeding (to exercise retry) — a value of -1 means
	// "always fail".
	StartRoundFailures   map[int]int
	DispatchTaskFailures map[int]int

	Calls           int
	StartRoundCalls int
	DispatchCalls   int
}

// New returns a Fake with no registered miners.
func New() *Fake {
	return &Fake{
		Handshakes:           make(map[int]*transport.HandshakeResponse),
		Tasks:                make(map[int]*transport.TaskResponse),
		StartRoundFailures:   make(map[int]int),
		DispatchTaskFailures: make(map[int]int),
	}
}

func (f *Fake) StartRound(ctx context.Context, minerUID int, payload []byte) (*transport.HandshakeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.StartRoundCalls++

	if n, ok := f.StartRoundFailures[minerUID]; ok && n != 0 {
		if n > 0 {
			f.StartRoundFailures[minerUID] = n - 1
		}
		return nil, errTransient
	}
	return f.Handshakes[minerUID], nil
}

func (f *Fake) DispatchTask(ctx context.Context, minerUID int, task roundtypes.TaskWithProject) (*transport.TaskResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.DispatchCalls++

	if n, ok := f.DispatchTaskFailures[minerUID]; ok && n != 0 {
		if n > 0 {
			f.DispatchTaskFailures[minerUID] = n - 1
		}
		return nil, errTransient
	}
	return f.Tasks[minerUID], nil
}

type transientError struct{}

func (transientError) Error() string { return "transporttest: transient failure" }

var errTransient = transientError{}
