// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport provides typed RPC to miners (handshake, task
// dispatch) with per-request timeouts and transport-level retries,
// generalized from the teacher's networking/timeout.Manager Op-tagged
// request/response registration (networking/timeout/manager.go) into a
// real timeout-bounded client over an injected wire.
package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/retry"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/rlog"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
)

// HandshakeResponse is what a miner returns from a start-round handshake.
type HandshakeResponse struct {
	AgentName     string
	AgentImageURL string
	AgentRepoURL  string
	Payload       []byte
}

// TaskResponse is what a miner returns from a task dispatch.
type TaskResponse struct {
	Solution []byte
}

// Wire is the actual RPC transport to a single miner, injected so this
// package never depends on a concrete network framework — the subnet's
// RPC layer is an external collaborator per spec.md §1.
type Wire interface {
	StartRound(ctx context.Context, minerUID int, payload []byte) (*HandshakeResponse, error)
	DispatchTask(ctx context.Context, minerUID int, task roundtypes.TaskWithProject) (*TaskResponse, error)
}

// Transport is the Miner Transport component of spec.md §4.4.
type Transport struct {
	wire Wire
	log  rlog.Logger

	// Policy controls the transport-level retry backoff. Zero-value
	// defaults to retry.DefaultPolicy.
	Policy retry.Policy

	// OnTransportFailure is called (if non-nil) for every transport-level
	// failure, for Reporting Sink wiring; it never aborts the round.
	OnTransportFailure func(minerUID int, err error)
}

// New returns a Transport over wire, logging through log.
func New(wire Wire, log rlog.Logger) *Transport {
	return &Transport{wire: wire, log: log, Policy: retry.DefaultPolicy}
}

func (t *Transport) policy() retry.Policy {
	if t.Policy == (retry.Policy{}) {
		return retry.DefaultPolicy
	}
	return t.Policy
}

// BroadcastStartRound fans the handshake out to every miner in parallel,
// bounded by each miner's timeout, and returns whatever arrived by the
// deadline. A miner that never responds is simply absent from the map — a
// missing response is a miner failure, not a transport error, per
// spec.md §4.4.
func (t *Transport) BroadcastStartRound(ctx context.Context, minerUIDs []int, payload []byte, timeout time.Duration) map[int]*HandshakeResponse {
	type result struct {
		uid  int
		resp *HandshakeResponse
	}

	results := make(chan result, len(minerUIDs))
	for _, uid := range minerUIDs {
		uid := uid
		go func() {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			var resp *HandshakeResponse
			err := retry.Do(callCtx, t.policy(), func(c context.Context) error {
				r, err := t.wire.StartRound(c, uid, payload)
				if err != nil {
					return err
				}
				resp = r
				return nil
			})
			if err != nil {
				t.reportFailure(uid, err)
				resp = nil
			}
			results <- result{uid: uid, resp: resp}
		}()
	}

	out := make(map[int]*HandshakeResponse, len(minerUIDs))
	for range minerUIDs {
		r := <-results
		if r.resp != nil {
			out[r.uid] = r.resp
		}
	}
	return out
}

// DispatchTask calls a single miner for one task, bounded by timeout.
// Cancelling ctx propagates a cancel signal to the in-flight RPC; any
// partial response is dropped (nil, ctx.Err() is returned).
func (t *Transport) DispatchTask(ctx context.Context, minerUID int, task roundtypes.TaskWithProject, timeout time.Duration) (*TaskResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp *TaskResponse
	err := retry.Do(callCtx, t.policy(), func(c context.Context) error {
		r, err := t.wire.DispatchTask(c, minerUID, task)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		t.reportFailure(minerUID, err)
		return nil, err
	}
	return resp, nil
}

func (t *Transport) reportFailure(minerUID int, err error) {
	if t.log != nil {
		t.log.Warn("miner transport failure", zap.Int("miner_uid", minerUID), zap.Error(err))
	}
	if t.OnTransportFailure != nil {
		t.OnTransportFailure(minerUID, err)
	}
}
