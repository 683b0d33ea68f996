// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reporting implements the Reporting Sink (spec.md §4.11): a
// fire-and-forget forwarder for the round's structured events. The
// Controller never waits on it — events are pushed onto a buffered
// channel and drained by a background goroutine, generalized from the
// teacher's log/nolog.go no-op-vs-real logger split into a
// forwarder-with-a-logger shape.
package reporting

import (
	"context"

	"go.uber.org/zap"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/rlog"
)

// Event is one structured round-progress event, spec.md §4.11. Only the
// fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind string

	Count int // handshake_sent

	MinerUID int    // handshake_response, task_result, consensus_peer, set_winner
	Hotkey   string // handshake_response
	Metadata string // handshake_response

	TaskID           string  // task_result
	Reward           float64 // task_result
	Score            float64 // task_result
	ExecutionTimeSec float64 // task_result
	WebURL           string  // task_result

	ContentID string  // consensus_published, consensus_peer
	Stake     float64 // consensus_peer

	WinnerScope string // set_winner: "local" or "final"

	Weights map[int]float64 // weights_set

	ErrKind   string // error
	ErrDetail string // error
}

// Event kind constants, matching spec.md §4.11's event names exactly.
const (
	KindHandshakeSent     = "handshake_sent"
	KindHandshakeResponse = "handshake_response"
	KindTaskResult        = "task_result"
	KindConsensusPublished = "consensus_published"
	KindConsensusPeer     = "consensus_peer"
	KindSetWinner         = "set_winner"
	KindWeightsSet        = "weights_set"
	KindError             = "error"
)

// Sink is a fire-and-forget buffered forwarder. Emit never blocks the
// caller: a full buffer drops the event and logs the drop, rather than
// stalling round progress.
type Sink struct {
	log    rlog.Logger
	events chan Event
	done   chan struct{}
}

// New starts a Sink with the given buffer size, draining events with
// handle until ctx is cancelled.
func New(ctx context.Context, log rlog.Logger, bufferSize int, handle func(Event)) *Sink {
	s := &Sink{
		log:    log,
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
	go s.run(ctx, handle)
	return s
}

func (s *Sink) run(ctx context.Context, handle func(Event)) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			// Drain whatever is already buffered before exiting.
			for {
				select {
				case ev := <-s.events:
					handle(ev)
				default:
					return
				}
			}
		case ev := <-s.events:
			handle(ev)
		}
	}
}

// Emit pushes an event onto the buffer without blocking. If the buffer is
// full, the event is dropped and the drop is logged — the sink is a
// diagnostic aid, never a round-blocking dependency (spec.md §4.11).
func (s *Sink) Emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		if s.log != nil {
			s.log.Warn("reporting: event buffer full, dropping event", zap.String("kind", ev.Kind))
		}
	}
}

// Done returns a channel closed once the sink's background goroutine has
// drained and exited after ctx cancellation.
func (s *Sink) Done() <-chan struct{} { return s.done }

// HandshakeSent emits handshake_sent(n).
func (s *Sink) HandshakeSent(n int) { s.Emit(Event{Kind: KindHandshakeSent, Count: n}) }

// HandshakeResponse emits handshake_response(uid, hotkey, metadata).
func (s *Sink) HandshakeResponse(uid int, hotkey, metadata string) {
	s.Emit(Event{Kind: KindHandshakeResponse, MinerUID: uid, Hotkey: hotkey, Metadata: metadata})
}

// TaskResult emits task_result(uid, task_id, reward, score, time, web).
func (s *Sink) TaskResult(uid int, taskID string, reward, score, execTime float64, webURL string) {
	s.Emit(Event{Kind: KindTaskResult, MinerUID: uid, TaskID: taskID, Reward: reward, Score: score, ExecutionTimeSec: execTime, WebURL: webURL})
}

// ConsensusPublished emits consensus_published(cid).
func (s *Sink) ConsensusPublished(cid string) {
	s.Emit(Event{Kind: KindConsensusPublished, ContentID: cid})
}

// ConsensusPeer emits consensus_peer(uid, stake, cid).
func (s *Sink) ConsensusPeer(uid int, stake float64, cid string) {
	s.Emit(Event{Kind: KindConsensusPeer, MinerUID: uid, Stake: stake, ContentID: cid})
}

// SetWinner emits set_winner(uid, local|final).
func (s *Sink) SetWinner(uid int, scope string) {
	s.Emit(Event{Kind: KindSetWinner, MinerUID: uid, WinnerScope: scope})
}

// WeightsSet emits weights_set(map).
func (s *Sink) WeightsSet(weights map[int]float64) {
	s.Emit(Event{Kind: KindWeightsSet, Weights: weights})
}

// ReportError emits error(kind, detail).
func (s *Sink) ReportError(kind, detail string) {
	s.Emit(Event{Kind: KindError, ErrKind: kind, ErrDetail: detail})
}
