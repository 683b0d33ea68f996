// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package controller implements the Round Controller (spec.md §4.10): it
// drives a round's phases in order, persists a checkpoint after every
// observable state change, and resumes at the highest completed phase
// after a crash. Modeled on the teacher's engine/chain/engine.go staged
// pipeline (photon → wave → focus → beam), relabeled for this domain's
// phases.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/chainclient"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/checkpoint"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/consensus"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/dispatch"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/evaluator"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/metrics"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/reporting"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/rlog"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundclock"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundconfig"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundmanager"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/settlement"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/transport"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/wrappers"
)

// ErrLateStart is returned when a round is skipped because it started too
// far past its own boundary (spec.md §4.1's late-start policy).
var ErrLateStart = fmt.Errorf("controller: round started after skip_threshold_fraction, deferring to next boundary")

// RoundRequest is everything the Controller needs from its external
// collaborators (Task Generator, handshake payload builder) to run one
// round; task and handshake-payload generation are themselves out of
// scope (spec.md §1).
type RoundRequest struct {
	Hotkey       string
	ValidatorUID int
	MinerUIDs    []int
	Handshake    []byte
	Tasks        []roundtypes.TaskWithProject
}

// Controller wires every component of the round engine together and
// drives one round end to end.
type Controller struct {
	Clock       roundclock.Clock
	Config      roundconfig.RoundConfig
	Chain       chainclient.Client
	Checkpoints *checkpoint.Store
	Transport   *transport.Transport
	Evaluator   evaluator.Evaluator
	Publisher   *consensus.Publisher
	Aggregator  *consensus.Aggregator
	Settlement  *settlement.Settlement
	Sink        *reporting.Sink
	Log         rlog.Logger
	Metrics     *metrics.Collectors

	// Now returns the current wall time, for checkpoint stamping; defaults
	// to time.Now when nil. Tests inject a fixed clock.
	Now func() time.Time
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Run drives req through STARTING → HANDSHAKING → DISPATCHING →
// PUBLISHING → AGGREGATING → SETTLING, resuming from any checkpointed
// phase, and returns the final checkpoint (deleted from disk on success,
// preserved on failure).
func (c *Controller) Run(ctx context.Context, req RoundRequest) (*roundtypes.RoundCheckpoint, error) {
	block, err := c.Chain.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("controller: reading current block: %w", err)
	}

	ckpt, err := c.Checkpoints.Load(req.Hotkey)
	if err != nil {
		if c.Log != nil {
			c.Log.Warn("controller: checkpoint load failed, starting fresh", zap.Error(err))
		}
		ckpt = nil
	}

	if ckpt == nil {
		startBlock := c.Clock.RoundStartBlock(block)
		if c.Clock.ShouldSkipLateStart(block, startBlock) {
			return nil, ErrLateStart
		}
		identity := roundtypes.RoundIdentity{
			RoundNumber:     c.Clock.RoundNumber(block),
			ValidatorUID:    req.ValidatorUID,
			ValidatorHotkey: req.Hotkey,
			StartBlock:      startBlock,
			StartEpoch:      c.Clock.RoundStartEpoch(block),
			TargetEpoch:     c.Clock.RoundEndEpoch(block),
		}
		ckpt = roundtypes.NewRoundCheckpoint(identity, req.Tasks)
	}

	lock, err := c.Checkpoints.Lock(req.Hotkey)
	if err != nil {
		return nil, fmt.Errorf("controller: acquiring checkpoint lock: %w", err)
	}
	defer lock.Unlock()

	mgr := roundmanager.New(ckpt)
	save := func() error { return c.Checkpoints.Save(req.Hotkey, ckpt, c.now()) }

	identities, err := c.Chain.Identities(ctx)
	if err != nil {
		identities = nil
		if c.Log != nil {
			c.Log.Warn("controller: reading identities failed", zap.Error(err))
		}
	}

	targetBlock := c.Clock.TargetBlock(ckpt.Identity.StartBlock)
	if block < targetBlock {
		if err := c.runHandshake(ctx, req, ckpt, identities, save); err != nil {
			return ckpt, err
		}
		if err := c.runDispatch(ctx, ckpt, mgr, save); err != nil {
			return ckpt, err
		}
		if err := c.runPublish(ctx, req, ckpt, mgr, save); err != nil {
			return ckpt, err
		}
		if err := c.runAggregate(ctx, ckpt, mgr, identities, save); err != nil {
			return ckpt, err
		}
	} else if c.Log != nil {
		c.Log.Warn("controller: deadline already passed at entry, skipping to settlement", zap.Int64("block", block), zap.Int64("target_block", targetBlock))
	}

	if ckpt.AggregatedScores == nil {
		ckpt.AggregatedScores = mgr.AverageRewards()
	}

	if err := c.runSettle(ctx, req, ckpt, save); err != nil {
		return ckpt, err
	}

	if err := c.Checkpoints.Delete(req.Hotkey); err != nil && c.Log != nil {
		c.Log.Warn("controller: checkpoint delete after settlement failed", zap.Error(err))
	}
	return ckpt, nil
}

func (c *Controller) runHandshake(ctx context.Context, req RoundRequest, ckpt *roundtypes.RoundCheckpoint, identities map[int]roundtypes.ChainIdentity, save func() error) error {
	if ckpt.PhasesDone.Contains(roundtypes.PhaseHandshakeReported) {
		return nil
	}

	if c.Sink != nil {
		c.Sink.HandshakeSent(len(req.MinerUIDs))
	}

	// phaseErrs accumulates every miner's transport failure during the
	// handshake fan-out, so one slow/unreachable miner never aborts the
	// phase and the full set of failures is reported together once the
	// fan-out completes, instead of one log line per miner as it happens.
	phaseErrs := &wrappers.Errs{}
	prevHook := c.Transport.OnTransportFailure
	c.Transport.OnTransportFailure = func(minerUID int, err error) {
		phaseErrs.Add(fmt.Errorf("miner %d: %w", minerUID, err))
		if prevHook != nil {
			prevHook(minerUID, err)
		}
	}
	responses := c.Transport.BroadcastStartRound(ctx, req.MinerUIDs, req.Handshake, c.Config.HandshakeTimeout())
	c.Transport.OnTransportFailure = prevHook

	if phaseErrs.Errored() {
		if c.Log != nil {
			c.Log.Warn("controller: handshake phase had miner failures", zap.Int("failure_count", phaseErrs.Len()))
		}
		if c.Sink != nil {
			c.Sink.ReportError("handshake_miner_failures", phaseErrs.Err().Error())
		}
	}

	active := make([]roundtypes.ActiveMiner, 0, len(responses))
	payloads := make(map[int][]byte, len(responses))
	for uid, resp := range responses {
		id := identities[uid]
		miner := roundtypes.ActiveMiner{
			UID:              uid,
			Hotkey:           id.Hotkey,
			Coldkey:          id.Coldkey,
			AgentName:        resp.AgentName,
			AgentImageURL:    resp.AgentImageURL,
			AgentRepoURL:     resp.AgentRepoURL,
			HandshakePayload: resp.Payload,
		}
		active = append(active, miner)
		payloads[uid] = resp.Payload
		if c.Sink != nil {
			c.Sink.HandshakeResponse(uid, id.Hotkey, resp.AgentName)
		}
		if c.Metrics != nil {
			c.Metrics.HandshakeResponses.Inc()
		}
	}

	ckpt.ActiveMiners = active
	ckpt.HandshakePayloads = payloads
	ckpt.PhasesDone.Add(roundtypes.PhaseHandshakeReported)
	ckpt.PhasesDone.Add(roundtypes.PhaseTasksRegistered)
	return save()
}

func (c *Controller) runDispatch(ctx context.Context, ckpt *roundtypes.RoundCheckpoint, mgr *roundmanager.Manager, save func() error) error {
	// snapshotAndSave copies the Round Manager's current in-memory state
	// into the checkpoint and persists it. Serialized by checkpointMu so
	// concurrent per-miner evaluations (bounded by MaxParallelEvaluations)
	// never interleave two Store.Save calls against the same file.
	var checkpointMu sync.Mutex
	snapshotAndSave := func() error {
		checkpointMu.Lock()
		defer checkpointMu.Unlock()
		ckpt.CompletedPairs = mgr.CompletedPairs()
		ckpt.EvalRecords = mgr.Records()
		ckpt.RewardAccumulators = mgr.Accumulators()
		return save()
	}

	d := &dispatch.Dispatcher{
		Transport:   c.Transport,
		Evaluator:   c.Evaluator,
		Manager:     mgr,
		OverCost:    evaluator.NewOverCostTracker(c.Config.MaxTaskCostUSD, c.Config.MaxOverCostBeforeZero),
		Log:         c.Log,
		Metrics:     c.Metrics,
		MaxParallel: c.Config.MaxParallelEvaluations,
		TaskTimeout: c.Config.TaskTimeout(),
		CurrentBlock: func(ctx context.Context) (int64, error) {
			return c.Chain.CurrentBlock(ctx)
		},
		// AfterMiner checkpoints after every individual (miner, task)
		// evaluation, so a crash mid-task resumes from the first
		// un-completed miner rather than redispatching the whole task.
		AfterMiner: func(taskIndex int, minerUID int) {
			if err := snapshotAndSave(); err != nil && c.Log != nil {
				c.Log.Error("controller: checkpoint save after miner eval failed", zap.Int("task_index", taskIndex), zap.Int("miner_uid", minerUID), zap.Error(err))
			}
		},
		AfterTask: func(idx int) {
			if err := snapshotAndSave(); err != nil && c.Log != nil {
				c.Log.Error("controller: checkpoint save after task failed", zap.Int("task_index", idx), zap.Error(err))
			}
		},
	}

	stopEvalBlock := c.Clock.StopEvalBlock(ckpt.Identity.StartBlock)
	return d.Run(ctx, ckpt.AllTasks, ckpt.ActiveMiners, stopEvalBlock)
}

func (c *Controller) runPublish(ctx context.Context, req RoundRequest, ckpt *roundtypes.RoundCheckpoint, mgr *roundmanager.Manager, save func() error) error {
	if ckpt.PhasesDone.Contains(roundtypes.PhaseConsensusPublished) {
		return nil
	}

	snap := roundtypes.ConsensusSnapshot{
		SchemaVersion:   c.Config.ConsensusSchemaVersion,
		RoundNumber:     ckpt.Identity.RoundNumber,
		ValidatorUID:    ckpt.Identity.ValidatorUID,
		ValidatorHotkey: ckpt.Identity.ValidatorHotkey,
		EpochStart:      ckpt.Identity.StartEpoch,
		EpochEnd:        ckpt.Identity.TargetEpoch,
		TasksCompleted:  len(ckpt.CompletedPairs),
		Scores:          mgr.AverageRewards(),
	}

	result := c.Publisher.Publish(ctx, req.Hotkey, snap)
	if result.Published {
		ckpt.ConsensusPublishedCID = result.ContentID
		if c.Sink != nil {
			c.Sink.ConsensusPublished(result.ContentID)
		}
	}

	ckpt.PhasesDone.Add(roundtypes.PhaseConsensusPublished)
	return save()
}

func (c *Controller) runAggregate(ctx context.Context, ckpt *roundtypes.RoundCheckpoint, mgr *roundmanager.Manager, identities map[int]roundtypes.ChainIdentity, save func() error) error {
	if ckpt.PhasesDone.Contains(roundtypes.PhaseConsensusAggregated) {
		return nil
	}

	// Stake is read fresh from the chain when aggregation runs; the
	// identities read at round entry are used only if this read fails.
	if fresh, err := c.Chain.Identities(ctx); err == nil {
		identities = fresh
	} else if c.Log != nil {
		c.Log.Warn("controller: re-reading identities for aggregation failed, using round-entry stakes", zap.Error(err))
	}

	selfStake := identities[ckpt.Identity.ValidatorUID].Stake
	window := consensus.Window{EpochStart: ckpt.Identity.StartEpoch, EpochEnd: ckpt.Identity.TargetEpoch}

	local := roundtypes.ConsensusSnapshot{
		SchemaVersion:   c.Config.ConsensusSchemaVersion,
		RoundNumber:     ckpt.Identity.RoundNumber,
		ValidatorUID:    ckpt.Identity.ValidatorUID,
		ValidatorHotkey: ckpt.Identity.ValidatorHotkey,
		EpochStart:      ckpt.Identity.StartEpoch,
		EpochEnd:        ckpt.Identity.TargetEpoch,
		Scores:          mgr.AverageRewards(),
	}

	ckpt.AggregatedScores = c.Aggregator.Aggregate(ctx, window, identities, local, selfStake)
	ckpt.PhasesDone.Add(roundtypes.PhaseConsensusAggregated)
	return save()
}

func (c *Controller) runSettle(ctx context.Context, req RoundRequest, ckpt *roundtypes.RoundCheckpoint, save func() error) error {
	if ckpt.PhasesDone.Contains(roundtypes.PhaseWeightsSet) {
		return nil
	}

	outcome := c.Settlement.Weights(ckpt.AggregatedScores)

	targetBlock := c.Clock.TargetBlock(ckpt.Identity.StartBlock)
	currentBlock, err := c.Chain.CurrentBlock(ctx)
	if err != nil {
		currentBlock = targetBlock // no chain read available: zero remaining blocks, so the TaskTimeout floor below applies
	}
	remainingBlocks := targetBlock - currentBlock
	if remainingBlocks < 0 {
		remainingBlocks = 0
	}
	remaining := time.Duration(float64(remainingBlocks)*c.Config.SecondsPerBlock) * time.Second
	if remaining <= 0 {
		remaining = c.Config.TaskTimeout()
	}
	deadline := c.now().Add(remaining)

	outcome, err := c.Settlement.Submit(ctx, outcome, deadline)
	if err != nil {
		if c.Sink != nil {
			c.Sink.ReportError("weight_submission_failed", err.Error())
		}
		return fmt.Errorf("controller: weight submission failed, round recorded as failed: %w", err)
	}

	scope := "final"
	if outcome.Burned {
		scope = "local"
	}
	if c.Sink != nil {
		c.Sink.SetWinner(outcome.WinnerUID, scope)
		c.Sink.WeightsSet(outcome.Weights)
	}

	ckpt.PhasesDone.Add(roundtypes.PhaseWeightsSet)
	ckpt.PhasesDone.Add(roundtypes.PhaseFinishReported)
	return save()
}
