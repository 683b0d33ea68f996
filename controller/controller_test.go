// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/chainclient/chainclienttest"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/checkpoint"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/consensus"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/contentstore/contentstoretest"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/evaluator"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/metrics"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/reporting"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/rlog"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundclock"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundconfig"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/settlement"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/transport"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/transport/transporttest"

	promclient "github.com/prometheus/client_golang/prometheus"
)

type fixedEvaluator struct{}

func (fixedEvaluator) Evaluate(ctx context.Context, taskID, prompt, url string, tests, solution []byte) (evaluator.Result, error) {
	return evaluator.Result{Reward: 0.8, Score: 0.8, ExecutionTimeSec: 1, CostUSD: 0.01}, nil
}

func testClock() roundclock.Clock {
	return roundclock.Clock{
		BlocksPerEpoch:     100,
		RoundSizeEpochs:    10,
		StopEvalFraction:   0.7,
		FetchFraction:      0.85,
		SafetyBufferEpochs: 1,
		SkipThreshold:      0.9,
	}
}

func newTestController(t *testing.T, dir string, chain *chainclienttest.Fake, store *contentstoretest.Fake) (*Controller, *transporttest.Fake) {
	t.Helper()

	cfg := roundconfig.Defaults()
	cfg.TestingMode = true
	cfg.MinValidatorStakeForConsensus = 0

	ckptStore, err := checkpoint.New(dir)
	require.NoError(t, err)

	wire := transporttest.New()
	wire.Handshakes[1] = &transport.HandshakeResponse{AgentName: "agent-1"}
	wire.Handshakes[2] = &transport.HandshakeResponse{AgentName: "agent-2"}
	wire.Tasks[1] = &transport.TaskResponse{Solution: []byte("sol1")}
	wire.Tasks[2] = &transport.TaskResponse{Solution: []byte("sol2")}

	reg := promclient.NewRegistry()
	mtr := metrics.New(reg)

	c := &Controller{
		Clock:       testClock(),
		Config:      cfg,
		Chain:       chain,
		Checkpoints: ckptStore,
		Transport:   transport.New(wire, rlog.NewNoOp()),
		Evaluator:   fixedEvaluator{},
		Publisher:   &consensus.Publisher{Store: store, Chain: chain, Metrics: mtr, Log: rlog.NewNoOp()},
		Aggregator:  &consensus.Aggregator{Store: store, Chain: chain, Metrics: mtr, Log: rlog.NewNoOp(), ExpectedSchemaVersion: cfg.ConsensusSchemaVersion, MinValidatorStake: cfg.MinValidatorStakeForConsensus},
		Settlement:  &settlement.Settlement{Chain: chain, Metrics: mtr, Log: rlog.NewNoOp(), BurnUID: cfg.BurnUID},
		Log:         rlog.NewNoOp(),
		Metrics:     mtr,
	}
	return c, wire
}

func TestRunHappyPathSettlesAndDeletesCheckpoint(t *testing.T) {
	dir := t.TempDir()
	chain := chainclienttest.New()
	chain.Block = 50 // well before stop_eval_block (700) at round_size 10 epochs * 100 blocks/epoch
	chain.SetIdentity(roundtypes.ChainIdentity{UID: 9, Hotkey: "validatorA", Stake: 30_000})

	store := contentstoretest.New()
	c, _ := newTestController(t, dir, chain, store)

	req := RoundRequest{
		Hotkey:       "validatorA",
		ValidatorUID: 9,
		MinerUIDs:    []int{1, 2},
		Tasks:        []roundtypes.TaskWithProject{{TaskID: "t1"}, {TaskID: "t2"}},
	}

	ckpt, err := c.Run(context.Background(), req)
	require.NoError(t, err)
	require.True(t, ckpt.PhasesDone.Contains(roundtypes.PhaseWeightsSet))
	require.NotNil(t, chain.Weights)

	var sum float64
	for _, w := range chain.Weights {
		sum += w
	}
	require.InDelta(t, 1.0, sum, 1e-9)

	loaded, err := c.Checkpoints.Load(req.Hotkey)
	require.NoError(t, err)
	require.Nil(t, loaded, "checkpoint must be deleted after successful settlement")
}

func TestRunSkipsLateStart(t *testing.T) {
	dir := t.TempDir()
	chain := chainclienttest.New()
	chain.Block = 95 // 95/1000 of round elapsed at round start block 0 -> past SkipThreshold(0.9) handled below
	chain.SetIdentity(roundtypes.ChainIdentity{UID: 9, Hotkey: "validatorA", Stake: 30_000})

	store := contentstoretest.New()
	c, _ := newTestController(t, dir, chain, store)
	c.Clock.SkipThreshold = 0.01 // force late-start trip for a tiny elapsed fraction

	req := RoundRequest{
		Hotkey:       "validatorA",
		ValidatorUID: 9,
		MinerUIDs:    []int{1},
		Tasks:        []roundtypes.TaskWithProject{{TaskID: "t1"}},
	}

	_, err := c.Run(context.Background(), req)
	require.ErrorIs(t, err, ErrLateStart)
}

func TestRunResumesFromCheckpointSkippingHandshake(t *testing.T) {
	dir := t.TempDir()
	chain := chainclienttest.New()
	chain.Block = 50
	chain.SetIdentity(roundtypes.ChainIdentity{UID: 9, Hotkey: "validatorA", Stake: 30_000})
	store := contentstoretest.New()

	identity := roundtypes.RoundIdentity{
		RoundNumber: 0, ValidatorUID: 9, ValidatorHotkey: "validatorA",
		StartBlock: 0, StartEpoch: 0, TargetEpoch: 10,
	}
	tasks := []roundtypes.TaskWithProject{{TaskID: "t1"}}
	ckpt := roundtypes.NewRoundCheckpoint(identity, tasks)
	ckpt.ActiveMiners = []roundtypes.ActiveMiner{{UID: 1}}
	ckpt.PhasesDone.Add(roundtypes.PhaseHandshakeReported)
	ckpt.PhasesDone.Add(roundtypes.PhaseTasksRegistered)

	ckptStore, err := checkpoint.New(dir)
	require.NoError(t, err)
	require.NoError(t, ckptStore.Save("validatorA", ckpt, time.Now()))

	c, wire := newTestController(t, dir, chain, store)

	req := RoundRequest{
		Hotkey:       "validatorA",
		ValidatorUID: 9,
		MinerUIDs:    []int{1},
		Tasks:        tasks,
	}

	resultCkpt, err := c.Run(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resultCkpt.PhasesDone.Contains(roundtypes.PhaseWeightsSet))
	require.Equal(t, 0, wire.StartRoundCalls, "resumed round must not re-run the handshake phase")
	require.Equal(t, []roundtypes.ActiveMiner{{UID: 1}}, resultCkpt.ActiveMiners, "resumed round must keep the checkpointed miner list, not re-derive it")
}

func TestRunHandshakeReportsAggregatedMinerFailures(t *testing.T) {
	dir := t.TempDir()
	chain := chainclienttest.New()
	chain.Block = 50
	chain.SetIdentity(roundtypes.ChainIdentity{UID: 9, Hotkey: "validatorA", Stake: 30_000})

	store := contentstoretest.New()
	c, wire := newTestController(t, dir, chain, store)
	wire.StartRoundFailures[2] = -1 // miner 2 never responds to the handshake
	c.Transport.Policy.MaxAttempts = 2
	c.Transport.Policy.BaseDelay = time.Millisecond
	c.Transport.Policy.MaxDelay = time.Millisecond

	var mu sync.Mutex
	var errorEvents []reporting.Event
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Sink = reporting.New(ctx, rlog.NewNoOp(), 16, func(ev reporting.Event) {
		if ev.Kind != reporting.KindError {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		errorEvents = append(errorEvents, ev)
	})

	req := RoundRequest{
		Hotkey:       "validatorA",
		ValidatorUID: 9,
		MinerUIDs:    []int{1, 2},
		Tasks:        []roundtypes.TaskWithProject{{TaskID: "t1"}},
	}

	_, err := c.Run(context.Background(), req)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errorEvents) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "handshake_miner_failures", errorEvents[0].ErrKind)
	require.Contains(t, errorEvents[0].ErrDetail, "miner 2")
}
