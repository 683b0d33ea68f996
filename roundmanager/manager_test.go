// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package roundmanager

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
)

func TestRecordEvalAndIsCompleted(t *testing.T) {
	m := New(nil)
	require.False(t, m.IsCompleted(1, "t1"))

	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 1, TaskID: "t1", Reward: 0.5}))
	require.True(t, m.IsCompleted(1, "t1"))
}

func TestRecordEvalRejectsDuplicate(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 1, TaskID: "t1", Reward: 0.5}))
	err := m.RecordEval(roundtypes.EvalRecord{MinerUID: 1, TaskID: "t1", Reward: 0.9})
	require.Error(t, err)
}

func TestAverageRewardsAndWinner(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 59, TaskID: "t1", Reward: 0.2}))
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 59, TaskID: "t2", Reward: 0.6}))
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 107, TaskID: "t1", Reward: 0.9}))
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 107, TaskID: "t2", Reward: 0.89}))

	avgs := m.AverageRewards()
	require.InDelta(t, 0.4, avgs[59], 1e-9)
	require.InDelta(t, 0.895, avgs[107], 1e-9)

	winner, ok := m.Winner()
	require.True(t, ok)
	require.Equal(t, 107, winner)
}

func TestWinnerTieBreaksOnLowestUID(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 200, TaskID: "t1", Reward: 0.5}))
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 100, TaskID: "t1", Reward: 0.5}))

	winner, ok := m.Winner()
	require.True(t, ok)
	require.Equal(t, 100, winner)
}

func TestWinnerNoneWhenAllNonPositive(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 1, TaskID: "t1", Reward: 0}))
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 2, TaskID: "t1", Reward: 0}))

	_, ok := m.Winner()
	require.False(t, ok)
}

func TestWinnerNoneWhenEmpty(t *testing.T) {
	m := New(nil)
	_, ok := m.Winner()
	require.False(t, ok)
}

func TestForceZeroForRemainder(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 1, TaskID: "t1", Reward: 0.8}))
	m.ForceZeroForRemainder(1)
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 1, TaskID: "t2", Reward: 0.9}))

	avgs := m.AverageRewards()
	require.Zero(t, avgs[1])
	require.True(t, m.IsForcedZero(1))
}

func TestResumeFromCheckpointPreservesState(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.RecordEval(roundtypes.EvalRecord{MinerUID: 1, TaskID: "t1", Reward: 0.5}))

	ckpt := &roundtypes.RoundCheckpoint{
		CompletedPairs:     m.CompletedPairs(),
		RewardAccumulators: m.Accumulators(),
		EvalRecords:        m.Records(),
	}

	resumed := New(ckpt)
	require.True(t, resumed.IsCompleted(1, "t1"))
	require.Len(t, resumed.Records(), 1)
	avgs := resumed.AverageRewards()
	require.InDelta(t, 0.5, avgs[1], 1e-9)
}
