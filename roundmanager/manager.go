// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package roundmanager accumulates per-miner rewards, scores and times
// across the tasks of one round, following the teacher's
// mutex-guarded-manager-over-state shape (uptime/manager.go).
package roundmanager

import (
	"fmt"
	"sort"
	"sync"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
)

// Manager is the thread-safe per-miner accumulator described in spec.md §4.3.
type Manager struct {
	mu             sync.RWMutex
	completed      roundtypes.Set[roundtypes.Pair]
	accumulators   map[int]*roundtypes.RewardAccumulator
	records        []roundtypes.EvalRecord
	forcedZeroUIDs roundtypes.Set[int]
}

// New returns an empty Manager, or one seeded from a resumed checkpoint
// when checkpoint is non-nil.
func New(checkpoint *roundtypes.RoundCheckpoint) *Manager {
	m := &Manager{
		completed:      roundtypes.NewSet[roundtypes.Pair](0),
		accumulators:   make(map[int]*roundtypes.RewardAccumulator),
		forcedZeroUIDs: roundtypes.NewSet[int](0),
	}
	if checkpoint == nil {
		return m
	}
	m.completed = checkpoint.CompletedPairs
	if checkpoint.RewardAccumulators != nil {
		m.accumulators = checkpoint.RewardAccumulators
	}
	m.records = append(m.records, checkpoint.EvalRecords...)
	return m
}

// RecordEval appends one evaluation result. It is a programming error to
// record the same (minerUID, taskID) pair twice; RecordEval rejects the
// duplicate rather than silently overwriting it, per spec.md §4.3's
// invariant.
func (m *Manager) RecordEval(rec roundtypes.EvalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair := roundtypes.Pair{MinerUID: rec.MinerUID, TaskID: rec.TaskID}
	if m.completed.Contains(pair) {
		return fmt.Errorf("roundmanager: duplicate eval record for miner %d task %q", rec.MinerUID, rec.TaskID)
	}

	if m.forcedZeroUIDs.Contains(rec.MinerUID) {
		rec.Reward = 0
	}

	m.completed.Add(pair)
	m.records = append(m.records, rec)

	acc, ok := m.accumulators[rec.MinerUID]
	if !ok {
		acc = &roundtypes.RewardAccumulator{}
		m.accumulators[rec.MinerUID] = acc
	}
	acc.Rewards = append(acc.Rewards, rec.Reward)
	acc.Scores = append(acc.Scores, rec.Score)
	acc.Times = append(acc.Times, rec.ExecutionTimeSec)

	return nil
}

// IsCompleted reports whether (minerUID, taskID) already has an EvalRecord.
func (m *Manager) IsCompleted(minerUID int, taskID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completed.Contains(roundtypes.Pair{MinerUID: minerUID, TaskID: taskID})
}

// ForceZeroForRemainder marks minerUID so every subsequent RecordEval call
// for it is stored with reward=0, implementing the over-cost escalation of
// spec.md §4.6 (MAX_OVER_COST_BEFORE_ZERO reached).
func (m *Manager) ForceZeroForRemainder(minerUID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedZeroUIDs.Add(minerUID)
}

// IsForcedZero reports whether minerUID has been forced to zero for the
// remainder of the round.
func (m *Manager) IsForcedZero(minerUID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forcedZeroUIDs.Contains(minerUID)
}

// AverageRewards returns the arithmetic mean reward per miner. A forced-zero
// miner's average is 0 regardless of its recorded history, per spec.md §4.6
// ("the final miner average is forced to 0 at settlement time").
func (m *Manager) AverageRewards() map[int]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int]float64, len(m.accumulators))
	for uid, acc := range m.accumulators {
		if m.forcedZeroUIDs.Contains(uid) {
			out[uid] = 0
			continue
		}
		if avg, ok := acc.Average(); ok {
			out[uid] = avg
		}
	}
	return out
}

// Winner returns the argmax of AverageRewards, tie-broken by the lowest
// uid. It returns ok=false when the map is empty or every average is <= 0.
func (m *Manager) Winner() (uid int, ok bool) {
	averages := m.AverageRewards()
	uids := make([]int, 0, len(averages))
	for u := range averages {
		uids = append(uids, u)
	}
	sort.Ints(uids)

	bestUID := 0
	bestAvg := 0.0
	found := false
	for _, u := range uids {
		avg := averages[u]
		if avg <= 0 {
			continue
		}
		if !found || avg > bestAvg {
			bestUID = u
			bestAvg = avg
			found = true
		}
	}
	return bestUID, found
}

// Records returns a snapshot copy of every EvalRecord recorded so far.
func (m *Manager) Records() []roundtypes.EvalRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]roundtypes.EvalRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Accumulators returns a snapshot of the per-miner accumulators, for
// checkpointing.
func (m *Manager) Accumulators() map[int]*roundtypes.RewardAccumulator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]*roundtypes.RewardAccumulator, len(m.accumulators))
	for uid, acc := range m.accumulators {
		cp := *acc
		out[uid] = &cp
	}
	return out
}

// CompletedPairs returns a snapshot of the completed_pairs set, for
// checkpointing.
func (m *Manager) CompletedPairs() roundtypes.Set[roundtypes.Pair] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := roundtypes.NewSet[roundtypes.Pair](m.completed.Len())
	for p := range m.completed {
		out.Add(p)
	}
	return out
}
