// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package evaluator declares the Evaluator Client boundary (spec.md §4.6):
// a pure function from (task, miner solution) to (reward, score, time,
// cost). The stateful per-task browser model that actually scores a
// solution is an external collaborator (spec.md §1); this package only
// defines the boundary and the over-cost bookkeeping around it.
package evaluator

import "context"

// Result is the outcome of scoring one miner solution against one task.
type Result struct {
	Reward           float64
	Score            float64
	ExecutionTimeSec float64
	CostUSD          float64
}

// Evaluator scores a miner's solution for one task.
type Evaluator interface {
	Evaluate(ctx context.Context, taskID string, prompt, url string, tests, solution []byte) (Result, error)
}

// OverCostTracker applies spec.md §4.6's over-cost rule: once a miner's
// cumulative over-cost count reaches MaxOverCostBeforeZero, the record that
// reached it and every later record for it are forced to reward=0 (enforced by the caller
// via roundmanager.Manager.ForceZeroForRemainder — OverCostTracker only
// decides *when* that threshold is crossed).
type OverCostTracker struct {
	MaxTaskCostUSD        float64
	MaxOverCostBeforeZero int

	overCostCounts map[int]int
}

// NewOverCostTracker returns a tracker for the given thresholds.
func NewOverCostTracker(maxTaskCostUSD float64, maxOverCostBeforeZero int) *OverCostTracker {
	return &OverCostTracker{
		MaxTaskCostUSD:        maxTaskCostUSD,
		MaxOverCostBeforeZero: maxOverCostBeforeZero,
		overCostCounts:        make(map[int]int),
	}
}

// Observe records one evaluation's cost for minerUID and reports whether
// this record is over cost, and whether this observation just brought the
// miner's over-cost count to MaxOverCostBeforeZero (i.e. the caller should now call
// ForceZeroForRemainder for this miner).
func (t *OverCostTracker) Observe(minerUID int, costUSD float64) (overCost bool, crossedThreshold bool) {
	overCost = costUSD >= t.MaxTaskCostUSD
	if !overCost {
		return false, false
	}
	t.overCostCounts[minerUID]++
	crossedThreshold = t.overCostCounts[minerUID] == t.MaxOverCostBeforeZero
	return true, crossedThreshold
}
