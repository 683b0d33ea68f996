// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dispatch implements the Task Dispatcher (spec.md §4.5): tasks
// are iterated in index order; miners within a task are evaluated
// concurrently, bounded by MaxParallel; already-completed (miner, task)
// pairs are skipped so a resumed round never re-dispatches.
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/evaluator"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/metrics"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/rlog"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundmanager"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/transport"
)

// Dispatcher iterates tasks against active miners, scoring each pair and
// recording the result in a Round Manager.
type Dispatcher struct {
	Transport   *transport.Transport
	Evaluator   evaluator.Evaluator
	Manager     *roundmanager.Manager
	OverCost    *evaluator.OverCostTracker
	Log         rlog.Logger
	Metrics     *metrics.Collectors
	MaxParallel int
	TaskTimeout time.Duration

	// CurrentBlock reports the chain's current block height, polled before
	// starting each task so DISPATCHING respects the absolute stop_eval
	// deadline.
	CurrentBlock func(ctx context.Context) (int64, error)

	// AfterTask is called once every active miner has been attempted for
	// one task index (or the task is skipped entirely), so the caller can
	// checkpoint. taskIndex is the index into the tasks slice passed to Run.
	AfterTask func(taskIndex int)

	// AfterMiner is called, if set, immediately after one miner's
	// evaluation is recorded, before the rest of the task's miners finish.
	// This is spec.md §4.5's finer-grained checkpoint: a crash mid-task
	// loses at most the miner currently in flight, not the whole task's
	// progress. Called from whichever goroutine recorded the result, so
	// the callback must be safe to call concurrently.
	AfterMiner func(taskIndex int, minerUID int)
}

// Run dispatches tasks in order against miners, until every task is
// attempted or stopEvalBlock is reached. Both an empty tasks slice and an
// empty miners slice short-circuit immediately with no RPCs, per the
// boundary behaviors of spec.md §4.5/§8.
func (d *Dispatcher) Run(ctx context.Context, tasks []roundtypes.TaskWithProject, miners []roundtypes.ActiveMiner, stopEvalBlock int64) error {
	if len(tasks) == 0 || len(miners) == 0 {
		return nil
	}

	for idx, task := range tasks {
		if d.CurrentBlock != nil {
			block, err := d.CurrentBlock(ctx)
			if err == nil && block >= stopEvalBlock {
				if d.Log != nil {
					d.Log.Info("dispatch: stop_eval deadline reached", zap.Int64("block", block), zap.Int("task_index", idx))
				}
				return nil
			}
		}

		d.runTask(ctx, idx, task, miners)

		if d.AfterTask != nil {
			d.AfterTask(idx)
		}
	}

	return nil
}

// runTask dispatches one task to every miner not already completed for it,
// bounded by MaxParallel concurrent evaluations.
func (d *Dispatcher) runTask(ctx context.Context, taskIndex int, task roundtypes.TaskWithProject, miners []roundtypes.ActiveMiner) {
	maxParallel := d.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	sem := make(chan struct{}, maxParallel)

	var wg sync.WaitGroup
	for _, miner := range miners {
		if d.Manager.IsCompleted(miner.UID, task.TaskID) {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(miner roundtypes.ActiveMiner) {
			defer wg.Done()
			defer func() { <-sem }()
			d.evaluateOne(ctx, taskIndex, task, miner)
		}(miner)
	}
	wg.Wait()
}

// evaluateOne dispatches task to one miner, scores the response, and
// records the result. A dispatch that returns no response (transport
// failure or timeout) is recorded as a zero-score attempt, per spec.md §4.4
// ("a missing response is treated as a miner failure").
func (d *Dispatcher) evaluateOne(ctx context.Context, taskIndex int, task roundtypes.TaskWithProject, miner roundtypes.ActiveMiner) {
	if d.Metrics != nil {
		d.Metrics.TasksDispatched.Inc()
	}

	resp, err := d.Transport.DispatchTask(ctx, miner.UID, task, d.TaskTimeout)
	if err != nil || resp == nil {
		d.record(taskIndex, miner.UID, task.TaskID, roundtypes.EvalRecord{Error: errString(err)})
		return
	}

	result, err := d.Evaluator.Evaluate(ctx, task.TaskID, task.Prompt, task.URL, task.Tests, resp.Solution)
	if err != nil {
		d.record(taskIndex, miner.UID, task.TaskID, roundtypes.EvalRecord{Error: err.Error()})
		return
	}

	rec := roundtypes.EvalRecord{
		MinerUID:         miner.UID,
		TaskID:           task.TaskID,
		Reward:           result.Reward,
		Score:            result.Score,
		ExecutionTimeSec: result.ExecutionTimeSec,
		CostUSD:          result.CostUSD,
	}

	if d.OverCost != nil {
		overCost, crossed := d.OverCost.Observe(miner.UID, result.CostUSD)
		rec.OverCost = overCost
		if crossed {
			d.Manager.ForceZeroForRemainder(miner.UID)
		}
	}

	d.record(taskIndex, miner.UID, task.TaskID, rec)
}

func (d *Dispatcher) record(taskIndex int, minerUID int, taskID string, rec roundtypes.EvalRecord) {
	rec.MinerUID = minerUID
	rec.TaskID = taskID
	if err := d.Manager.RecordEval(rec); err != nil && d.Log != nil {
		d.Log.Error("dispatch: record eval failed", zap.Int("miner_uid", minerUID), zap.String("task_id", taskID), zap.Error(err))
	}
	if rec.Error != "" && d.Metrics != nil {
		d.Metrics.EvalErrors.Inc()
	}
	if d.AfterMiner != nil {
		d.AfterMiner(taskIndex, minerUID)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
