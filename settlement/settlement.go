// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package settlement computes winner-take-all weights from the aggregated
// consensus scores and submits them on chain, spec.md §4.9.
package settlement

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/chainclient"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/metrics"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/retry"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/rlog"
)

// Settlement submits the round's final weight vector, falling back to a
// burn weight when no miner has a positive aggregated score.
type Settlement struct {
	Chain   chainclient.Client
	Metrics *metrics.Collectors
	Log     rlog.Logger

	BurnUID int
	Policy  retry.Policy
}

// Outcome is what Weights decided and whether Submit got it on chain.
type Outcome struct {
	Weights   map[int]float64
	WinnerUID int
	Burned    bool
	Submitted bool
}

// Winner picks the argmax of scores, tie-broken by the lowest uid,
// mirroring roundmanager.Manager.Winner's semantics over the aggregated
// score map instead of the local reward accumulators.
func Winner(scores map[int]float64) (uid int, ok bool) {
	uids := make([]int, 0, len(scores))
	for u := range scores {
		uids = append(uids, u)
	}
	sort.Ints(uids)

	bestUID := 0
	bestScore := 0.0
	found := false
	for _, u := range uids {
		s := scores[u]
		if s <= 0 {
			continue
		}
		if !found || s > bestScore {
			bestUID = u
			bestScore = s
			found = true
		}
	}
	return bestUID, found
}

// Weights builds the winner-take-all weight map from scores: 1.0 to the
// winner and 0.0 to every other known uid, or a burn weight (1.0 to
// BurnUID) when no positive winner exists, spec.md §4.9 steps 1-3.
func (s *Settlement) Weights(scores map[int]float64) Outcome {
	out := make(map[int]float64, len(scores))
	for uid := range scores {
		out[uid] = 0
	}

	winnerUID, ok := Winner(scores)
	if !ok {
		out[s.BurnUID] = 1.0
		return Outcome{Weights: out, Burned: true}
	}

	out[winnerUID] = 1.0
	return Outcome{Weights: out, WinnerUID: winnerUID}
}

// Submit submits outcome.Weights on chain, retrying per s.Policy
// (retry.DefaultPolicy when zero) with every attempt bounded by deadline.
// It returns the outcome with Submitted set, and an error once the policy's
// attempts are exhausted or the deadline passes without a successful
// submission — the caller records the round as failed and preserves the
// checkpoint in that case, per spec.md §4.9.
func (s *Settlement) Submit(ctx context.Context, outcome Outcome, deadline time.Time) (Outcome, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	policy := s.Policy
	if policy == (retry.Policy{}) {
		policy = retry.DefaultPolicy
	}

	err := retry.Do(ctx, policy, func(c context.Context) error {
		return s.Chain.SetWeights(c, outcome.Weights)
	})
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.RoundsFailed.Inc()
		}
		if s.Log != nil {
			s.Log.Error("settlement: weight submission failed before deadline", zap.Error(err))
		}
		return outcome, err
	}

	outcome.Submitted = true
	if s.Metrics != nil {
		s.Metrics.WeightsSet.Inc()
		s.Metrics.RoundsSettled.Inc()
	}
	return outcome, nil
}
