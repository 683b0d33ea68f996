// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"context"

	"go.uber.org/zap"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/chainclient"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/contentstore"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/metrics"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/rlog"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
)

// Skip-reason telemetry labels, spec.md §4.8.
const (
	ReasonWrongSchema    = "wrong_schema"
	ReasonWrongEpoch     = "wrong_epoch"
	ReasonLowStake       = "low_stake"
	ReasonFetchFailed    = "fetch_failed"
	ReasonIntegrityFailed = "integrity_failed"
)

// Aggregator computes the stake-weighted consensus score map from peer
// commitments, spec.md §4.8.
type Aggregator struct {
	Store   contentstore.Store
	Chain   chainclient.Client
	Metrics *metrics.Collectors
	Log     rlog.Logger

	ExpectedSchemaVersion int
	MinValidatorStake     float64
}

// Window is the round's epoch boundary, used to filter peer commitments to
// the ones published for this round.
type Window struct {
	EpochStart float64
	EpochEnd   float64
}

// Aggregate reads every commitment from chain, filters and fetches each
// surviving peer's snapshot, and computes
// aggregated_score[uid] = Σ(score·stake) / Σstake over snapshots containing
// uid. Absence of a uid in a snapshot contributes to neither sum — absence
// is not a zero vote. local is always included as a peer with selfStake;
// if local is the only surviving snapshot (or none survive), Aggregate
// falls back to local's own scores verbatim, per spec.md §4.8.
func (a *Aggregator) Aggregate(ctx context.Context, window Window, identities map[int]roundtypes.ChainIdentity, local roundtypes.ConsensusSnapshot, selfStake float64) map[int]float64 {
	type peer struct {
		stake  float64
		scores map[int]float64
	}

	peers := []peer{{stake: selfStake, scores: local.Scores}}

	commitments, err := a.Chain.ReadCommitments(ctx)
	if err != nil {
		a.skip(ReasonFetchFailed)
		if a.Log != nil {
			a.Log.Warn("consensus aggregate: read commitments failed", zap.Error(err))
		}
		commitments = nil
	}

	stakeByHotkey := make(map[string]float64, len(identities))
	for _, id := range identities {
		stakeByHotkey[id.Hotkey] = id.Stake
	}

	for hotkey, c := range commitments {
		if hotkey == local.ValidatorHotkey {
			continue
		}
		if int(c.V) != a.ExpectedSchemaVersion {
			a.skip(ReasonWrongSchema)
			continue
		}
		if c.SE != window.EpochStart || c.TE != window.EpochEnd {
			a.skip(ReasonWrongEpoch)
			continue
		}
		stake := stakeByHotkey[hotkey]
		if stake < a.MinValidatorStake {
			a.skip(ReasonLowStake)
			continue
		}

		data, err := a.Store.Fetch(ctx, c.C)
		if err != nil {
			a.skip(ReasonFetchFailed)
			continue
		}
		if !verifyIntegrity(ctx, a.Store, c.C, data) {
			a.skip(ReasonIntegrityFailed)
			continue
		}

		snap, err := ParseCanonicalSnapshot(data)
		if err != nil {
			a.skip(ReasonWrongSchema)
			continue
		}
		peers = append(peers, peer{stake: stake, scores: snap.Scores})
	}

	if len(peers) < 2 {
		// Only the local entry survived (or never had company): fall back to
		// local's own scores verbatim rather than weighting by a stake that
		// may be zero.
		return local.Scores
	}

	numer := make(map[int]float64)
	denom := make(map[int]float64)
	for _, p := range peers {
		for uid, score := range p.scores {
			numer[uid] += score * p.stake
			denom[uid] += p.stake
		}
	}

	out := make(map[int]float64, len(numer))
	for uid, n := range numer {
		if denom[uid] == 0 {
			continue
		}
		out[uid] = n / denom[uid]
	}
	return out
}

// verifyIntegrity re-derives the content id of data (via a redundant Add,
// which content-addressed stores define as idempotent for identical bytes)
// and checks it matches contentID, satisfying spec.md §4.8's integrity
// check without requiring the Store interface to expose a separate hash
// function.
func verifyIntegrity(ctx context.Context, store contentstore.Store, contentID string, data []byte) bool {
	derived, err := store.Add(ctx, data)
	if err != nil {
		return false
	}
	return derived == contentID
}

func (a *Aggregator) skip(reason string) {
	if a.Metrics != nil {
		a.Metrics.AggregateSkips.WithLabelValues(reason).Inc()
	}
}
