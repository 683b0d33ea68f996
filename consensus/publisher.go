// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"context"

	"go.uber.org/zap"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/chainclient"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/contentstore"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/metrics"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/retry"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/rlog"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
)

// Publisher builds and publishes this validator's ConsensusSnapshot,
// spec.md §4.7.
type Publisher struct {
	Store   contentstore.Store
	Chain   chainclient.Client
	Metrics *metrics.Collectors
	Log     rlog.Logger
	Policy  retry.Policy
}

// PublishResult is what Publish produced, whether or not it reached the
// chain.
type PublishResult struct {
	ContentID string
	Published bool
}

// Publish canonically serializes snap, uploads it to the content store,
// and commits the resulting content id on chain. Neither step blocks the
// round: a failure at either stage is logged and counted, and Publish
// returns Published=false so the caller falls back to local-only scores,
// per spec.md §4.7 ("never block the round on consensus publication
// failure").
func (p *Publisher) Publish(ctx context.Context, hotkey string, snap roundtypes.ConsensusSnapshot) PublishResult {
	data := CanonicalSnapshotBytes(snap)
	policy := p.policy()

	var cid string
	err := retry.Do(ctx, policy, func(c context.Context) error {
		id, err := p.Store.Add(c, data)
		if err != nil {
			return err
		}
		cid = id
		return nil
	})
	if err != nil {
		p.fail("content-store upload failed after retries", err)
		return PublishResult{}
	}

	commitment := chainclient.Commitment{
		V:  uint(snap.SchemaVersion),
		R:  uint64(snap.RoundNumber),
		SE: snap.EpochStart,
		TE: snap.EpochEnd,
		C:  cid,
	}

	commitErr := retry.Do(ctx, policy, func(c context.Context) error {
		return p.Chain.Commit(c, hotkey, commitment)
	})
	if commitErr != nil {
		if reErr := p.Chain.Reconnect(ctx); reErr != nil {
			p.fail("chain reconnect after commit failure also failed", reErr)
			return PublishResult{ContentID: cid}
		}
		if err := retry.Do(ctx, policy, func(c context.Context) error {
			return p.Chain.Commit(c, hotkey, commitment)
		}); err != nil {
			p.fail("chain commit failed after reconnect", err)
			return PublishResult{ContentID: cid}
		}
	}

	if p.Metrics != nil {
		p.Metrics.ConsensusPublishOK.Inc()
	}
	return PublishResult{ContentID: cid, Published: true}
}

func (p *Publisher) policy() retry.Policy {
	if p.Policy == (retry.Policy{}) {
		return retry.DefaultPolicy
	}
	return p.Policy
}

func (p *Publisher) fail(msg string, err error) {
	if p.Metrics != nil {
		p.Metrics.ConsensusPublishErr.Inc()
	}
	if p.Log != nil {
		p.Log.Warn("consensus publish: "+msg, zap.Error(err))
	}
}
