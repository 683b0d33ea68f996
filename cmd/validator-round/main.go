// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command validator-round is a thin wiring harness for the round engine.
// It is not a full CLI (out of scope per spec.md §1): it constructs every
// component from RoundConfig and runs one round against a hotkey, for use
// by whatever process-supervision and flag-parsing layer a deployment
// wraps around it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/chainclient"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/checkpoint"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/consensus"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/contentstore"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/controller"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/evaluator"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/metrics"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/reporting"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/rlog"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundclock"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundconfig"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/settlement"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/transport"
)

// Wiring is the set of external collaborators a real deployment must
// supply; the chain protocol, content store, transport and evaluator are
// all out of scope for this repository (spec.md §1).
type Wiring struct {
	Chain     chainclient.Client
	Store     contentstore.Store
	Wire      transport.Wire
	Evaluator evaluator.Evaluator
}

func run(ctx context.Context, hotkey string, validatorUID int, checkpointDir string, w Wiring) error {
	log := rlog.NewProduction()
	cfg := roundconfig.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validator-round: invalid configuration: %w", err)
	}

	ckptStore, err := checkpoint.New(checkpointDir)
	if err != nil {
		return fmt.Errorf("validator-round: checkpoint store: %w", err)
	}

	reg := prometheus.NewRegistry()
	mtr := metrics.New(reg)

	sink := reporting.New(ctx, log, 256, func(ev reporting.Event) {
		log.Info("round event", zap.String("kind", ev.Kind))
	})

	c := &controller.Controller{
		Clock: roundclock.Clock{
			BlocksPerEpoch:     cfg.BlocksPerEpoch,
			RoundSizeEpochs:    cfg.RoundSizeEpochs,
			StopEvalFraction:   cfg.StopEvalFraction,
			FetchFraction:      cfg.FetchCommitsFraction,
			SafetyBufferEpochs: cfg.SafetyBufferEpochs,
			SkipThreshold:      cfg.SkipIfStartedAfterFraction,
		},
		Config:      cfg,
		Chain:       w.Chain,
		Checkpoints: ckptStore,
		Transport:   transport.New(w.Wire, log),
		Evaluator:   w.Evaluator,
		Publisher:   &consensus.Publisher{Store: w.Store, Chain: w.Chain, Metrics: mtr, Log: log},
		Aggregator: &consensus.Aggregator{
			Store: w.Store, Chain: w.Chain, Metrics: mtr, Log: log,
			ExpectedSchemaVersion: cfg.ConsensusSchemaVersion,
			MinValidatorStake:     cfg.MinValidatorStakeForConsensus,
		},
		Settlement: &settlement.Settlement{Chain: w.Chain, Metrics: mtr, Log: log, BurnUID: cfg.BurnUID},
		Sink:       sink,
		Log:        log,
		Metrics:    mtr,
	}

	req := controller.RoundRequest{
		Hotkey:       hotkey,
		ValidatorUID: validatorUID,
	}

	_, err = c.Run(ctx, req)
	return err
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hotkey := os.Getenv("VALIDATOR_HOTKEY")
	checkpointDir := os.Getenv("CHECKPOINT_DIR")
	if checkpointDir == "" {
		checkpointDir = "./checkpoints"
	}

	if hotkey == "" {
		fmt.Fprintln(os.Stderr, "validator-round: VALIDATOR_HOTKEY must be set")
		os.Exit(1)
	}

	// A real deployment supplies live chain/store/transport/evaluator
	// implementations here; none are constructed by this repository.
	var w Wiring
	if err := run(ctx, hotkey, 0, checkpointDir, w); err != nil {
		fmt.Fprintln(os.Stderr, "validator-round:", err)
		os.Exit(1)
	}
}
