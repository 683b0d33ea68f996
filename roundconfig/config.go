// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package roundconfig builds the validator round engine's RoundConfig.
//
// Unlike the teacher's config package (config/runtime.go), which keeps a
// process-wide mutable Parameters singleton behind a package-level RWMutex,
// RoundConfig is an explicit value: Load returns one, Validate checks it at
// construction time, and nothing here is a global. That split is a
// deliberate departure from the teacher, per spec.md §9's design note
// rejecting "global configuration imported at module load".
package roundconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// RoundConfig holds every recognized, environment-overridable setting from
// spec.md §6.
type RoundConfig struct {
	RoundSizeEpochs           float64
	StopEvalFraction          float64
	FetchCommitsFraction      float64
	SafetyBufferEpochs        float64
	SkipIfStartedAfterFraction float64
	PreGeneratedTasks         int
	TaskTimeoutSec            int
	HandshakeTimeoutSec       int
	MaxParallelEvaluations    int
	MinValidatorStakeForConsensus float64
	ConsensusSchemaVersion    int
	ConsensusStoreEndpoint    string
	ChainNetwork              string
	BurnUID                   int
	BlocksPerEpoch            int64
	SecondsPerBlock           float64
	MaxTaskCostUSD            float64
	MaxOverCostBeforeZero     int
	TestingMode               bool
}

// Defaults returns the built-in default configuration.
func Defaults() RoundConfig {
	return RoundConfig{
		RoundSizeEpochs:               10,
		StopEvalFraction:              0.70,
		FetchCommitsFraction:          0.85,
		SafetyBufferEpochs:            1,
		SkipIfStartedAfterFraction:    0.30,
		PreGeneratedTasks:             20,
		TaskTimeoutSec:                120,
		HandshakeTimeoutSec:           15,
		MaxParallelEvaluations:        8,
		MinValidatorStakeForConsensus: 10_000,
		ConsensusSchemaVersion:        1,
		ConsensusStoreEndpoint:        "",
		ChainNetwork:                  "finney",
		BurnUID:                       0,
		BlocksPerEpoch:                360,
		SecondsPerBlock:               12,
		MaxTaskCostUSD:                0.50,
		MaxOverCostBeforeZero:         3,
		TestingMode:                   false,
	}
}

// envOverride applies f(value) to cfg's field when the environment variable
// key is set and f parses it successfully; parse failures are ignored so a
// malformed override never prevents startup (FatalConfig is reserved for
// conditions like an unreadable wallet, per spec.md §7).
func envOverride(key string, f func(string) error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	_ = f(v)
}

// Load returns the default RoundConfig with any recognized environment
// variables applied on top. Environment variable names are the uppercased
// config key (e.g. ROUND_SIZE_EPOCHS, MIN_VALIDATOR_STAKE_FOR_CONSENSUS).
func Load() RoundConfig {
	cfg := Defaults()

	envOverride("ROUND_SIZE_EPOCHS", floatSetter(&cfg.RoundSizeEpochs))
	envOverride("STOP_EVAL_FRACTION", floatSetter(&cfg.StopEvalFraction))
	envOverride("FETCH_COMMITS_FRACTION", floatSetter(&cfg.FetchCommitsFraction))
	envOverride("SAFETY_BUFFER_EPOCHS", floatSetter(&cfg.SafetyBufferEpochs))
	envOverride("SKIP_IF_STARTED_AFTER_FRACTION", floatSetter(&cfg.SkipIfStartedAfterFraction))
	envOverride("PRE_GENERATED_TASKS", intSetter(&cfg.PreGeneratedTasks))
	envOverride("TASK_TIMEOUT_SEC", intSetter(&cfg.TaskTimeoutSec))
	envOverride("HANDSHAKE_TIMEOUT_SEC", intSetter(&cfg.HandshakeTimeoutSec))
	envOverride("MAX_PARALLEL_EVALUATIONS", intSetter(&cfg.MaxParallelEvaluations))
	envOverride("MIN_VALIDATOR_STAKE_FOR_CONSENSUS", floatSetter(&cfg.MinValidatorStakeForConsensus))
	envOverride("CONSENSUS_SCHEMA_VERSION", intSetter(&cfg.ConsensusSchemaVersion))
	envOverride("CONSENSUS_STORE_ENDPOINT", stringSetter(&cfg.ConsensusStoreEndpoint))
	envOverride("CHAIN_NETWORK", stringSetter(&cfg.ChainNetwork))
	envOverride("BURN_UID", intSetter(&cfg.BurnUID))
	envOverride("BLOCKS_PER_EPOCH", int64Setter(&cfg.BlocksPerEpoch))
	envOverride("SECONDS_PER_BLOCK", floatSetter(&cfg.SecondsPerBlock))
	envOverride("MAX_TASK_COST_USD", floatSetter(&cfg.MaxTaskCostUSD))
	envOverride("MAX_OVER_COST_BEFORE_ZERO", intSetter(&cfg.MaxOverCostBeforeZero))
	envOverride("TESTING_MODE", boolSetter(&cfg.TestingMode))

	if cfg.TestingMode {
		// Relaxes stake and late-start thresholds, per spec.md §6.
		cfg.MinValidatorStakeForConsensus = 0
		cfg.SkipIfStartedAfterFraction = 1.0
	}

	return cfg
}

func floatSetter(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func int64Setter(dst *int64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func stringSetter(dst *string) func(string) error {
	return func(s string) error {
		*dst = s
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

// Validate checks that cfg is internally consistent. A FatalConfig-class
// error halts startup before the round loop begins, per spec.md §7.
func (cfg RoundConfig) Validate() error {
	if cfg.RoundSizeEpochs <= 0 {
		return fmt.Errorf("round_size_epochs must be positive, got %v", cfg.RoundSizeEpochs)
	}
	if cfg.StopEvalFraction <= 0 || cfg.StopEvalFraction > 1 {
		return fmt.Errorf("stop_eval_fraction must be in (0,1], got %v", cfg.StopEvalFraction)
	}
	if cfg.FetchCommitsFraction <= cfg.StopEvalFraction || cfg.FetchCommitsFraction > 1 {
		return fmt.Errorf("fetch_commits_fraction must be in (stop_eval_fraction,1], got %v", cfg.FetchCommitsFraction)
	}
	if cfg.BlocksPerEpoch <= 0 {
		return fmt.Errorf("blocks_per_epoch must be positive, got %v", cfg.BlocksPerEpoch)
	}
	if cfg.PreGeneratedTasks < 0 {
		return fmt.Errorf("pre_generated_tasks must be non-negative, got %v", cfg.PreGeneratedTasks)
	}
	if cfg.MaxParallelEvaluations <= 0 {
		return fmt.Errorf("max_parallel_evaluations must be positive, got %v", cfg.MaxParallelEvaluations)
	}
	if cfg.MaxOverCostBeforeZero <= 0 {
		return fmt.Errorf("max_over_cost_before_zero must be positive, got %v", cfg.MaxOverCostBeforeZero)
	}
	return nil
}

// TaskTimeout returns TaskTimeoutSec as a time.Duration.
func (cfg RoundConfig) TaskTimeout() time.Duration {
	return time.Duration(cfg.TaskTimeoutSec) * time.Second
}

// HandshakeTimeout returns HandshakeTimeoutSec as a time.Duration.
func (cfg RoundConfig) HandshakeTimeout() time.Duration {
	return time.Duration(cfg.HandshakeTimeoutSec) * time.Second
}
