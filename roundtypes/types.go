// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package roundtypes defines the data model shared by every component of the
// validator round engine: tagged structs instead of ad hoc maps, validated at
// every external boundary.
package roundtypes

import "time"

// ChainIdentity is a validator's identity and stake as observed from the
// chain when it was read (at round entry, and again for aggregation).
// Immutable once read.
type ChainIdentity struct {
	UID          int
	Hotkey       string
	Coldkey      string
	Stake        float64
	LastSeenBlock int64
}

// RoundIdentity names a single round instance for one validator.
type RoundIdentity struct {
	RoundNumber      int64
	ValidatorRoundID string
	ValidatorUID     int
	ValidatorHotkey  string
	StartBlock       int64
	StartEpoch       float64
	TargetEpoch      float64
}

// TaskWithProject is one pre-generated task assigned to this round.
type TaskWithProject struct {
	ProjectID string
	TaskID    string
	Prompt    string
	URL       string
	Tests     []byte
}

// ActiveMiner is a miner that responded to the round's handshake.
type ActiveMiner struct {
	UID              int
	Hotkey           string
	Coldkey          string
	AgentName        string
	AgentImageURL    string
	AgentRepoURL     string
	HandshakePayload []byte
}

// EvalRecord is one scored (miner, task) attempt. Append-only within a
// round; at most one EvalRecord may exist per (MinerUID, TaskID) pair.
type EvalRecord struct {
	MinerUID         int
	TaskID           string
	Reward           float64
	Score            float64
	ExecutionTimeSec float64
	CostUSD          float64
	OverCost         bool
	Retries          int
	Error            string
	WallTimestamp    int64
}

// Pair identifies one (miner, task) attempt, the element type of the
// completed_pairs set.
type Pair struct {
	MinerUID int
	TaskID   string
}

// ConsensusSnapshot is the per-validator view published to the
// content-addressed store for stake-weighted aggregation.
type ConsensusSnapshot struct {
	SchemaVersion    int             `json:"schema_version"`
	RoundNumber      int64           `json:"round_number"`
	ValidatorUID     int             `json:"validator_uid"`
	ValidatorHotkey  string          `json:"validator_hotkey"`
	EpochStart       float64         `json:"epoch_start"`
	EpochEnd         float64         `json:"epoch_end"`
	SeasonNumber     int             `json:"season_number"`
	TasksCompleted   int             `json:"tasks_completed"`
	Scores           map[int]float64 `json:"scores"`
}

// PeerCommitment is a validator's on-chain pointer to its published
// ConsensusSnapshot.
type PeerCommitment struct {
	Hotkey        string
	ContentID     string
	EpochStart    float64
	EpochEnd      float64
	RoundNumber   int64
	SchemaVersion int
}

// Phase is one monotonic round-progress flag.
type Phase string

const (
	PhaseHandshakeReported   Phase = "handshake_reported"
	PhaseTasksRegistered     Phase = "tasks_registered"
	PhaseConsensusPublished  Phase = "consensus_published"
	PhaseConsensusAggregated Phase = "consensus_aggregated"
	PhaseWeightsSet          Phase = "weights_set"
	PhaseFinishReported      Phase = "finish_reported"
)

// RoundCheckpoint is the durable, resumable state of one in-progress round.
type RoundCheckpoint struct {
	Identity                RoundIdentity
	AllTasks                []TaskWithProject
	ActiveMiners            []ActiveMiner
	HandshakePayloads       map[int][]byte
	AgentRunsStartedIDs     Set[string]
	CompletedPairs          Set[Pair]
	EvalRecords             []EvalRecord
	RewardAccumulators      map[int]*RewardAccumulator
	PhasesDone              Set[Phase]
	ConsensusPublishedCID   string
	AggregatedScores        map[int]float64
	SavedAt                 time.Time
}

// RewardAccumulator holds the ordered per-miner history of rewards, scores
// and execution times observed within a round.
type RewardAccumulator struct {
	Rewards []float64
	Scores  []float64
	Times   []float64
}

// Average returns the arithmetic mean of Rewards. ok is false when the
// accumulator is empty (average is undefined).
func (a *RewardAccumulator) Average() (avg float64, ok bool) {
	if a == nil || len(a.Rewards) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range a.Rewards {
		sum += r
	}
	return sum / float64(len(a.Rewards)), true
}

// NewRoundCheckpoint builds an empty checkpoint for a freshly started round.
func NewRoundCheckpoint(identity RoundIdentity, tasks []TaskWithProject) *RoundCheckpoint {
	return &RoundCheckpoint{
		Identity:            identity,
		AllTasks:            tasks,
		HandshakePayloads:   make(map[int][]byte),
		AgentRunsStartedIDs: NewSet[string](0),
		CompletedPairs:      NewSet[Pair](0),
		RewardAccumulators:  make(map[int]*RewardAccumulator),
		PhasesDone:          NewSet[Phase](0),
		AggregatedScores:    nil,
	}
}
