// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics adapts the teacher's thin prometheus.Registerer wrapper
// into the round engine's specific collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors holds every Prometheus collector the round engine registers.
type Collectors struct {
	Registry prometheus.Registerer

	HandshakeResponses prometheus.Counter
	TasksDispatched     prometheus.Counter
	EvalErrors          prometheus.Counter
	ConsensusPublishOK  prometheus.Counter
	ConsensusPublishErr prometheus.Counter
	AggregateSkips      *prometheus.CounterVec
	WeightsSet          prometheus.Counter
	RoundsSettled       prometheus.Counter
	RoundsFailed        prometheus.Counter
}

// New creates and registers the round engine's collectors against reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Registry: reg,
		HandshakeResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validator_round_handshake_responses_total",
			Help: "Number of miners that responded to the round's handshake.",
		}),
		TasksDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validator_round_tasks_dispatched_total",
			Help: "Number of (miner, task) pairs dispatched.",
		}),
		EvalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validator_round_eval_errors_total",
			Help: "Number of evaluations that returned an error.",
		}),
		ConsensusPublishOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validator_round_consensus_publish_ok_total",
			Help: "Number of rounds whose consensus snapshot was published successfully.",
		}),
		ConsensusPublishErr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validator_round_consensus_publish_err_total",
			Help: "Number of rounds whose consensus snapshot failed to publish.",
		}),
		AggregateSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "validator_round_aggregate_skips_total",
			Help: "Peer commitments dropped during aggregation, by reason.",
		}, []string{"reason"}),
		WeightsSet: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validator_round_weights_set_total",
			Help: "Number of rounds that successfully submitted weights.",
		}),
		RoundsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validator_round_settled_total",
			Help: "Number of rounds that reached SETTLING and completed.",
		}),
		RoundsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validator_round_failed_total",
			Help: "Number of rounds recorded as failed (weight submission never succeeded).",
		}),
	}

	for _, collector := range []prometheus.Collector{
		c.HandshakeResponses, c.TasksDispatched, c.EvalErrors,
		c.ConsensusPublishOK, c.ConsensusPublishErr, c.AggregateSkips,
		c.WeightsSet, c.RoundsSettled, c.RoundsFailed,
	} {
		_ = reg.Register(collector)
	}

	return c
}
