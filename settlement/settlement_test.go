// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/chainclient/chainclienttest"
	"github.com/autoppia/autoppia-web-agents-subnet-sub000/retry"
)

func TestWeightsPicksWinnerTakeAll(t *testing.T) {
	s := &Settlement{BurnUID: 0}
	outcome := s.Weights(map[int]float64{59: 0.4, 107: 0.895})

	require.False(t, outcome.Burned)
	require.Equal(t, 107, outcome.WinnerUID)
	require.Equal(t, 1.0, outcome.Weights[107])
	require.Equal(t, 0.0, outcome.Weights[59])

	var sum float64
	for _, w := range outcome.Weights {
		sum += w
	}
	require.Equal(t, 1.0, sum)
}

func TestWeightsBurnsWhenNoPositiveWinner(t *testing.T) {
	s := &Settlement{BurnUID: 999}
	outcome := s.Weights(map[int]float64{1: 0, 2: -0.1})

	require.True(t, outcome.Burned)
	require.Equal(t, 1.0, outcome.Weights[999])
	require.Equal(t, 0.0, outcome.Weights[1])
	require.Equal(t, 0.0, outcome.Weights[2])
}

func TestWeightsBurnsWhenScoresEmpty(t *testing.T) {
	s := &Settlement{BurnUID: 999}
	outcome := s.Weights(map[int]float64{})
	require.True(t, outcome.Burned)
	require.Equal(t, 1.0, outcome.Weights[999])
}

func TestSubmitSucceeds(t *testing.T) {
	chain := chainclienttest.New()
	s := &Settlement{Chain: chain, Policy: retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}}

	outcome, err := s.Submit(context.Background(), Outcome{Weights: map[int]float64{107: 1.0, 59: 0.0}}, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.True(t, outcome.Submitted)
	require.Equal(t, map[int]float64{107: 1.0, 59: 0.0}, chain.Weights)
}

func TestSubmitFailsPastDeadline(t *testing.T) {
	chain := chainclienttest.New()
	chain.SetWeightsErr = errAlwaysFails
	// Far more attempts than fit in the 10ms deadline, so the deadline, not
	// the attempt count, ends the retries.
	s := &Settlement{Chain: chain, Policy: retry.Policy{MaxAttempts: 1000, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}}

	outcome, err := s.Submit(context.Background(), Outcome{Weights: map[int]float64{1: 1.0}}, time.Now().Add(10*time.Millisecond))
	require.Error(t, err)
	require.False(t, outcome.Submitted)
}

type sentinelError struct{ msg string }

func (e sentinelError) Error() string { return e.msg }

var errAlwaysFails = sentinelError{"settlement: simulated chain failure"}
