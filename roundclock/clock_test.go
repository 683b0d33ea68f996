// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package roundclock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testClock() Clock {
	return Clock{
		BlocksPerEpoch:     100,
		RoundSizeEpochs:    10,
		StopEvalFraction:   0.7,
		FetchFraction:      0.85,
		SafetyBufferEpochs: 1,
		SkipThreshold:      0.3,
	}
}

func TestRoundNumberAndBoundaries(t *testing.T) {
	c := testClock()

	// Epoch 0..10 (blocks 0..1000) is round 0; epoch 10..20 is round 1.
	require.Equal(t, int64(0), c.RoundNumber(0))
	require.Equal(t, int64(0), c.RoundNumber(999))
	require.Equal(t, int64(1), c.RoundNumber(1000))

	require.Equal(t, float64(0), c.RoundStartEpoch(500))
	require.Equal(t, float64(10), c.RoundEndEpoch(500))
	require.Equal(t, int64(0), c.RoundStartBlock(500))
	require.Equal(t, int64(1000), c.RoundStartBlock(1500))
}

func TestPhaseCutoffsAreAbsoluteFractions(t *testing.T) {
	c := testClock()
	start := int64(1000)

	// 10 round-epochs * 0.7 stop fraction * 100 blocks/epoch = 700 blocks.
	require.Equal(t, start+700, c.StopEvalBlock(start))
	// 10 * 0.85 * 100 = 850 blocks.
	require.Equal(t, start+850, c.FetchBlock(start))
	// target = round_size + safety_buffer = 11 epochs * 100 = 1100 blocks.
	require.Equal(t, start+1100, c.TargetBlock(start))
}

func TestShouldSkipLateStart(t *testing.T) {
	c := testClock()
	start := int64(1000)

	// Exactly at 30% elapsed: 300/1000 blocks -> must skip (>= per spec).
	require.True(t, c.ShouldSkipLateStart(start+300, start))
	// Just under threshold.
	require.False(t, c.ShouldSkipLateStart(start+299, start))
	// At round start, never skip.
	require.False(t, c.ShouldSkipLateStart(start, start))
}
