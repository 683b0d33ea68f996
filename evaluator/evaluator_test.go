// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package evaluator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverCostTrackerCrossesThresholdOnce(t *testing.T) {
	tr := NewOverCostTracker(0.5, 3)

	over, crossed := tr.Observe(1, 0.4)
	require.False(t, over)
	require.False(t, crossed)

	for i := 0; i < 2; i++ {
		over, crossed = tr.Observe(1, 0.6)
		require.True(t, over)
		require.False(t, crossed)
	}

	over, crossed = tr.Observe(1, 0.6)
	require.True(t, over)
	require.True(t, crossed, "third over-cost observation should cross the threshold")

	// A fourth over-cost observation no longer re-crosses.
	over, crossed = tr.Observe(1, 0.6)
	require.True(t, over)
	require.False(t, crossed)
}

func TestOverCostTrackerPerMiner(t *testing.T) {
	tr := NewOverCostTracker(0.5, 1)

	_, crossed1 := tr.Observe(1, 0.9)
	require.True(t, crossed1)

	_, crossed2 := tr.Observe(2, 0.9)
	require.True(t, crossed2, "threshold tracking must be independent per miner")
}
