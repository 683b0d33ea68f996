// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package roundclock maps block height to epoch, round boundary and phase
// deadlines. It holds no state beyond the chain constants it was
// constructed with; every method is a pure function of its arguments.
package roundclock

import "math"

// Clock derives round boundaries from block height using the chain's fixed
// block/epoch constants and the round's configured size and phase
// fractions.
type Clock struct {
	BlocksPerEpoch   int64
	RoundSizeEpochs  float64
	StopEvalFraction float64
	FetchFraction    float64
	SafetyBufferEpochs float64
	SkipThreshold    float64
}

// Epoch returns the fractional epoch at block b.
func (c Clock) Epoch(b int64) float64 {
	return float64(b) / float64(c.BlocksPerEpoch)
}

// RoundNumber returns floor(epoch / round_size_epochs) for block b.
func (c Clock) RoundNumber(b int64) int64 {
	return int64(math.Floor(c.Epoch(b) / c.RoundSizeEpochs))
}

// RoundStartEpoch returns round_number * round_size_epochs for block b.
func (c Clock) RoundStartEpoch(b int64) float64 {
	return float64(c.RoundNumber(b)) * c.RoundSizeEpochs
}

// RoundEndEpoch returns the round's target epoch for block b.
func (c Clock) RoundEndEpoch(b int64) float64 {
	return c.RoundStartEpoch(b) + c.RoundSizeEpochs
}

// RoundStartBlock returns the block at which the round containing b began.
func (c Clock) RoundStartBlock(b int64) int64 {
	return int64(math.Floor(c.RoundStartEpoch(b) * float64(c.BlocksPerEpoch)))
}

// phaseBlock returns start_block + floor(round_size_epochs * fraction *
// blocks_per_epoch), the absolute-fraction phase cutoff described in
// spec.md §4.1.
func (c Clock) phaseBlock(startBlock int64, fraction float64) int64 {
	return startBlock + int64(math.Floor(c.RoundSizeEpochs*fraction*float64(c.BlocksPerEpoch)))
}

// StopEvalBlock returns the absolute block at which task dispatch must stop.
func (c Clock) StopEvalBlock(startBlock int64) int64 {
	return c.phaseBlock(startBlock, c.StopEvalFraction)
}

// FetchBlock returns the absolute block at which consensus aggregation
// begins.
func (c Clock) FetchBlock(startBlock int64) int64 {
	return c.phaseBlock(startBlock, c.FetchFraction)
}

// TargetBlock returns the absolute block at which the round's target_epoch
// (including the safety buffer) is reached.
func (c Clock) TargetBlock(startBlock int64) int64 {
	targetEpochOffset := c.RoundSizeEpochs + c.SafetyBufferEpochs
	return startBlock + int64(math.Floor(targetEpochOffset*float64(c.BlocksPerEpoch)))
}

// ShouldSkipLateStart reports whether a round starting "now" (current
// block cb, with the round itself starting at startBlock) has already
// elapsed more than SkipThreshold of its duration and should be skipped in
// favor of the next boundary. Strict inequality is "greater than or equal"
// per spec.md §4.1.
func (c Clock) ShouldSkipLateStart(cb, startBlock int64) bool {
	roundBlocks := c.phaseBlock(startBlock, 1.0) - startBlock
	if roundBlocks <= 0 {
		return false
	}
	elapsed := cb - startBlock
	return float64(elapsed)/float64(roundBlocks) >= c.SkipThreshold
}
