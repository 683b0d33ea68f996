// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package retry implements the bounded exponential backoff used for
// TransientRPCFailure handling (spec.md §7): miner, chain and content-store
// calls are retried within the current phase's deadline, never past it.
package retry

import (
	"context"
	"time"
)

// Policy configures a bounded exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is a reasonable bounded backoff for transport-level
// failures: a handful of attempts, capped well under typical phase
// deadlines.
var DefaultPolicy = Policy{
	MaxAttempts: 4,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// Do calls fn up to p.MaxAttempts times, backing off exponentially between
// attempts, stopping early if ctx is done. It returns the last error, or
// nil on the first success.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := p.BaseDelay

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}
