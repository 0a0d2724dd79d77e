// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config describes one blocking calibration pass.
type Config struct {
	Samples  int
	Interval time.Duration // wait between reads, 0 reads back to back
	Timeout  time.Duration // 0 means no bound beyond ctx

	MinValidFraction float64
}

// Result of a completed pass.
type Result[T any] struct {
	Offset    T
	Requested int
	Valid     int
	Invalid   int
	Duration  time.Duration
}

// Run reads cfg.Samples values from next and returns their mean. A read
// error counts as an invalid sample. When the timeout or a ctx deadline
// expires the pass stops early and is judged on what was collected so far.
// A cancelled ctx always fails the pass.
func Run[T Averageable[T]](ctx context.Context, cfg Config, next func() (T, error)) (Result[T], error) {
	var res Result[T]
	if cfg.Samples <= 0 {
		return res, fmt.Errorf("calibration: sample count must be positive, got %d", cfg.Samples)
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	est := Estimator[T]{MinValidFraction: cfg.MinValidFraction}
	est.Begin(cfg.Samples)
	start := time.Now()

	var ticker *time.Ticker
	if cfg.Interval > 0 {
		ticker = time.NewTicker(cfg.Interval)
		defer ticker.Stop()
	}

	var stopErr error
loop:
	for i := 0; i < cfg.Samples; i++ {
		if i > 0 && ticker != nil {
			select {
			case <-ctx.Done():
				stopErr = ctx.Err()
				break loop
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		v, err := next()
		if err != nil {
			est.Reject()
			continue
		}
		est.Accumulate(v)
	}
	// samples never taken are invalid
	for i := est.Valid() + est.Invalid(); i < cfg.Samples; i++ {
		est.Reject()
	}

	res.Requested = cfg.Samples
	res.Valid = est.Valid()
	res.Invalid = est.Invalid()
	res.Duration = time.Since(start)

	mean, err := est.Finish()
	switch {
	case err != nil && errors.Is(stopErr, context.Canceled):
		return res, fmt.Errorf("%w: %w", err, stopErr)
	case err != nil:
		return res, err
	case errors.Is(stopErr, context.Canceled):
		// a cancelled pass is never applied, even with enough samples
		return res, fmt.Errorf("calibration: cancelled after %d of %d samples: %w", res.Valid, res.Requested, stopErr)
	}
	res.Offset = mean
	return res, nil
}
