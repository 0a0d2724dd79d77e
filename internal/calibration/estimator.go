// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration estimates the resting orientation of the cabinet by
// averaging samples taken while it is left alone.
package calibration

import (
	"fmt"
	"math"
)

// DefaultMinValidFraction is the share of requested samples that must be
// valid for a pass to produce an offset.
const DefaultMinValidFraction = 0.7

// Averageable is anything the estimator can sum and scale.
// motion.Sample and motion.Tilt both qualify.
type Averageable[T any] interface {
	Add(T) T
	Scale(float64) T
	IsFinite() bool
}

// InsufficientSamplesError is returned when too few samples were usable.
// The previous offset should be kept.
type InsufficientSamplesError struct {
	Requested int
	Valid     int
	Invalid   int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("calibration: only %d of %d samples valid (%d rejected)", e.Valid, e.Requested, e.Invalid)
}

// Estimator accumulates a running sum of valid samples.
// The zero value is ready after Begin.
type Estimator[T Averageable[T]] struct {
	sum       T
	valid     int
	invalid   int
	requested int

	// MinValidFraction overrides DefaultMinValidFraction when > 0.
	MinValidFraction float64
}

// Begin clears the accumulator for a pass of requested samples.
func (e *Estimator[T]) Begin(requested int) {
	var zero T
	e.sum = zero
	e.valid = 0
	e.invalid = 0
	e.requested = requested
}

// Accumulate adds v to the running sum. Non-finite values are counted as
// invalid and do not contribute. It reports whether v was accepted.
func (e *Estimator[T]) Accumulate(v T) bool {
	if !v.IsFinite() {
		e.invalid++
		return false
	}
	if e.valid == 0 {
		e.sum = v
	} else {
		e.sum = e.sum.Add(v)
	}
	e.valid++
	return true
}

// Reject counts a sample that could not be read at all.
func (e *Estimator[T]) Reject() {
	e.invalid++
}

// Finish returns the mean of the accepted samples, or an
// *InsufficientSamplesError when fewer than the minimum were valid.
func (e *Estimator[T]) Finish() (T, error) {
	var zero T
	if e.valid == 0 || e.valid < e.minValid() {
		return zero, &InsufficientSamplesError{Requested: e.requested, Valid: e.valid, Invalid: e.invalid}
	}
	return e.sum.Scale(1 / float64(e.valid)), nil
}

func (e *Estimator[T]) Valid() int { return e.valid }
func (e *Estimator[T]) Invalid() int { return e.invalid }
func (e *Estimator[T]) Requested() int { return e.requested }

func (e *Estimator[T]) minValid() int {
	frac := e.MinValidFraction
	if frac <= 0 {
		frac = DefaultMinValidFraction
	}
	return int(math.Ceil(frac * float64(e.requested)))
}
