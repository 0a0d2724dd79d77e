// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package filter

import "math"

// Mode selects which band a first-order stage passes.
type Mode int

const (
	LowPass Mode = iota
	HighPass
)

// Exponential is a first-order exponential smoother:
//
//	RC = 1/(2π·fc), α = dt/(RC+dt)
//	low:  y += α(x − y)
//	high: y  = x − low
type Exponential struct {
	mode  Mode
	alpha float64

	low    float64
	primed bool
}

// NewExponential returns a configured first-order stage.
func NewExponential(mode Mode, cutoffHz, sampleRateHz float64) (*Exponential, error) {
	e := &Exponential{mode: mode}
	if err := e.Configure(cutoffHz, sampleRateHz); err != nil {
		return nil, err
	}
	return e, nil
}

// Configure sets the smoothing factor. Cutoff must be below Nyquist.
func (e *Exponential) Configure(cutoffHz, sampleRateHz float64) error {
	// Q does not apply to a first-order stage; 1 always passes validation.
	if err := Validate(cutoffHz, 1, sampleRateHz); err != nil {
		return err
	}
	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / sampleRateHz
	e.alpha = dt / (rc + dt)
	return nil
}

// Alpha returns the smoothing factor in (0, 1).
func (e *Exponential) Alpha() float64 {
	return e.alpha
}

func (e *Exponential) Process(input float64) float64 {
	if !e.primed {
		// the first sample seeds the low-pass state
		e.low = input
		e.primed = true
	} else {
		e.low += e.alpha * (input - e.low)
	}
	if e.mode == HighPass {
		return input - e.low
	}
	return e.low
}

// Prime seeds the state as if v had been applied forever: the low-pass
// output is v and the high-pass output is zero.
func (e *Exponential) Prime(v float64) {
	e.low = v
	e.primed = true
}

func (e *Exponential) Reset() {
	e.low = 0
	e.primed = false
}
