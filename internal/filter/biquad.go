// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filter implements the IIR stages used to smooth accelerometer
// samples before tilt projection.
package filter

import (
	"fmt"
	"math"
)

// Stage is a single-channel recursive filter. Prime loads the steady state
// for a constant input.
type Stage interface {
	Process(input float64) float64
	Reset()
	Prime(v float64)
}

// nearNyquistRatio is the fraction of the sample rate above which a cutoff
// is accepted but reported as a warning.
const nearNyquistRatio = 0.4

// ConfigError reports filter parameters that would produce unstable or
// undefined coefficients. The stage keeps its previous coefficients.
type ConfigError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("filter config: %s=%g: %s", e.Field, e.Value, e.Reason)
}

// Coefficients of a biquad normalized so that a0 = 1.
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// passThrough is the identity filter used before the first Configure.
var passThrough = Coefficients{B0: 1}

// Biquad is a second-order IIR section in direct form I.
//
// The zero value passes input through unchanged.
type Biquad struct {
	c          Coefficients
	configured bool

	x1, x2 float64
	y1, y2 float64
}

// Configure computes low-pass coefficients with the bilinear-transform
// design:
//
//	ω = 2π·fc/fs, α = sin(ω)/(2Q)
//	b0 = b2 = (1−cos ω)/2, b1 = 1−cos ω
//	a0 = 1+α, a1 = −2cos ω, a2 = 1−α
//
// On a *ConfigError the previous coefficients are kept.
func (f *Biquad) Configure(cutoffHz, q, sampleRateHz float64) error {
	omega, alpha, err := design(cutoffHz, q, sampleRateHz)
	if err != nil {
		return err
	}
	cosw := math.Cos(omega)
	f.set(
		(1-cosw)/2, 1-cosw, (1-cosw)/2,
		1+alpha, -2*cosw, 1-alpha,
	)
	return nil
}

// ConfigureHighPass is the high-pass counterpart of Configure, used to
// isolate bumps from the gravity component.
func (f *Biquad) ConfigureHighPass(cutoffHz, q, sampleRateHz float64) error {
	omega, alpha, err := design(cutoffHz, q, sampleRateHz)
	if err != nil {
		return err
	}
	cosw := math.Cos(omega)
	f.set(
		(1+cosw)/2, -(1 + cosw), (1+cosw)/2,
		1+alpha, -2*cosw, 1-alpha,
	)
	return nil
}

func (f *Biquad) set(b0, b1, b2, a0, a1, a2 float64) {
	f.c = Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
	f.configured = true
}

// Process filters one sample. The output depends only on input and the
// history before this call; history is shifted afterwards.
func (f *Biquad) Process(input float64) float64 {
	c := f.coefficients()
	output := c.B0*input + c.B1*f.x1 + c.B2*f.x2 - c.A1*f.y1 - c.A2*f.y2

	f.x2 = f.x1
	f.x1 = input
	f.y2 = f.y1
	f.y1 = output

	return output
}

// Reset zeroes the history. Call it whenever the sample rate changes.
func (f *Biquad) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// Prime loads the history with the DC steady state for v, so the next
// outputs start at v·gain instead of ramping from zero.
func (f *Biquad) Prime(v float64) {
	y := v * f.DCGain()
	f.x1, f.x2 = v, v
	f.y1, f.y2 = y, y
}

// DCGain is the filter's response to a constant input.
func (f *Biquad) DCGain() float64 {
	c := f.coefficients()
	den := 1 + c.A1 + c.A2
	if den == 0 {
		return 0
	}
	return (c.B0 + c.B1 + c.B2) / den
}

func (f *Biquad) Coefficients() Coefficients {
	return f.coefficients()
}

func (f *Biquad) coefficients() Coefficients {
	if !f.configured {
		return passThrough
	}
	return f.c
}

// Validate checks filter parameters without touching any stage.
func Validate(cutoffHz, q, sampleRateHz float64) error {
	_, _, err := design(cutoffHz, q, sampleRateHz)
	return err
}

// NearNyquist reports a cutoff that is legal but close enough to the
// Nyquist limit to be worth a warning.
func NearNyquist(cutoffHz, sampleRateHz float64) bool {
	return cutoffHz > nearNyquistRatio*sampleRateHz
}

func design(cutoffHz, q, sampleRateHz float64) (omega, alpha float64, err error) {
	switch {
	case math.IsNaN(sampleRateHz) || math.IsInf(sampleRateHz, 0) || sampleRateHz <= 0:
		return 0, 0, &ConfigError{Field: "sample_rate_hz", Value: sampleRateHz, Reason: "must be a positive finite rate"}
	case math.IsNaN(cutoffHz) || cutoffHz <= 0:
		return 0, 0, &ConfigError{Field: "cutoff_hz", Value: cutoffHz, Reason: "must be positive"}
	case cutoffHz >= sampleRateHz/2:
		return 0, 0, &ConfigError{Field: "cutoff_hz", Value: cutoffHz, Reason: fmt.Sprintf("must be below Nyquist limit %g Hz", sampleRateHz/2)}
	case math.IsNaN(q) || math.IsInf(q, 0) || q <= 0:
		return 0, 0, &ConfigError{Field: "q", Value: q, Reason: "must be a positive finite resonance"}
	}
	omega = 2 * math.Pi * cutoffHz / sampleRateHz
	alpha = math.Sin(omega) / (2 * q)
	return omega, alpha, nil
}
