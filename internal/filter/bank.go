// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package filter

import (
	"fmt"

	"github.com/relabs-tech/pinball_tilt/internal/motion"
)

// Design selects the stage a Bank builds for each axis.
type Design int

const (
	DesignBiquad Design = iota
	DesignExponential
)

// ParseDesign accepts "biquad" and "exponential". Empty means biquad.
func ParseDesign(s string) (Design, error) {
	switch s {
	case "", "biquad":
		return DesignBiquad, nil
	case "exponential":
		return DesignExponential, nil
	}
	return 0, fmt.Errorf("filter: unknown design %q (want biquad or exponential)", s)
}

func (d Design) String() string {
	if d == DesignExponential {
		return "exponential"
	}
	return "biquad"
}

// Bank filters the three accelerometer axes with identical, independent
// stages. The zero value is a biquad low-pass bank that passes samples
// through until it is configured.
type Bank struct {
	design Design
	band   Mode
	stages [3]Stage
}

func NewBank(design Design, band Mode) *Bank {
	return &Bank{design: design, band: band}
}

func (b *Bank) Design() Design { return b.design }

func (b *Bank) Band() Mode { return b.band }

// ConfigureAll applies the same design to all three axes. Parameters are
// validated once, so either every axis changes or none does. Q is ignored
// by first-order banks.
func (b *Bank) ConfigureAll(cutoffHz, q, sampleRateHz float64) error {
	if b.design == DesignExponential {
		q = 1
	}
	if err := Validate(cutoffHz, q, sampleRateHz); err != nil {
		return err
	}
	if b.stages[0] == nil {
		for i := range b.stages {
			b.stages[i] = b.newStage()
		}
	}
	for _, s := range b.stages {
		// cannot fail after Validate
		_ = b.configure(s, cutoffHz, q, sampleRateHz)
	}
	return nil
}

func (b *Bank) newStage() Stage {
	if b.design == DesignExponential {
		return &Exponential{mode: b.band}
	}
	return &Biquad{}
}

func (b *Bank) configure(s Stage, cutoffHz, q, sampleRateHz float64) error {
	switch s := s.(type) {
	case *Exponential:
		return s.Configure(cutoffHz, sampleRateHz)
	case *Biquad:
		if b.band == HighPass {
			return s.ConfigureHighPass(cutoffHz, q, sampleRateHz)
		}
		return s.Configure(cutoffHz, q, sampleRateHz)
	}
	return fmt.Errorf("filter: unsupported stage %T", s)
}

// Process filters one sample, axis by axis.
func (b *Bank) Process(s motion.Sample) motion.Sample {
	if b.stages[0] == nil {
		return s
	}
	return motion.Sample{
		X: b.stages[0].Process(s.X),
		Y: b.stages[1].Process(s.Y),
		Z: b.stages[2].Process(s.Z),
	}
}

func (b *Bank) ResetAll() {
	for _, s := range b.stages {
		if s != nil {
			s.Reset()
		}
	}
}

// PrimeAll loads each axis with the steady state for s.
func (b *Bank) PrimeAll(s motion.Sample) {
	if b.stages[0] == nil {
		return
	}
	b.stages[0].Prime(s.X)
	b.stages[1].Prime(s.Y)
	b.stages[2].Prime(s.Z)
}

// Coefficients returns the shared design of a biquad bank. First-order
// banks report zero coefficients.
func (b *Bank) Coefficients() Coefficients {
	switch s := b.stages[0].(type) {
	case *Biquad:
		return s.Coefficients()
	case nil:
		if b.design == DesignBiquad {
			return passThrough
		}
	}
	return Coefficients{}
}
