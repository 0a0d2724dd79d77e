// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package joystick maps cabinet tilt to a normalized two-axis joystick.
package joystick

import (
	"fmt"
	"log"
	"math"

	"github.com/relabs-tech/pinball_tilt/internal/motion"
)

const (
	MinTiltAngle     = 5.0
	MaxTiltAngle     = 45.0
	DefaultTiltAngle = 12.5

	// MaxDeadRadius keeps the rescale denominator (1 - r) away from zero.
	MaxDeadRadius = 0.99
)

// Axes is a joystick position. X follows pitch, Y follows roll.
type Axes struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (a Axes) Magnitude() float64 {
	return math.Hypot(a.X, a.Y)
}

func (a Axes) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", a.X, a.Y)
}

// Mapper turns a tilt into Axes:
//
//  1. clamp pitch and roll to ±maxTilt and divide by maxTilt
//  2. subtract the calibration offset and clamp each axis to [-1, 1]
//  3. with a dead zone, zero anything inside radius r and rescale the rest
//     so the output leaves the dead zone continuously and reaches 1 at the rim
type Mapper struct {
	maxTilt    float64
	deadRadius float64
	offset     Axes

	warnf func(format string, args ...any)
}

// NewMapper returns a mapper with the given limits, clamped to their legal
// ranges. warnf receives clamp notices; nil uses log.Printf.
func NewMapper(maxTilt, deadRadius float64, warnf func(string, ...any)) *Mapper {
	if warnf == nil {
		warnf = log.Printf
	}
	m := &Mapper{warnf: warnf}
	m.SetMaxTilt(maxTilt)
	m.SetDeadRadius(deadRadius)
	return m
}

// Map converts a tilt into joystick axes.
func (m *Mapper) Map(t motion.Tilt) Axes {
	x := clamp(t.Pitch, -m.maxTilt, m.maxTilt) / m.maxTilt
	y := clamp(t.Roll, -m.maxTilt, m.maxTilt) / m.maxTilt

	a := Axes{
		X: clamp(x-m.offset.X, -1, 1),
		Y: clamp(y-m.offset.Y, -1, 1),
	}
	if m.deadRadius == 0 {
		return a
	}
	return applyDeadZone(a, m.deadRadius)
}

func applyDeadZone(a Axes, r float64) Axes {
	mag := a.Magnitude()
	if mag <= r {
		return Axes{}
	}
	scale := (math.Min(mag, 1) - r) / (1 - r)
	return Axes{X: a.X / mag * scale, Y: a.Y / mag * scale}
}

// OffsetForTilt returns the normalized offset that makes t read as centre.
func (m *Mapper) OffsetForTilt(t motion.Tilt) Axes {
	return Axes{
		X: clamp(t.Pitch, -m.maxTilt, m.maxTilt) / m.maxTilt,
		Y: clamp(t.Roll, -m.maxTilt, m.maxTilt) / m.maxTilt,
	}
}

func (m *Mapper) SetOffset(o Axes) {
	if math.IsNaN(o.X) || math.IsNaN(o.Y) {
		m.warnf("joystick: ignoring non-finite offset %v", o)
		return
	}
	m.offset = Axes{X: clamp(o.X, -1, 1), Y: clamp(o.Y, -1, 1)}
}

func (m *Mapper) Offset() Axes {
	return m.offset
}

// SetMaxTilt sets the full-scale angle in degrees, clamped to [5, 45].
// The offset is normalized, so it is kept as is.
func (m *Mapper) SetMaxTilt(deg float64) {
	c := clamp(deg, MinTiltAngle, MaxTiltAngle)
	if math.IsNaN(deg) {
		c = DefaultTiltAngle
	}
	if c != deg {
		m.warnf("joystick: max tilt %g° out of range, using %g°", deg, c)
	}
	m.maxTilt = c
}

func (m *Mapper) MaxTilt() float64 {
	return m.maxTilt
}

// SetDeadRadius sets the dead-zone radius, clamped to [0, 0.99].
// Zero disables the dead zone.
func (m *Mapper) SetDeadRadius(r float64) {
	c := clamp(r, 0, MaxDeadRadius)
	if math.IsNaN(r) {
		c = 0
	}
	if c != r {
		m.warnf("joystick: dead zone radius %g out of range, using %g", r, c)
	}
	m.deadRadius = c
}

func (m *Mapper) DeadRadius() float64 {
	return m.deadRadius
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
