// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"fmt"
	"math"
)

// Sample is a single three-axis accelerometer reading in g.
// It is used both for raw readings and for filtered ones.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (s Sample) Add(o Sample) Sample {
	return Sample{X: s.X + o.X, Y: s.Y + o.Y, Z: s.Z + o.Z}
}

func (s Sample) Sub(o Sample) Sample {
	return Sample{X: s.X - o.X, Y: s.Y - o.Y, Z: s.Z - o.Z}
}

func (s Sample) Scale(k float64) Sample {
	return Sample{X: s.X * k, Y: s.Y * k, Z: s.Z * k}
}

// Div divides every component by k. Dividing by zero returns s unchanged.
func (s Sample) Div(k float64) Sample {
	if k == 0 {
		return s
	}
	return s.Scale(1 / k)
}

func (s Sample) Dot(o Sample) float64 {
	return s.X*o.X + s.Y*o.Y + s.Z*o.Z
}

func (s Sample) Cross(o Sample) Sample {
	return Sample{
		X: s.Y*o.Z - s.Z*o.Y,
		Y: s.Z*o.X - s.X*o.Z,
		Z: s.X*o.Y - s.Y*o.X,
	}
}

func (s Sample) MagnitudeSquared() float64 {
	return s.Dot(s)
}

func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.MagnitudeSquared())
}

// Normalize returns the unit vector along s. The zero vector stays zero.
func (s Sample) Normalize() Sample {
	mag := s.Magnitude()
	if mag == 0 {
		return s
	}
	return s.Scale(1 / mag)
}

// IsFinite reports whether no component is NaN or ±Inf.
func (s Sample) IsFinite() bool {
	return isFinite(s.X) && isFinite(s.Y) && isFinite(s.Z)
}

// IsZero reports an all-zero reading: free fall, or more likely a bus read
// that returned nothing.
func (s Sample) IsZero() bool {
	return s.X == 0 && s.Y == 0 && s.Z == 0
}

// Tilt projects the sample onto pitch/roll angles.
func (s Sample) Tilt() Tilt {
	return Project(s)
}

func (s Sample) String() string {
	return fmt.Sprintf("X:%.3f Y:%.3f Z:%.3f", s.X, s.Y, s.Z)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
