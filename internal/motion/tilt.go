// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion holds accelerometer samples and the tilt projection
// derived from them.
package motion

import (
	"fmt"
	"math"
)

const radToDeg = 180.0 / math.Pi

// Tilt is the orientation relative to gravity, in degrees.
type Tilt struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Project converts an accelerometer sample into pitch and roll:
//
//	pitch = atan2(-x, sqrt(y² + z²))
//	roll  = atan2( y, sqrt(x² + z²))
//
// A zero sample yields (0, 0); callers should check Sample.IsZero before
// trusting that as "level".
func Project(s Sample) Tilt {
	pitch := math.Atan2(-s.X, math.Sqrt(s.Y*s.Y+s.Z*s.Z))
	roll := math.Atan2(s.Y, math.Sqrt(s.X*s.X+s.Z*s.Z))
	return Tilt{
		Pitch: pitch * radToDeg,
		Roll:  roll * radToDeg,
	}
}

func (t Tilt) Add(o Tilt) Tilt {
	return Tilt{Pitch: t.Pitch + o.Pitch, Roll: t.Roll + o.Roll}
}

func (t Tilt) Sub(o Tilt) Tilt {
	return Tilt{Pitch: t.Pitch - o.Pitch, Roll: t.Roll - o.Roll}
}

func (t Tilt) Scale(k float64) Tilt {
	return Tilt{Pitch: t.Pitch * k, Roll: t.Roll * k}
}

func (t Tilt) IsFinite() bool {
	return isFinite(t.Pitch) && isFinite(t.Roll)
}

func (t Tilt) String() string {
	return fmt.Sprintf("P:%.2f° R:%.2f°", t.Pitch, t.Roll)
}
