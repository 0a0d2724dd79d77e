// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package nudge classifies cabinet movement into the events a pinball
// machine reacts to: bumps, sustained tilt, slams and free fall.
package nudge

import (
	"math"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/motion"
)

type Event int

const (
	None Event = iota
	Bump
	TiltWarning
	Tilt
	SlamTilt
	FreeFall
	Stable
)

var eventNames = [...]string{
	None:        "none",
	Bump:        "bump",
	TiltWarning: "tilt_warning",
	Tilt:        "tilt",
	SlamTilt:    "slam_tilt",
	FreeFall:    "free_fall",
	Stable:      "stable",
}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[e]
}

// Events lists every event except None, in declaration order.
func Events() []Event {
	return []Event{Bump, TiltWarning, Tilt, SlamTilt, FreeFall, Stable}
}

// Thresholds in g, measured against the calibrated baseline. FreeFall is
// compared against the raw magnitude.
type Thresholds struct {
	Bump     float64
	Tilt     float64
	Slam     float64
	FreeFall float64
	TiltTime time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Bump:     5.0,
		Tilt:     2.0,
		Slam:     15.0,
		FreeFall: 0.5,
		TiltTime: 2 * time.Second,
	}
}

// Detector tracks the sustained-tilt warning between samples.
// It is not safe for concurrent use.
type Detector struct {
	th Thresholds

	warning   bool
	warnStart time.Time
}

func NewDetector(th Thresholds) *Detector {
	return &Detector{th: th}
}

func (d *Detector) Thresholds() Thresholds {
	return d.th
}

// Detect classifies one raw sample against the resting baseline.
func (d *Detector) Detect(raw, baseline motion.Sample, now time.Time) Event {
	return d.DetectDelta(raw, raw.Sub(baseline), now)
}

// DetectDelta classifies a sample whose gravity component has already been
// removed, for example by a high-pass filter. Free fall is still judged on
// the raw magnitude.
func (d *Detector) DetectDelta(raw, delta motion.Sample, now time.Time) Event {
	if raw.Magnitude() < d.th.FreeFall {
		d.warning = false
		return FreeFall
	}

	vertical := math.Abs(delta.Z)
	lateral := math.Max(math.Abs(delta.X), math.Abs(delta.Y))

	if vertical > d.th.Slam || lateral > d.th.Slam {
		d.warning = false
		return SlamTilt
	}
	if vertical > d.th.Bump || lateral > d.th.Bump {
		return Bump
	}

	if lateral > d.th.Tilt {
		if !d.warning {
			d.warning = true
			d.warnStart = now
			return TiltWarning
		}
		if now.Sub(d.warnStart) >= d.th.TiltTime {
			d.warning = false
			return Tilt
		}
		return None
	}
	if d.warning {
		d.warning = false
		return Stable
	}
	return None
}

// Reset clears any pending tilt warning.
func (d *Detector) Reset() {
	d.warning = false
}
