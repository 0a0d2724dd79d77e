// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/motion"
	"github.com/relabs-tech/pinball_tilt/internal/rate"
)

// MockSource generates a 1 g vector slowly rocking in pitch and roll, with
// a short nudge every few seconds.
type MockSource struct {
	start time.Time
	rate  rate.Code
	now   func() time.Time
}

func NewMockSource(code rate.Code) *MockSource {
	if _, ok := rate.Frequency(code); !ok {
		code = rate.Rate100Hz
	}
	return &MockSource{start: time.Now(), rate: code, now: time.Now}
}

func (m *MockSource) Read() (motion.Sample, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	roll := 8 * math.Sin(elapsed) * math.Pi / 180
	pitch := 6 * math.Cos(elapsed*0.7) * math.Pi / 180

	s := motion.Sample{
		X: -math.Sin(pitch),
		Y: math.Sin(roll) * math.Cos(pitch),
		Z: math.Cos(roll) * math.Cos(pitch),
	}
	// nudge for 50 ms every 7 s
	if math.Mod(elapsed, 7) < 0.05 {
		s.Y += 3
	}
	return s, nil
}

func (m *MockSource) SampleRate() float64 {
	hz, _ := rate.Frequency(m.rate)
	return hz
}

func (m *MockSource) SetRate(code rate.Code) error {
	if _, ok := rate.Frequency(code); !ok {
		return fmt.Errorf("mock: invalid rate code 0x%02X", byte(code))
	}
	m.rate = code
	return nil
}

func (m *MockSource) Close() error { return nil }
