// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/motion"
)

// Record is the persisted outcome of a calibration pass.
type Record struct {
	Timestamp string `json:"timestamp"`

	// Baseline is the mean filtered acceleration at rest.
	Baseline motion.Sample `json:"baseline"`
	// Tilt is the projection of Baseline.
	Tilt motion.Tilt `json:"tilt"`
	// OffsetX and OffsetY are the normalized joystick offsets.
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`

	Requested int `json:"requested"`
	Valid     int `json:"valid"`
	Invalid   int `json:"invalid"`

	MaxTiltAngle   float64 `json:"max_tilt_angle"`
	FilterCutoffHz float64 `json:"filter_cutoff_hz"`
	FilterQ        float64 `json:"filter_q"`
	SampleRateHz   float64 `json:"sample_rate_hz"`
}

// Stamp sets the record timestamp in RFC3339.
func (r *Record) Stamp(t time.Time) {
	r.Timestamp = t.UTC().Format(time.RFC3339)
}

// Save writes r as indented JSON.
func Save(path string, r Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write calibration %s: %w", path, err)
	}
	return nil
}

// Load reads a record written by Save.
func Load(path string) (Record, error) {
	var r Record
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read calibration %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	if !r.Baseline.IsFinite() || !r.Tilt.IsFinite() {
		return r, fmt.Errorf("calibration %s: non-finite values", path)
	}
	return r, nil
}
