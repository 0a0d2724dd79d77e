// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/calibration"
	"github.com/relabs-tech/pinball_tilt/internal/config"
	"github.com/relabs-tech/pinball_tilt/internal/nudge"
	"github.com/relabs-tech/pinball_tilt/internal/pipeline"
)

// JoystickMessage is published on TOPIC_JOYSTICK for every valid sample.
type JoystickMessage struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Valid bool    `json:"valid"`
	Time  string  `json:"time"`
}

func newJoystickMessage(out pipeline.Output, t time.Time) JoystickMessage {
	return JoystickMessage{
		X:     out.Axes.X,
		Y:     out.Axes.Y,
		Pitch: out.Tilt.Pitch,
		Roll:  out.Tilt.Roll,
		Valid: out.Valid,
		Time:  t.Format(time.RFC3339Nano),
	}
}

// EventMessage is published on TOPIC_EVENTS.
type EventMessage struct {
	Event string `json:"event"`
	Time  string `json:"time"`
}

// CalibrationMessage is published on TOPIC_CALIBRATION after every pass.
type CalibrationMessage struct {
	calibration.Record
	Error string `json:"error,omitempty"`
}

// Command actions accepted on TOPIC_COMMAND.
const (
	ActionCalibrate = "calibrate"
	ActionOffset    = "offset"
	ActionConfigure = "configure"
)

// Command is a request to the producer. Zero numeric fields in a configure
// command mean "leave unchanged"; DeadZone and RateCode are pointers so
// zero can be requested explicitly.
type Command struct {
	Action   string   `json:"action"`
	OffsetX  float64  `json:"offset_x,omitempty"`
	OffsetY  float64  `json:"offset_y,omitempty"`
	CutoffHz float64  `json:"cutoff_hz,omitempty"`
	Q        float64  `json:"q,omitempty"`
	MaxTilt  float64  `json:"max_tilt,omitempty"`
	DeadZone *float64 `json:"dead_zone,omitempty"`
	RateCode *int     `json:"rate_code,omitempty"`
}

func (c Command) Validate() error {
	switch c.Action {
	case ActionCalibrate, ActionOffset, ActionConfigure:
		return nil
	}
	return fmt.Errorf("unknown command action %q", c.Action)
}

func pipelineConfig(cfg *config.Config, sampleRateHz float64) pipeline.Config {
	return pipeline.Config{
		SampleRateHz:   sampleRateHz,
		CutoffHz:       cfg.FilterCutoffHz,
		Q:              cfg.FilterQ,
		MaxTiltAngle:   cfg.MaxTiltAngle,
		DeadZoneRadius: cfg.DeadZoneRadius,
		FilterMode:     cfg.FilterMode,
		HighPassHz:     cfg.NudgeHighPassHz,
		Calibration: calibration.Config{
			Samples:  cfg.CalibrationSamples,
			Interval: time.Duration(cfg.CalibrationIntervalMS) * time.Millisecond,
			Timeout:  time.Duration(cfg.CalibrationTimeoutMS) * time.Millisecond,
		},
	}
}

func nudgeThresholds(cfg *config.Config) nudge.Thresholds {
	return nudge.Thresholds{
		Bump:     cfg.NudgeBumpG,
		Tilt:     cfg.NudgeTiltG,
		Slam:     cfg.NudgeSlamG,
		FreeFall: cfg.NudgeFreeFallG,
		TiltTime: time.Duration(cfg.NudgeTiltTimeMS) * time.Millisecond,
	}
}
