// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/config"
	"github.com/relabs-tech/pinball_tilt/internal/nudge"
	"github.com/relabs-tech/pinball_tilt/internal/pipeline"
	"github.com/relabs-tech/pinball_tilt/internal/rate"
	"github.com/relabs-tech/pinball_tilt/internal/sensors"
)

// RunMockConsole runs the whole pipeline on the mock source and prints to
// stdout. No broker or hardware is needed; cfg may be nil for defaults.
func RunMockConsole(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}
	src := sensors.NewMockSource(rate.Code(cfg.AccelRateCode))

	pipe, err := pipeline.New(pipelineConfig(cfg, src.SampleRate()))
	if err != nil {
		return err
	}
	det := nudge.NewDetector(nudgeThresholds(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	period := time.Duration(float64(time.Second) / src.SampleRate())
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	interval := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond
	var lastShow time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			raw, err := src.Read()
			if err != nil {
				return err
			}
			out, err := pipe.Process(raw)
			if errors.Is(err, pipeline.ErrInvalidSample) || errors.Is(err, pipeline.ErrSuspectSample) {
				continue
			}
			if ev := det.DetectDelta(raw, out.Dynamic, t); ev != nudge.None {
				fmt.Printf("[EVENT] %s\n", ev)
			}
			if t.Sub(lastShow) >= interval {
				lastShow = t
				fmt.Println(formatJoystick(newJoystickMessage(out, t)))
			}
		}
	}
}
