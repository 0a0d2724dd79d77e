// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/calibration"
	"github.com/relabs-tech/pinball_tilt/internal/config"
	"github.com/relabs-tech/pinball_tilt/internal/motion"
	"github.com/relabs-tech/pinball_tilt/internal/pipeline"
	"github.com/relabs-tech/pinball_tilt/internal/sensors"
)

// RunCalibration performs one standalone calibration pass against the
// sensor and writes the result to outPath (CALIBRATION_FILE when empty).
// The producer must not be running since both need the bus.
func RunCalibration(outPath string) (calibration.Record, error) {
	cfg := config.Get()
	if outPath == "" {
		outPath = cfg.CalibrationFile
	}
	if outPath == "" {
		return calibration.Record{}, errors.New("calibration: no output file (set -out or CALIBRATION_FILE)")
	}

	src, err := sensors.Open(cfg)
	if err != nil {
		return calibration.Record{}, fmt.Errorf("open sensor: %w", err)
	}
	defer src.Close()

	pipe, err := pipeline.New(pipelineConfig(cfg, src.SampleRate()))
	if err != nil {
		return calibration.Record{}, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("calibration: sampling %d readings at %.2f Hz, keep the cabinet still", cfg.CalibrationSamples, src.SampleRate())
	poll := pollIntervalFor(src.SampleRate())
	res, err := pipe.Calibrate(ctx, waitForSample(src, poll, sampleWaitPolls*poll))
	if err != nil {
		return calibration.Record{}, err
	}

	rec := pipe.Record(res)
	if err := calibration.Save(outPath, rec); err != nil {
		return rec, err
	}
	log.Printf("calibration: %d/%d valid in %s, saved to %s", res.Valid, res.Requested, res.Duration.Round(time.Millisecond), outPath)
	return rec, nil
}

// waitForSample polls src every poll until a sample is ready or timeout
// passes.
func waitForSample(src sensors.Source, poll, timeout time.Duration) func() (motion.Sample, error) {
	return func() (motion.Sample, error) {
		deadline := time.Now().Add(timeout)
		for {
			s, err := src.Read()
			if !errors.Is(err, sensors.ErrNoData) || time.Now().After(deadline) {
				return s, err
			}
			time.Sleep(poll)
		}
	}
}
