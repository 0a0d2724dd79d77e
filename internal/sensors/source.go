// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides accelerometer backends behind a single Source
// interface: an ADXL345 on a periph.io or sysfs I2C bus, and a mock.
package sensors

import (
	"errors"
	"fmt"
	"log"

	"github.com/relabs-tech/pinball_tilt/internal/config"
	"github.com/relabs-tech/pinball_tilt/internal/motion"
	"github.com/relabs-tech/pinball_tilt/internal/rate"
)

// ErrNoData means no new sample was ready; the caller should poll again.
var ErrNoData = errors.New("sensors: no new sample")

// Source delivers accelerometer samples in g.
type Source interface {
	Read() (motion.Sample, error)
	// SampleRate is the configured output data rate in Hz.
	SampleRate() float64
	Close() error
}

// RateSetter is implemented by sources whose data rate can change at runtime.
type RateSetter interface {
	SetRate(code rate.Code) error
}

// Open builds the source selected by SENSOR_BACKEND.
func Open(cfg *config.Config) (Source, error) {
	opts := Options{
		Range: cfg.AccelRange,
		Rate:  rate.Code(cfg.AccelRateCode),
	}

	switch cfg.SensorBackend {
	case "mock":
		log.Printf("sensor: using mock source at %s", opts.Rate)
		return NewMockSource(opts.Rate), nil

	case "sysfs":
		bus, err := OpenSysfsBus(cfg.I2CBus, int(cfg.I2CAddr))
		if err != nil {
			return nil, err
		}
		return openADXL345(bus, cfg, opts)

	case "periph", "":
		bus, err := OpenPeriphBus(cfg.I2CBus, cfg.I2CAddr)
		if err != nil {
			return nil, err
		}
		return openADXL345(bus, cfg, opts)
	}
	return nil, fmt.Errorf("sensor: unknown backend %q", cfg.SensorBackend)
}

func openADXL345(bus RegisterBus, cfg *config.Config, opts Options) (Source, error) {
	if cfg.SensorIntPin != "" {
		pin, err := OpenInterruptPin(cfg.SensorIntPin)
		if err != nil {
			bus.Close()
			return nil, err
		}
		opts.Ready = &DataReady{}
		opts.Pin = pin
	}

	dev, err := NewADXL345(bus, opts)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return dev, nil
}
