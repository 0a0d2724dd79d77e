// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exports producer state to Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/relabs-tech/pinball_tilt/internal/calibration"
	"github.com/relabs-tech/pinball_tilt/internal/nudge"
	"github.com/relabs-tech/pinball_tilt/internal/pipeline"
)

const namespace = "pinball"

// Metrics groups the producer's collectors.
type Metrics struct {
	samples      *prometheus.CounterVec
	events       *prometheus.CounterVec
	axis         *prometheus.GaugeVec
	tilt         *prometheus.GaugeVec
	accel        *prometheus.GaugeVec
	calibrations *prometheus.CounterVec
	offset       *prometheus.GaugeVec
	sampleRate   prometheus.Gauge
}

// New registers the collectors with reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	m := &Metrics{
		samples: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "samples_total",
			Help:      "Samples read from the accelerometer, by outcome",
		}, []string{"result"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nudge",
			Name:      "events_total",
			Help:      "Detected cabinet events",
		}, []string{"event"}),
		axis: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "joystick",
			Name:      "axis",
			Help:      "Normalized joystick axis position",
		}, []string{"axis"}),
		tilt: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "joystick",
			Name:      "tilt_degrees",
			Help:      "Filtered cabinet tilt",
		}, []string{"direction"}),
		accel: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "acceleration_g",
			Help:      "Filtered acceleration",
		}, []string{"direction"}),
		calibrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "runs_total",
			Help:      "Calibration passes, by outcome",
		}, []string{"result"}),
		offset: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "calibration",
			Name:      "offset",
			Help:      "Normalized joystick calibration offset",
		}, []string{"axis"}),
		sampleRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "sample_rate_hz",
			Help:      "Configured accelerometer output data rate",
		}),
	}
	return m
}

// Observe records one pipeline result. err is the error returned by
// Process, nil for a valid sample.
func (m *Metrics) Observe(out pipeline.Output, err error) {
	switch {
	case err == nil:
		m.samples.WithLabelValues("valid").Inc()
	case errors.Is(err, pipeline.ErrSuspectSample):
		m.samples.WithLabelValues("suspect").Inc()
		return
	default:
		m.samples.WithLabelValues("invalid").Inc()
		return
	}
	m.axis.WithLabelValues("x").Set(out.Axes.X)
	m.axis.WithLabelValues("y").Set(out.Axes.Y)
	m.tilt.WithLabelValues("pitch").Set(out.Tilt.Pitch)
	m.tilt.WithLabelValues("roll").Set(out.Tilt.Roll)
	m.accel.WithLabelValues("x").Set(out.Filtered.X)
	m.accel.WithLabelValues("y").Set(out.Filtered.Y)
	m.accel.WithLabelValues("z").Set(out.Filtered.Z)
}

// ReadError counts a failed bus read.
func (m *Metrics) ReadError() {
	m.samples.WithLabelValues("read_error").Inc()
}

func (m *Metrics) Event(e nudge.Event) {
	if e == nudge.None {
		return
	}
	m.events.WithLabelValues(e.String()).Inc()
}

func (m *Metrics) Calibrated(rec calibration.Record, err error) {
	if err != nil {
		m.calibrations.WithLabelValues("failed").Inc()
		return
	}
	m.calibrations.WithLabelValues("ok").Inc()
	m.offset.WithLabelValues("x").Set(rec.OffsetX)
	m.offset.WithLabelValues("y").Set(rec.OffsetY)
}

func (m *Metrics) SampleRate(hz float64) {
	m.sampleRate.Set(hz)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
