// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pipeline turns raw accelerometer samples into joystick axes:
// filter bank, tilt projection, calibration offset and axis mapping.
//
// A Pipeline is driven by a single loop and holds no locks. Calibration and
// reconfiguration must be called from that same loop, between samples.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/calibration"
	"github.com/relabs-tech/pinball_tilt/internal/filter"
	"github.com/relabs-tech/pinball_tilt/internal/joystick"
	"github.com/relabs-tech/pinball_tilt/internal/motion"
)

var (
	// ErrInvalidSample is returned for samples with NaN or infinite components.
	ErrInvalidSample = errors.New("pipeline: non-finite sample")
	// ErrSuspectSample is returned when every component is exactly zero,
	// which a working accelerometer never reports.
	ErrSuspectSample = errors.New("pipeline: all-zero sample")
)

// highPassQ is the Butterworth resonance of the nudge high-pass bank.
const highPassQ = math.Sqrt2 / 2

type Config struct {
	SampleRateHz   float64
	CutoffHz       float64
	Q              float64
	MaxTiltAngle   float64
	DeadZoneRadius float64

	// FilterMode is "biquad" (default) or "exponential".
	FilterMode string
	// HighPassHz enables a high-pass bank on the raw samples that feeds
	// Output.Dynamic. Zero uses raw minus baseline instead.
	HighPassHz float64

	Calibration calibration.Config

	// Warnf receives non-fatal notices. Defaults to log.Printf.
	Warnf func(format string, args ...any)
}

// Output is the result of one Process call. When Valid is false the
// fields hold the last good output.
//
// Dynamic is the acceleration with the resting gravity vector removed,
// the input of nudge detection.
type Output struct {
	Raw      motion.Sample `json:"raw"`
	Filtered motion.Sample `json:"filtered"`
	Dynamic  motion.Sample `json:"dynamic"`
	Tilt     motion.Tilt   `json:"tilt"`
	Axes     joystick.Axes `json:"axes"`
	Valid    bool          `json:"valid"`
}

type Pipeline struct {
	bank     *filter.Bank
	highPass *filter.Bank // nil when disabled
	mapper   *joystick.Mapper

	highPassHz float64

	sampleRate float64
	cutoff     float64
	q          float64
	primed     bool

	last     Output
	baseline motion.Sample

	calCfg calibration.Config
	warnf  func(string, ...any)
}

func New(cfg Config) (*Pipeline, error) {
	warnf := cfg.Warnf
	if warnf == nil {
		warnf = log.Printf
	}
	design, err := filter.ParseDesign(cfg.FilterMode)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if math.IsNaN(cfg.HighPassHz) || cfg.HighPassHz < 0 {
		return nil, fmt.Errorf("pipeline: high-pass cutoff must be zero or positive, got %g", cfg.HighPassHz)
	}
	p := &Pipeline{
		bank:     filter.NewBank(design, filter.LowPass),
		cutoff:   cfg.CutoffHz,
		q:        cfg.Q,
		calCfg:   cfg.Calibration,
		warnf:    warnf,
		baseline: motion.Sample{Z: 1},
		mapper:   joystick.NewMapper(cfg.MaxTiltAngle, cfg.DeadZoneRadius, warnf),
	}
	if cfg.HighPassHz > 0 {
		p.highPass = filter.NewBank(filter.DesignBiquad, filter.HighPass)
		p.highPassHz = cfg.HighPassHz
	}
	if err := p.SetSampleRate(cfg.SampleRateHz); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return p, nil
}

// Process runs one raw sample through the chain. Rejected samples leave the
// filter history untouched and return the previous output with Valid unset.
func (p *Pipeline) Process(raw motion.Sample) (Output, error) {
	if !raw.IsFinite() {
		return p.hold(), ErrInvalidSample
	}
	if raw.IsZero() {
		return p.hold(), ErrSuspectSample
	}
	if !p.primed {
		p.bank.PrimeAll(raw)
		if p.highPass != nil {
			p.highPass.PrimeAll(raw)
		}
		p.primed = true
	}

	filtered := p.bank.Process(raw)
	dynamic := raw.Sub(p.baseline)
	if p.highPass != nil {
		dynamic = p.highPass.Process(raw)
	}
	tilt := motion.Project(filtered)
	p.last = Output{
		Raw:      raw,
		Filtered: filtered,
		Dynamic:  dynamic,
		Tilt:     tilt,
		Axes:     p.mapper.Map(tilt),
		Valid:    true,
	}
	return p.last, nil
}

func (p *Pipeline) hold() Output {
	out := p.last
	out.Valid = false
	return out
}

// Last returns the most recent valid output.
func (p *Pipeline) Last() Output {
	return p.last
}

// SetSampleRate redesigns the filters for a new rate and restarts them.
// A rate the current cutoff cannot satisfy is refused and nothing changes.
func (p *Pipeline) SetSampleRate(hz float64) error {
	return p.configure(p.cutoff, p.q, hz)
}

// Reconfigure changes cutoff and Q at the current sample rate.
func (p *Pipeline) Reconfigure(cutoffHz, q float64) error {
	return p.configure(cutoffHz, q, p.sampleRate)
}

// Validate reports whether configure would accept the parameters, for both
// the low-pass bank and the high-pass bank if enabled. Nothing changes.
func (p *Pipeline) Validate(cutoffHz, q, sampleRateHz float64) error {
	if p.bank.Design() == filter.DesignExponential {
		q = 1
	}
	if err := filter.Validate(cutoffHz, q, sampleRateHz); err != nil {
		return err
	}
	if p.highPass != nil {
		if err := filter.Validate(p.highPassHz, highPassQ, sampleRateHz); err != nil {
			return fmt.Errorf("high-pass: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) configure(cutoffHz, q, sampleRateHz float64) error {
	if err := p.Validate(cutoffHz, q, sampleRateHz); err != nil {
		return err
	}
	// cannot fail after Validate
	_ = p.bank.ConfigureAll(cutoffHz, q, sampleRateHz)
	if p.highPass != nil {
		_ = p.highPass.ConfigureAll(p.highPassHz, highPassQ, sampleRateHz)
		p.highPass.ResetAll()
	}
	if filter.NearNyquist(cutoffHz, sampleRateHz) {
		p.warnf("pipeline: cutoff %.2f Hz is close to Nyquist for %.2f Hz sampling", cutoffHz, sampleRateHz)
	}
	p.cutoff, p.q, p.sampleRate = cutoffHz, q, sampleRateHz
	p.bank.ResetAll()
	p.primed = false
	return nil
}

func (p *Pipeline) SampleRate() float64 { return p.sampleRate }
func (p *Pipeline) Cutoff() float64 { return p.cutoff }
func (p *Pipeline) Q() float64 { return p.q }

func (p *Pipeline) FilterMode() filter.Design { return p.bank.Design() }

// HighPassHz is the nudge high-pass cutoff; zero when disabled.
func (p *Pipeline) HighPassHz() float64 { return p.highPassHz }

func (p *Pipeline) SetMaxTilt(deg float64) { p.mapper.SetMaxTilt(deg) }
func (p *Pipeline) SetDeadRadius(r float64) { p.mapper.SetDeadRadius(r) }
func (p *Pipeline) MaxTilt() float64 { return p.mapper.MaxTilt() }
func (p *Pipeline) DeadRadius() float64 { return p.mapper.DeadRadius() }
func (p *Pipeline) SetOffset(o joystick.Axes) { p.mapper.SetOffset(o) }
func (p *Pipeline) Offset() joystick.Axes { return p.mapper.Offset() }

// Baseline is the resting acceleration found by the last calibration.
// Before any calibration it is 1 g straight down.
func (p *Pipeline) Baseline() motion.Sample {
	return p.baseline
}

// CalibrationConfig returns the pass settings used by Calibrate.
func (p *Pipeline) CalibrationConfig() calibration.Config {
	return p.calCfg
}

func (p *Pipeline) SetCalibrationConfig(cfg calibration.Config) {
	p.calCfg = cfg
}

// Calibrate blocks for one pass, reading raw samples from next and averaging
// their filtered values. On success the projected mean becomes the joystick
// offset and the mean becomes the baseline. On failure both are unchanged.
func (p *Pipeline) Calibrate(ctx context.Context, next func() (motion.Sample, error)) (calibration.Result[motion.Sample], error) {
	cfg := p.calCfg
	if cfg.Interval == 0 && p.sampleRate > 0 {
		cfg.Interval = time.Duration(float64(time.Second) / p.sampleRate)
	}

	res, err := calibration.Run(ctx, cfg, func() (motion.Sample, error) {
		raw, err := next()
		if err != nil {
			return motion.Sample{}, err
		}
		out, err := p.Process(raw)
		if err != nil {
			return motion.Sample{}, err
		}
		return out.Filtered, nil
	})
	if err != nil {
		return res, err
	}

	p.baseline = res.Offset
	p.mapper.SetOffset(p.mapper.OffsetForTilt(motion.Project(res.Offset)))
	return res, nil
}

// Record describes the current calibration for persistence.
func (p *Pipeline) Record(res calibration.Result[motion.Sample]) calibration.Record {
	rec := calibration.Record{
		Baseline:       p.baseline,
		Tilt:           motion.Project(p.baseline),
		OffsetX:        p.Offset().X,
		OffsetY:        p.Offset().Y,
		Requested:      res.Requested,
		Valid:          res.Valid,
		Invalid:        res.Invalid,
		MaxTiltAngle:   p.MaxTilt(),
		FilterCutoffHz: p.cutoff,
		FilterQ:        p.q,
		SampleRateHz:   p.sampleRate,
	}
	rec.Stamp(time.Now())
	return rec
}

// Restore applies a saved calibration. The offset is recomputed from the
// saved tilt so a changed max tilt angle still centres correctly.
func (p *Pipeline) Restore(rec calibration.Record) error {
	if rec.Baseline.IsZero() || !rec.Baseline.IsFinite() {
		return fmt.Errorf("pipeline: calibration baseline %v unusable", rec.Baseline)
	}
	p.baseline = rec.Baseline
	p.mapper.SetOffset(p.mapper.OffsetForTilt(rec.Tilt))
	return nil
}
