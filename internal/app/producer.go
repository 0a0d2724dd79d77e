// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/calibration"
	"github.com/relabs-tech/pinball_tilt/internal/config"
	"github.com/relabs-tech/pinball_tilt/internal/joystick"
	"github.com/relabs-tech/pinball_tilt/internal/metrics"
	"github.com/relabs-tech/pinball_tilt/internal/nudge"
	"github.com/relabs-tech/pinball_tilt/internal/pipeline"
	"github.com/relabs-tech/pinball_tilt/internal/rate"
	"github.com/relabs-tech/pinball_tilt/internal/sensors"
)

// rejectLogEvery limits how often repeated bad samples are logged.
const rejectLogEvery = 500

// sampleWaitPolls is how many poll intervals a calibration read waits for
// data before the sample counts as missing.
const sampleWaitPolls = 4

type topics struct {
	joystick    string
	tilt        string
	events      string
	calibration string
}

// producer owns the sensor loop. Everything except enqueue runs on the
// loop goroutine.
type producer struct {
	src      sensors.Source
	pipe     *pipeline.Pipeline
	detector *nudge.Detector
	metrics  *metrics.Metrics
	pub      Publisher
	sinks    []Sink
	topics   topics
	calFile  string

	commands chan Command
	rejected int
}

func newProducer(src sensors.Source, pipe *pipeline.Pipeline, det *nudge.Detector, m *metrics.Metrics, pub Publisher, t topics) *producer {
	return &producer{
		src:      src,
		pipe:     pipe,
		detector: det,
		metrics:  m,
		pub:      pub,
		topics:   t,
		commands: make(chan Command, 8),
	}
}

func RunJoystickProducer() error {
	cfg := config.Get()
	log.Println("joystick: starting producer")

	src, err := sensors.Open(cfg)
	if err != nil {
		return fmt.Errorf("open sensor: %w", err)
	}
	defer src.Close()

	pipe, err := pipeline.New(pipelineConfig(cfg, src.SampleRate()))
	if err != nil {
		return err
	}
	log.Printf("joystick: %s filter fc=%.2f Hz Q=%.3f at %.2f Hz, max tilt %.1f°, dead zone %.2f",
		pipe.FilterMode(), pipe.Cutoff(), pipe.Q(), pipe.SampleRate(), pipe.MaxTilt(), pipe.DeadRadius())
	if hz := pipe.HighPassHz(); hz > 0 {
		log.Printf("joystick: nudge high-pass at %.2f Hz", hz)
	}

	m := metrics.New(nil)
	m.SampleRate(pipe.SampleRate())
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Printf("joystick: metrics on %s/metrics", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("joystick: metrics server: %v", err)
			}
		}()
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("joystick: connected to MQTT broker at %s", cfg.MQTTBroker)

	pub := mqttPublisher{client: client}
	p := newProducer(src, pipe, nudge.NewDetector(nudgeThresholds(cfg)), m, pub, topics{
		joystick:    cfg.TopicJoystick,
		tilt:        cfg.TopicTilt,
		events:      cfg.TopicEvents,
		calibration: cfg.TopicCalibration,
	})
	p.calFile = cfg.CalibrationFile
	p.sinks = append(p.sinks, topicSink{pub: pub, topic: cfg.TopicJoystick})

	if cfg.SerialPort != "" {
		sink, err := openSerialSink(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return err
		}
		p.sinks = append(p.sinks, sink)
	}
	defer p.closeSinks()

	if cfg.CalibrationFile != "" {
		if rec, err := calibration.Load(cfg.CalibrationFile); err != nil {
			log.Printf("joystick: no stored calibration: %v", err)
		} else if err := pipe.Restore(rec); err != nil {
			log.Printf("joystick: stored calibration rejected: %v", err)
		} else {
			log.Printf("joystick: restored calibration from %s (%s), offset %v", cfg.CalibrationFile, rec.Timestamp, pipe.Offset())
		}
	}

	if err := subscribeJSON(client, "joystick", cfg.TopicCommand, func(cmd Command) {
		if err := cmd.Validate(); err != nil {
			log.Printf("joystick: %v", err)
			return
		}
		p.enqueue(cmd)
	}); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CalibrateOnStart {
		p.calibrate(ctx)
	}

	log.Println("joystick: starting sample loop")
	err = p.run(ctx)
	log.Println("joystick: shutting down")
	return err
}

// enqueue hands a command to the loop. Safe from any goroutine.
func (p *producer) enqueue(cmd Command) {
	select {
	case p.commands <- cmd:
	default:
		log.Printf("joystick: command queue full, dropping %q", cmd.Action)
	}
}

func (p *producer) run(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-p.commands:
			if err := p.handle(ctx, cmd); err != nil {
				log.Printf("joystick: command %q: %v", cmd.Action, err)
			}
			ticker.Reset(p.pollInterval())
		case t := <-ticker.C:
			p.step(t)
		}
	}
}

func (p *producer) pollInterval() time.Duration {
	return pollIntervalFor(p.src.SampleRate())
}

// pollIntervalFor is half the sample period so no sample is missed.
func pollIntervalFor(hz float64) time.Duration {
	if hz <= 0 {
		return 10 * time.Millisecond
	}
	d := time.Duration(float64(time.Second) / hz / 2)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// step reads and processes at most one sample.
func (p *producer) step(now time.Time) {
	raw, err := p.src.Read()
	if errors.Is(err, sensors.ErrNoData) {
		return
	}
	if err != nil {
		p.metrics.ReadError()
		p.logRejected("read error: %v", err)
		return
	}

	out, err := p.pipe.Process(raw)
	p.metrics.Observe(out, err)
	if err != nil {
		p.logRejected("%v %v", err, raw)
		return
	}

	if ev := p.detector.DetectDelta(raw, out.Dynamic, now); ev != nudge.None {
		p.metrics.Event(ev)
		log.Printf("joystick: event %s", ev)
		msg := EventMessage{Event: ev.String(), Time: now.Format(time.RFC3339Nano)}
		if err := p.pub.PublishJSON(p.topics.events, false, msg); err != nil {
			log.Printf("joystick: %v", err)
		}
	}

	msg := newJoystickMessage(out, now)
	for _, sink := range p.sinks {
		if err := sink.Write(msg); err != nil {
			log.Printf("joystick: sink write: %v", err)
		}
	}
	if err := p.pub.PublishJSON(p.topics.tilt, false, out); err != nil {
		log.Printf("joystick: %v", err)
	}
}

func (p *producer) logRejected(format string, args ...any) {
	p.rejected++
	if p.rejected%rejectLogEvery == 1 {
		log.Printf("joystick: sample rejected (%d so far): "+format, append([]any{p.rejected}, args...)...)
	}
}

func (p *producer) handle(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionCalibrate:
		return p.calibrate(ctx)

	case ActionOffset:
		p.pipe.SetOffset(joystick.Axes{X: cmd.OffsetX, Y: cmd.OffsetY})
		log.Printf("joystick: offset set to %v", p.pipe.Offset())
		return nil

	case ActionConfigure:
		return p.configure(cmd)
	}
	return fmt.Errorf("unknown action %q", cmd.Action)
}

// configure applies filter, mapping and rate changes. Filter and rate
// parameters are validated before anything is touched.
func (p *producer) configure(cmd Command) error {
	fc, q := p.pipe.Cutoff(), p.pipe.Q()
	if cmd.CutoffHz > 0 {
		fc = cmd.CutoffHz
	}
	if cmd.Q > 0 {
		q = cmd.Q
	}

	hz := p.pipe.SampleRate()
	var code rate.Code
	if cmd.RateCode != nil {
		if *cmd.RateCode < 0 || *cmd.RateCode > int(rate.MaxCode) {
			return fmt.Errorf("invalid rate code %d", *cmd.RateCode)
		}
		code = rate.Code(*cmd.RateCode)
		f, _ := rate.Frequency(code)
		if _, ok := p.src.(sensors.RateSetter); !ok {
			return fmt.Errorf("sensor does not support rate changes")
		}
		hz = f
	}
	if err := p.pipe.Validate(fc, q, hz); err != nil {
		return err
	}

	if cmd.RateCode != nil {
		if err := p.src.(sensors.RateSetter).SetRate(code); err != nil {
			return err
		}
		if err := p.pipe.SetSampleRate(p.src.SampleRate()); err != nil {
			return err
		}
		p.metrics.SampleRate(p.pipe.SampleRate())
	}
	if fc != p.pipe.Cutoff() || q != p.pipe.Q() {
		if err := p.pipe.Reconfigure(fc, q); err != nil {
			return err
		}
	}
	if cmd.MaxTilt > 0 {
		p.pipe.SetMaxTilt(cmd.MaxTilt)
	}
	if cmd.DeadZone != nil {
		p.pipe.SetDeadRadius(*cmd.DeadZone)
	}

	log.Printf("joystick: configured fc=%.2f Hz Q=%.3f at %.2f Hz, max tilt %.1f°, dead zone %.2f",
		p.pipe.Cutoff(), p.pipe.Q(), p.pipe.SampleRate(), p.pipe.MaxTilt(), p.pipe.DeadRadius())
	return nil
}

// calibrate runs one blocking pass, then publishes and stores the result.
func (p *producer) calibrate(ctx context.Context) error {
	cc := p.pipe.CalibrationConfig()
	log.Printf("joystick: calibrating over %d samples, keep the cabinet still", cc.Samples)

	res, err := p.pipe.Calibrate(ctx, waitForSample(p.src, p.pollInterval(), sampleWaitPolls*p.pollInterval()))
	p.detector.Reset()

	var msg CalibrationMessage
	if err != nil {
		msg.Requested, msg.Valid, msg.Invalid = res.Requested, res.Valid, res.Invalid
		msg.Stamp(time.Now())
		msg.Error = err.Error()
	} else {
		msg.Record = p.pipe.Record(res)
	}
	p.metrics.Calibrated(msg.Record, err)

	if pubErr := p.pub.PublishJSON(p.topics.calibration, true, msg); pubErr != nil {
		log.Printf("joystick: %v", pubErr)
	}
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	log.Printf("joystick: calibration done in %s: %d/%d valid, tilt %v, offset %v",
		res.Duration.Round(time.Millisecond), res.Valid, res.Requested, msg.Tilt, p.pipe.Offset())
	if p.calFile != "" {
		if err := calibration.Save(p.calFile, msg.Record); err != nil {
			return err
		}
		log.Printf("joystick: calibration saved to %s", p.calFile)
	}
	return nil
}

func (p *producer) closeSinks() {
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			log.Printf("joystick: close sink: %v", err)
		}
	}
}
