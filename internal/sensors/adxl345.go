// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"

	"github.com/relabs-tech/pinball_tilt/internal/motion"
	"github.com/relabs-tech/pinball_tilt/internal/rate"
	"periph.io/x/conn/v3/gpio"
)

// ADXL345 registers
const (
	regDevID      = 0x00
	regBWRate     = 0x2C
	regPowerCtl   = 0x2D
	regIntEnable  = 0x2E
	regIntMap     = 0x2F
	regIntSource  = 0x30
	regDataFormat = 0x31
	regDataX0     = 0x32

	deviceID = 0xE5

	powerMeasure = 0x08
	fullRes      = 0x08
	intDataReady = 0x80

	// full resolution keeps 3.9 mg/LSB on every range
	lsbPerG = 256.0
)

var rangeG = [...]int{2, 4, 8, 16}

// RegisterBus reads and writes device registers. Implementations handle
// addressing and the transport.
type RegisterBus interface {
	ReadRegisters(reg byte, buf []byte) error
	WriteRegister(reg, val byte) error
	Close() error
}

// Options for NewADXL345.
type Options struct {
	Range byte      // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	Rate  rate.Code // BW_RATE output data rate

	// Ready, when set, is used instead of polling INT_SOURCE. Pin, when
	// also set, drives Ready from the INT1 line.
	Ready *DataReady
	Pin   gpio.PinIn
}

// ADXL345 reads a 3-axis accelerometer through a RegisterBus.
type ADXL345 struct {
	bus   RegisterBus
	rate  rate.Code
	ready *DataReady

	cancel context.CancelFunc
	buf    [6]byte
}

// NewADXL345 checks the device ID and configures range, rate and
// interrupts, then starts measuring.
func NewADXL345(bus RegisterBus, opts Options) (*ADXL345, error) {
	if int(opts.Range) >= len(rangeG) {
		return nil, fmt.Errorf("adxl345: invalid range %d", opts.Range)
	}
	if _, ok := rate.Frequency(opts.Rate); !ok {
		return nil, fmt.Errorf("adxl345: invalid rate code 0x%02X", byte(opts.Rate))
	}

	var id [1]byte
	if err := bus.ReadRegisters(regDevID, id[:]); err != nil {
		return nil, fmt.Errorf("adxl345: read device id: %w", err)
	}
	if id[0] != deviceID {
		return nil, fmt.Errorf("adxl345: unexpected device id 0x%02X (want 0x%02X)", id[0], deviceID)
	}

	d := &ADXL345{bus: bus, ready: opts.Ready}

	if err := d.SetRate(opts.Rate); err != nil {
		return nil, err
	}
	if err := bus.WriteRegister(regDataFormat, fullRes|opts.Range); err != nil {
		return nil, fmt.Errorf("adxl345: set data format: %w", err)
	}
	log.Printf("adxl345: range set to %d (±%dg, full resolution)", opts.Range, rangeG[opts.Range])

	var intEnable byte
	if opts.Ready != nil {
		intEnable = intDataReady
		// DATA_READY on INT1
		if err := bus.WriteRegister(regIntMap, 0x00); err != nil {
			return nil, fmt.Errorf("adxl345: map interrupts: %w", err)
		}
	}
	if err := bus.WriteRegister(regIntEnable, intEnable); err != nil {
		return nil, fmt.Errorf("adxl345: enable interrupts: %w", err)
	}
	if err := bus.WriteRegister(regPowerCtl, powerMeasure); err != nil {
		return nil, fmt.Errorf("adxl345: start measuring: %w", err)
	}

	if opts.Ready != nil && opts.Pin != nil {
		ctx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel
		go func() {
			if err := WatchPin(ctx, opts.Pin, opts.Ready); err != nil {
				log.Printf("adxl345: interrupt watcher stopped: %v", err)
			}
		}()
		log.Printf("adxl345: data ready interrupt on %s", opts.Pin)
	}
	return d, nil
}

// SetRate writes the BW_RATE register.
func (d *ADXL345) SetRate(code rate.Code) error {
	hz, ok := rate.Frequency(code)
	if !ok {
		return fmt.Errorf("adxl345: invalid rate code 0x%02X", byte(code))
	}
	if err := d.bus.WriteRegister(regBWRate, byte(code)); err != nil {
		return fmt.Errorf("adxl345: set rate %s: %w", code, err)
	}
	d.rate = code
	log.Printf("adxl345: output data rate set to %.2f Hz (code 0x%02X)", hz, byte(code))
	return nil
}

func (d *ADXL345) SampleRate() float64 {
	hz, _ := rate.Frequency(d.rate)
	return hz
}

// Read returns the latest sample or ErrNoData when the device has not
// produced a new one since the last call.
func (d *ADXL345) Read() (motion.Sample, error) {
	if d.ready != nil {
		if !d.ready.Take() {
			return motion.Sample{}, ErrNoData
		}
	} else {
		var src [1]byte
		if err := d.bus.ReadRegisters(regIntSource, src[:]); err != nil {
			return motion.Sample{}, fmt.Errorf("adxl345: read int source: %w", err)
		}
		if src[0]&intDataReady == 0 {
			return motion.Sample{}, ErrNoData
		}
	}

	if err := d.bus.ReadRegisters(regDataX0, d.buf[:]); err != nil {
		return motion.Sample{}, fmt.Errorf("adxl345: read data: %w", err)
	}
	return decode(d.buf), nil
}

// decode converts DATAX0..DATAZ1 (little endian, two's complement) to g.
func decode(b [6]byte) motion.Sample {
	axis := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(b[i:]))) / lsbPerG
	}
	return motion.Sample{X: axis(0), Y: axis(2), Z: axis(4)}
}

// Close puts the device in standby and releases the bus.
func (d *ADXL345) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	if err := d.bus.WriteRegister(regPowerCtl, 0x00); err != nil {
		log.Printf("adxl345: standby: %v", err)
	}
	return d.bus.Close()
}
