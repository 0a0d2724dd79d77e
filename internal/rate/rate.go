// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package rate maps ADXL345 BW_RATE codes to output data rates.
package rate

import (
	"fmt"
	"strconv"
	"time"
)

// Code is the 4-bit output data rate code written to BW_RATE (0x2C).
type Code byte

const (
	Rate0_10Hz Code = 0x00
	Rate0_20Hz Code = 0x01
	Rate0_39Hz Code = 0x02
	Rate0_78Hz Code = 0x03
	Rate1_56Hz Code = 0x04
	Rate3_13Hz Code = 0x05
	Rate6_25Hz Code = 0x06
	Rate12_5Hz Code = 0x07
	Rate25Hz   Code = 0x08
	Rate50Hz   Code = 0x09
	Rate100Hz  Code = 0x0A
	Rate200Hz  Code = 0x0B
	Rate400Hz  Code = 0x0C
	Rate800Hz  Code = 0x0D
	Rate1600Hz Code = 0x0E
	Rate3200Hz Code = 0x0F
)

// MaxCode is the highest valid rate code.
const MaxCode = Rate3200Hz

var frequencies = [...]float64{
	0.10, 0.20, 0.39, 0.78,
	1.56, 3.13, 6.25, 12.5,
	25, 50, 100, 200,
	400, 800, 1600, 3200,
}

// Frequency returns the sampling frequency in Hz for code.
// The second result is false for codes outside the table.
func Frequency(code Code) (float64, bool) {
	if code > MaxCode {
		return 0, false
	}
	return frequencies[code], true
}

// CodeFor returns the supported rate code closest above-or-equal to hz,
// using the same bound search as the sensor firmware: the first table entry
// (searching downward) that hz strictly exceeds selects the next code up.
// Frequencies at or below 0.10 Hz map to Rate0_10Hz; anything above
// 1600 Hz maps to Rate3200Hz.
func CodeFor(hz float64) Code {
	for i := len(frequencies) - 2; i >= 0; i-- {
		if hz > frequencies[i] {
			return Code(i + 1)
		}
	}
	return Rate0_10Hz
}

// Interval returns the natural sample period for code.
func Interval(code Code) (time.Duration, bool) {
	hz, ok := Frequency(code)
	if !ok {
		return 0, false
	}
	return time.Duration(float64(time.Second) / hz), true
}

func (c Code) String() string {
	hz, ok := Frequency(c)
	if !ok {
		return fmt.Sprintf("Code(0x%02X)", byte(c))
	}
	return strconv.FormatFloat(hz, 'f', -1, 64) + "Hz"
}
