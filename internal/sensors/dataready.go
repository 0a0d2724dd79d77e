// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DataReady is a one-writer, one-reader flag raised when the sensor has a
// new sample. Each device owns its own flag.
type DataReady struct {
	flag atomic.Bool
}

func (r *DataReady) Set() {
	r.flag.Store(true)
}

// Take reports whether the flag was set and clears it.
func (r *DataReady) Take() bool {
	return r.flag.Swap(false)
}

// edgePoll bounds each WaitForEdge so cancellation is noticed.
const edgePoll = 100 * time.Millisecond

// OpenInterruptPin looks up a GPIO by name and arms it for rising edges.
func OpenInterruptPin(name string) (gpio.PinIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: periph host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio: pin %q not found", name)
	}
	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("gpio: configure %s: %w", name, err)
	}
	return pin, nil
}

// WatchPin sets ready on every rising edge of pin until ctx is done.
func WatchPin(ctx context.Context, pin gpio.PinIn, ready *DataReady) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if pin.WaitForEdge(edgePoll) {
			ready.Set()
		}
	}
}
