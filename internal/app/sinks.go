// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"

	"github.com/jacobsa/go-serial/serial"
)

// Sink receives joystick positions from the producer loop.
type Sink interface {
	Write(JoystickMessage) error
	Close() error
}

// topicSink publishes each position as JSON.
type topicSink struct {
	pub   Publisher
	topic string
}

func (s topicSink) Write(m JoystickMessage) error {
	return s.pub.PublishJSON(s.topic, false, m)
}

func (s topicSink) Close() error { return nil }

// LineSink writes "x\ty\n" lines, one per sample.
type LineSink struct {
	w io.Writer
}

func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

func (s *LineSink) Write(m JoystickMessage) error {
	_, err := fmt.Fprintf(s.w, "%.4f\t%.4f\n", m.X, m.Y)
	return err
}

func (s *LineSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func openSerialSink(port string, baud int) (*LineSink, error) {
	serialOpts := serial.OpenOptions{
		PortName:        port,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	w, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	log.Printf("joystick: serial output on %s at %d baud", port, baud)
	return NewLineSink(w), nil
}
