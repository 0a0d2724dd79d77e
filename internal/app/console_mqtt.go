// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/config"
)

// RunConsoleMQTT prints producer output. Joystick positions are printed at
// most once per CONSOLE_LOG_INTERVAL; events and calibrations as they come.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	interval := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond
	var (
		mu       sync.Mutex
		lastShow time.Time
	)
	if err := subscribeJSON(client, "console", cfg.TopicJoystick, func(m JoystickMessage) {
		mu.Lock()
		defer mu.Unlock()
		if time.Since(lastShow) < interval {
			return
		}
		lastShow = time.Now()
		fmt.Println(formatJoystick(m))
	}); err != nil {
		return err
	}

	if err := subscribeJSON(client, "console", cfg.TopicEvents, func(ev EventMessage) {
		fmt.Printf("[EVENT] %-12s %s\n", ev.Event, ev.Time)
	}); err != nil {
		return err
	}

	if err := subscribeJSON(client, "console", cfg.TopicCalibration, func(c CalibrationMessage) {
		fmt.Println(formatCalibration(c))
	}); err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatJoystick(m JoystickMessage) string {
	return fmt.Sprintf("[JOY]   X=%+6.3f  Y=%+6.3f  PITCH=%6.2f  ROLL=%6.2f", m.X, m.Y, m.Pitch, m.Roll)
}

func formatCalibration(c CalibrationMessage) string {
	if c.Error != "" {
		return fmt.Sprintf("[CAL]   failed: %s (%d/%d valid)", c.Error, c.Valid, c.Requested)
	}
	return fmt.Sprintf("[CAL]   PITCH=%6.2f  ROLL=%6.2f  offset=(%+.3f, %+.3f)  %d/%d valid",
		c.Tilt.Pitch, c.Tilt.Roll, c.OffsetX, c.OffsetY, c.Valid, c.Requested)
}
