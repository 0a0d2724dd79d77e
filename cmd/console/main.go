// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/pinball_tilt/internal/app"
	"github.com/relabs-tech/pinball_tilt/internal/config"
)

// Runs the mock sensor through the full pipeline without hardware or MQTT.
func main() {
	configPath := flag.String("config", "", "optional config file for filter and mapping settings")
	flag.Parse()

	log.Println("starting pinball-tilt (mock console)")

	var cfg *config.Config
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	if err := app.RunMockConsole(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
