// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Standalone level calibration. Keep the cabinet still and level; the
// resulting record is written as JSON and picked up by the producer on its
// next start.
//
// Run:
//
//	sudo ./calibration -out calibration.json
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/relabs-tech/pinball_tilt/internal/app"
	"github.com/relabs-tech/pinball_tilt/internal/config"
)

func main() {
	configPath := flag.String("config", "pinball_config.txt", "path to config file")
	out := flag.String("out", "", "output file (defaults to CALIBRATION_FILE)")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	rec, err := app.RunCalibration(*out)
	if err != nil {
		log.Fatalf("calibration failed: %v", err)
	}

	fmt.Printf("pitch %+.2f°  roll %+.2f°\n", rec.Tilt.Pitch, rec.Tilt.Roll)
	fmt.Printf("offset x %+.4f  y %+.4f\n", rec.OffsetX, rec.OffsetY)
	fmt.Printf("samples %d/%d valid\n", rec.Valid, rec.Requested)
}
