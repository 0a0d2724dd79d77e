// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"log"
	"math"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/pinball_tilt/internal/config"
)

const (
	displayW = 128
	displayH = 64

	// joystick box on the right half of the screen
	boxSize = 60
	boxX0   = displayW - boxSize - 2
	boxY0   = (displayH - boxSize) / 2

	// events stay on screen this long
	eventHold = 2 * time.Second
)

// displayState holds the latest data for display.
type displayState struct {
	mu sync.RWMutex

	joy     JoystickMessage
	haveJoy bool

	event   string
	eventAt time.Time
}

func (d *displayState) setJoystick(m JoystickMessage) {
	d.mu.Lock()
	d.joy = m
	d.haveJoy = true
	d.mu.Unlock()
}

func (d *displayState) setEvent(ev EventMessage) {
	d.mu.Lock()
	d.event = ev.Event
	d.eventAt = time.Now()
	d.mu.Unlock()
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	state := &displayState{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeJSON(client, "display", cfg.TopicJoystick, state.setJoystick); err != nil {
		return err
	}
	if err := subscribeJSON(client, "display", cfg.TopicEvents, state.setEvent); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for now := range ticker.C {
		state.mu.RLock()
		joy, haveJoy := state.joy, state.haveJoy
		event := ""
		if now.Sub(state.eventAt) < eventHold {
			event = state.event
		}
		state.mu.RUnlock()

		if err := dev.Draw(dev.Bounds(), renderJoystick(joy, haveJoy, event), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

// addrBus sends every transaction to addr. The ssd1306 driver always
// addresses 0x3C.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawText(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// renderJoystick draws the axis readout on the left and a box with the
// stick position on the right.
func renderJoystick(m JoystickMessage, have bool, event string) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	if !have {
		drawText(drawer, 0, 26, "Joystick")
		drawText(drawer, 0, 39, "Waiting...")
		return img
	}

	drawText(drawer, 0, 11, fmt.Sprintf("X%+.2f", m.X))
	drawText(drawer, 0, 23, fmt.Sprintf("Y%+.2f", m.Y))
	drawText(drawer, 0, 35, fmt.Sprintf("P%5.1f", m.Pitch))
	drawText(drawer, 0, 47, fmt.Sprintf("R%5.1f", m.Roll))
	if event != "" {
		// nine glyphs fit left of the box
		if len(event) > 9 {
			event = event[:9]
		}
		drawText(drawer, 0, 61, event)
	}

	// frame and centre cross
	for i := 0; i < boxSize; i++ {
		img.SetBit(boxX0+i, boxY0, image1bit.On)
		img.SetBit(boxX0+i, boxY0+boxSize-1, image1bit.On)
		img.SetBit(boxX0, boxY0+i, image1bit.On)
		img.SetBit(boxX0+boxSize-1, boxY0+i, image1bit.On)
	}
	cx, cy := boxX0+boxSize/2, boxY0+boxSize/2
	for i := -2; i <= 2; i++ {
		img.SetBit(cx+i, cy, image1bit.On)
		img.SetBit(cx, cy+i, image1bit.On)
	}

	// stick as a 3x3 dot; screen Y grows downwards
	px, py := stickPixel(m.X, m.Y)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			img.SetBit(px+dx, py+dy, image1bit.On)
		}
	}
	return img
}

// stickPixel maps axes in [-1, 1] to a pixel inside the joystick box.
func stickPixel(x, y float64) (int, int) {
	half := float64(boxSize/2 - 3)
	cx, cy := boxX0+boxSize/2, boxY0+boxSize/2
	x = math.Max(-1, math.Min(1, x))
	y = math.Max(-1, math.Min(1, y))
	return cx + int(math.Round(x*half)), cy - int(math.Round(y*half))
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newCanvas()
	drawText(drawer, 20, 26, "Pinball Tilt")
	drawText(drawer, 30, 43, "Joystick")
	return img
}
