// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"gobot.io/x/gobot/sysfs"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// PeriphBus is a RegisterBus on a periph.io I2C bus.
type PeriphBus struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// OpenPeriphBus opens the named bus ("" for the first one) and addresses
// the device at addr.
func OpenPeriphBus(name string, addr uint16) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("i2c: periph host init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c: open bus %q: %w", name, err)
	}
	return &PeriphBus{bus: bus, dev: &i2c.Dev{Bus: bus, Addr: addr}}, nil
}

func (b *PeriphBus) ReadRegisters(reg byte, buf []byte) error {
	return b.dev.Tx([]byte{reg}, buf)
}

func (b *PeriphBus) WriteRegister(reg, val byte) error {
	return b.dev.Tx([]byte{reg, val}, nil)
}

func (b *PeriphBus) Close() error {
	return b.bus.Close()
}

// byteDevice is the subset of gobot's sysfs I2C device used here.
type byteDevice interface {
	SetAddress(address int) error
	ReadByteData(reg uint8) (uint8, error)
	WriteByteData(reg, val uint8) error
	Close() error
}

// SysfsBus is a RegisterBus on /dev/i2c-N through gobot's sysfs driver.
// Multi-byte reads are issued one register at a time.
type SysfsBus struct {
	dev byteDevice
}

func OpenSysfsBus(path string, addr int) (*SysfsBus, error) {
	if path == "" {
		path = "/dev/i2c-1"
	}
	dev, err := sysfs.NewI2cDevice(path)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", path, err)
	}
	if err := dev.SetAddress(addr); err != nil {
		dev.Close()
		return nil, fmt.Errorf("i2c: set address 0x%02X: %w", addr, err)
	}
	return &SysfsBus{dev: dev}, nil
}

func (b *SysfsBus) ReadRegisters(reg byte, buf []byte) error {
	for i := range buf {
		v, err := b.dev.ReadByteData(reg + byte(i))
		if err != nil {
			return fmt.Errorf("read register 0x%02X: %w", reg+byte(i), err)
		}
		buf[i] = v
	}
	return nil
}

func (b *SysfsBus) WriteRegister(reg, val byte) error {
	return b.dev.WriteByteData(reg, val)
}

func (b *SysfsBus) Close() error {
	return b.dev.Close()
}
