package sensors

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type fakeBus struct {
	regs   [64]byte
	writes map[byte][]byte
	failAt byte
	closed bool
}

func newFakeBus() *fakeBus {
	b := &fakeBus{writes: map[byte][]byte{}}
	b.regs[regDevID] = deviceID
	return b
}

func (b *fakeBus) ReadRegisters(reg byte, buf []byte) error {
	if b.failAt != 0 && reg == b.failAt {
		return errors.New("nack")
	}
	copy(buf, b.regs[reg:])
	return nil
}

func (b *fakeBus) WriteRegister(reg, val byte) error {
	b.writes[reg] = append(b.writes[reg], val)
	b.regs[reg] = val
	return nil
}

func (b *fakeBus) Close() error {
	b.closed = true
	return nil
}

func (b *fakeBus) setAxes(x, y, z int16) {
	for i, v := range []int16{x, y, z} {
		b.regs[regDataX0+2*i] = byte(uint16(v))
		b.regs[regDataX0+2*i+1] = byte(uint16(v) >> 8)
	}
}

func TestNewADXL345Configures(t *testing.T) {
	bus := newFakeBus()
	dev, err := NewADXL345(bus, Options{Range: 1, Rate: rate.Rate100Hz})
	require.NoError(t, err)

	assert.Equal(t, []byte{byte(rate.Rate100Hz)}, bus.writes[regBWRate])
	assert.Equal(t, []byte{fullRes | 1}, bus.writes[regDataFormat])
	assert.Equal(t, []byte{0x00}, bus.writes[regIntEnable])
	assert.Equal(t, []byte{powerMeasure}, bus.writes[regPowerCtl])
	assert.Equal(t, 100.0, dev.SampleRate())
}

func TestNewADXL345Rejects(t *testing.T) {
	bus := newFakeBus()
	bus.regs[regDevID] = 0x68
	_, err := NewADXL345(bus, Options{Rate: rate.Rate100Hz})
	assert.ErrorContains(t, err, "device id")

	_, err = NewADXL345(newFakeBus(), Options{Range: 4, Rate: rate.Rate100Hz})
	assert.Error(t, err)

	_, err = NewADXL345(newFakeBus(), Options{Rate: rate.Code(0x1F)})
	assert.Error(t, err)
}

func TestADXL345ReadPolled(t *testing.T) {
	bus := newFakeBus()
	dev, err := NewADXL345(bus, Options{Rate: rate.Rate100Hz})
	require.NoError(t, err)

	bus.setAxes(128, -256, 256)
	_, err = dev.Read()
	assert.ErrorIs(t, err, ErrNoData)

	bus.regs[regIntSource] = intDataReady
	s, err := dev.Read()
	require.NoError(t, err)
	assert.Equal(t, 0.5, s.X)
	assert.Equal(t, -1.0, s.Y)
	assert.Equal(t, 1.0, s.Z)

	bus.failAt = regDataX0
	_, err = dev.Read()
	assert.ErrorContains(t, err, "read data")
}

func TestADXL345ReadWithDataReady(t *testing.T) {
	bus := newFakeBus()
	ready := &DataReady{}
	dev, err := NewADXL345(bus, Options{Rate: rate.Rate200Hz, Ready: ready})
	require.NoError(t, err)
	assert.Equal(t, []byte{intDataReady}, bus.writes[regIntEnable])

	bus.setAxes(0, 0, 256)
	_, err = dev.Read()
	assert.ErrorIs(t, err, ErrNoData)

	ready.Set()
	s, err := dev.Read()
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Z)

	_, err = dev.Read()
	assert.ErrorIs(t, err, ErrNoData, "flag is consumed by a read")
}

func TestADXL345SetRateAndClose(t *testing.T) {
	bus := newFakeBus()
	dev, err := NewADXL345(bus, Options{Rate: rate.Rate100Hz})
	require.NoError(t, err)

	require.NoError(t, dev.SetRate(rate.Rate400Hz))
	assert.Equal(t, 400.0, dev.SampleRate())
	assert.Error(t, dev.SetRate(rate.Code(0x10)))
	assert.Equal(t, 400.0, dev.SampleRate())

	require.NoError(t, dev.Close())
	assert.True(t, bus.closed)
	assert.Equal(t, byte(0x00), bus.regs[regPowerCtl])
}

func TestDecodeNegative(t *testing.T) {
	s := decode([6]byte{0x00, 0xFF, 0x80, 0x00, 0xFF, 0xFF})
	assert.Equal(t, -1.0, s.X)
	assert.Equal(t, 0.5, s.Y)
	assert.Equal(t, -1.0/256, s.Z)
}

func TestDataReady(t *testing.T) {
	var r DataReady
	assert.False(t, r.Take())
	r.Set()
	r.Set()
	assert.True(t, r.Take())
	assert.False(t, r.Take())
}

func TestWatchPin(t *testing.T) {
	pin := &gpiotest.Pin{N: "INT1", EdgesChan: make(chan gpio.Level, 1)}
	ready := &DataReady{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WatchPin(ctx, pin, ready) }()

	pin.EdgesChan <- gpio.High
	assert.Eventually(t, ready.Take, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestMockSource(t *testing.T) {
	m := NewMockSource(rate.Rate50Hz)
	assert.Equal(t, 50.0, m.SampleRate())

	base := m.start
	m.now = func() time.Time { return base.Add(1500 * time.Millisecond) }
	s, err := m.Read()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Magnitude(), 1e-9)
	assert.False(t, math.IsNaN(s.X))

	assert.Error(t, m.SetRate(rate.Code(0x20)))
	require.NoError(t, m.SetRate(rate.Rate25Hz))
	assert.Equal(t, 25.0, m.SampleRate())
	assert.NoError(t, m.Close())
}
