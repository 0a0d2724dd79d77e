package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrequency(t *testing.T) {
	cases := []struct {
		code Code
		hz   float64
		ok   bool
	}{
		{Rate0_10Hz, 0.10, true},
		{Rate12_5Hz, 12.5, true},
		{Rate100Hz, 100, true},
		{Rate3200Hz, 3200, true},
		{Code(0x10), 0, false},
		{Code(0xFF), 0, false},
	}

	for _, tc := range cases {
		hz, ok := Frequency(tc.code)
		assert.Equal(t, tc.ok, ok, "code 0x%02X", byte(tc.code))
		assert.Equal(t, tc.hz, hz, "code 0x%02X", byte(tc.code))
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		hz   float64
		code Code
	}{
		{0.05, Rate0_10Hz},
		{0.10, Rate0_10Hz},
		{0.15, Rate0_20Hz},
		{50, Rate50Hz},
		{60, Rate100Hz},
		{100, Rate100Hz},
		{1600, Rate1600Hz},
		{2000, Rate3200Hz},
		{10000, Rate3200Hz},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, CodeFor(tc.hz), "%.2f Hz", tc.hz)
	}
}

func TestInterval(t *testing.T) {
	d, ok := Interval(Rate100Hz)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, d)

	_, ok = Interval(Code(0x20))
	assert.False(t, ok)
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "100Hz", Rate100Hz.String())
	assert.Equal(t, "12.5Hz", Rate12_5Hz.String())
	assert.Equal(t, "Code(0x20)", Code(0x20).String())
}
