package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-9

func TestSampleArithmetic(t *testing.T) {
	a := Sample{X: 1, Y: 2, Z: 3}
	b := Sample{X: 4, Y: 5, Z: 6}

	assert.Equal(t, Sample{X: 5, Y: 7, Z: 9}, a.Add(b))
	assert.Equal(t, Sample{X: -3, Y: -3, Z: -3}, a.Sub(b))
	assert.Equal(t, Sample{X: 2, Y: 4, Z: 6}, a.Scale(2))
	assert.Equal(t, Sample{X: 0.5, Y: 1, Z: 1.5}, a.Div(2))
	assert.Equal(t, a, a.Div(0), "divide by zero leaves sample unchanged")
	assert.Equal(t, 32.0, a.Dot(b))
	assert.Equal(t, Sample{X: -3, Y: 6, Z: -3}, a.Cross(b))
	assert.Equal(t, 14.0, a.MagnitudeSquared())
	assert.InDelta(t, math.Sqrt(14), a.Magnitude(), eps)
}

func TestSampleNormalize(t *testing.T) {
	n := Sample{X: 3, Y: 0, Z: 4}.Normalize()
	assert.InDelta(t, 0.6, n.X, eps)
	assert.InDelta(t, 0.8, n.Z, eps)
	assert.InDelta(t, 1.0, n.Magnitude(), eps)

	assert.Equal(t, Sample{}, Sample{}.Normalize())
}

func TestSampleValidity(t *testing.T) {
	assert.True(t, Sample{X: 1, Y: -1, Z: 0}.IsFinite())
	assert.False(t, Sample{X: math.NaN()}.IsFinite())
	assert.False(t, Sample{Y: math.Inf(1)}.IsFinite())
	assert.False(t, Sample{Z: math.Inf(-1)}.IsFinite())

	assert.True(t, Sample{}.IsZero())
	assert.False(t, Sample{Z: 1}.IsZero())
}

func TestProject(t *testing.T) {
	cases := []struct {
		name  string
		in    Sample
		pitch float64
		roll  float64
	}{
		{"level upright", Sample{X: 0, Y: 0, Z: 1}, 0, 0},
		{"upside down", Sample{X: 0, Y: 0, Z: -1}, 0, 0},
		{"edge on x", Sample{X: 1, Y: 0, Z: 0}, -90, 0},
		{"edge on -x", Sample{X: -1, Y: 0, Z: 0}, 90, 0},
		{"edge on y", Sample{X: 0, Y: 1, Z: 0}, 0, 90},
		{"45 deg pitch", Sample{X: -1, Y: 0, Z: 1}, 45, 0},
		{"45 deg roll", Sample{X: 0, Y: 1, Z: 1}, 0, 45},
		{"zero sample", Sample{}, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tilt := Project(tc.in)
			assert.InDelta(t, tc.pitch, tilt.Pitch, 1e-6)
			assert.InDelta(t, tc.roll, tilt.Roll, 1e-6)
			assert.True(t, tilt.IsFinite())
		})
	}
}

func TestProjectScaleInvariant(t *testing.T) {
	s := Sample{X: 0.2, Y: -0.1, Z: 0.97}
	a := Project(s)
	b := Project(s.Scale(16))
	assert.InDelta(t, a.Pitch, b.Pitch, 1e-9)
	assert.InDelta(t, a.Roll, b.Roll, 1e-9)
	assert.Equal(t, a, s.Tilt())
}

func TestTiltArithmetic(t *testing.T) {
	a := Tilt{Pitch: 10, Roll: -4}
	b := Tilt{Pitch: 2, Roll: 1}

	assert.Equal(t, Tilt{Pitch: 12, Roll: -3}, a.Add(b))
	assert.Equal(t, Tilt{Pitch: 8, Roll: -5}, a.Sub(b))
	assert.Equal(t, Tilt{Pitch: 5, Roll: -2}, a.Scale(0.5))
	assert.False(t, Tilt{Pitch: math.NaN()}.IsFinite())
}
