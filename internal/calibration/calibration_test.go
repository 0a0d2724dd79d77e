package calibration

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/relabs-tech/pinball_tilt/internal/motion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorMean(t *testing.T) {
	var est Estimator[motion.Sample]
	est.Begin(3)
	for _, v := range []float64{1, 2, 3} {
		assert.True(t, est.Accumulate(motion.Sample{X: v, Y: v, Z: v}))
	}

	mean, err := est.Finish()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, mean.X, 1e-12)
	assert.InDelta(t, 2.0, mean.Y, 1e-12)
	assert.InDelta(t, 2.0, mean.Z, 1e-12)
}

func TestEstimatorTilt(t *testing.T) {
	var est Estimator[motion.Tilt]
	est.Begin(2)
	est.Accumulate(motion.Tilt{Pitch: 1, Roll: -2})
	est.Accumulate(motion.Tilt{Pitch: 3, Roll: -4})

	mean, err := est.Finish()
	require.NoError(t, err)
	assert.Equal(t, motion.Tilt{Pitch: 2, Roll: -3}, mean)
}

func TestEstimatorRejectsNonFinite(t *testing.T) {
	var est Estimator[motion.Sample]
	est.Begin(10)
	for i := 0; i < 7; i++ {
		est.Accumulate(motion.Sample{Z: 1})
	}
	assert.False(t, est.Accumulate(motion.Sample{X: math.NaN()}))
	assert.False(t, est.Accumulate(motion.Sample{Y: math.Inf(1)}))
	est.Reject()

	mean, err := est.Finish()
	require.NoError(t, err, "7 of 10 meets the minimum")
	assert.Equal(t, motion.Sample{Z: 1}, mean)
	assert.Equal(t, 7, est.Valid())
	assert.Equal(t, 3, est.Invalid())
}

func TestEstimatorInsufficient(t *testing.T) {
	cases := []struct {
		name      string
		requested int
		valid     int
	}{
		{"none valid", 10, 0},
		{"below minimum", 10, 6},
		{"rounded up minimum", 9, 6},
		{"nothing requested", 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var est Estimator[motion.Sample]
			est.Begin(tc.requested)
			for i := 0; i < tc.valid; i++ {
				est.Accumulate(motion.Sample{Z: 1})
			}
			for i := tc.valid; i < tc.requested; i++ {
				est.Reject()
			}

			_, err := est.Finish()
			var insufficient *InsufficientSamplesError
			require.True(t, errors.As(err, &insufficient))
			assert.Equal(t, tc.requested, insufficient.Requested)
			assert.Equal(t, tc.valid, insufficient.Valid)
			assert.Equal(t, tc.requested-tc.valid, insufficient.Invalid)
		})
	}
}

func TestEstimatorBeginClears(t *testing.T) {
	var est Estimator[motion.Sample]
	est.Begin(1)
	est.Accumulate(motion.Sample{X: 100})

	est.Begin(1)
	est.Accumulate(motion.Sample{X: 1})
	mean, err := est.Finish()
	require.NoError(t, err)
	assert.Equal(t, motion.Sample{X: 1}, mean)
}

func TestRun(t *testing.T) {
	n := 0
	next := func() (motion.Sample, error) {
		n++
		if n%5 == 0 {
			return motion.Sample{}, errors.New("bus timeout")
		}
		return motion.Sample{X: 0.1, Z: 1}, nil
	}

	res, err := Run(context.Background(), Config{Samples: 20}, next)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Requested)
	assert.Equal(t, 16, res.Valid)
	assert.Equal(t, 4, res.Invalid)
	assert.InDelta(t, 0.1, res.Offset.X, 1e-12)
	assert.InDelta(t, 1.0, res.Offset.Z, 1e-12)
}

func TestRunTimeout(t *testing.T) {
	next := func() (motion.Sample, error) {
		return motion.Sample{Z: 1}, nil
	}
	cfg := Config{Samples: 100, Interval: 10 * time.Millisecond, Timeout: 30 * time.Millisecond}

	res, err := Run(context.Background(), cfg, next)
	var insufficient *InsufficientSamplesError
	require.True(t, errors.As(err, &insufficient))
	assert.Less(t, res.Valid, 70)
	assert.Equal(t, 100, res.Valid+res.Invalid)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Config{Samples: 5}, func() (motion.Sample, error) {
		return motion.Sample{Z: 1}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCancelledWithEnoughSamples(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := 0
	res, err := Run(ctx, Config{Samples: 20}, func() (motion.Sample, error) {
		n++
		if n == 18 {
			cancel()
		}
		return motion.Sample{Z: 1}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	var insufficient *InsufficientSamplesError
	assert.False(t, errors.As(err, &insufficient), "18 of 20 is enough, the failure is the cancel")
	assert.Equal(t, 18, res.Valid)
	assert.Equal(t, 2, res.Invalid)
	assert.Equal(t, motion.Sample{}, res.Offset)
}

func TestRunTimeoutWithEnoughSamplesSucceeds(t *testing.T) {
	n := 0
	res, err := Run(context.Background(), Config{Samples: 10, Interval: 2 * time.Millisecond, Timeout: 200 * time.Millisecond},
		func() (motion.Sample, error) {
			n++
			if n == 8 {
				// stall past the deadline; 8 of 10 clears the floor
				time.Sleep(400 * time.Millisecond)
			}
			return motion.Sample{Z: 1}, nil
		})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Valid, 8)
	assert.Less(t, res.Valid, 10, "stopped at the deadline")
	assert.InDelta(t, 1.0, res.Offset.Z, 1e-12)
}

func TestRunRejectsZeroSamples(t *testing.T) {
	_, err := Run(context.Background(), Config{}, func() (motion.Sample, error) {
		return motion.Sample{}, nil
	})
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	rec := Record{
		Baseline:     motion.Sample{X: 0.01, Y: -0.02, Z: 0.99},
		Tilt:         motion.Tilt{Pitch: -0.5, Roll: -1.1},
		OffsetX:      -0.04,
		OffsetY:      -0.09,
		Requested:    128,
		Valid:        128,
		MaxTiltAngle: 12.5,
	}
	rec.Stamp(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, Save(path, rec))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, "2026-03-01T12:00:00Z", got.Timestamp)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
