// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/noise"
)

func newDetector(t *testing.T, w int, threshold float64) *Detector {
	t.Helper()
	d, err := NewDetector(noise.MustNew(noise.DefaultParams()), w, threshold)
	require.NoError(t, err)
	return d
}

func TestIdenticalWindowSharesStatistic(t *testing.T) {
	d := newDetector(t, 5, 2.2e8)
	s := imu.Sample{Ax: 0.4, Ay: -0.2, Az: 9.6, Gx: 0.3, Gy: 0.1, Gz: -0.05}
	samples := []imu.Sample{s, s, s, s, s}

	stats, err := d.Statistic(samples)
	require.NoError(t, err)
	for _, v := range stats[1:] {
		assert.Equal(t, stats[0], v)
	}
	assert.Greater(t, stats[0], 0.0)
}

func TestStatisticEqualWithinEveryWindow(t *testing.T) {
	d := newDetector(t, 5, 2.2e8)
	samples := imu.NewMockSource(0.01, 1.0, 9.8029, 3).Take(103)

	stats, err := d.Statistic(samples)
	require.NoError(t, err)
	for k := 0; k+5 <= 100; k += 5 {
		for i := k; i < k+5; i++ {
			assert.Equal(t, stats[k], stats[i], "sample %d", i)
		}
	}
	// trailing partial window
	assert.Equal(t, []float64{0, 0, 0}, stats[100:])
}

func TestRestIsStance(t *testing.T) {
	d := newDetector(t, 5, 2.2e8)
	samples := make([]imu.Sample, 40)
	for i := range samples {
		samples[i] = imu.Sample{Az: 9.8029}
	}
	flags, err := d.Detect(samples)
	require.NoError(t, err)
	for i, f := range flags {
		assert.True(t, f, "sample %d", i)
	}
}

func TestSwingIsNotStance(t *testing.T) {
	d := newDetector(t, 5, 2.2e8)
	samples := imu.NewMockSource(0.01, 1.0, 9.8029, 1).Take(100)
	flags, err := d.Detect(samples)
	require.NoError(t, err)

	// first half of each step is stance, second half swing
	assert.True(t, flags[10])
	assert.False(t, flags[60])
}

func TestThresholdSweepIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := make([]imu.Sample, 200)
	for i := range samples {
		samples[i] = imu.Sample{
			Ax: rng.NormFloat64() * 0.05,
			Ay: rng.NormFloat64() * 0.05,
			Az: 9.8 + rng.NormFloat64()*0.05,
			Gx: rng.NormFloat64() * 0.02,
			Gy: rng.NormFloat64() * 0.02,
			Gz: rng.NormFloat64() * 0.02,
		}
	}

	prev := -1
	for _, g := range []float64{1e2, 1e4, 1e5, 1e6, 1e7, 1e8, 1e10} {
		flags, err := newDetector(t, 5, g).Detect(samples)
		require.NoError(t, err)
		count := 0
		for _, f := range flags {
			if f {
				count++
			}
		}
		assert.GreaterOrEqual(t, count, prev, "threshold %g", g)
		prev = count
	}
	assert.Equal(t, len(samples), prev)
}

func TestDetectorErrors(t *testing.T) {
	_, err := NewDetector(noise.MustNew(noise.DefaultParams()), 0, 1)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	d := newDetector(t, 5, 1)
	_, err = d.Detect(make([]imu.Sample, 4))
	assert.ErrorIs(t, err, ErrWindowTooLarge)

	// free fall: zero mean acceleration
	_, err = d.Detect(make([]imu.Sample, 10))
	assert.ErrorIs(t, err, ErrDegenerateWindow)
}
