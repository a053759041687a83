// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ekf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/noise"
	"github.com/relabs-tech/foot_ins/internal/stance"
)

const gravity = 9.8029

func testModel(t *testing.T) *noise.Model {
	t.Helper()
	return noise.MustNew(noise.DefaultParams())
}

func restSamples(n int) []imu.Sample {
	out := make([]imu.Sample, n)
	for i := range out {
		out[i] = imu.Sample{Az: gravity}
	}
	return out
}

func gait(t *testing.T, n int) ([]imu.Sample, []bool) {
	t.Helper()
	samples := imu.NewMockSource(0.01, 1.0, gravity, 11).Take(n)
	d, err := stance.NewDetector(testModel(t), 5, 2.2e8)
	require.NoError(t, err)
	flags, err := d.Detect(samples)
	require.NoError(t, err)
	return samples, flags
}

func TestRunBaselineDeterministic(t *testing.T) {
	samples, flags := gait(t, 403)
	a, err := RunBaseline(testModel(t), samples, flags)
	require.NoError(t, err)
	b, err := RunBaseline(testModel(t), samples, flags)
	require.NoError(t, err)

	require.Equal(t, len(samples), a.Len())
	assert.Equal(t, a.Rows, b.Rows)
	for k := range a.Covariances {
		require.True(t, mat.Equal(a.Covariances[k], b.Covariances[k]), "covariance %d", k)
	}
}

func TestCovarianceSymmetricPSD(t *testing.T) {
	samples, flags := gait(t, 300)
	run, err := RunBaseline(testModel(t), samples, flags)
	require.NoError(t, err)

	for k, p := range run.Covariances {
		for i := 0; i < 9; i++ {
			for j := 0; j < i; j++ {
				require.Equal(t, p.At(i, j), p.At(j, i), "P[%d] not symmetric at (%d,%d)", k, i, j)
			}
		}
		var eig mat.EigenSym
		require.True(t, eig.Factorize(mat.NewSymDense(9, p.RawMatrix().Data), false))
		for _, v := range eig.Values(nil) {
			require.GreaterOrEqual(t, v, -1e-12, "P[%d] eigenvalue", k)
		}
	}
}

func TestZeroMotion(t *testing.T) {
	samples := restSamples(200)
	d, err := stance.NewDetector(testModel(t), 5, 2.2e8)
	require.NoError(t, err)
	flags, err := d.Detect(samples)
	require.NoError(t, err)
	for _, f := range flags[5:] {
		require.True(t, f)
	}

	run, err := RunBaseline(testModel(t), samples, flags)
	require.NoError(t, err)
	last := run.Rows[len(run.Rows)-1]
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0.0, last.Position[i], 1e-9)
		assert.InDelta(t, 0.0, last.Velocity[i], 1e-9)
	}
}

func TestZuptBoundsDrift(t *testing.T) {
	samples, flags := gait(t, 600)
	withZupt, err := RunBaseline(testModel(t), samples, flags)
	require.NoError(t, err)
	without, err := RunBaseline(testModel(t), samples, make([]bool, len(samples)))
	require.NoError(t, err)

	// sample 449 closes the fifth stance phase
	v := withZupt.Rows[449].Velocity
	u := without.Rows[449].Velocity
	require.True(t, withZupt.Rows[449].Stance)
	assert.Less(t, norm(v), 0.05)
	assert.Less(t, norm(v), norm(u))
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func TestCorrectIsPure(t *testing.T) {
	f := New(testModel(t))
	seed, err := f.Initialize(restSamples(20))
	require.NoError(t, err)

	pred := f.Predict(seed, imu.Sample{Ax: 0.5, Az: gravity})
	before := mat.DenseCopyOf(pred.P)
	x := pred.X

	est, err := f.Correct(pred)
	require.NoError(t, err)
	assert.Equal(t, x, pred.X)
	assert.True(t, mat.Equal(before, pred.P))
	assert.Less(t, math.Abs(est.X[3]), math.Abs(pred.X[3]))
	assert.Less(t, est.P.At(3, 3), pred.P.At(3, 3))
}

func TestCorrectSingularInnovation(t *testing.T) {
	m := testModel(t)
	f := New(m)
	seed, err := f.Initialize(restSamples(20))
	require.NoError(t, err)

	// a velocity block of -R makes H·P·Hᵀ + R vanish
	pred := f.Predict(seed, imu.Sample{Az: gravity})
	pred.P = mat.NewDense(9, 9, nil)
	for i := 3; i < 6; i++ {
		pred.P.Set(i, i, -m.R().At(0, 0))
	}
	_, err = f.Correct(pred)
	assert.ErrorIs(t, err, ErrSingularInnovation)
}

func TestVerticalFlip(t *testing.T) {
	f := New(testModel(t))
	seed, err := f.Initialize(restSamples(20))
	require.NoError(t, err)
	seed.X[2] = 1.5

	b := NewBatch(1, seed)
	var run Run
	require.NoError(t, run.Append(b, []bool{true}, false))
	assert.Equal(t, -1.5, run.Rows[0].Position[2])
	assert.Equal(t, 1.5, b.Last().X[2])
}

func TestFilterStateErrors(t *testing.T) {
	f := New(testModel(t))
	_, err := f.Last()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, f.Advance(NewBatch(2, Estimate{P: mat.NewDense(9, 9, nil)}), restSamples(2), make([]bool, 2)), ErrNotInitialized)

	seed, err := f.Initialize(restSamples(25))
	require.NoError(t, err)
	assert.True(t, f.Running())
	_, err = f.Initialize(restSamples(25))
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	err = f.Advance(NewBatch(3, seed), restSamples(4), make([]bool, 3))
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = RunBaseline(testModel(t), restSamples(10), make([]bool, 10))
	assert.Error(t, err)
	_, err = RunBaseline(testModel(t), restSamples(30), make([]bool, 29))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestSummarize(t *testing.T) {
	run := &Run{Rows: []Row{
		{Position: [3]float64{0, 0, 0}, Stance: true},
		{Position: [3]float64{3, 0, 0}},
		{Position: [3]float64{3, 4, 12}, Stance: true},
	}}
	s := run.Summarize(20)
	assert.Equal(t, 3, s.Samples)
	assert.Equal(t, 2, s.StanceSamples)
	assert.InDelta(t, 5.0, s.HorizontalDrift, 1e-12)
	assert.InDelta(t, 13.0, s.Drift3D, 1e-12)
	assert.InDelta(t, 7.0, s.TravelledXY, 1e-12)
	assert.InDelta(t, 25.0, s.RelativeError, 1e-12)

	assert.Equal(t, Summary{}, (&Run{}).Summarize(0))
}
