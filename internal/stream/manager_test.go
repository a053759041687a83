// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/foot_ins/internal/ekf"
	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/monitoring"
	"github.com/relabs-tech/foot_ins/internal/noise"
	"github.com/relabs-tech/foot_ins/internal/stance"
	"github.com/relabs-tech/foot_ins/internal/strapdown"
)

const gravity = 9.8029

var testOpts = Options{Window: 5, Threshold: 2.2e8, MinIncrement: 5}

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func model(t *testing.T) *noise.Model {
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

func baseline(t *testing.T, samples []imu.Sample) *ekf.Run {
	t.Helper()
	d, err := stance.NewDetector(model(t), testOpts.Window, testOpts.Threshold)
	require.NoError(t, err)
	flags, err := d.Detect(samples)
	require.NoError(t, err)
	run, err := ekf.RunBaseline(model(t), samples, flags)
	require.NoError(t, err)
	return run
}

func assertSameRun(t *testing.T, want, got *ekf.Run) {
	t.Helper()
	require.Equal(t, want.Len(), got.Len())
	if diff := cmp.Diff(want.Rows, got.Rows, cmpopts.EquateApprox(1e-9, 1e-12)); diff != "" {
		t.Fatalf("stitched rows differ from single pass (-want +got):\n%s", diff)
	}
	for k := range want.Covariances {
		require.True(t, mat.EqualApprox(want.Covariances[k], got.Covariances[k], 1e-15), "covariance %d", k)
	}
}

func TestBatchEquivalenceRandomSplits(t *testing.T) {
	samples := imu.NewMockSource(0.01, 1.1, gravity, 5).Take(733)
	want := baseline(t, samples)

	for seed := int64(1); seed <= 6; seed++ {
		rng := rand.New(rand.NewSource(seed))
		mgr, err := New(model(t), testOpts)
		require.NoError(t, err)

		for i := 0; i < len(samples); {
			n := 1 + rng.Intn(40)
			if i+n > len(samples) {
				n = len(samples) - i
			}
			require.NoError(t, mgr.Feed(samples[i:i+n]...))
			i += n
			for {
				_, ok, err := mgr.Step()
				require.NoError(t, err)
				if !ok {
					break
				}
			}
		}
		_, err = mgr.Flush()
		require.NoError(t, err)
		assert.Equal(t, len(samples), mgr.Processed())
		assertSameRun(t, want, mgr.Output())
	}
}

func TestRowsAreStitchedWithoutDuplicates(t *testing.T) {
	samples := imu.NewMockSource(0.01, 1.0, gravity, 2).Take(60)
	mgr, err := New(model(t), testOpts)
	require.NoError(t, err)

	require.NoError(t, mgr.Feed(samples[:30]...))
	rows, err := mgr.ProcessBatch(30)
	require.NoError(t, err)
	assert.Len(t, rows, 30)

	require.NoError(t, mgr.Feed(samples[30:]...))
	rows, err = mgr.ProcessBatch(10)
	require.NoError(t, err)
	assert.Len(t, rows, 10)
	assert.Equal(t, 40, mgr.Output().Len())
	assert.Equal(t, 20, mgr.Pending())
}

func TestDefersShortBatches(t *testing.T) {
	mgr, err := New(model(t), Options{Window: 5, Threshold: 2.2e8, MinIncrement: 10})
	require.NoError(t, err)
	rest := restSamples(40)

	require.NoError(t, mgr.Feed(rest[:19]...))
	_, ok := mgr.NextBatch()
	assert.False(t, ok, "first batch needs seed samples")

	require.NoError(t, mgr.Feed(rest[19:22]...))
	n, ok := mgr.NextBatch()
	require.True(t, ok)
	assert.Equal(t, 20, n)
	_, err = mgr.ProcessBatch(n)
	require.NoError(t, err)

	require.NoError(t, mgr.Feed(rest[22:29]...))
	_, ok = mgr.NextBatch()
	assert.False(t, ok, "below minimum increment")

	require.NoError(t, mgr.Feed(rest[29:]...))
	n, ok = mgr.NextBatch()
	require.True(t, ok)
	assert.Equal(t, 20, n)
}

func TestProcessBatchRejectsMisaligned(t *testing.T) {
	mgr, err := New(model(t), testOpts)
	require.NoError(t, err)
	require.NoError(t, mgr.Feed(imu.NewMockSource(0.01, 1.0, gravity, 1).Take(20)...))

	_, err = mgr.ProcessBatch(17)
	assert.ErrorIs(t, err, ErrContinuity)
	_, err = mgr.ProcessBatch(25)
	assert.ErrorIs(t, err, ErrContinuity)
	_, err = mgr.ProcessBatch(0)
	assert.ErrorIs(t, err, ErrContinuity)
	assert.Equal(t, 0, mgr.Processed())
}

func TestConfigErrors(t *testing.T) {
	_, err := New(model(t), Options{Window: 5, Threshold: 1, MinIncrement: 4})
	assert.ErrorIs(t, err, ErrConfig)
	_, err = New(model(t), Options{Window: 0, Threshold: 1, MinIncrement: 4})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestFlush(t *testing.T) {
	mgr, err := New(model(t), testOpts)
	require.NoError(t, err)
	require.NoError(t, mgr.Feed(restSamples(10)...))
	_, err = mgr.Flush()
	assert.ErrorIs(t, err, strapdown.ErrInsufficientSamples)

	mgr, err = New(model(t), testOpts)
	require.NoError(t, err)
	_, err = mgr.Flush()
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.Feed(imu.Sample{}), ErrFinished)
	_, err = mgr.Flush()
	assert.ErrorIs(t, err, ErrFinished)
	_, ok := mgr.NextBatch()
	assert.False(t, ok)
}

func TestFlushTrailingPartialWindow(t *testing.T) {
	samples := imu.NewMockSource(0.01, 1.0, gravity, 8).Take(58)
	mgr, err := New(model(t), testOpts)
	require.NoError(t, err)
	require.NoError(t, mgr.Feed(samples...))
	_, _, err = mgr.Step()
	require.NoError(t, err)
	assert.Equal(t, 55, mgr.Processed())

	rows, err := mgr.Flush()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.True(t, r.Stance)
	}
	assertSameRun(t, baseline(t, samples), mgr.Output())
}

func TestConsume(t *testing.T) {
	samples := imu.NewMockSource(0.01, 1.0, gravity, 9).Take(512)
	want := baseline(t, samples)

	buf := imu.NewBuffer(len(samples))
	mgr, err := New(model(t), testOpts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rng := rand.New(rand.NewSource(3))
		for i := 0; i < len(samples); {
			n := 1 + rng.Intn(25)
			if i+n > len(samples) {
				n = len(samples) - i
			}
			buf.Append(samples[i : i+n]...)
			i += n
			time.Sleep(100 * time.Microsecond)
		}
		cancel()
	}()

	var got []ekf.Row
	err = Consume(ctx, buf, mgr, time.Millisecond, func(rows []ekf.Row) error {
		got = append(got, rows...)
		return nil
	})
	wg.Wait()
	require.NoError(t, err)

	assert.Equal(t, mgr.Output().Rows, got)
	assertSameRun(t, want, mgr.Output())
}

func TestDetectorFaultEndsRun(t *testing.T) {
	// free fall after the first batch leaves no gravity direction
	samples := append(restSamples(20), make([]imu.Sample, 5)...)

	mgr, err := New(model(t), testOpts)
	require.NoError(t, err)
	require.NoError(t, mgr.Feed(samples...))
	_, err = mgr.ProcessBatch(20)
	require.NoError(t, err)
	_, err = mgr.ProcessBatch(5)
	assert.ErrorIs(t, err, stance.ErrDegenerateWindow)
	assert.Equal(t, 20, mgr.Processed())

	buf := imu.NewBuffer(len(samples))
	buf.Append(samples...)
	mgr, err = New(model(t), testOpts)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Consume(ctx, buf, mgr, time.Hour, func([]ekf.Row) error { return nil })
	assert.ErrorIs(t, err, stance.ErrDegenerateWindow)
}
