// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stream drives the filter incrementally over a live sample stream.
//
// Samples are processed in batches whose raw length is a multiple of the
// detector window, so detector windows line up with those of a single
// offline pass. Every batch after the first is prefixed with a carried slot
// holding the previous batch's last estimate; that slot is dropped again
// when the batch output is stitched onto the run. The stitched output is
// identical to ekf.RunBaseline over the concatenated samples.
package stream

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/foot_ins/internal/ekf"
	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/monitoring"
	"github.com/relabs-tech/foot_ins/internal/noise"
	"github.com/relabs-tech/foot_ins/internal/stance"
	"github.com/relabs-tech/foot_ins/internal/strapdown"
)

var (
	ErrContinuity = errors.New("stream: batch breaks window alignment")
	ErrFinished   = errors.New("stream: run already flushed")
	ErrConfig     = errors.New("stream: invalid configuration")
)

// Options configure a Manager.
type Options struct {
	Window       int     // detector window W
	Threshold    float64 // detector threshold G
	MinIncrement int     // new samples required before a batch runs, >= Window
}

// Manager accumulates fed samples and runs the filter over them batch by
// batch. It is not safe for concurrent use.
type Manager struct {
	filter       *ekf.Filter
	detector     *stance.Detector
	window       int
	minIncrement int

	samples   []imu.Sample
	processed int
	lastFlag  bool
	batches   int
	finished  bool
	run       ekf.Run
}

// New validates opts and returns a manager for a fresh run.
func New(model *noise.Model, opts Options) (*Manager, error) {
	d, err := stance.NewDetector(model, opts.Window, opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if opts.MinIncrement < opts.Window {
		return nil, fmt.Errorf("%w: minimum increment %d below window %d", ErrConfig, opts.MinIncrement, opts.Window)
	}
	return &Manager{
		filter:       ekf.New(model),
		detector:     d,
		window:       opts.Window,
		minIncrement: opts.MinIncrement,
	}, nil
}

// Feed appends newly delivered samples.
func (m *Manager) Feed(samples ...imu.Sample) error {
	if m.finished {
		return ErrFinished
	}
	m.samples = append(m.samples, samples...)
	return nil
}

// Fed is the number of samples delivered so far.
func (m *Manager) Fed() int { return len(m.samples) }

// Processed is the number of samples covered by the output.
func (m *Manager) Processed() int { return m.processed }

// Pending is the number of delivered samples not yet processed.
func (m *Manager) Pending() int { return len(m.samples) - m.processed }

// NextBatch returns the number of new raw samples the next batch should
// cover, or false when the manager should wait for more data. The first
// batch also needs strapdown.SeedSamples samples to level the attitude.
// The carried slot is not counted: sizing a batch as a multiple of W minus
// one would shift the detector windows by one sample per batch.
func (m *Manager) NextBatch() (int, bool) {
	if m.finished {
		return 0, false
	}
	l := m.Pending()
	if l < m.minIncrement {
		return 0, false
	}
	n := l / m.window * m.window
	if m.batches == 0 && n < strapdown.SeedSamples {
		return 0, false
	}
	return n, n > 0
}

// ProcessBatch runs the filter over the next n pending samples and returns
// the output rows it added.
func (m *Manager) ProcessBatch(n int) ([]ekf.Row, error) {
	if m.finished {
		return nil, ErrFinished
	}
	if n <= 0 || n%m.window != 0 {
		return nil, fmt.Errorf("%w: %d samples with window %d", ErrContinuity, n, m.window)
	}
	if n > m.Pending() {
		return nil, fmt.Errorf("%w: %d samples requested, %d pending", ErrContinuity, n, m.Pending())
	}
	return m.process(n)
}

// Step processes one batch if enough samples are pending.
func (m *Manager) Step() ([]ekf.Row, bool, error) {
	n, ok := m.NextBatch()
	if !ok {
		return nil, false, nil
	}
	rows, err := m.ProcessBatch(n)
	return rows, err == nil, err
}

// Flush processes every pending sample, including a trailing partial
// detector window, and ends the run. Further feeds fail with ErrFinished.
func (m *Manager) Flush() ([]ekf.Row, error) {
	if m.finished {
		return nil, ErrFinished
	}
	var rows []ekf.Row
	if n := m.Pending(); n > 0 {
		var err error
		if rows, err = m.process(n); err != nil {
			return nil, err
		}
	}
	m.finished = true
	monitoring.Logf("stream: flushed run, %d samples in %d batches", m.processed, m.batches)
	return rows, nil
}

// Output returns the stitched run so far.
func (m *Manager) Output() *ekf.Run { return &m.run }

func (m *Manager) process(n int) ([]ekf.Row, error) {
	raw := m.samples[m.processed : m.processed+n]
	flags, err := m.detect(raw)
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", m.batches, err)
	}

	var (
		batch   *ekf.Batch
		samples []imu.Sample
		stance  []bool
		carried bool
	)
	if m.batches == 0 {
		seed, err := m.filter.Initialize(raw)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", m.batches, err)
		}
		batch = ekf.NewBatch(n, seed)
		samples, stance = raw, flags
	} else {
		last, err := m.filter.Last()
		if err != nil {
			return nil, err
		}
		batch = ekf.NewBatch(n+1, last)
		samples = append([]imu.Sample{m.samples[m.processed-1]}, raw...)
		stance = append([]bool{m.lastFlag}, flags...)
		carried = true
	}

	if err := m.filter.Advance(batch, samples, stance); err != nil {
		return nil, fmt.Errorf("batch %d: %w", m.batches, err)
	}
	start := m.run.Len()
	if err := m.run.Append(batch, stance, carried); err != nil {
		return nil, err
	}

	m.processed += n
	m.lastFlag = flags[len(flags)-1]
	m.batches++
	return m.run.Rows[start:len(m.run.Rows):len(m.run.Rows)], nil
}

// detect flags a batch of raw samples. A batch shorter than the window only
// happens for the final flush, where the partial window has a zero
// statistic exactly as in a single pass.
func (m *Manager) detect(raw []imu.Sample) ([]bool, error) {
	if len(raw) < m.window {
		return m.detector.Threshold(make([]float64, len(raw))), nil
	}
	return m.detector.Detect(raw)
}
