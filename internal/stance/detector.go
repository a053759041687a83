// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stance detects the zero-velocity (stance) phases of gait with the
// windowed SHOE likelihood statistic.
package stance

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/noise"
)

// minMeanNorm is the smallest window mean acceleration that can be
// normalized to a gravity direction.
const minMeanNorm = 1e-9

var (
	ErrInvalidWindow    = errors.New("stance: window size must be at least 1")
	ErrWindowTooLarge   = errors.New("stance: window larger than sample sequence")
	ErrDegenerateWindow = errors.New("stance: window mean acceleration has zero norm")
)

// Detector computes the SHOE statistic over consecutive non-overlapping
// windows and thresholds it.
type Detector struct {
	invA      float64
	invW      float64
	g         float64
	window    int
	threshold float64
}

// NewDetector builds a detector with window size w and threshold g.
func NewDetector(model *noise.Model, w int, threshold float64) (*Detector, error) {
	if w < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, w)
	}
	return &Detector{
		invA:      1 / model.VarA(),
		invW:      1 / model.VarW(),
		g:         model.Gravity(),
		window:    w,
		threshold: threshold,
	}, nil
}

func (d *Detector) Window() int               { return d.window }
func (d *Detector) ThresholdValue() float64 { return d.threshold }

// Statistic returns one test statistic per sample. Windows start at
// 0, W, 2W, ... and every sample of a window carries the window sum divided
// by W. Samples after the last full window keep a statistic of 0.
func (d *Detector) Statistic(samples []imu.Sample) ([]float64, error) {
	n := len(samples)
	if d.window > n {
		return nil, fmt.Errorf("%w: window %d, %d samples", ErrWindowTooLarge, d.window, n)
	}

	out := make([]float64, n)
	w := d.window
	for k := 0; k <= n-w; k += w {
		var mx, my, mz float64
		for _, s := range samples[k : k+w] {
			mx += s.Ax
			my += s.Ay
			mz += s.Az
		}
		mx /= float64(w)
		my /= float64(w)
		mz /= float64(w)
		norm := math.Sqrt(mx*mx + my*my + mz*mz)
		if norm < minMeanNorm {
			return nil, fmt.Errorf("%w: window at sample %d", ErrDegenerateWindow, k)
		}
		rx, ry, rz := d.g*mx/norm, d.g*my/norm, d.g*mz/norm

		var sum float64
		for _, s := range samples[k : k+w] {
			dx, dy, dz := s.Ax-rx, s.Ay-ry, s.Az-rz
			sum += d.invA * (dx*dx + dy*dy + dz*dz)
			sum += d.invW * (s.Gx*s.Gx + s.Gy*s.Gy + s.Gz*s.Gz)
		}
		for i := k; i < k+w; i++ {
			out[i] = sum
		}
	}

	for i := range out {
		out[i] /= float64(w)
	}
	return out, nil
}

// Threshold flags every statistic below the detector threshold as stance.
func (d *Detector) Threshold(stats []float64) []bool {
	flags := make([]bool, len(stats))
	for i, v := range stats {
		flags[i] = v < d.threshold
	}
	return flags
}

// Detect returns the stance flag of every sample.
func (d *Detector) Detect(samples []imu.Sample) ([]bool, error) {
	stats, err := d.Statistic(samples)
	if err != nil {
		return nil, err
	}
	return d.Threshold(stats), nil
}
