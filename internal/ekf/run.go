// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ekf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/noise"
	"github.com/relabs-tech/foot_ins/internal/orientation"
)

// Row is one output step of a run. The vertical axis of Position is
// flipped so that up is positive.
type Row struct {
	Position [3]float64       `json:"position"`
	Velocity [3]float64       `json:"velocity"`
	Attitude orientation.Pose `json:"attitude"`
	Stance   bool             `json:"stance"`
}

// Run is the stitched output history of one continuous trial.
type Run struct {
	Rows        []Row
	Covariances []*mat.Dense
}

// Len returns the number of output rows.
func (r *Run) Len() int { return len(r.Rows) }

// Append stitches a processed batch onto the run. With dropFirst the seed
// slot, which repeats the previous batch's last row, is skipped.
func (r *Run) Append(b *Batch, stance []bool, dropFirst bool) error {
	if len(stance) != b.Len() {
		return fmt.Errorf("%w: batch %d, stance %d", ErrLengthMismatch, b.Len(), len(stance))
	}
	start := 0
	if dropFirst {
		start = 1
	}
	for k := start; k < b.Len(); k++ {
		e := b.At(k)
		r.Rows = append(r.Rows, outputRow(e, stance[k]))
		r.Covariances = append(r.Covariances, e.P)
	}
	return nil
}

func outputRow(e Estimate, stance bool) Row {
	p := e.X.Position()
	p[2] = -p[2]
	return Row{
		Position: p,
		Velocity: e.X.Velocity(),
		Attitude: e.X.Attitude(),
		Stance:   stance,
	}
}

// RunBaseline filters a complete recording in one pass: it initializes
// from the leading samples, then predicts every later sample and corrects
// those flagged as stance.
func RunBaseline(model *noise.Model, samples []imu.Sample, stance []bool) (*Run, error) {
	if len(stance) != len(samples) {
		return nil, fmt.Errorf("%w: samples %d, stance %d", ErrLengthMismatch, len(samples), len(stance))
	}
	f := New(model)
	seed, err := f.Initialize(samples)
	if err != nil {
		return nil, err
	}
	b := NewBatch(len(samples), seed)
	if err := f.Advance(b, samples, stance); err != nil {
		return nil, err
	}
	run := &Run{}
	if err := run.Append(b, stance, false); err != nil {
		return nil, err
	}
	return run, nil
}
