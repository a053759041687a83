// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ekf

import (
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/foot_ins/internal/orientation"
	"github.com/relabs-tech/foot_ins/internal/strapdown"
)

// Batch holds the state, quaternion and covariance history of one
// contiguous block of samples. Slot 0 is the seed the block continues from.
type Batch struct {
	x []strapdown.NavState
	q []orientation.Quaternion
	p []*mat.Dense
}

// NewBatch allocates n slots with seed copied into slot 0.
func NewBatch(n int, seed Estimate) *Batch {
	b := &Batch{
		x: make([]strapdown.NavState, n),
		q: make([]orientation.Quaternion, n),
		p: make([]*mat.Dense, n),
	}
	if n > 0 {
		b.Set(0, seed)
	}
	return b
}

func (b *Batch) Len() int { return len(b.x) }

func (b *Batch) At(k int) Estimate {
	return Estimate{X: b.x[k], Q: b.q[k], P: b.p[k]}
}

func (b *Batch) Set(k int, e Estimate) {
	b.x[k] = e.X
	b.q[k] = e.Q
	b.p[k] = mat.DenseCopyOf(e.P)
}

func (b *Batch) Last() Estimate { return b.At(len(b.x) - 1) }

func (b *Batch) States() []strapdown.NavState { return b.x }
