// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ekf implements the zero-velocity-aided error-state extended Kalman
// filter for a foot-mounted inertial sensor.
//
// A Filter starts Uninitialized and moves to Running once it has been
// seeded from the leading samples of a run. Every later sample is first
// predicted through the strapdown mechanization and, when the sample is
// flagged as stance, corrected with a zero-velocity measurement.
package ekf

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/noise"
	"github.com/relabs-tech/foot_ins/internal/orientation"
	"github.com/relabs-tech/foot_ins/internal/strapdown"
)

var (
	ErrNotInitialized     = errors.New("ekf: filter not initialized")
	ErrAlreadyInitialized = errors.New("ekf: filter already initialized")
	ErrLengthMismatch     = errors.New("ekf: length mismatch")
	ErrSingularInnovation = errors.New("ekf: singular innovation covariance")
)

// Estimate is the filter output at one step.
type Estimate struct {
	X strapdown.NavState
	Q orientation.Quaternion
	P *mat.Dense
}

// Prediction is the mechanized state at one step before any measurement.
// Rot is the body→navigation rotation of Q, carried into the correction.
type Prediction struct {
	X   strapdown.NavState
	Q   orientation.Quaternion
	Rot orientation.Matrix3
	P   *mat.Dense
}

// Estimate returns the prediction unchanged, for steps without a measurement.
func (p Prediction) Estimate() Estimate {
	return Estimate{X: p.X, Q: p.Q, P: p.P}
}

type filterState int

const (
	uninitialized filterState = iota
	running
)

// Filter owns the noise model and the last estimate of one run.
type Filter struct {
	model *noise.Model
	prop  *strapdown.Propagator
	state filterState
	last  Estimate
}

func New(model *noise.Model) *Filter {
	return &Filter{model: model, prop: strapdown.New(model)}
}

func (f *Filter) Model() *noise.Model { return f.model }

// Running reports whether the filter has been initialized.
func (f *Filter) Running() bool { return f.state == running }

// Initialize seeds the filter from the first strapdown.SeedSamples samples
// and returns the estimate of sample 0.
func (f *Filter) Initialize(samples []imu.Sample) (Estimate, error) {
	if f.state != uninitialized {
		return Estimate{}, ErrAlreadyInitialized
	}
	x, q, p, err := f.prop.Initialize(samples)
	if err != nil {
		return Estimate{}, fmt.Errorf("initialize: %w", err)
	}
	f.last = Estimate{X: x, Q: q, P: p}
	f.state = running
	return f.last, nil
}

// Last returns the most recent estimate.
func (f *Filter) Last() (Estimate, error) {
	if f.state != running {
		return Estimate{}, ErrNotInitialized
	}
	return f.last, nil
}

// Predict mechanizes one sample from prev and propagates the covariance:
// P = F·P·Fᵀ + G·Q·Gᵀ, symmetrized.
func (f *Filter) Predict(prev Estimate, s imu.Sample) Prediction {
	x, q, rot := f.prop.Propagate(prev.X, s, prev.Q)
	F, G := f.prop.Linearize(prev.Q, s)

	var fp, p, gq, gqg mat.Dense
	fp.Mul(F, prev.P)
	p.Mul(&fp, F.T())
	gq.Mul(G, f.model.Q())
	gqg.Mul(&gq, G.T())
	p.Add(&p, &gqg)

	return Prediction{X: x, Q: q, Rot: rot, P: symmetrize(&p)}
}

// Correct applies a zero-velocity measurement to pred and returns the
// corrected estimate. pred is not modified.
func (f *Filter) Correct(pred Prediction) (Estimate, error) {
	h := f.model.H()

	var pht, s mat.Dense
	pht.Mul(pred.P, h.T())
	s.Mul(h, &pht)
	s.Add(&s, f.model.R())

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrSingularInnovation, err)
	}
	var k mat.Dense
	k.Mul(&pht, &sInv)

	v := pred.X.Velocity()
	z := mat.NewVecDense(3, []float64{-v[0], -v[1], -v[2]})
	var dx mat.VecDense
	dx.MulVec(&k, z)

	x := pred.X
	for i := range x {
		x[i] += dx.AtVec(i)
	}

	omega := orientation.Skew([3]float64{dx.AtVec(6), dx.AtVec(7), dx.AtVec(8)})
	rot := orientation.Identity3.Add(omega).Mul(pred.Rot)
	q := orientation.MatrixToQuat(rot)
	x.SetAttitude(orientation.QuatToEuler(q))

	var kh, ikh, p mat.Dense
	kh.Mul(&k, h)
	ikh.Sub(eye9, &kh)
	p.Mul(&ikh, pred.P)

	return Estimate{X: x, Q: q, P: symmetrize(&p)}, nil
}

// Step predicts one sample and corrects it when stance is set.
func (f *Filter) Step(prev Estimate, s imu.Sample, stance bool) (Estimate, error) {
	pred := f.Predict(prev, s)
	if !stance {
		return pred.Estimate(), nil
	}
	return f.Correct(pred)
}

// Advance runs the filter over slots 1..n-1 of b. Slot 0 already holds the
// estimate the batch continues from, so samples[0] and stance[0] are not
// used. The last estimate of the batch becomes the filter's last estimate.
func (f *Filter) Advance(b *Batch, samples []imu.Sample, stance []bool) error {
	if f.state != running {
		return ErrNotInitialized
	}
	n := b.Len()
	if len(samples) != n || len(stance) != n {
		return fmt.Errorf("%w: batch %d, samples %d, stance %d", ErrLengthMismatch, n, len(samples), len(stance))
	}

	for k := 1; k < n; k++ {
		e, err := f.Step(b.At(k-1), samples[k], stance[k])
		if err != nil {
			return fmt.Errorf("step %d: %w", k, err)
		}
		b.Set(k, e)
	}
	f.last = b.Last()
	return nil
}

var eye9 = func() *mat.Dense {
	m := mat.NewDense(9, 9, nil)
	for i := 0; i < 9; i++ {
		m.Set(i, i, 1)
	}
	return m
}()

// symmetrize returns (m+mᵀ)/2.
func symmetrize(m *mat.Dense) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < r; j++ {
			out.Set(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return out
}
