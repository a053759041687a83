// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package noise holds the sensor noise parameters of a run and the
// covariance matrices derived from them.
package noise

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidParams is returned when a parameter is non-positive or not finite.
var ErrInvalidParams = errors.New("noise: invalid parameters")

// Params are the tunables of the estimator noise model.
type Params struct {
	SigmaA           float64 // accelerometer noise used by the stance detector (m/s²)
	SigmaW           float64 // gyroscope noise used by the stance detector (rad/s)
	SigmaVel         float64 // zero-velocity measurement noise (m/s)
	SigmaAccBody     float64 // accelerometer process noise (m/s²)
	SigmaGyroBodyDeg float64 // gyroscope process noise (deg/s)
	Gravity          float64 // local gravity magnitude (m/s²)
	Period           float64 // sample period T (s)
}

// DefaultParams returns the parameters tuned for the live 100 Hz sensor.
func DefaultParams() Params {
	return Params{
		SigmaA:           0.00098,
		SigmaW:           9.2e-5,
		SigmaVel:         0.01,
		SigmaAccBody:     0.5,
		SigmaGyroBodyDeg: 0.5,
		Gravity:          9.8029,
		Period:           0.01,
	}
}

// Validate checks that every parameter is a positive finite number.
func (p Params) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"sigma_a", p.SigmaA},
		{"sigma_w", p.SigmaW},
		{"sigma_vel", p.SigmaVel},
		{"sigma_acc_body", p.SigmaAccBody},
		{"sigma_gyro_body_deg", p.SigmaGyroBodyDeg},
		{"gravity", p.Gravity},
		{"period", p.Period},
	}
	for _, f := range fields {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidParams, f.name, f.v)
		}
	}
	return nil
}

// Model is the immutable noise model of one run. The matrices it hands out
// are read-only views; callers must not modify them.
type Model struct {
	params Params
	q      *mat.Dense
	r      *mat.Dense
	h      *mat.Dense
}

// New validates p and derives Q (6×6), R (3×3) and H (3×9).
func New(p Params) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	acc := p.SigmaAccBody * p.SigmaAccBody
	gyro := p.SigmaGyroBodyDeg * math.Pi / 180.0
	gyro *= gyro
	q := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		q.Set(i, i, acc)
		q.Set(i+3, i+3, gyro)
	}

	r := mat.NewDense(3, 3, nil)
	vel := p.SigmaVel * p.SigmaVel
	for i := 0; i < 3; i++ {
		r.Set(i, i, vel)
	}

	// velocity occupies state indices 3..5
	h := mat.NewDense(3, 9, nil)
	for i := 0; i < 3; i++ {
		h.Set(i, i+3, 1)
	}

	return &Model{params: p, q: q, r: r, h: h}, nil
}

// MustNew is New for parameters known to be valid, such as DefaultParams.
func MustNew(p Params) *Model {
	m, err := New(p)
	if err != nil {
		panic(err)
	}
	return m
}

// Params returns the parameters the model was built from.
func (m *Model) Params() Params { return m.params }

// Q is the process noise covariance, diag(σ_acc² ×3, σ_gyro² ×3).
func (m *Model) Q() mat.Matrix { return m.q }

// R is the zero-velocity measurement covariance σ_vel²·I₃.
func (m *Model) R() mat.Matrix { return m.r }

// H selects the velocity block of the 9-state error vector.
func (m *Model) H() mat.Matrix { return m.h }

// Gravity is the local gravity magnitude g.
func (m *Model) Gravity() float64 { return m.params.Gravity }

// Period is the sample period T.
func (m *Model) Period() float64 { return m.params.Period }

// VarA is the accelerometer variance used by the stance detector.
func (m *Model) VarA() float64 { return m.params.SigmaA * m.params.SigmaA }

// VarW is the gyroscope variance used by the stance detector.
func (m *Model) VarW() float64 { return m.params.SigmaW * m.params.SigmaW }
