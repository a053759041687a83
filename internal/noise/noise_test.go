// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package noise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewDerivesMatrices(t *testing.T) {
	m, err := New(DefaultParams())
	require.NoError(t, err)

	gyro := math.Pow(0.5*math.Pi/180, 2)
	wantQ := mat.NewDiagDense(6, []float64{0.25, 0.25, 0.25, gyro, gyro, gyro})
	assert.True(t, mat.EqualApprox(wantQ, m.Q(), 1e-18))

	wantR := mat.NewDiagDense(3, []float64{1e-4, 1e-4, 1e-4})
	assert.True(t, mat.EqualApprox(wantR, m.R(), 1e-18))

	rows, cols := m.H().Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 9, cols)
	for i := 0; i < 3; i++ {
		for j := 0; j < 9; j++ {
			want := 0.0
			if j == i+3 {
				want = 1
			}
			assert.Equal(t, want, m.H().At(i, j), "H(%d,%d)", i, j)
		}
	}

	assert.InDelta(t, 0.00098*0.00098, m.VarA(), 1e-20)
	assert.InDelta(t, 9.2e-5*9.2e-5, m.VarW(), 1e-20)
	assert.Equal(t, 9.8029, m.Gravity())
	assert.Equal(t, 0.01, m.Period())
}

func TestNewIsDeterministic(t *testing.T) {
	a := MustNew(DefaultParams())
	b := MustNew(DefaultParams())
	assert.True(t, mat.Equal(a.Q(), b.Q()))
	assert.True(t, mat.Equal(a.R(), b.R()))
	assert.True(t, mat.Equal(a.H(), b.H()))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Params){
		"zero period":       func(p *Params) { p.Period = 0 },
		"negative sigma_a":  func(p *Params) { p.SigmaA = -1 },
		"nan sigma_vel":     func(p *Params) { p.SigmaVel = math.NaN() },
		"infinite gravity":  func(p *Params) { p.Gravity = math.Inf(1) },
		"zero gyro process": func(p *Params) { p.SigmaGyroBodyDeg = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			_, err := New(p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}
