// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package strapdown implements the strapdown inertial mechanization: the
// attitude, velocity and position update from one inertial sample and the
// linearized error dynamics around it.
package strapdown

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/noise"
	"github.com/relabs-tech/foot_ins/internal/orientation"
)

// SeedSamples is the number of leading samples averaged to level the
// initial attitude.
const SeedSamples = 20

// Initial standard deviations of the error covariance.
const (
	initPosStd = 1e-5
	initVelStd = 1e-5
	initAttStd = 0.1 * math.Pi / 180.0
)

var ErrInsufficientSamples = errors.New("strapdown: insufficient seed samples")

// Propagator applies the mechanization equations with the gravity and
// period of a noise model.
type Propagator struct {
	g float64
	t float64
}

func New(model *noise.Model) *Propagator {
	return &Propagator{g: model.Gravity(), t: model.Period()}
}

// Initialize levels the platform from the mean of the first SeedSamples
// accelerometer readings. Position and velocity start at zero and yaw at 0.
// It returns the initial state, its quaternion and the initial covariance.
func (p *Propagator) Initialize(samples []imu.Sample) (NavState, orientation.Quaternion, *mat.Dense, error) {
	if len(samples) < SeedSamples {
		return NavState{}, orientation.Quaternion{}, nil,
			fmt.Errorf("%w: need %d, got %d", ErrInsufficientSamples, SeedSamples, len(samples))
	}

	var ax, ay, az float64
	for _, s := range samples[:SeedSamples] {
		ax += s.Ax
		ay += s.Ay
		az += s.Az
	}
	ax /= SeedSamples
	ay /= SeedSamples
	az /= SeedSamples

	pose := orientation.TiltFromAccel(ax, ay, az)
	var x NavState
	x.SetAttitude(pose)

	diag := make([]float64, 9)
	for i := 0; i < 3; i++ {
		diag[i] = initPosStd * initPosStd
		diag[i+3] = initVelStd * initVelStd
		diag[i+6] = initAttStd * initAttStd
	}
	p0 := mat.NewDense(9, 9, nil)
	for i, v := range diag {
		p0.Set(i, i, v)
	}

	return x, orientation.EulerToQuat(pose), p0, nil
}

// Propagate advances the state by one sample. The attitude update is the
// closed-form rotation for a constant rate over the period; a zero rate
// leaves the quaternion unchanged. It returns the new state, quaternion and
// the rotation matrix body→navigation of the new quaternion.
func (p *Propagator) Propagate(prev NavState, s imu.Sample, qPrev orientation.Quaternion) (NavState, orientation.Quaternion, orientation.Matrix3) {
	q := qPrev
	wn := math.Sqrt(s.Gx*s.Gx + s.Gy*s.Gy + s.Gz*s.Gz)
	if wn*p.t != 0 {
		c := math.Cos(p.t * wn / 2)
		k := math.Sin(p.t*wn/2) / wn
		omega := [4][4]float64{
			{0, -s.Gx, -s.Gy, -s.Gz},
			{s.Gx, 0, s.Gz, -s.Gy},
			{s.Gy, -s.Gz, 0, s.Gx},
			{s.Gz, s.Gy, -s.Gx, 0},
		}
		for i := 0; i < 4; i++ {
			var acc float64
			for j := 0; j < 4; j++ {
				acc += omega[i][j] * qPrev[j]
			}
			q[i] = c*qPrev[i] + k*acc
		}
	}

	next := prev
	next.SetAttitude(orientation.QuatToEuler(q))

	rot := orientation.QuatToMatrix(q)
	an := rot.MulVec(s.Acc())
	an[2] += p.g

	for i := 0; i < 3; i++ {
		next[3+i] += p.t * an[i]
		next[i] += p.t*next[3+i] + 0.5*p.t*p.t*an[i]
	}
	return next, q, rot
}

// Linearize returns the error-state transition F (9×9) and the noise
// Jacobian G (9×6) around the previous attitude.
func (p *Propagator) Linearize(qPrev orientation.Quaternion, s imu.Sample) (*mat.Dense, *mat.Dense) {
	rot := orientation.QuatToMatrix(qPrev)
	fSkew := orientation.Skew(rot.MulVec(s.Acc()))

	f := mat.NewDense(9, 9, nil)
	for i := 0; i < 9; i++ {
		f.Set(i, i, 1)
	}
	g := mat.NewDense(9, 6, nil)
	for i := 0; i < 3; i++ {
		f.Set(i, i+3, p.t)
		for j := 0; j < 3; j++ {
			f.Set(3+i, 6+j, -p.t*fSkew[i][j])
			g.Set(3+i, j, p.t*rot[i][j])
			g.Set(6+i, 3+j, -p.t*rot[i][j])
		}
	}
	return f, g
}
