// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation converts between the attitude representations used
// by the navigation filter. All Euler angles use the static-axes x-y-z
// ("sxyz") convention: R = Rz(yaw)·Ry(pitch)·Rx(roll). Quaternions are
// scalar-first.
package orientation

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// eps4 is four machine epsilons; below it the pitch is treated as gimbal lock.
const eps4 = 4 * 2.220446049250313e-16

// Pose is the canonical attitude triple, in radians.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Degrees returns the pose with every angle converted to degrees.
func (p Pose) Degrees() Pose {
	return Pose{
		Roll:  p.Roll * 180.0 / math.Pi,
		Pitch: p.Pitch * 180.0 / math.Pi,
		Yaw:   p.Yaw * 180.0 / math.Pi,
	}
}

// Quaternion is a unit quaternion [w, x, y, z].
type Quaternion [4]float64

// Matrix3 is a row-major 3×3 matrix.
type Matrix3 [3][3]float64

// Identity3 is the 3×3 identity.
var Identity3 = Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// TiltFromAccel computes roll and pitch from a (mean) accelerometer
// reading. Yaw is unobservable from gravity and is set to 0.
//
//	roll  = atan2(-ay, -az)
//	pitch = atan2(ax, sqrt(ay² + az²))
func TiltFromAccel(ax, ay, az float64) Pose {
	return Pose{
		Roll:  math.Atan2(-ay, -az),
		Pitch: math.Atan2(ax, math.Sqrt(ay*ay+az*az)),
		Yaw:   0,
	}
}

// EulerToQuat converts a pose to a quaternion.
func EulerToQuat(p Pose) Quaternion {
	ai, aj, ak := p.Roll/2, p.Pitch/2, p.Yaw/2
	ci, si := math.Cos(ai), math.Sin(ai)
	cj, sj := math.Cos(aj), math.Sin(aj)
	ck, sk := math.Cos(ak), math.Sin(ak)
	cc, cs := ci*ck, ci*sk
	sc, ss := si*ck, si*sk

	return Quaternion{
		cj*cc + sj*ss,
		cj*sc - sj*cs,
		cj*ss + sj*cc,
		cj*cs - sj*sc,
	}
}

// QuatToMatrix returns the rotation matrix of q. q need not be exactly
// unit length; a degenerate quaternion maps to the identity.
func QuatToMatrix(q Quaternion) Matrix3 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	n := w*w + x*x + y*y + z*z
	if n < 2.220446049250313e-16 {
		return Identity3
	}
	s := 2.0 / n
	X, Y, Z := x*s, y*s, z*s
	wX, wY, wZ := w*X, w*Y, w*Z
	xX, xY, xZ := x*X, x*Y, x*Z
	yY, yZ, zZ := y*Y, y*Z, z*Z

	return Matrix3{
		{1.0 - (yY + zZ), xY - wZ, xZ + wY},
		{xY + wZ, 1.0 - (xX + zZ), yZ - wX},
		{xZ - wY, yZ + wX, 1.0 - (xX + yY)},
	}
}

// MatrixToEuler extracts the pose from a rotation matrix.
func MatrixToEuler(m Matrix3) Pose {
	cy := math.Sqrt(m[0][0]*m[0][0] + m[1][0]*m[1][0])
	if cy > eps4 {
		return Pose{
			Roll:  math.Atan2(m[2][1], m[2][2]),
			Pitch: math.Atan2(-m[2][0], cy),
			Yaw:   math.Atan2(m[1][0], m[0][0]),
		}
	}
	return Pose{
		Roll:  math.Atan2(-m[1][2], m[1][1]),
		Pitch: math.Atan2(-m[2][0], cy),
		Yaw:   0,
	}
}

// QuatToEuler extracts the pose from a quaternion.
func QuatToEuler(q Quaternion) Pose {
	return MatrixToEuler(QuatToMatrix(q))
}

// MatrixToQuat returns the unit quaternion closest to m, which may be
// slightly non-orthogonal (e.g. after a small-angle correction). It takes
// the eigenvector of the largest eigenvalue of the symmetric 4×4 matrix
// built from m (Bar-Itzhack), with the sign chosen so that w ≥ 0.
func MatrixToQuat(m Matrix3) Quaternion {
	qxx, qyx, qzx := m[0][0], m[0][1], m[0][2]
	qxy, qyy, qzy := m[1][0], m[1][1], m[1][2]
	qxz, qyz, qzz := m[2][0], m[2][1], m[2][2]

	k := mat.NewSymDense(4, []float64{
		qxx - qyy - qzz, qyx + qxy, qzx + qxz, qyz - qzy,
		qyx + qxy, qyy - qxx - qzz, qzy + qyz, qzx - qxz,
		qzx + qxz, qzy + qyz, qzz - qxx - qyy, qxy - qyx,
		qyz - qzy, qzx - qxz, qxy - qyx, qxx + qyy + qzz,
	})
	k.ScaleSym(1.0/3.0, k)

	var eig mat.EigenSym
	if ok := eig.Factorize(k, true); !ok {
		return Quaternion{1, 0, 0, 0}
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	best := 0
	for i, v := range vals {
		if v > vals[best] {
			best = i
		}
	}

	// eigenvector components are ordered (x, y, z, w)
	q := Quaternion{vecs.At(3, best), vecs.At(0, best), vecs.At(1, best), vecs.At(2, best)}
	if q[0] < 0 {
		for i := range q {
			q[i] = -q[i]
		}
	}
	return q
}

// MulVec returns m·v.
func (m Matrix3) MulVec(v [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2]
	}
	return out
}

// Mul returns m·n.
func (m Matrix3) Mul(n Matrix3) Matrix3 {
	var out Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return out
}

// Add returns m+n.
func (m Matrix3) Add(n Matrix3) Matrix3 {
	var out Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][j] + n[i][j]
		}
	}
	return out
}

// Dense copies m into a gonum matrix.
func (m Matrix3) Dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})
}

// Skew returns the cross-product matrix of v, so that Skew(v)·u = v×u.
func Skew(v [3]float64) Matrix3 {
	return Matrix3{
		{0, -v[2], v[1]},
		{v[2], 0, -v[0]},
		{-v[1], v[0], 0},
	}
}
