// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package strapdown

import "github.com/relabs-tech/foot_ins/internal/orientation"

// NavState packs position, velocity and attitude (roll, pitch, yaw) into
// the 9-vector [p; v; a].
type NavState [9]float64

func (x NavState) Position() [3]float64 { return [3]float64{x[0], x[1], x[2]} }
func (x NavState) Velocity() [3]float64 { return [3]float64{x[3], x[4], x[5]} }

func (x NavState) Attitude() orientation.Pose {
	return orientation.Pose{Roll: x[6], Pitch: x[7], Yaw: x[8]}
}

// SetAttitude overwrites the attitude block.
func (x *NavState) SetAttitude(p orientation.Pose) {
	x[6], x[7], x[8] = p.Roll, p.Pitch, p.Yaw
}
