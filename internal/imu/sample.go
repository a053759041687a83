// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sample represents a single calibrated inertial sample.
// Acceleration is in m/s², angular rate in rad/s.
type Sample struct {
	Ax float64 `json:"ax"` // accel
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`

	Gx float64 `json:"gx"` // gyro
	Gy float64 `json:"gy"`
	Gz float64 `json:"gz"`
}

// Source is anything that can provide samples over time: the serial
// bridge, the mock gait generator, a replayed recording.
type Source interface {
	Next() (Sample, error)
}

// Acc returns the accelerometer triad.
func (s Sample) Acc() [3]float64 {
	return [3]float64{s.Ax, s.Ay, s.Az}
}

// Gyro returns the gyroscope triad.
func (s Sample) Gyro() [3]float64 {
	return [3]float64{s.Gx, s.Gy, s.Gz}
}

// Finite reports whether every component is a finite number.
func (s Sample) Finite() bool {
	for _, v := range [6]float64{s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ParseLine parses one "ax,ay,az,gx,gy,gz" record as emitted by the
// sensor bridge and stored in raw recordings.
func ParseLine(line string) (Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 6 {
		return Sample{}, fmt.Errorf("sample line: want 6 fields, got %d", len(fields))
	}

	var v [6]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("sample line field %d: %w", i, err)
		}
		v[i] = x
	}

	s := Sample{Ax: v[0], Ay: v[1], Az: v[2], Gx: v[3], Gy: v[4], Gz: v[5]}
	if !s.Finite() {
		return Sample{}, fmt.Errorf("sample line: non-finite value in %q", line)
	}
	return s, nil
}

// FormatLine is the inverse of ParseLine.
func FormatLine(s Sample) string {
	return strings.Join([]string{
		strconv.FormatFloat(s.Ax, 'g', -1, 64),
		strconv.FormatFloat(s.Ay, 'g', -1, 64),
		strconv.FormatFloat(s.Az, 'g', -1, 64),
		strconv.FormatFloat(s.Gx, 'g', -1, 64),
		strconv.FormatFloat(s.Gy, 'g', -1, 64),
		strconv.FormatFloat(s.Gz, 'g', -1, 64),
	}, ",")
}
