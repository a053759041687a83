// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"
	"math/rand"
)

// MockSource generates a synthetic foot-mounted gait: each step cycle is
// half stance (gravity only) and half swing (forward acceleration pulse
// with a pitching rotation). Samples are indexed, not wall-clock driven,
// so a given seed always yields the same sequence.
type MockSource struct {
	period     float64 // sample period, s
	stepPeriod float64 // full gait cycle, s
	gravity    float64
	noise      float64
	rng        *rand.Rand
	k          int
}

// NewMockSource creates a mock gait source sampled every period seconds.
func NewMockSource(period, stepPeriod, gravity float64, seed int64) *MockSource {
	return &MockSource{
		period:     period,
		stepPeriod: stepPeriod,
		gravity:    gravity,
		noise:      1e-3,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next synthetic sample.
func (m *MockSource) Next() (Sample, error) {
	t := float64(m.k) * m.period
	m.k++

	phase := math.Mod(t, m.stepPeriod) / m.stepPeriod
	s := Sample{Az: m.gravity}

	if phase >= 0.5 {
		u := (phase - 0.5) / 0.5
		s.Ax = 3 * math.Sin(2*math.Pi*u)
		s.Az += 1.5 * math.Sin(math.Pi*u)
		s.Gy = 2 * math.Sin(2*math.Pi*u)
	}

	s.Ax += m.noise * m.rng.NormFloat64()
	s.Ay += m.noise * m.rng.NormFloat64()
	s.Az += m.noise * m.rng.NormFloat64()
	s.Gx += 0.1 * m.noise * m.rng.NormFloat64()
	s.Gy += 0.1 * m.noise * m.rng.NormFloat64()
	s.Gz += 0.1 * m.noise * m.rng.NormFloat64()
	return s, nil
}

// Take returns the next n samples.
func (m *MockSource) Take(n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i], _ = m.Next()
	}
	return out
}
