// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ekf

import "math"

// Summary holds the closed-loop error metrics of a run. Trials start and
// end at the same spot, so the final distance from the origin is the drift.
type Summary struct {
	Samples         int        `json:"samples"`
	StanceSamples   int        `json:"stance_samples"`
	FinalPosition   [3]float64 `json:"final_position"`
	HorizontalDrift float64    `json:"horizontal_drift"`
	Drift3D         float64    `json:"drift_3d"`
	TravelledXY     float64    `json:"travelled_xy"`
	PathLength      float64    `json:"path_length,omitempty"`
	RelativeError   float64    `json:"relative_error,omitempty"` // percent of PathLength
}

// Summarize computes the error metrics. pathLength is the known length of
// the walked loop; zero leaves RelativeError unset.
func (r *Run) Summarize(pathLength float64) Summary {
	s := Summary{Samples: len(r.Rows), PathLength: pathLength}
	if len(r.Rows) == 0 {
		return s
	}
	for i, row := range r.Rows {
		if row.Stance {
			s.StanceSamples++
		}
		if i > 0 {
			prev := r.Rows[i-1].Position
			s.TravelledXY += math.Hypot(row.Position[0]-prev[0], row.Position[1]-prev[1])
		}
	}
	p := r.Rows[len(r.Rows)-1].Position
	s.FinalPosition = p
	s.HorizontalDrift = math.Hypot(p[0], p[1])
	s.Drift3D = math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
	if pathLength > 0 {
		s.RelativeError = s.HorizontalDrift / pathLength * 100
	}
	return s
}
