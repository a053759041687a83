// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"time"

	"github.com/relabs-tech/foot_ins/internal/ekf"
	"github.com/relabs-tech/foot_ins/internal/imu"
)

// SampleChunk is a block of consecutive samples of one run. Offset is the
// run index of the first sample.
type SampleChunk struct {
	RunID   string       `json:"run_id"`
	Offset  int          `json:"offset"`
	Samples []imu.Sample `json:"samples"`
}

// Run lifecycle events.
const (
	EventStart    = "start"
	EventStop     = "stop"
	EventFinished = "finished"
)

// RunEvent announces the start or end of a run.
type RunEvent struct {
	Event   string       `json:"event"`
	RunID   string       `json:"run_id"`
	Time    time.Time    `json:"time"`
	Period  float64      `json:"period,omitempty"`
	Summary *ekf.Summary `json:"summary,omitempty"`
}

// EstimateUpdate carries the rows stitched onto a run by one batch.
type EstimateUpdate struct {
	RunID  string    `json:"run_id"`
	Offset int       `json:"offset"`
	Rows   []ekf.Row `json:"rows"`
}
