// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/relabs-tech/foot_ins/internal/config"
	"github.com/relabs-tech/foot_ins/internal/ekf"
	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/noise"
	"github.com/relabs-tech/foot_ins/internal/stance"
	"github.com/relabs-tech/foot_ins/internal/store"
)

// estimateOffline runs the single-pass filter over a complete recording.
func estimateOffline(cfg *config.Config, samples []imu.Sample) (*ekf.Run, error) {
	model, err := noise.New(cfg.Params())
	if err != nil {
		return nil, err
	}
	det, err := stance.NewDetector(model, cfg.DetectorWindow, cfg.DetectorThreshold)
	if err != nil {
		return nil, err
	}
	flags, err := det.Detect(samples)
	if err != nil {
		return nil, fmt.Errorf("detect stance: %w", err)
	}
	return ekf.RunBaseline(model, samples, flags)
}

// RunOffline estimates the trajectory of a recorded CSV file, stores the
// run and writes the result files named after name.
func RunOffline(inPath, name string) error {
	cfg := config.Get()

	f, err := os.Open(inPath)
	if err != nil {
		return err
	}
	samples, err := imu.ReadCSV(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}
	log.Printf("offline: %d samples read from %s", len(samples), inPath)

	run, err := estimateOffline(cfg, samples)
	if err != nil {
		return err
	}
	sum := run.Summarize(cfg.ReferencePathLength)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	id, err := st.CreateRun(ctx, store.RunInfo{
		Source:            "offline:" + inPath,
		SamplePeriod:      cfg.SamplePeriod,
		DetectorWindow:    cfg.DetectorWindow,
		DetectorThreshold: cfg.DetectorThreshold,
	})
	if err != nil {
		return err
	}
	if err := st.AppendSamples(ctx, id, 0, samples); err != nil {
		return err
	}
	if err := st.AppendEstimates(ctx, id, 0, run.Rows); err != nil {
		return err
	}
	if err := st.FinishRun(ctx, id, sum); err != nil {
		return err
	}

	if name == "" {
		name = id
	}
	if err := saveResults(cfg.ResultsDir, name, samples, run, cfg.SamplePeriod); err != nil {
		return err
	}
	log.Printf("offline: run %s stored, results in %s", id, cfg.ResultsDir)

	out, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
