// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/relabs-tech/foot_ins/internal/ekf"
	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/render"
	"github.com/relabs-tech/foot_ins/internal/store"
)

// saveResults writes the raw recording, the estimates and both graphs of
// a run into dir, named after name.
func saveResults(dir, name string, samples []imu.Sample, run *ekf.Run, period float64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	if err := writeFile(filepath.Join(dir, name+"_imu.csv"), func(f *os.File) error {
		return imu.WriteCSV(f, samples)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, name+"_estimates.csv"), func(f *os.File) error {
		return store.WriteEstimatesCSV(f, run.Rows)
	}); err != nil {
		return err
	}

	if run.Len() == 0 {
		return nil
	}
	if err := render.SaveTopdown(run.Rows, name, filepath.Join(dir, name+"_topdown.png")); err != nil {
		return err
	}
	return render.SaveVertical(run.Rows, period, name, filepath.Join(dir, name+"_vertical.png"))
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
