// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/foot_ins/internal/config"
	"github.com/relabs-tech/foot_ins/internal/ekf"
	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/noise"
	"github.com/relabs-tech/foot_ins/internal/stream"
)

func speed(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// RunMockConsole runs the live pipeline in-process on the mock gait and
// prints the latest estimate of every batch, without a broker.
func RunMockConsole() error {
	cfg := config.Get()
	model, err := noise.New(cfg.Params())
	if err != nil {
		return err
	}
	mgr, err := stream.New(model, stream.Options{
		Window:       cfg.DetectorWindow,
		Threshold:    cfg.DetectorThreshold,
		MinIncrement: cfg.MinBatchIncrement,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := imu.NewMockSource(cfg.SamplePeriod, float64(cfg.MockStepPeriodMS)/1000, cfg.Gravity, 1)
	buf := imu.NewBuffer(4096)
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.SamplePeriod * float64(time.Second)))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s, _ := src.Next()
				buf.Append(s)
			}
		}
	}()

	interval := time.Duration(cfg.DrainIntervalMS) * time.Millisecond
	err = stream.Consume(ctx, buf, mgr, interval, func(rows []ekf.Row) error {
		if line := formatUpdate(EstimateUpdate{Offset: mgr.Processed() - len(rows), Rows: rows}); line != "" {
			fmt.Println(line)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sum := mgr.Output().Summarize(cfg.ReferencePathLength)
	fmt.Printf("samples=%d stance=%d xy drift=%.3fm travelled=%.2fm\n",
		sum.Samples, sum.StanceSamples, sum.HorizontalDrift, sum.TravelledXY)
	return nil
}
