// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/relabs-tech/foot_ins/internal/ekf"
	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/monitoring"
)

// Sink receives the rows added by each processed batch.
type Sink func(rows []ekf.Row) error

// Consume drains buf into mgr every interval and hands new rows to sink.
// When ctx is cancelled the remaining samples are drained, the run is
// flushed and Consume returns nil. Any processing or sink error ends the
// run and is returned.
func Consume(ctx context.Context, buf *imu.Buffer, mgr *Manager, interval time.Duration, sink Sink) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := drain(buf, mgr, sink); err != nil {
				return err
			}
			rows, err := mgr.Flush()
			if err != nil {
				return fmt.Errorf("flush: %w", err)
			}
			if len(rows) > 0 {
				return sink(rows)
			}
			return nil
		case <-ticker.C:
			if err := drain(buf, mgr, sink); err != nil {
				return err
			}
		}
	}
}

// drain feeds every sample the producer appended since the last call and
// processes as many batches as the manager allows.
func drain(buf *imu.Buffer, mgr *Manager, sink Sink) error {
	snap := buf.Snapshot()
	if n := mgr.Fed(); len(snap) > n {
		if err := mgr.Feed(snap[n:]...); err != nil {
			return err
		}
	}
	for {
		rows, ok, err := mgr.Step()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		monitoring.Logf("stream: batch of %d rows, %d/%d samples processed", len(rows), mgr.Processed(), mgr.Fed())
		if err := sink(rows); err != nil {
			return fmt.Errorf("sink: %w", err)
		}
	}
}
