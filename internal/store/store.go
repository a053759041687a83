// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store persists runs, their raw samples and their estimates in a
// sqlite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/foot_ins/internal/ekf"
	"github.com/relabs-tech/foot_ins/internal/imu"
	"github.com/relabs-tech/foot_ins/internal/monitoring"
	"github.com/relabs-tech/foot_ins/internal/orientation"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrRunNotFound = errors.New("store: run not found")

// Store wraps the run database.
type Store struct {
	db *sql.DB
}

// RunInfo describes one recorded run.
type RunInfo struct {
	ID                string      `json:"id"`
	Source            string      `json:"source"`
	SamplePeriod      float64     `json:"sample_period"`
	DetectorWindow    int         `json:"detector_window"`
	DetectorThreshold float64     `json:"detector_threshold"`
	StartedAt         time.Time   `json:"started_at"`
	FinishedAt        *time.Time  `json:"finished_at,omitempty"`
	Summary           ekf.Summary `json:"summary"`
}

// Open opens (or creates) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// a single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m is not closed: closing it would close db
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	version, _, _ := m.Version()
	monitoring.Logf("store: schema at version %d", version)
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateRun records a new run and returns its ID. A producer-assigned
// info.ID is kept when it is a valid UUID; otherwise a new one is generated.
func (s *Store) CreateRun(ctx context.Context, info RunInfo) (string, error) {
	id := uuid.NewString()
	if info.ID != "" {
		parsed, err := uuid.Parse(info.ID)
		if err != nil {
			return "", fmt.Errorf("create run: invalid id %q: %w", info.ID, err)
		}
		id = parsed.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, source, sample_period, detector_window, detector_threshold) VALUES (?, ?, ?, ?, ?)`,
		id, info.Source, info.SamplePeriod, info.DetectorWindow, info.DetectorThreshold)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// AppendSamples stores samples with indices starting at offset.
func (s *Store) AppendSamples(ctx context.Context, runID string, offset int, samples []imu.Sample) error {
	return s.inTx(ctx, `INSERT INTO samples (run_id, idx, ax, ay, az, gx, gy, gz) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for i, v := range samples {
				if _, err := stmt.ExecContext(ctx, runID, offset+i, v.Ax, v.Ay, v.Az, v.Gx, v.Gy, v.Gz); err != nil {
					return err
				}
			}
			return nil
		})
}

// AppendEstimates stores output rows with indices starting at offset.
func (s *Store) AppendEstimates(ctx context.Context, runID string, offset int, rows []ekf.Row) error {
	return s.inTx(ctx, `INSERT INTO estimates (run_id, idx, x, y, z, vx, vy, vz, roll, pitch, yaw, stance) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt) error {
			for i, r := range rows {
				if _, err := stmt.ExecContext(ctx, runID, offset+i,
					r.Position[0], r.Position[1], r.Position[2],
					r.Velocity[0], r.Velocity[1], r.Velocity[2],
					r.Attitude.Roll, r.Attitude.Pitch, r.Attitude.Yaw, r.Stance); err != nil {
					return err
				}
			}
			return nil
		})
}

func (s *Store) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	if err := fn(stmt); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert: %w", err)
	}
	return tx.Commit()
}

// FinishRun stores the run summary and marks it finished.
func (s *Store) FinishRun(ctx context.Context, runID string, sum ekf.Summary) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at = CURRENT_TIMESTAMP, samples = ?, stance_samples = ?,
		horizontal_drift = ?, drift_3d = ?, path_length = ?, relative_error = ? WHERE run_id = ?`,
		sum.Samples, sum.StanceSamples, sum.HorizontalDrift, sum.Drift3D, sum.PathLength, sum.RelativeError, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, source, sample_period, detector_window, detector_threshold,
		started_at, finished_at, samples, stance_samples, COALESCE(horizontal_drift, 0), COALESCE(drift_3d, 0),
		COALESCE(path_length, 0), COALESCE(relative_error, 0) FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			r        RunInfo
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.SamplePeriod, &r.DetectorWindow, &r.DetectorThreshold,
			&r.StartedAt, &finished, &r.Summary.Samples, &r.Summary.StanceSamples, &r.Summary.HorizontalDrift,
			&r.Summary.Drift3D, &r.Summary.PathLength, &r.Summary.RelativeError); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Samples returns the raw samples of a run in order.
func (s *Store) Samples(ctx context.Context, runID string) ([]imu.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ax, ay, az, gx, gy, gz FROM samples WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []imu.Sample
	for rows.Next() {
		var v imu.Sample
		if err := rows.Scan(&v.Ax, &v.Ay, &v.Az, &v.Gx, &v.Gy, &v.Gz); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Estimates returns the output rows of a run in order.
func (s *Store) Estimates(ctx context.Context, runID string) ([]ekf.Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT x, y, z, vx, vy, vz, roll, pitch, yaw, stance
		FROM estimates WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	var out []ekf.Row
	for rows.Next() {
		var (
			r ekf.Row
			a orientation.Pose
		)
		if err := rows.Scan(&r.Position[0], &r.Position[1], &r.Position[2],
			&r.Velocity[0], &r.Velocity[1], &r.Velocity[2],
			&a.Roll, &a.Pitch, &a.Yaw, &r.Stance); err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		r.Attitude = a
		out = append(out, r)
	}
	return out, rows.Err()
}
