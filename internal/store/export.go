// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/relabs-tech/foot_ins/internal/ekf"
)

// EstimatesHeader is the column layout of exported estimates. zv is 1 for
// stance rows.
var EstimatesHeader = []string{"x", "y", "z", "vx", "vy", "vz", "zv"}

// WriteEstimatesCSV exports output rows.
func WriteEstimatesCSV(w io.Writer, rows []ekf.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EstimatesHeader); err != nil {
		return err
	}
	rec := make([]string, len(EstimatesHeader))
	for _, r := range rows {
		for i := 0; i < 3; i++ {
			rec[i] = strconv.FormatFloat(r.Position[i], 'g', -1, 64)
			rec[3+i] = strconv.FormatFloat(r.Velocity[i], 'g', -1, 64)
		}
		rec[6] = "0"
		if r.Stance {
			rec[6] = "1"
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
