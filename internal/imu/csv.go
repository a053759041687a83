// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVHeader is the column layout of raw recordings.
var CSVHeader = []string{"AccX", "AccY", "AccZ", "GyrX", "GyrY", "GyrZ"}

// ReadCSV reads a raw recording. A leading header row is skipped when its
// first field is not numeric.
func ReadCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)
	cr.TrimLeadingSpace = true

	var out []Sample
	row := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row+1, err)
		}
		row++
		if row == 1 {
			if _, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64); err != nil {
				continue // header
			}
		}
		s, err := ParseLine(strings.Join(rec, ","))
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", row, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteCSV writes samples with CSVHeader as the first row.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write(strings.Split(FormatLine(s), ",")); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
