// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/foot_ins/internal/ekf"
)

func sampleRows() []ekf.Row {
	rows := make([]ekf.Row, 50)
	for i := range rows {
		rows[i] = ekf.Row{
			Position: [3]float64{-0.02 * float64(i), 0.01 * float64(i), 0},
			Stance:   i%10 < 5,
		}
	}
	return rows
}

func TestSaveGraphs(t *testing.T) {
	dir := t.TempDir()
	top := filepath.Join(dir, "topdown.png")
	vert := filepath.Join(dir, "vertical.png")

	require.NoError(t, SaveTopdown(sampleRows(), "walk", top))
	require.NoError(t, SaveVertical(sampleRows(), 0.01, "walk", vert))

	for _, path := range []string{top, vert} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.png")
	assert.ErrorIs(t, SaveTopdown(nil, "", path), ErrNoRows)
	assert.ErrorIs(t, SaveVertical(nil, 0.01, "", path), ErrNoRows)
}

func litPixels(t *testing.T, s Status) int {
	t.Helper()
	img := StatusFrame(s)
	require.Equal(t, FrameWidth, img.Bounds().Dx())
	require.Equal(t, FrameHeight, img.Bounds().Dy())
	n := 0
	for _, v := range img.Pix {
		if v > 0 {
			n++
		}
	}
	return n
}

func TestStatusFrame(t *testing.T) {
	waiting := litPixels(t, Status{})
	assert.Greater(t, waiting, 0)

	running := litPixels(t, Status{Samples: 120, HaveRow: true, Last: ekf.Row{Position: [3]float64{1.25, -3.5, 0.1}, Stance: true}})
	assert.Greater(t, running, waiting)
}
