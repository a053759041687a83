// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package render draws trajectory graphs and the status frame of a run.
package render

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/relabs-tech/foot_ins/internal/ekf"
)

var ErrNoRows = errors.New("render: no rows to plot")

var (
	trackColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	stanceColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// SaveTopdown writes the horizontal trajectory viewed from above. The
// forward axis of the sensor is -x, so -x is drawn against y. Stance rows
// are marked.
func SaveTopdown(rows []ekf.Row, title, path string) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	track := make(plotter.XYs, len(rows))
	var stance plotter.XYs
	for i, r := range rows {
		track[i] = plotter.XY{X: -r.Position[0], Y: r.Position[1]}
		if r.Stance {
			stance = append(stance, track[i])
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "-x (m)"
	p.Y.Label.Text = "y (m)"
	if err := addTrack(p, track, stance); err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// SaveVertical writes height against time with sample period dt.
func SaveVertical(rows []ekf.Row, dt float64, title, path string) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	track := make(plotter.XYs, len(rows))
	var stance plotter.XYs
	for i, r := range rows {
		track[i] = plotter.XY{X: float64(i) * dt, Y: r.Position[2]}
		if r.Stance {
			stance = append(stance, track[i])
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "z (m)"
	if err := addTrack(p, track, stance); err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func addTrack(p *plot.Plot, track, stance plotter.XYs) error {
	line, err := plotter.NewLine(track)
	if err != nil {
		return err
	}
	line.Color = trackColor
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("trajectory", line)

	if len(stance) > 0 {
		pts, err := plotter.NewScatter(stance)
		if err != nil {
			return err
		}
		pts.GlyphStyle.Color = stanceColor
		pts.GlyphStyle.Radius = vg.Points(1.5)
		pts.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(pts)
		p.Legend.Add("zero velocity", pts)
	}

	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return nil
}
