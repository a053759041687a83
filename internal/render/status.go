// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package render

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/foot_ins/internal/ekf"
)

// Status frame size, matching the 128×64 panels used on the device.
const (
	FrameWidth  = 128
	FrameHeight = 64
)

// Status is the latest state shown on the status frame.
type Status struct {
	Samples int
	Last    ekf.Row
	HaveRow bool
}

// StatusFrame draws status as a monochrome frame.
func StatusFrame(status Status) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, FrameWidth, FrameHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{color.White},
		Face: basicfont.Face7x13,
	}
	line := func(y int, s string) {
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(s)
	}

	if !status.HaveRow {
		line(26, "Foot INS")
		line(39, "Waiting...")
		return img
	}

	p := status.Last.Position
	line(13, fmt.Sprintf("X: %7.2f", p[0]))
	line(26, fmt.Sprintf("Y: %7.2f", p[1]))
	line(39, fmt.Sprintf("Z: %7.2f", p[2]))
	phase := "SWING"
	if status.Last.Stance {
		phase = "STANCE"
	}
	line(52, fmt.Sprintf("%s %d", phase, status.Samples))
	return img
}
