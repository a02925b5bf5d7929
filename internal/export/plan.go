package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ivlev/flipbook/internal/host"
	"github.com/ivlev/flipbook/internal/timeline"
)

// Cell is one exported animation frame: the frame indices it stacks, bottom
// first.
type Cell []int

// Plan builds one cell per frame that is not fixed. Every cell stacks all
// fixed frames together with its own frame in ascending index order, so a
// fixed frame below the frame stays under it and one above covers it.
func Plan(frames []timeline.Frame) []Cell {
	var fixed []int
	for i, f := range frames {
		if f.Fixed {
			fixed = append(fixed, i)
		}
	}

	var cells []Cell
	for i, f := range frames {
		if f.Fixed {
			continue
		}
		cell := make(Cell, 0, len(fixed)+1)
		placed := false
		for _, j := range fixed {
			if !placed && j > i {
				cell = append(cell, i)
				placed = true
			}
			cell = append(cell, j)
		}
		if !placed {
			cell = append(cell, i)
		}
		cells = append(cells, cell)
	}
	return cells
}

// ParseBackground reads a #rrggbb colour. An empty string means transparent.
func ParseBackground(hex string) (color.Color, error) {
	if hex == "" {
		return color.Transparent, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("background %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Compose paints bg and then the layers of cell onto dst, honouring each
// layer's opacity.
func Compose(dst *image.RGBA, store host.LayerStore, raster host.Rasterizer, frames []timeline.Frame, cell Cell, bg color.Color) error {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	for _, i := range cell {
		if i < 0 || i >= len(frames) {
			return fmt.Errorf("cell frame %d of %d: %w", i, len(frames), timeline.ErrIndexOutOfRange)
		}
		h := frames[i].Layer
		img, err := raster.LayerImage(h)
		if err != nil {
			return err
		}
		opacity, err := store.Opacity(h)
		if err != nil {
			return err
		}
		if opacity <= 0 {
			continue
		}

		b := img.Bounds()
		r := image.Rect(0, 0, b.Dx(), b.Dy()).Add(dst.Bounds().Min)
		if opacity >= 100 {
			draw.Draw(dst, r, img, b.Min, draw.Over)
			continue
		}
		mask := image.NewUniform(color.Alpha{A: uint8(opacity * 255 / 100)})
		draw.DrawMask(dst, r, img, b.Min, mask, image.Point{}, draw.Over)
	}
	return nil
}
