package source

import (
	"context"
	"errors"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/flipbook/internal/host"
)

// Load renders every page of src with up to workers pages in flight and
// stacks them as layers of a new in-memory image. Page 0 becomes the bottom
// layer, which is frame 0. The canvas covers the largest page.
func Load(ctx context.Context, src Source, dpi, workers int) (*host.Memory, error) {
	n := src.PageCount()
	if n == 0 {
		return nil, errors.New("source has no pages")
	}
	if workers < 1 {
		workers = 1
	}

	pages := make([]image.Image, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := src.RenderPage(i, dpi)
			if err != nil {
				return fmt.Errorf("render page %d: %w", i, err)
			}
			pages[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var w, h int
	for _, img := range pages {
		b := img.Bounds()
		w = max(w, b.Dx())
		h = max(h, b.Dy())
	}

	m := host.NewMemory(w, h)
	if err := Append(m, src, pages); err != nil {
		return nil, err
	}
	return m, nil
}

// Append stacks already rendered pages on top of m, in page order.
func Append(m *host.Memory, src Source, pages []image.Image) error {
	for i, img := range pages {
		layer := m.NewLayer(src.PageName(i), img)
		if err := m.AddLayer(layer, 0); err != nil {
			return fmt.Errorf("add page %d: %w", i, err)
		}
	}
	return nil
}
