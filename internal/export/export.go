package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"log"
	"os"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/flipbook/internal/config"
	"github.com/ivlev/flipbook/internal/host"
	"github.com/ivlev/flipbook/internal/system"
	"github.com/ivlev/flipbook/internal/timeline"
	"github.com/ivlev/flipbook/internal/video"
)

const (
	FormatGIF    = "gif"
	FormatSprite = "sprite"
	FormatMP4    = "mp4"
)

// Exporter renders the timeline into animation files.
type Exporter struct {
	tl      *timeline.Timeline
	raster  host.Rasterizer
	canvas  image.Rectangle
	params  config.ExportParams
	encoder video.VideoEncoder
	pool    *system.ImagePool
}

// New creates an Exporter. canvas is the host image size.
func New(tl *timeline.Timeline, raster host.Rasterizer, canvas image.Rectangle, params config.ExportParams, encoder video.VideoEncoder) *Exporter {
	if params.FPS <= 0 {
		params.FPS = 30
	}
	if params.Workers <= 0 {
		params.Workers = system.DefaultWorkers(uint64(canvas.Dx() * canvas.Dy() * 4 * 2))
	}
	return &Exporter{
		tl:      tl,
		raster:  raster,
		canvas:  canvas,
		params:  params,
		encoder: encoder,
		pool:    system.NewImagePool(),
	}
}

// CellSize is the size of every exported frame.
func (e *Exporter) CellSize() image.Rectangle {
	w, h := e.params.Width, e.params.Height
	switch {
	case w > 0 && h > 0:
	case w > 0:
		h = max(1, e.canvas.Dy()*w/e.canvas.Dx())
	case h > 0:
		w = max(1, e.canvas.Dx()*h/e.canvas.Dy())
	default:
		return image.Rect(0, 0, e.canvas.Dx(), e.canvas.Dy())
	}
	return image.Rect(0, 0, w, h)
}

// Run writes the timeline to path in the given format.
func (e *Exporter) Run(ctx context.Context, format, path string) error {
	switch strings.ToLower(format) {
	case FormatGIF:
		return e.WriteGIF(ctx, path)
	case FormatSprite:
		return e.WriteSprite(ctx, path)
	case FormatMP4:
		return e.WriteVideo(ctx, path)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// Cells composes every cell of the plan. Onion skin is switched off while
// the layers are read, since it alters their opacity, and restored after.
func (e *Exporter) Cells(ctx context.Context) ([]*image.RGBA, error) {
	bg, err := ParseBackground(e.params.Background)
	if err != nil {
		return nil, err
	}

	if e.tl.OnionSkin().Enabled {
		if err := e.tl.SetOnionSkin(false); err != nil {
			return nil, err
		}
		defer func() {
			if err := e.tl.SetOnionSkin(true); err != nil {
				log.Printf("[!] Не удалось вернуть onion skin: %v", err)
			}
		}()
	}

	frames := e.tl.Frames()
	plan := Plan(frames)
	if len(plan) == 0 {
		return nil, timeline.ErrNoPlayableFrames
	}

	store := e.tl.Store()
	size := e.CellSize()
	scale := size.Dx() != e.canvas.Dx() || size.Dy() != e.canvas.Dy()
	out := make([]*image.RGBA, len(plan))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.Workers)
	for i, cell := range plan {
		i, cell := i, cell
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !scale {
				dst := image.NewRGBA(size)
				if err := Compose(dst, store, e.raster, frames, cell, bg); err != nil {
					return fmt.Errorf("cell %d: %w", i, err)
				}
				out[i] = dst
				return nil
			}

			full := e.pool.Get(image.Rect(0, 0, e.canvas.Dx(), e.canvas.Dy()))
			defer e.pool.Put(full)
			if err := Compose(full, store, e.raster, frames, cell, bg); err != nil {
				return fmt.Errorf("cell %d: %w", i, err)
			}
			dst := image.NewRGBA(size)
			xdraw.CatmullRom.Scale(dst, size, full, full.Bounds(), xdraw.Src, nil)
			out[i] = dst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteGIF writes an endlessly looping animated GIF.
func (e *Exporter) WriteGIF(ctx context.Context, path string) error {
	cells, err := e.Cells(ctx)
	if err != nil {
		return err
	}

	delay := max(1, 100/e.params.FPS)
	anim := &gif.GIF{LoopCount: 0}
	for _, c := range cells {
		p := image.NewPaletted(c.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(p, c.Bounds(), c, image.Point{})
		anim.Image = append(anim.Image, p)
		anim.Delay = append(anim.Delay, delay)
		anim.Disposal = append(anim.Disposal, gif.DisposalBackground)
	}

	return writeFile(path, func(f *bufio.Writer) error {
		return gif.EncodeAll(f, anim)
	})
}

// WriteSprite writes all cells side by side into one PNG.
func (e *Exporter) WriteSprite(ctx context.Context, path string) error {
	cells, err := e.Cells(ctx)
	if err != nil {
		return err
	}

	size := e.CellSize()
	sheet := image.NewRGBA(image.Rect(0, 0, size.Dx()*len(cells), size.Dy()))
	for i, c := range cells {
		r := size.Add(image.Pt(i*size.Dx(), 0))
		draw.Draw(sheet, r, c, image.Point{}, draw.Src)
	}

	return writeFile(path, func(f *bufio.Writer) error {
		return png.Encode(f, sheet)
	})
}

// WriteVideo encodes the cells as an MP4, one cell per frame at the
// export frame rate.
func (e *Exporter) WriteVideo(ctx context.Context, path string) error {
	if e.encoder == nil {
		return errors.New("video export needs an encoder")
	}
	cells, err := e.Cells(ctx)
	if err != nil {
		return err
	}

	bg, _ := ParseBackground(e.params.Background)
	if _, _, _, a := bg.RGBA(); a == 0 {
		// В MP4 нет альфа-канала, подкладываем белый фон
		for _, c := range cells {
			flatten(c, color.White)
		}
	}

	frames := make([]image.Image, len(cells))
	for i, c := range cells {
		frames[i] = c
	}

	encoderName := e.params.VideoEncoder
	if encoderName == "" {
		encoderName = "libx264"
	}
	quality := e.params.Quality
	if quality == 0 {
		quality = video.DefaultQuality(encoderName)
	}
	return e.encoder.Encode(ctx, frames, path, e.params.FPS, encoderName, quality)
}

func flatten(img *image.RGBA, bg color.Color) {
	b := img.Bounds()
	flat := image.NewRGBA(b)
	draw.Draw(flat, b, image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(flat, b, img, b.Min, draw.Over)
	copy(img.Pix, flat.Pix)
}

func writeFile(path string, encode func(*bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := encode(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
