package thumbnail

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/flipbook/internal/host"
)

// DefaultSize bounds the longer side of a thumbnail.
const DefaultSize = 100

// Cache keeps scaled previews of frame layers. It satisfies
// timeline.Previewer, so navigation refreshes the preview of every frame it
// leaves.
type Cache struct {
	src  host.Rasterizer
	size int

	mu    sync.RWMutex
	items map[host.Handle]*image.RGBA
}

// New creates a cache whose previews fit in a size x size box.
func New(src host.Rasterizer, size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{src: src, size: size, items: make(map[host.Handle]*image.RGBA)}
}

// Refresh rebuilds the preview of h from the current layer pixels.
func (c *Cache) Refresh(h host.Handle) error {
	img, err := c.src.LayerImage(h)
	if err != nil {
		return fmt.Errorf("thumbnail %d: %w", h, err)
	}
	thumb := Scale(img, c.size)

	c.mu.Lock()
	c.items[h] = thumb
	c.mu.Unlock()
	return nil
}

// Get returns the preview of h, building it on first use.
func (c *Cache) Get(h host.Handle) (image.Image, error) {
	c.mu.RLock()
	thumb, ok := c.items[h]
	c.mu.RUnlock()
	if ok {
		return thumb, nil
	}
	if err := c.Refresh(h); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[h], nil
}

// Forget drops every preview not in keep.
func (c *Cache) Forget(keep []host.Handle) {
	alive := make(map[host.Handle]bool, len(keep))
	for _, h := range keep {
		alive[h] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for h := range c.items {
		if !alive[h] {
			delete(c.items, h)
		}
	}
}

// Save writes the preview of h to path as a PNG.
func (c *Cache) Save(h host.Handle, path string) error {
	thumb, err := c.Get(h)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := png.Encode(w, thumb); err != nil {
		f.Close()
		return fmt.Errorf("thumbnail %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Len is the number of cached previews.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Scale fits img into a size x size box keeping its aspect ratio.
func Scale(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	if w >= h {
		h = max(1, h*size/w)
		w = size
	} else {
		w = max(1, w*size/h)
		h = size
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
