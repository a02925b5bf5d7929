package host

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
)

func TestDuplicateCopiesLayer(t *testing.T) {
	m := NewMemory(2, 2)
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Set(1, 1, color.RGBA{R: 255, A: 255})
	h := m.NewLayer("a", src)
	if err := m.SetOpacity(h, 40); err != nil {
		t.Fatalf("SetOpacity failed: %v", err)
	}
	if err := m.SetVisible(h, false); err != nil {
		t.Fatalf("SetVisible failed: %v", err)
	}

	dup, err := m.Duplicate(h, "a copy")
	if err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}
	if name, _ := m.Name(dup); name != "a copy" {
		t.Errorf("Expected name %q, got %q", "a copy", name)
	}
	if op, _ := m.Opacity(dup); op != 40 {
		t.Errorf("Expected opacity 40, got %v", op)
	}
	if vis, _ := m.Visible(dup); vis {
		t.Error("Expected the copy to be hidden")
	}

	src.Set(1, 1, color.RGBA{G: 255, A: 255})
	img, _ := m.LayerImage(dup)
	if r, _, _, _ := img.At(1, 1).RGBA(); r>>8 != 255 {
		t.Error("Copy shares pixels with the source layer")
	}

	if _, err := m.Duplicate(9999, "x"); !errors.Is(err, ErrUnknownLayer) {
		t.Errorf("Expected ErrUnknownLayer, got %v", err)
	}
}

// Run with -race.
func TestDuplicateWhileEditing(t *testing.T) {
	m := NewMemory(8, 8)
	h := m.NewLayer("a", nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			m.SetOpacity(h, float64(i))
			m.SetVisible(h, i%2 == 0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if _, err := m.Duplicate(h, "copy"); err != nil {
				t.Errorf("Duplicate failed: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}
