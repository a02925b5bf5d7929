package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFindLatestPDF(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.pdf")
	fresh := filepath.Join(dir, "fresh.PDF")
	for _, p := range []string{old, fresh, filepath.Join(dir, "note.txt")} {
		if err := os.WriteFile(p, []byte("%PDF"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	got, err := FindLatestPDF(dir)
	if err != nil {
		t.Fatalf("FindLatestPDF failed: %v", err)
	}
	if got != fresh {
		t.Errorf("Expected %s, got %s", fresh, got)
	}

	if _, err := FindLatestPDF(t.TempDir()); err == nil {
		t.Error("Expected an error for a directory without PDFs")
	}
}

func TestPickEncoder(t *testing.T) {
	tests := []struct {
		list     string
		expected string
	}{
		{" V..... libx264\n V..... h264_nvenc\n", "h264_nvenc"},
		{" V..... h264_videotoolbox\n V..... h264_nvenc\n", "h264_videotoolbox"},
		{" V..... libx264\n", "libx264"},
	}
	for _, tt := range tests {
		if got := pickEncoder(tt.list); got != tt.expected {
			t.Errorf("pickEncoder(%q) = %s, expected %s", tt.list, got, tt.expected)
		}
	}
}

func TestCapWorkers(t *testing.T) {
	tests := []struct {
		workers  int
		budget   uint64
		per      uint64
		expected int
	}{
		{8, 1 << 30, 1 << 20, 8},
		{8, 3 << 20, 1 << 20, 3},
		{8, 1 << 10, 1 << 20, 1},
	}
	for _, tt := range tests {
		if got := capWorkers(tt.workers, tt.budget, tt.per); got != tt.expected {
			t.Errorf("capWorkers(%d, %d, %d) = %d, expected %d", tt.workers, tt.budget, tt.per, got, tt.expected)
		}
	}
	if DefaultWorkers(0) < 1 {
		t.Error("DefaultWorkers must return at least one worker")
	}
}

func TestImagePoolClearsCanvas(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 2, 2)

	img := p.Get(rect)
	img.Pix[0] = 200
	p.Put(img)

	again := p.Get(rect)
	if again.Rect != rect {
		t.Errorf("Expected bounds %v, got %v", rect, again.Rect)
	}
	for i, v := range again.Pix {
		if v != 0 {
			t.Fatalf("Pixel byte %d not cleared: %d", i, v)
		}
	}
	p.Put(image.NewRGBA(image.Rect(0, 0, 5, 5)))
}
