package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", SettingsFile)
	store := NewStore(path)

	want := Settings{
		FrameRate:     12,
		OnionDepth:    4,
		OnionOnPlay:   false,
		OnionForward:  true,
		OnionBackward: false,
		WinWidth:      640,
		WinHeight:     480,
		WinPosX:       10,
		WinPosY:       -20,
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok := store.Load()
	if !ok {
		t.Fatal("Load fell back to defaults")
	}
	if got != want {
		t.Errorf("Round trip mismatch:\n got  %+v\n want %+v", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the settings file after save, found %d entries", len(entries))
	}
}

func TestSettingsMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := store.Read()
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Errorf("Expected ErrPersistenceUnavailable, got %v", err)
	}

	got, ok := store.Load()
	if ok {
		t.Error("Expected Load to report defaults")
	}
	if got != DefaultSettings() {
		t.Errorf("Expected defaults, got %+v", got)
	}
}

func TestSettingsMalformedFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "framerate: [30\n"},
		{"type", "framerate: fast\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), SettingsFile)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			got, ok := NewStore(path).Load()
			if ok {
				t.Error("Expected malformed settings to be rejected")
			}
			if got != DefaultSettings() {
				t.Errorf("Expected defaults, got %+v", got)
			}
		})
	}
}

func TestSettingsPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	if err := os.WriteFile(path, []byte("framerate: 500\noskin_depth: 0\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, ok := NewStore(path).Load()
	if !ok {
		t.Fatal("Load rejected a valid file")
	}
	if got.FrameRate != 100 || got.OnionDepth != 1 {
		t.Errorf("Expected clamped framerate 100 and depth 1, got %d and %d", got.FrameRate, got.OnionDepth)
	}
	if !got.OnionBackward || !got.OnionOnPlay || got.OnionForward {
		t.Errorf("Missing keys should keep their defaults, got %+v", got)
	}
}

func TestSettingsOnionSkin(t *testing.T) {
	s := DefaultSettings()
	o := s.OnionSkin(true)
	if !o.Enabled || o.Depth != 2 || !o.Backward || o.Forward || !o.OnPlay {
		t.Errorf("Unexpected onion skin from defaults: %+v", o)
	}

	o.Depth = 5
	o.Forward = true
	s.SetOnionSkin(o)
	if s.OnionDepth != 5 || !s.OnionForward {
		t.Errorf("SetOnionSkin did not copy the configuration: %+v", s)
	}
}

func TestExportParams(t *testing.T) {
	c := Config{Width: 320, Height: 240, FPS: 12, Workers: 3, Background: "#ffffff", Quality: 23}
	p := c.ExportParams()
	if p.Width != 320 || p.Height != 240 || p.FPS != 12 || p.Workers != 3 || p.Background != "#ffffff" || p.Quality != 23 {
		t.Errorf("Unexpected export params: %+v", p)
	}
}
