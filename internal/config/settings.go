package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/flipbook/internal/playback"
	"github.com/ivlev/flipbook/internal/timeline"
)

// ErrPersistenceUnavailable means the settings file is missing or unreadable.
// Load recovers from it by returning the defaults.
var ErrPersistenceUnavailable = errors.New("settings unavailable")

const (
	AppDir       = "flipbook"
	SettingsFile = "conf.yaml"
)

// Settings is the record kept between sessions.
type Settings struct {
	FrameRate     int  `yaml:"framerate"`
	OnionDepth    int  `yaml:"oskin_depth"`
	OnionOnPlay   bool `yaml:"oskin_onplay"`
	OnionForward  bool `yaml:"oskin_forward"`
	OnionBackward bool `yaml:"oskin_backward"`

	WinWidth  int `yaml:"win_width"`
	WinHeight int `yaml:"win_height"`
	WinPosX   int `yaml:"win_posx"`
	WinPosY   int `yaml:"win_posy"`
}

// DefaultSettings returns the record used when nothing is stored.
func DefaultSettings() Settings {
	return Settings{
		FrameRate:     playback.DefaultFrameRate,
		OnionDepth:    2,
		OnionOnPlay:   true,
		OnionForward:  false,
		OnionBackward: true,
	}
}

// Clamp limits the frame rate and onion-skin depth to their valid ranges.
func (s Settings) Clamp() Settings {
	s.FrameRate = playback.ClampFrameRate(s.FrameRate)
	if s.OnionDepth < 1 {
		s.OnionDepth = 1
	}
	if s.OnionDepth > timeline.MaxOnionDepth {
		s.OnionDepth = timeline.MaxOnionDepth
	}
	return s
}

// OnionSkin builds the compositor configuration. Whether the sweep is on is
// not persisted and comes from the caller.
func (s Settings) OnionSkin(enabled bool) timeline.OnionSkin {
	return timeline.OnionSkin{
		Enabled:    enabled,
		Depth:      s.OnionDepth,
		Backward:   s.OnionBackward,
		Forward:    s.OnionForward,
		MaxOpacity: timeline.DefaultOnionOpacity,
		OnPlay:     s.OnionOnPlay,
	}.Normalize()
}

// SetOnionSkin copies the persisted part of o into s.
func (s *Settings) SetOnionSkin(o timeline.OnionSkin) {
	s.OnionDepth = o.Depth
	s.OnionBackward = o.Backward
	s.OnionForward = o.Forward
	s.OnionOnPlay = o.OnPlay
}

// Store reads and writes the settings file.
type Store struct {
	OverridePath string
}

// NewStore creates a Store. An empty overridePath selects DefaultPath.
func NewStore(overridePath string) *Store {
	return &Store{OverridePath: overridePath}
}

// DefaultPath is conf.yaml in the flipbook directory under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppDir, SettingsFile), nil
}

// Path returns the file the store uses.
func (s *Store) Path() (string, error) {
	if s.OverridePath != "" {
		return s.OverridePath, nil
	}
	return DefaultPath()
}

// Read parses the settings file. Keys missing from the file keep their
// defaults. Any failure wraps ErrPersistenceUnavailable.
func (s *Store) Read() (Settings, error) {
	path, err := s.Path()
	if err != nil {
		return DefaultSettings(), fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("%w: %s: %w", ErrPersistenceUnavailable, path, err)
	}
	return settings.Clamp(), nil
}

// Load is Read with the error recovered: ok is false when the defaults were
// used.
func (s *Store) Load() (settings Settings, ok bool) {
	settings, err := s.Read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[!] Using default settings: %v", err)
		}
		return settings, false
	}
	return settings, true
}

// Save replaces the settings file atomically.
func (s *Store) Save(settings Settings) error {
	path, err := s.Path()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(settings.Clamp())
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+SettingsFile+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
