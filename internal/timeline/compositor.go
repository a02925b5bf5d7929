package timeline

import (
	"math"

	"github.com/ivlev/flipbook/internal/host"
)

const (
	// MaxOnionDepth bounds how many neighbours per side the sweep may reach.
	MaxOnionDepth = 6
	// DefaultOnionOpacity is the opacity of the nearest onion-skin neighbour.
	DefaultOnionOpacity = 50.0
)

// OnionSkin configures the translucent preview of neighbouring frames.
type OnionSkin struct {
	Enabled    bool
	Depth      int
	Backward   bool
	Forward    bool
	MaxOpacity float64
	// OnPlay keeps the sweep active while the animation plays.
	OnPlay bool
}

// DefaultOnionSkin returns the settings used when none are stored.
func DefaultOnionSkin() OnionSkin {
	return OnionSkin{
		Depth:      2,
		Backward:   true,
		MaxOpacity: DefaultOnionOpacity,
		OnPlay:     true,
	}
}

// Normalize clamps Depth to [1, MaxOnionDepth] and MaxOpacity to (0, 100].
func (o OnionSkin) Normalize() OnionSkin {
	if o.Depth < 1 {
		o.Depth = 1
	}
	if o.Depth > MaxOnionDepth {
		o.Depth = MaxOnionDepth
	}
	if o.MaxOpacity <= 0 || o.MaxOpacity > 100 {
		o.MaxOpacity = DefaultOnionOpacity
	}
	return o
}

// NeighbourOpacity is the opacity of the onion-skin neighbour at distance i
// during a show pass: the base opacity for i == 1, floor(base/i) - 2 after.
// The result is not clamped and reaches zero or below for deep sweeps.
func NeighbourOpacity(base float64, i int) float64 {
	if i <= 1 {
		return base
	}
	return math.Floor(base/float64(i)) - 2
}

// Assignment is the visibility and opacity one frame must take.
type Assignment struct {
	Index   int
	Visible bool
	Opacity float64
}

// Pass describes one compositor run.
type Pass struct {
	Active  int
	Show    bool
	Playing bool
}

// Compose computes the assignments for a pass over frames. It does not touch
// the host. Fixed neighbours and indices outside the sequence are left out.
func Compose(frames []Frame, p Pass, o OnionSkin) []Assignment {
	if p.Active < 0 || p.Active >= len(frames) {
		return nil
	}
	activeFixed := frames[p.Active].Fixed

	out := []Assignment{{
		Index:   p.Active,
		Visible: p.Show || activeFixed,
		Opacity: 100,
	}}

	if !o.Enabled || activeFixed || (p.Playing && !o.OnPlay) {
		return out
	}

	base := 100.0
	if p.Show {
		base = o.MaxOpacity
	}
	for i := 1; i <= o.Depth; i++ {
		opacity := base
		if p.Show {
			opacity = NeighbourOpacity(base, i)
		}

		if o.Backward {
			if pos := p.Active - i; pos >= 0 && !frames[pos].Fixed {
				out = append(out, Assignment{Index: pos, Visible: p.Show, Opacity: opacity})
			}
		}
		if o.Forward {
			if pos := p.Active + i; pos < len(frames) && !frames[pos].Fixed {
				out = append(out, Assignment{Index: pos, Visible: p.Show, Opacity: opacity})
			}
		}
	}
	return out
}

// Compositor writes assignments to the host inside one undo freeze bracket.
type Compositor struct {
	store host.LayerStore
}

// NewCompositor creates a compositor writing to store.
func NewCompositor(store host.LayerStore) *Compositor {
	return &Compositor{store: store}
}

// Run composes the pass and applies it.
func (c *Compositor) Run(frames []Frame, p Pass, o OnionSkin) error {
	return c.Apply(frames, Compose(frames, p, o))
}

// Apply writes every assignment. The undo journal is thawed on all paths.
func (c *Compositor) Apply(frames []Frame, assignments []Assignment) error {
	c.store.UndoFreeze()
	defer c.store.UndoThaw()

	for _, a := range assignments {
		h := frames[a.Index].Layer
		if err := c.store.SetOpacity(h, a.Opacity); err != nil {
			return err
		}
		if err := c.store.SetVisible(h, a.Visible); err != nil {
			return err
		}
	}
	return nil
}

// Normalize hides every non-fixed frame and shows every fixed frame at full
// opacity. It runs after a rescan so that later passes start from a known state.
func (c *Compositor) Normalize(frames []Frame) error {
	assignments := make([]Assignment, len(frames))
	for i, f := range frames {
		assignments[i] = Assignment{Index: i, Visible: f.Fixed, Opacity: 100}
	}
	return c.Apply(frames, assignments)
}
