package timeline

import (
	"errors"
	"fmt"

	"github.com/ivlev/flipbook/internal/host"
)

// ToggleFixed flips the fixed flag of a frame. A frame that becomes fixed is
// shown at full opacity from then on; one that stops being fixed returns to
// the normal sweep.
func (t *Timeline) ToggleFixed(index int) error {
	n := t.registry.Len()
	if index < 0 || index >= n {
		return outOfRange(index, n)
	}
	if err := t.pass(false); err != nil {
		return err
	}
	if err := t.registry.ToggleFixed(index); err != nil {
		return err
	}

	f := t.registry.frames[index]
	if err := t.compositor.Apply(t.registry.frames, []Assignment{
		{Index: index, Visible: f.Fixed, Opacity: 100},
	}); err != nil {
		return err
	}
	return t.Goto(Stay)
}

// SetOnionSkin turns the onion-skin sweep on or off.
func (t *Timeline) SetOnionSkin(enabled bool) error {
	o := t.onion
	o.Enabled = enabled
	return t.Configure(o)
}

// ToggleOnionSkin flips the onion-skin sweep.
func (t *Timeline) ToggleOnionSkin() error {
	return t.SetOnionSkin(!t.onion.Enabled)
}

// Configure replaces the onion-skin configuration and redraws the sweep.
func (t *Timeline) Configure(o OnionSkin) error {
	if t.registry.Len() == 0 {
		t.onion = o.Normalize()
		return nil
	}
	if err := t.pass(false); err != nil {
		return err
	}
	t.onion = o.Normalize()
	return t.Goto(Stay, Refresh())
}

// AddFrame creates a frame directly after the active one and activates it.
// With duplicate set the new layer duplicates the active frame, otherwise it is
// blank. The new layer is named "Frame N" where N is the old frame count.
func (t *Timeline) AddFrame(duplicate bool) error {
	factory, ok := t.store.(host.LayerFactory)
	if !ok {
		return errors.New("add frame: host cannot create layers")
	}
	if g, ok := t.store.(host.UndoGrouper); ok {
		g.UndoGroupStart()
		defer g.UndoGroupEnd()
	}

	n := t.registry.Len()
	name := fmt.Sprintf("Frame %d", n)

	var h host.Handle
	if duplicate {
		if n == 0 {
			return ErrEmptySequence
		}
		dup, err := factory.Duplicate(t.registry.frames[t.active].Layer, name)
		if err != nil {
			return fmt.Errorf("add frame: %w", err)
		}
		h = dup
	} else {
		h = factory.NewLayer(name, nil)
	}

	at := t.active + 1
	if n == 0 {
		at = 0
	}
	if err := t.registry.Insert(h, at); err != nil {
		return fmt.Errorf("add frame: %w", err)
	}
	if err := t.compositor.Normalize(t.registry.frames); err != nil {
		return err
	}

	if n == 0 {
		t.active = 0
		return t.Goto(Stay)
	}
	return t.Goto(Next, Refresh())
}

// RemoveActive deletes the active frame. The previous frame becomes active,
// or the new first frame when the first one was removed.
func (t *Timeline) RemoveActive() error {
	if t.registry.Len() == 0 {
		return ErrEmptySequence
	}

	index := t.active
	if t.active > 0 {
		if err := t.Goto(Prev, Refresh()); err != nil {
			return err
		}
	}
	if err := t.registry.Remove(index); err != nil {
		return err
	}
	if err := t.sync(); err != nil {
		return err
	}
	if t.registry.Len() == 0 {
		return nil
	}
	return t.Goto(Stay)
}

// MoveActive swaps the active frame with its neighbour: Next moves it one
// step later in the sequence, Prev one step earlier. A move past either end
// is ignored.
func (t *Timeline) MoveActive(dir Mode) error {
	n := t.registry.Len()
	if n == 0 {
		return ErrEmptySequence
	}

	var err error
	index := t.active
	switch dir {
	case Next:
		if t.active+1 == n {
			return nil
		}
		index++
		err = t.registry.Raise(t.active)
	case Prev:
		if t.active-1 < 0 {
			return nil
		}
		index--
		err = t.registry.Lower(t.active)
	default:
		return fmt.Errorf("move: unsupported direction %v", dir)
	}
	if err != nil {
		return err
	}

	if err := t.compositor.Normalize(t.registry.frames); err != nil {
		return err
	}
	t.active = index
	return t.Goto(Stay)
}

// Resync rescans the host after it may have changed behind the timeline's
// back and follows the host's active layer.
func (t *Timeline) Resync() error {
	if len(t.store.Layers()) == 0 {
		if _, err := t.registry.Sync(); err != nil {
			return err
		}
		t.active = -1
		return ErrEmptySequence
	}
	if err := t.sync(); err != nil {
		return err
	}
	return t.Goto(HostActive)
}
