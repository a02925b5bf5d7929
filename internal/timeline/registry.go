package timeline

import (
	"fmt"

	"github.com/ivlev/flipbook/internal/host"
)

// Registry owns the ordered frame sequence. Index 0 is the bottom of the
// host layer stack. The sequence is rebuilt from the host after every
// structural edit rather than patched.
type Registry struct {
	store  host.LayerStore
	frames []Frame
}

// NewRegistry creates an empty registry over store. Call Sync to populate it.
func NewRegistry(store host.LayerStore) *Registry {
	return &Registry{store: store}
}

// Len returns the number of frames.
func (r *Registry) Len() int {
	return len(r.frames)
}

// Frames returns a copy of the sequence.
func (r *Registry) Frames() []Frame {
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Frame returns the frame at index.
func (r *Registry) Frame(index int) (Frame, error) {
	if index < 0 || index >= len(r.frames) {
		return Frame{}, outOfRange(index, len(r.frames))
	}
	return r.frames[index], nil
}

// IndexOf returns the position of the frame backed by h, or -1.
func (r *Registry) IndexOf(h host.Handle) int {
	for i, f := range r.frames {
		if f.Layer == h {
			return i
		}
	}
	return -1
}

// Sync rescans the host's current layer stack.
func (r *Registry) Sync() ([]Frame, error) {
	return r.Rescan(r.store.Layers())
}

// Rescan rebuilds the sequence from layers, given top of stack first. The
// fixed flag of every frame is recovered from its layer name; each layer's
// opacity is reset to 100. A handle listed twice is kept once.
func (r *Registry) Rescan(layers []host.Handle) ([]Frame, error) {
	r.store.UndoFreeze()
	defer r.store.UndoThaw()

	frames := make([]Frame, 0, len(layers))
	seen := make(map[host.Handle]bool, len(layers))
	for i := len(layers) - 1; i >= 0; i-- {
		h := layers[i]
		if seen[h] {
			continue
		}
		seen[h] = true

		name, err := r.store.Name(h)
		if err != nil {
			return nil, fmt.Errorf("rescan: %w", err)
		}
		if err := r.store.SetOpacity(h, 100); err != nil {
			return nil, fmt.Errorf("rescan: %w", err)
		}
		frames = append(frames, newFrame(h, name))
	}
	r.frames = frames
	return r.Frames(), nil
}

// ToggleFixed flips the fixed flag of the frame at index and rewrites the
// marker on the host layer name.
func (r *Registry) ToggleFixed(index int) error {
	if index < 0 || index >= len(r.frames) {
		return outOfRange(index, len(r.frames))
	}
	f := &r.frames[index]

	name, err := r.store.Name(f.Layer)
	if err != nil {
		return err
	}
	if f.Fixed {
		name = UnmarkFixed(name)
	} else {
		name = MarkFixed(name)
	}
	if err := r.store.SetName(f.Layer, name); err != nil {
		return err
	}

	f.Fixed = !f.Fixed
	f.DisplayName = UnmarkFixed(name)
	return nil
}

// Insert adds h to the host stack so that it becomes frame at, then rescans.
func (r *Registry) Insert(h host.Handle, at int) error {
	n := len(r.frames)
	if at < 0 || at > n {
		return outOfRange(at, n+1)
	}
	if err := r.store.AddLayer(h, n-at); err != nil {
		return err
	}
	_, err := r.Sync()
	return err
}

// Remove deletes the layer of frame at from the host, then rescans.
func (r *Registry) Remove(at int) error {
	if at < 0 || at >= len(r.frames) {
		return outOfRange(at, len(r.frames))
	}
	if err := r.store.RemoveLayer(r.frames[at].Layer); err != nil {
		return err
	}
	_, err := r.Sync()
	return err
}

// Raise moves frame at one step towards the end of the sequence.
func (r *Registry) Raise(at int) error {
	if at < 0 || at >= len(r.frames) {
		return outOfRange(at, len(r.frames))
	}
	if err := r.store.RaiseLayer(r.frames[at].Layer); err != nil {
		return err
	}
	_, err := r.Sync()
	return err
}

// Lower moves frame at one step towards the start of the sequence.
func (r *Registry) Lower(at int) error {
	if at < 0 || at >= len(r.frames) {
		return outOfRange(at, len(r.frames))
	}
	if err := r.store.LowerLayer(r.frames[at].Layer); err != nil {
		return err
	}
	_, err := r.Sync()
	return err
}
