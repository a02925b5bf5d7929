package timeline

import (
	"fmt"

	"github.com/ivlev/flipbook/internal/host"
)

// Mode selects how Goto moves the active index.
type Mode int

const (
	Next Mode = iota + 1
	Prev
	End
	Start
	// Stay re-runs the passes on the current frame.
	Stay
	// Absolute jumps to the index given with At.
	Absolute
	// HostActive follows the host's active layer, falling back to frame 0.
	HostActive
)

func (m Mode) String() string {
	switch m {
	case Next:
		return "next"
	case Prev:
		return "prev"
	case End:
		return "end"
	case Start:
		return "start"
	case Stay:
		return "stay"
	case Absolute:
		return "absolute"
	case HostActive:
		return "host-active"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Previewer keeps cached previews of frames, such as timeline thumbnails.
type Previewer interface {
	Refresh(h host.Handle) error
}

// Observer is told about every frame that becomes active.
type Observer interface {
	FrameActivated(index int, f Frame)
}

// Timeline is the navigation state machine over a Registry.
type Timeline struct {
	store      host.LayerStore
	registry   *Registry
	compositor *Compositor

	active  int // -1 while the sequence is empty
	onion   OnionSkin
	playing bool

	previewer Previewer
	observers []Observer
}

// Option modifies a Timeline during creation.
type Option func(*Timeline)

// WithOnionSkin sets the initial onion-skin configuration.
func WithOnionSkin(o OnionSkin) Option {
	return func(t *Timeline) { t.onion = o.Normalize() }
}

// WithPreviewer registers the preview cache refreshed by GotoOption Refresh.
func WithPreviewer(p Previewer) Option {
	return func(t *Timeline) { t.previewer = p }
}

// WithObserver registers an observer of frame activations.
func WithObserver(o Observer) Option {
	return func(t *Timeline) { t.observers = append(t.observers, o) }
}

// New scans store and activates the frame matching the host's active layer.
func New(store host.LayerStore, opts ...Option) (*Timeline, error) {
	t := &Timeline{
		store:      store,
		registry:   NewRegistry(store),
		compositor: NewCompositor(store),
		active:     -1,
		onion:      DefaultOnionSkin(),
	}
	for _, o := range opts {
		o(t)
	}

	if err := t.sync(); err != nil {
		return nil, err
	}
	if t.registry.Len() > 0 {
		if err := t.Goto(HostActive); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddObserver registers o after creation.
func (t *Timeline) AddObserver(o Observer) {
	t.observers = append(t.observers, o)
}

// Store returns the host layer store.
func (t *Timeline) Store() host.LayerStore { return t.store }

// Registry returns the frame registry.
func (t *Timeline) Registry() *Registry { return t.registry }

// Len returns the number of frames.
func (t *Timeline) Len() int { return t.registry.Len() }

// Frames returns a copy of the frame sequence.
func (t *Timeline) Frames() []Frame { return t.registry.Frames() }

// Active returns the active index; ok is false for an empty sequence.
func (t *Timeline) Active() (index int, ok bool) {
	if t.registry.Len() == 0 {
		return -1, false
	}
	return t.active, true
}

// ActiveFrame returns the active frame.
func (t *Timeline) ActiveFrame() (Frame, error) {
	if t.registry.Len() == 0 {
		return Frame{}, ErrEmptySequence
	}
	return t.registry.Frame(t.active)
}

// OnionSkin returns the current onion-skin configuration.
func (t *Timeline) OnionSkin() OnionSkin { return t.onion }

// Playing reports whether compositor passes are playback passes.
func (t *Timeline) Playing() bool { return t.playing }

// SetPlaying switches between editing and playback passes. The current
// neighbours are hidden first, so a sweep shown while editing does not
// linger when playback suppresses it.
func (t *Timeline) SetPlaying(playing bool) error {
	if t.playing == playing {
		return nil
	}
	if t.registry.Len() > 0 {
		if err := t.pass(false); err != nil {
			return err
		}
	}
	t.playing = playing
	return nil
}

type gotoParams struct {
	index   int
	refresh bool
}

// GotoOption tunes a Goto call.
type GotoOption func(*gotoParams)

// At gives the target index for Absolute.
func At(index int) GotoOption {
	return func(p *gotoParams) { p.index = index }
}

// Refresh asks the previewer to refresh the outgoing frame first.
func Refresh() GotoOption {
	return func(p *gotoParams) { p.refresh = true }
}

// Goto hides the active frame, moves the active index and shows the new
// frame, then points the host at it and flushes the displays.
func (t *Timeline) Goto(mode Mode, opts ...GotoOption) error {
	var p gotoParams
	for _, o := range opts {
		o(&p)
	}

	n := t.registry.Len()
	if n == 0 {
		return ErrEmptySequence
	}
	if mode < Next || mode > HostActive {
		return fmt.Errorf("goto: unknown %v", mode)
	}
	if mode == Absolute && (p.index < 0 || p.index >= n) {
		return outOfRange(p.index, n)
	}
	t.clamp()

	if p.refresh && t.previewer != nil {
		if err := t.previewer.Refresh(t.registry.frames[t.active].Layer); err != nil {
			return fmt.Errorf("goto: refresh preview: %w", err)
		}
	}

	if err := t.pass(false); err != nil {
		return err
	}

	switch mode {
	case Start:
		t.active = 0
	case End:
		t.active = n - 1
	case Next:
		t.active = (t.active + 1) % n
	case Prev:
		t.active = (t.active - 1 + n) % n
	case Absolute:
		t.active = p.index
	case HostActive:
		t.active = 0
		if h, ok := t.store.ActiveLayer(); ok {
			if i := t.registry.IndexOf(h); i >= 0 {
				t.active = i
			}
		}
	}

	if err := t.pass(true); err != nil {
		return err
	}

	f := t.registry.frames[t.active]
	if err := t.store.SetActiveLayer(f.Layer); err != nil {
		return err
	}
	t.store.Flush()

	for _, o := range t.observers {
		o.FrameActivated(t.active, f)
	}
	return nil
}

// GotoIndex is Goto(Absolute, At(index)).
func (t *Timeline) GotoIndex(index int) error {
	return t.Goto(Absolute, At(index))
}

func (t *Timeline) pass(show bool) error {
	return t.compositor.Run(t.registry.frames, Pass{
		Active:  t.active,
		Show:    show,
		Playing: t.playing,
	}, t.onion)
}

func (t *Timeline) clamp() {
	n := t.registry.Len()
	switch {
	case n == 0:
		t.active = -1
	case t.active < 0:
		t.active = 0
	case t.active >= n:
		t.active = n - 1
	}
}

// sync rescans the host and resets every frame to its resting visibility.
func (t *Timeline) sync() error {
	frames, err := t.registry.Sync()
	if err != nil {
		return err
	}
	t.clamp()
	return t.compositor.Normalize(frames)
}
