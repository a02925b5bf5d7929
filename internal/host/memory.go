package host

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
)

// ErrCannotMove is returned when a layer is already at the edge of the stack.
var ErrCannotMove = errors.New("layer cannot be moved further")

type layer struct {
	name     string
	visible  bool
	opacity  float64
	img      image.Image
	attached bool
}

// Memory is an in-process layered image. It backs the command line tool and
// the tests.
type Memory struct {
	mu sync.RWMutex

	width, height int
	order         []Handle // top of stack first
	layers        map[Handle]*layer
	active        Handle
	hasActive     bool
	next          Handle

	freeze     int
	groupDepth int
	undoSteps  int
	flushes    int
}

// NewMemory creates an empty image with the given canvas size.
func NewMemory(width, height int) *Memory {
	return &Memory{
		width:  width,
		height: height,
		layers: make(map[Handle]*layer),
		next:   1,
	}
}

// Bounds returns the canvas rectangle.
func (m *Memory) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// NewLayer creates a detached layer. A nil img yields a transparent layer
// of canvas size. The layer joins the stack on AddLayer.
func (m *Memory) NewLayer(name string, img image.Image) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if img == nil {
		img = image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	}
	h := m.next
	m.next++
	m.layers[h] = &layer{name: name, visible: true, opacity: 100, img: img}
	return h
}

// Duplicate creates a detached copy of h under a new name.
func (m *Memory) Duplicate(h Handle, name string) (Handle, error) {
	m.mu.RLock()
	src, ok := m.layers[h]
	if !ok {
		m.mu.RUnlock()
		return 0, fmt.Errorf("duplicate %d: %w", h, ErrUnknownLayer)
	}
	b := src.img.Bounds()
	cp := image.NewRGBA(b)
	draw.Draw(cp, b, src.img, b.Min, draw.Src)
	visible, opacity := src.visible, src.opacity
	m.mu.RUnlock()

	dup := m.NewLayer(name, cp)
	m.mu.Lock()
	m.layers[dup].visible = visible
	m.layers[dup].opacity = opacity
	m.mu.Unlock()
	return dup, nil
}

func (m *Memory) Layers() []Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Handle, len(m.order))
	copy(out, m.order)
	return out
}

func (m *Memory) AddLayer(h Handle, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.layers[h]
	if !ok {
		return fmt.Errorf("add layer %d: %w", h, ErrUnknownLayer)
	}
	if l.attached {
		return fmt.Errorf("add layer %d: already in the stack", h)
	}
	if position < 0 {
		position = 0
	}
	if position > len(m.order) {
		position = len(m.order)
	}
	m.order = append(m.order, 0)
	copy(m.order[position+1:], m.order[position:])
	m.order[position] = h
	l.attached = true
	m.active, m.hasActive = h, true
	m.record()
	return nil
}

func (m *Memory) RemoveLayer(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := m.position(h)
	if pos < 0 {
		return fmt.Errorf("remove layer %d: %w", h, ErrUnknownLayer)
	}
	m.order = append(m.order[:pos], m.order[pos+1:]...)
	delete(m.layers, h)

	if m.hasActive && m.active == h {
		switch {
		case len(m.order) == 0:
			m.hasActive = false
		case pos < len(m.order):
			m.active = m.order[pos]
		default:
			m.active = m.order[len(m.order)-1]
		}
	}
	m.record()
	return nil
}

func (m *Memory) RaiseLayer(h Handle) error {
	return m.shift(h, -1)
}

func (m *Memory) LowerLayer(h Handle) error {
	return m.shift(h, 1)
}

func (m *Memory) shift(h Handle, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := m.position(h)
	if pos < 0 {
		return fmt.Errorf("move layer %d: %w", h, ErrUnknownLayer)
	}
	to := pos + delta
	if to < 0 || to >= len(m.order) {
		return ErrCannotMove
	}
	m.order[pos], m.order[to] = m.order[to], m.order[pos]
	m.record()
	return nil
}

func (m *Memory) ActiveLayer() (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active, m.hasActive
}

func (m *Memory) SetActiveLayer(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.position(h) < 0 {
		return fmt.Errorf("activate layer %d: %w", h, ErrUnknownLayer)
	}
	m.active, m.hasActive = h, true
	return nil
}

func (m *Memory) Name(h Handle) (string, error) {
	l, err := m.get(h)
	if err != nil {
		return "", err
	}
	return l.name, nil
}

func (m *Memory) SetName(h Handle, name string) error {
	return m.update(h, func(l *layer) { l.name = name })
}

func (m *Memory) Visible(h Handle) (bool, error) {
	l, err := m.get(h)
	if err != nil {
		return false, err
	}
	return l.visible, nil
}

func (m *Memory) SetVisible(h Handle, visible bool) error {
	return m.update(h, func(l *layer) { l.visible = visible })
}

func (m *Memory) Opacity(h Handle) (float64, error) {
	l, err := m.get(h)
	if err != nil {
		return 0, err
	}
	return l.opacity, nil
}

func (m *Memory) SetOpacity(h Handle, opacity float64) error {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 100 {
		opacity = 100
	}
	return m.update(h, func(l *layer) { l.opacity = opacity })
}

// LayerImage returns the pixels of h.
func (m *Memory) LayerImage(h Handle) (image.Image, error) {
	l, err := m.get(h)
	if err != nil {
		return nil, err
	}
	return l.img, nil
}

func (m *Memory) UndoFreeze() {
	m.mu.Lock()
	m.freeze++
	m.mu.Unlock()
}

func (m *Memory) UndoThaw() {
	m.mu.Lock()
	if m.freeze > 0 {
		m.freeze--
	}
	m.mu.Unlock()
}

// UndoGroupStart opens a group so that the following mutations undo as one step.
func (m *Memory) UndoGroupStart() {
	m.mu.Lock()
	if m.groupDepth == 0 && m.freeze == 0 {
		m.undoSteps++
	}
	m.groupDepth++
	m.mu.Unlock()
}

// UndoGroupEnd closes the group opened by UndoGroupStart.
func (m *Memory) UndoGroupEnd() {
	m.mu.Lock()
	if m.groupDepth > 0 {
		m.groupDepth--
	}
	m.mu.Unlock()
}

func (m *Memory) Flush() {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
}

// Frozen reports whether an undo freeze bracket is open.
func (m *Memory) Frozen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.freeze > 0
}

// UndoSteps is the number of entries recorded in the undo history.
func (m *Memory) UndoSteps() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.undoSteps
}

// Flushes counts redraw requests.
func (m *Memory) Flushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flushes
}

// get returns a snapshot of h taken under the read lock.
func (m *Memory) get(h Handle) (layer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layers[h]
	if !ok {
		return layer{}, fmt.Errorf("layer %d: %w", h, ErrUnknownLayer)
	}
	return *l, nil
}

func (m *Memory) update(h Handle, fn func(*layer)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[h]
	if !ok {
		return fmt.Errorf("layer %d: %w", h, ErrUnknownLayer)
	}
	fn(l)
	if l.attached {
		m.record()
	}
	return nil
}

// record notes one undo step. Caller holds mu.
func (m *Memory) record() {
	if m.freeze == 0 && m.groupDepth == 0 {
		m.undoSteps++
	}
}

// position returns the stack index of h or -1. Caller holds mu.
func (m *Memory) position(h Handle) int {
	for i, o := range m.order {
		if o == h {
			return i
		}
	}
	return -1
}
