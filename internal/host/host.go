package host

import (
	"errors"
	"image"
)

// Handle identifies a layer owned by the host. The timeline only ever holds
// handles, never the layers themselves.
type Handle uint64

// ErrUnknownLayer is returned when a handle does not name a layer in the store.
var ErrUnknownLayer = errors.New("unknown layer")

// LayerStore is the layered image the timeline drives. Layers are reported
// top of stack first, the way image editors list them.
type LayerStore interface {
	Layers() []Handle
	AddLayer(h Handle, position int) error
	RemoveLayer(h Handle) error
	RaiseLayer(h Handle) error
	LowerLayer(h Handle) error

	ActiveLayer() (Handle, bool)
	SetActiveLayer(h Handle) error

	Name(h Handle) (string, error)
	SetName(h Handle, name string) error
	Visible(h Handle) (bool, error)
	SetVisible(h Handle, visible bool) error
	Opacity(h Handle) (float64, error)
	SetOpacity(h Handle, opacity float64) error

	// UndoFreeze and UndoThaw bracket a batch of mutations that must not be
	// recorded in the undo history. Brackets nest.
	UndoFreeze()
	UndoThaw()

	// Flush asks the host to redraw its displays.
	Flush()
}

// EventLoop is the host's single-threaded event loop.
type EventLoop interface {
	// YieldPendingEvents processes every queued event and returns without
	// waiting for new ones.
	YieldPendingEvents()
}

// Rasterizer gives read access to the pixels of a layer.
type Rasterizer interface {
	LayerImage(h Handle) (image.Image, error)
}

// UndoGrouper is implemented by stores that can fold several mutations into
// one undo step.
type UndoGrouper interface {
	UndoGroupStart()
	UndoGroupEnd()
}

// LayerFactory is implemented by stores that can create layers for the
// timeline's add and copy operations.
type LayerFactory interface {
	NewLayer(name string, img image.Image) Handle
	Duplicate(h Handle, name string) (Handle, error)
}
