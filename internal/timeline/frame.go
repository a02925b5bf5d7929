package timeline

import (
	"strings"

	"github.com/ivlev/flipbook/internal/host"
)

// FixedMarker is appended to a layer name to remember across sessions that
// the frame is fixed.
const FixedMarker = "_fix"

// Frame is one animation cell backed by one host layer.
type Frame struct {
	Layer       host.Handle
	Fixed       bool
	DisplayName string
}

// IsFixedName reports whether a layer name carries the fixed marker.
func IsFixedName(name string) bool {
	return strings.HasSuffix(name, FixedMarker)
}

// MarkFixed appends the marker unless it is already there.
func MarkFixed(name string) string {
	if IsFixedName(name) {
		return name
	}
	return name + FixedMarker
}

// UnmarkFixed removes a trailing marker.
func UnmarkFixed(name string) string {
	return strings.TrimSuffix(name, FixedMarker)
}

func newFrame(h host.Handle, name string) Frame {
	return Frame{
		Layer:       h,
		Fixed:       IsFixedName(name),
		DisplayName: UnmarkFixed(name),
	}
}
