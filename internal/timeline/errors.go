package timeline

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned for an index outside [0, len-1].
	ErrIndexOutOfRange = errors.New("frame index out of range")
	// ErrEmptySequence is returned when an operation needs at least one frame.
	ErrEmptySequence = errors.New("no frames in the timeline")
	// ErrNoPlayableFrames is returned when every frame is fixed.
	ErrNoPlayableFrames = errors.New("every frame is fixed, nothing to play")
)

func outOfRange(index, length int) error {
	return fmt.Errorf("frame %d of %d: %w", index, length, ErrIndexOutOfRange)
}
