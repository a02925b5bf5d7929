package timeline

import (
	"testing"
)

func plainFrames(fixed ...bool) []Frame {
	frames := make([]Frame, len(fixed))
	for i, f := range fixed {
		frames[i] = Frame{Layer: 0, Fixed: f}
	}
	return frames
}

func TestNeighbourOpacity(t *testing.T) {
	tests := []struct {
		base     float64
		i        int
		expected float64
	}{
		{50, 1, 50},
		{50, 2, 23},
		{50, 3, 14},
		{50, 4, 10},
		{50, 6, 6},
		{10, 4, 0},
		{10, 6, -1},
	}

	for _, tt := range tests {
		got := NeighbourOpacity(tt.base, tt.i)
		if got != tt.expected {
			t.Errorf("NeighbourOpacity(%v, %d) = %v, expected %v", tt.base, tt.i, got, tt.expected)
		}
	}
}

func TestComposeBackwardSweep(t *testing.T) {
	frames := plainFrames(false, false, false, false)
	o := OnionSkin{Enabled: true, Depth: 2, Backward: true, MaxOpacity: 50}

	got := Compose(frames, Pass{Active: 1, Show: true}, o)
	expected := []Assignment{
		{Index: 1, Visible: true, Opacity: 100},
		{Index: 0, Visible: true, Opacity: 50},
	}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d assignments, got %d: %+v", len(expected), len(got), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Assignment %d: expected %+v, got %+v", i, expected[i], got[i])
		}
	}
}

func TestComposeSkipsFixedNeighbours(t *testing.T) {
	frames := plainFrames(false, false, true, false, false)
	o := OnionSkin{Enabled: true, Depth: 2, Backward: true, Forward: true, MaxOpacity: 50}

	for _, a := range Compose(frames, Pass{Active: 1, Show: true}, o) {
		if a.Index == 2 {
			t.Errorf("Fixed frame 2 must not be assigned, got %+v", a)
		}
	}
	for _, a := range Compose(frames, Pass{Active: 1, Show: false}, o) {
		if a.Index == 2 {
			t.Errorf("Fixed frame 2 must not be assigned on a hide pass, got %+v", a)
		}
	}
}

func TestComposeHidePass(t *testing.T) {
	frames := plainFrames(false, false, false, false, false)
	o := OnionSkin{Enabled: true, Depth: 3, Backward: true, Forward: true, MaxOpacity: 50}

	for _, a := range Compose(frames, Pass{Active: 2, Show: false}, o) {
		if a.Visible {
			t.Errorf("Hide pass left frame %d visible", a.Index)
		}
		if a.Opacity != 100 {
			t.Errorf("Hide pass should reset opacity of frame %d to 100, got %v", a.Index, a.Opacity)
		}
	}
}

func TestComposeFixedActive(t *testing.T) {
	frames := plainFrames(false, true, false)
	o := OnionSkin{Enabled: true, Depth: 1, Backward: true, Forward: true, MaxOpacity: 50}

	for _, show := range []bool{true, false} {
		got := Compose(frames, Pass{Active: 1, Show: show}, o)
		if len(got) != 1 {
			t.Fatalf("show=%v: fixed active frame must not sweep, got %+v", show, got)
		}
		if !got[0].Visible || got[0].Opacity != 100 {
			t.Errorf("show=%v: fixed active frame should stay visible at 100, got %+v", show, got[0])
		}
	}
}

func TestComposePlaybackSuppression(t *testing.T) {
	frames := plainFrames(false, false, false)
	o := OnionSkin{Enabled: true, Depth: 1, Backward: true, Forward: true, MaxOpacity: 50, OnPlay: true}

	if got := Compose(frames, Pass{Active: 1, Show: true, Playing: true}, o); len(got) != 3 {
		t.Errorf("OnPlay=true should sweep during playback, expected 3 assignments, got %d", len(got))
	}

	o.OnPlay = false
	got := Compose(frames, Pass{Active: 1, Show: true, Playing: false}, o)
	if len(got) != 3 {
		t.Errorf("Editing pass should sweep, got %d assignments", len(got))
	}
	got = Compose(frames, Pass{Active: 1, Show: true, Playing: true}, o)
	if len(got) != 1 {
		t.Errorf("Playback pass with OnPlay=false should not sweep, got %+v", got)
	}
}

func TestComposeOutOfRange(t *testing.T) {
	if got := Compose(plainFrames(false), Pass{Active: 3, Show: true}, DefaultOnionSkin()); got != nil {
		t.Errorf("Expected nil for an invalid active index, got %+v", got)
	}
}

func TestOnionSkinNormalize(t *testing.T) {
	o := OnionSkin{Depth: 9, MaxOpacity: 0}.Normalize()
	if o.Depth != MaxOnionDepth {
		t.Errorf("Expected depth %d, got %d", MaxOnionDepth, o.Depth)
	}
	if o.MaxOpacity != DefaultOnionOpacity {
		t.Errorf("Expected opacity %v, got %v", DefaultOnionOpacity, o.MaxOpacity)
	}
	if o := (OnionSkin{Depth: 0, MaxOpacity: 70}).Normalize(); o.Depth != 1 || o.MaxOpacity != 70 {
		t.Errorf("Unexpected normalization: %+v", o)
	}
}
