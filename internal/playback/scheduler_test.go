package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ivlev/flipbook/internal/host"
	"github.com/ivlev/flipbook/internal/timeline"
)

func newTimeline(t *testing.T, names ...string) (*host.Memory, *timeline.Timeline) {
	t.Helper()
	m := host.NewMemory(4, 4)
	for _, n := range names {
		if err := m.AddLayer(m.NewLayer(n, nil), 0); err != nil {
			t.Fatalf("AddLayer(%s) failed: %v", n, err)
		}
	}
	tl, err := timeline.New(m)
	if err != nil {
		t.Fatalf("timeline.New failed: %v", err)
	}
	return m, tl
}

// frameLog records the active index at every sleep.
type frameLog struct {
	tl      *timeline.Timeline
	visited []int
	limit   int
}

func (l *frameLog) sleep(ctx context.Context, d time.Duration) error {
	i, _ := l.tl.Active()
	l.visited = append(l.visited, i)
	if l.limit > 0 && len(l.visited) >= l.limit {
		return context.Canceled
	}
	return nil
}

type eventsFunc func()

func (f eventsFunc) YieldPendingEvents() { f() }

func TestPlayStopsAtLastFrameAndRestores(t *testing.T) {
	_, tl := newTimeline(t, "a", "b", "c")
	if err := tl.GotoIndex(0); err != nil {
		t.Fatalf("GotoIndex failed: %v", err)
	}
	log := &frameLog{tl: tl}
	yields := 0
	s := New(tl, eventsFunc(func() { yields++ }), WithSleep(log.sleep))

	if err := s.TogglePlay(context.Background()); err != nil {
		t.Fatalf("TogglePlay failed: %v", err)
	}
	if s.Playing() {
		t.Error("Playback should have stopped at the last frame")
	}
	if len(log.visited) != 1 || log.visited[0] != 1 {
		t.Errorf("Expected one frame shown before stopping, got %v", log.visited)
	}
	if yields != 1 {
		t.Errorf("Expected 1 yield, got %d", yields)
	}
	if got, _ := tl.Active(); got != 0 {
		t.Errorf("Expected the resume index 0 to be restored, got %d", got)
	}
	if tl.Playing() {
		t.Error("Timeline still in playback mode")
	}
}

func TestPlaySkipsFixedFrames(t *testing.T) {
	_, tl := newTimeline(t, "a", "b"+timeline.FixedMarker, "c", "d"+timeline.FixedMarker)
	if err := tl.GotoIndex(0); err != nil {
		t.Fatalf("GotoIndex failed: %v", err)
	}
	log := &frameLog{tl: tl, limit: 6}
	s := New(tl, nil, WithSleep(log.sleep), WithLooping(true))

	err := s.Play(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected the sleep error, got %v", err)
	}
	expected := []int{2, 0, 2, 0, 2, 0}
	for i, v := range expected {
		if log.visited[i] != v {
			t.Errorf("Step %d: expected frame %d, got %d (all: %v)", i, v, log.visited[i], log.visited)
		}
	}
}

func TestPlayStopsBeforeTrailingFixedFrame(t *testing.T) {
	_, tl := newTimeline(t, "a", "b", "c"+timeline.FixedMarker)
	if err := tl.GotoIndex(0); err != nil {
		t.Fatalf("GotoIndex failed: %v", err)
	}
	log := &frameLog{tl: tl, limit: 10}
	s := New(tl, nil, WithSleep(log.sleep))

	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(log.visited) != 0 {
		t.Errorf("Expected playback to stop on frame 1 without sleeping, got %v", log.visited)
	}
}

func TestPlayRefusesUnplayableSequences(t *testing.T) {
	_, empty := newTimeline(t)
	if err := New(empty, nil).Play(context.Background()); !errors.Is(err, timeline.ErrEmptySequence) {
		t.Errorf("Expected ErrEmptySequence, got %v", err)
	}

	_, fixed := newTimeline(t, "a"+timeline.FixedMarker, "b"+timeline.FixedMarker)
	s := New(fixed, nil)
	if err := s.Play(context.Background()); !errors.Is(err, timeline.ErrNoPlayableFrames) {
		t.Errorf("Expected ErrNoPlayableFrames, got %v", err)
	}
	if s.Playing() {
		t.Error("Scheduler should not be playing")
	}
}

func TestPlayEndsWhenEveryFrameBecomesFixed(t *testing.T) {
	_, tl := newTimeline(t, "a", "b", "c")
	if err := tl.GotoIndex(0); err != nil {
		t.Fatalf("GotoIndex failed: %v", err)
	}
	fixAll := eventsFunc(func() {
		for i, f := range tl.Frames() {
			if !f.Fixed {
				if err := tl.ToggleFixed(i); err != nil {
					t.Errorf("ToggleFixed(%d) failed: %v", i, err)
				}
			}
		}
	})
	log := &frameLog{tl: tl, limit: 10}
	s := New(tl, fixAll, WithLooping(true), WithSleep(log.sleep))

	err := s.Play(context.Background())
	if !errors.Is(err, timeline.ErrNoPlayableFrames) {
		t.Errorf("Expected ErrNoPlayableFrames, got %v", err)
	}
	if s.Playing() {
		t.Error("Scheduler should have stopped")
	}
	if len(log.visited) != 1 {
		t.Errorf("Expected one frame before the skip gave up, got %v", log.visited)
	}
}

func TestStopFromEventLoop(t *testing.T) {
	_, tl := newTimeline(t, "a", "b", "c", "d")
	if err := tl.GotoIndex(1); err != nil {
		t.Fatalf("GotoIndex failed: %v", err)
	}

	var s *Scheduler
	yields := 0
	events := eventsFunc(func() {
		yields++
		if yields == 3 {
			if err := s.TogglePlay(context.Background()); err != nil {
				t.Errorf("TogglePlay from the event loop failed: %v", err)
			}
		}
	})
	log := &frameLog{tl: tl, limit: 20}
	s = New(tl, events, WithSleep(log.sleep), WithLooping(true))

	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if yields != 3 {
		t.Errorf("Expected the loop to end after the third yield, got %d", yields)
	}
	if s.Playing() {
		t.Error("Scheduler still playing")
	}
	if got, _ := tl.Active(); got != 0 {
		t.Errorf("Looping playback should stay where it stopped, expected 0, got %d", got)
	}
}

func TestResumeIndexKeptWhileLooping(t *testing.T) {
	_, tl := newTimeline(t, "a", "b", "c")
	if err := tl.GotoIndex(1); err != nil {
		t.Fatalf("GotoIndex failed: %v", err)
	}

	log := &frameLog{tl: tl, limit: 1}
	s := New(tl, nil, WithSleep(log.sleep), WithLooping(true))
	if err := s.Play(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected the sleep error, got %v", err)
	}

	s.SetLooping(false)
	log.visited, log.limit = nil, 0
	if err := s.Play(context.Background()); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if got, _ := tl.Active(); got != 1 {
		t.Errorf("Expected the first resume index 1 to be restored, got %d", got)
	}
}

func TestPlayHonoursContext(t *testing.T) {
	_, tl := newTimeline(t, "a", "b", "c")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(tl, nil, WithLooping(true))
	if err := s.Play(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if s.Playing() {
		t.Error("Scheduler still playing after cancellation")
	}
}

func TestFrameRate(t *testing.T) {
	tests := []struct {
		fps      int
		expected int
		interval time.Duration
	}{
		{0, MinFrameRate, time.Second},
		{25, 25, 40 * time.Millisecond},
		{500, MaxFrameRate, 10 * time.Millisecond},
	}
	for _, tt := range tests {
		s := New(nil, nil, WithFrameRate(tt.fps))
		if s.FrameRate() != tt.expected {
			t.Errorf("WithFrameRate(%d): expected %d, got %d", tt.fps, tt.expected, s.FrameRate())
		}
		if s.Interval() != tt.interval {
			t.Errorf("WithFrameRate(%d): expected interval %v, got %v", tt.fps, tt.interval, s.Interval())
		}
	}
}
