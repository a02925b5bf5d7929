package playback

import (
	"context"
	"errors"
	"time"

	"github.com/ivlev/flipbook/internal/host"
	"github.com/ivlev/flipbook/internal/timeline"
)

const (
	MinFrameRate     = 1
	MaxFrameRate     = 100
	DefaultFrameRate = 30
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Scheduler plays a Timeline at a fixed frame rate. It runs on the caller's
// goroutine and hands control to the host event loop between frames, so a
// Stop issued from an event handler is seen at the top of the next frame.
type Scheduler struct {
	tl     *timeline.Timeline
	events host.EventLoop
	sleep  SleepFunc

	frameRate int
	looping   bool

	playing bool
	running bool

	resume    int
	hasResume bool
}

// Option modifies a Scheduler during creation.
type Option func(*Scheduler)

// WithFrameRate sets frames per second, clamped to [MinFrameRate, MaxFrameRate].
func WithFrameRate(fps int) Option {
	return func(s *Scheduler) { s.frameRate = ClampFrameRate(fps) }
}

// WithLooping makes playback wrap around instead of stopping at the last frame.
func WithLooping(looping bool) Option {
	return func(s *Scheduler) { s.looping = looping }
}

// WithSleep replaces the inter-frame wait.
func WithSleep(fn SleepFunc) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

// New creates a stopped Scheduler over tl. events may be nil.
func New(tl *timeline.Timeline, events host.EventLoop, opts ...Option) *Scheduler {
	s := &Scheduler{
		tl:        tl,
		events:    events,
		sleep:     sleepContext,
		frameRate: DefaultFrameRate,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ClampFrameRate limits fps to [MinFrameRate, MaxFrameRate].
func ClampFrameRate(fps int) int {
	if fps < MinFrameRate {
		return MinFrameRate
	}
	if fps > MaxFrameRate {
		return MaxFrameRate
	}
	return fps
}

func (s *Scheduler) Playing() bool { return s.playing }
func (s *Scheduler) Looping() bool { return s.looping }
func (s *Scheduler) FrameRate() int { return s.frameRate }

func (s *Scheduler) SetLooping(looping bool) { s.looping = looping }

func (s *Scheduler) SetFrameRate(fps int) { s.frameRate = ClampFrameRate(fps) }

// Interval is the time one frame stays on screen.
func (s *Scheduler) Interval() time.Duration {
	return time.Second / time.Duration(s.frameRate)
}

// TogglePlay starts playback when stopped and stops it when playing.
func (s *Scheduler) TogglePlay(ctx context.Context) error {
	if s.playing {
		return s.Stop()
	}
	return s.Play(ctx)
}

// Play starts playback and blocks until it stops. Called while a playback
// loop is already running further up the stack (from an event handler), it
// only flips the state and returns.
func (s *Scheduler) Play(ctx context.Context) error {
	if s.playing {
		return nil
	}
	if err := s.playable(); err != nil {
		return err
	}

	if !s.hasResume {
		s.resume, _ = s.tl.Active()
		s.hasResume = true
	}
	if err := s.tl.SetPlaying(true); err != nil {
		return err
	}
	s.playing = true

	if s.running {
		return nil
	}
	return s.run(ctx)
}

// Stop ends playback. Without looping the frame that was active when playback
// started becomes active again.
func (s *Scheduler) Stop() error {
	if !s.playing {
		return nil
	}
	s.playing = false
	if err := s.tl.SetPlaying(false); err != nil {
		return err
	}

	n := s.tl.Len()
	if n == 0 {
		s.hasResume = false
		return nil
	}
	if s.hasResume && !s.looping {
		index := s.resume
		s.hasResume = false
		if index >= n {
			index = n - 1
		}
		return s.tl.GotoIndex(index)
	}
	return s.tl.Goto(timeline.Stay)
}

func (s *Scheduler) run(ctx context.Context) error {
	s.running = true
	defer func() { s.running = false }()

	for s.playing {
		if s.tl.Len() == 0 {
			return s.Stop()
		}
		if err := s.advance(); err != nil {
			return errors.Join(err, s.Stop())
		}
		if !s.looping && s.atLastPlayable() {
			return s.Stop()
		}

		if err := s.sleep(ctx, s.Interval()); err != nil {
			return errors.Join(err, s.Stop())
		}
		if s.events != nil {
			s.events.YieldPendingEvents()
		}
	}
	return nil
}

// advance moves to the next frame that is not fixed. The skip is bounded by
// the sequence length.
func (s *Scheduler) advance() error {
	if err := s.tl.Goto(timeline.Next); err != nil {
		return err
	}
	n := s.tl.Len()
	for skipped := 0; ; skipped++ {
		f, err := s.tl.ActiveFrame()
		if err != nil {
			return err
		}
		if !f.Fixed {
			return nil
		}
		if skipped >= n {
			return timeline.ErrNoPlayableFrames
		}
		if err := s.tl.Goto(timeline.Next); err != nil {
			return err
		}
	}
}

// atLastPlayable reports whether no playable frame follows the active one.
// With a plain sequence this is the last index.
func (s *Scheduler) atLastPlayable() bool {
	active, ok := s.tl.Active()
	if !ok {
		return true
	}
	frames := s.tl.Frames()
	for _, f := range frames[active+1:] {
		if !f.Fixed {
			return false
		}
	}
	return true
}

func (s *Scheduler) playable() error {
	frames := s.tl.Frames()
	if len(frames) == 0 {
		return timeline.ErrEmptySequence
	}
	for _, f := range frames {
		if !f.Fixed {
			return nil
		}
	}
	return timeline.ErrNoPlayableFrames
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
