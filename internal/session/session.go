package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/ivlev/flipbook/internal/config"
	"github.com/ivlev/flipbook/internal/export"
	"github.com/ivlev/flipbook/internal/host"
	"github.com/ivlev/flipbook/internal/playback"
	"github.com/ivlev/flipbook/internal/thumbnail"
	"github.com/ivlev/flipbook/internal/timeline"
)

// ErrQuit is returned by Dispatch for the quit command.
var ErrQuit = errors.New("quit")

// Options wires a Session.
type Options struct {
	Settings config.Settings
	// Store persists Settings on Close. May be nil.
	Store    *config.Store
	Exporter *export.Exporter
	// Previews backs the thumb command. May be nil.
	Previews *thumbnail.Cache
	Onion    bool
	Loop     bool
	Out      io.Writer
	// Sleep replaces the playback frame wait, for tests.
	Sleep playback.SleepFunc
}

// Session drives a Timeline from text commands. Commands arrive on a queue
// filled by a reader goroutine and are executed on the goroutine that calls
// Run, including while playback is running: the Session is the event loop
// the scheduler yields to between frames.
type Session struct {
	tl       *timeline.Timeline
	player   *playback.Scheduler
	exporter *export.Exporter
	previews *thumbnail.Cache
	settings config.Settings
	store    *config.Store
	out      io.Writer

	ctx   context.Context
	lines chan string
	quit  bool
}

// New creates a Session over tl. The onion-skin configuration and frame rate
// come from opts.Settings.
func New(tl *timeline.Timeline, opts Options) (*Session, error) {
	s := &Session{
		tl:       tl,
		exporter: opts.Exporter,
		previews: opts.Previews,
		settings: opts.Settings.Clamp(),
		store:    opts.Store,
		out:      opts.Out,
		ctx:      context.Background(),
	}
	if s.out == nil {
		s.out = io.Discard
	}

	popts := []playback.Option{
		playback.WithFrameRate(s.settings.FrameRate),
		playback.WithLooping(opts.Loop),
	}
	if opts.Sleep != nil {
		popts = append(popts, playback.WithSleep(opts.Sleep))
	}
	s.player = playback.New(tl, s, popts...)

	if err := tl.Configure(s.settings.OnionSkin(opts.Onion)); err != nil {
		return nil, err
	}
	return s, nil
}

// Player returns the playback scheduler.
func (s *Session) Player() *playback.Scheduler { return s.player }

// Run reads commands from r until quit, end of input or ctx is done.
func (s *Session) Run(ctx context.Context, r io.Reader) error {
	s.ctx = ctx
	s.lines = make(chan string, 16)
	go func() {
		defer close(s.lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case s.lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	s.status()
	for !s.quit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-s.lines:
			if !ok {
				return nil
			}
			s.handle(line)
		}
	}
	return nil
}

// YieldPendingEvents runs every command already queued without waiting for
// more input.
func (s *Session) YieldPendingEvents() {
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.stopForQuit()
				return
			}
			s.handle(line)
		default:
			return
		}
	}
}

func (s *Session) handle(line string) {
	err := s.Dispatch(line)
	switch {
	case errors.Is(err, ErrQuit):
		s.stopForQuit()
	case err != nil:
		fmt.Fprintf(s.out, "[!] %v\n", err)
	}
}

func (s *Session) stopForQuit() {
	s.quit = true
	if err := s.player.Stop(); err != nil {
		log.Printf("[!] stop playback: %v", err)
	}
}

// Dispatch executes one command line.
func (s *Session) Dispatch(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "next", "n":
		err = s.tl.Goto(timeline.Next, timeline.Refresh())
	case "prev", "p":
		err = s.tl.Goto(timeline.Prev, timeline.Refresh())
	case "start":
		err = s.tl.Goto(timeline.Start, timeline.Refresh())
	case "end":
		err = s.tl.Goto(timeline.End, timeline.Refresh())
	case "goto", "g":
		var i int
		if i, err = intArg(args); err == nil {
			err = s.tl.Goto(timeline.Absolute, timeline.At(i), timeline.Refresh())
		}
	case "play", "stop":
		if cmd == "play" && s.player.Playing() || cmd == "stop" && !s.player.Playing() {
			return nil
		}
		err = s.player.TogglePlay(s.ctx)
	case "loop":
		s.player.SetLooping(!s.player.Looping())
	case "onion":
		err = s.tl.ToggleOnionSkin()
	case "fix":
		i, ok := s.tl.Active()
		if len(args) > 0 {
			i, err = intArg(args)
		} else if !ok {
			err = timeline.ErrEmptySequence
		}
		if err == nil {
			err = s.tl.ToggleFixed(i)
		}
	case "add":
		err = s.tl.AddFrame(false)
	case "copy":
		err = s.tl.AddFrame(true)
	case "remove", "rm":
		if err = s.tl.RemoveActive(); err == nil {
			s.forgetPreviews()
		}
	case "raise":
		err = s.tl.MoveActive(timeline.Next)
	case "lower":
		err = s.tl.MoveActive(timeline.Prev)
	case "sync":
		if err = s.tl.Resync(); err == nil {
			s.forgetPreviews()
		}
	case "fps":
		var fps int
		if fps, err = intArg(args); err == nil {
			s.player.SetFrameRate(fps)
			s.settings.FrameRate = s.player.FrameRate()
		}
	case "depth", "forward", "backward", "onplay":
		err = s.configure(cmd, args)
	case "export":
		err = s.export(args)
	case "thumb":
		err = s.thumb(args)
	case "status", "s":
	case "help", "?":
		fmt.Fprintln(s.out, usage)
		return nil
	case "quit", "q", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	if err != nil {
		return err
	}
	s.status()
	return nil
}

func (s *Session) configure(cmd string, args []string) error {
	o := s.tl.OnionSkin()
	switch cmd {
	case "depth":
		d, err := intArg(args)
		if err != nil {
			return err
		}
		o.Depth = d
	case "forward":
		o.Forward = !o.Forward
	case "backward":
		o.Backward = !o.Backward
	case "onplay":
		o.OnPlay = !o.OnPlay
	}
	if err := s.tl.Configure(o); err != nil {
		return err
	}
	s.settings.SetOnionSkin(s.tl.OnionSkin())
	return nil
}

func (s *Session) export(args []string) error {
	if s.exporter == nil {
		return errors.New("export is not available")
	}
	if len(args) != 2 {
		return errors.New("usage: export gif|sprite|mp4 PATH")
	}
	if s.player.Playing() {
		return errors.New("stop playback before exporting")
	}
	if err := s.exporter.Run(s.ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "[*] Saved %s\n", args[1])
	return nil
}

// thumb writes the preview of frame N, or of the active frame, to a PNG.
func (s *Session) thumb(args []string) error {
	if s.previews == nil {
		return errors.New("previews are not available")
	}
	var index int
	switch len(args) {
	case 1:
		i, ok := s.tl.Active()
		if !ok {
			return timeline.ErrEmptySequence
		}
		index = i
	case 2:
		i, err := intArg(args[:1])
		if err != nil {
			return err
		}
		index = i
	default:
		return errors.New("usage: thumb [N] PATH")
	}
	f, err := s.tl.Registry().Frame(index)
	if err != nil {
		return err
	}
	path := args[len(args)-1]
	if err := s.previews.Save(f.Layer, path); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "[*] Saved %s\n", path)
	return nil
}

// forgetPreviews drops previews of layers that left the timeline.
func (s *Session) forgetPreviews() {
	if s.previews == nil {
		return
	}
	frames := s.tl.Frames()
	keep := make([]host.Handle, len(frames))
	for i, f := range frames {
		keep[i] = f.Layer
	}
	s.previews.Forget(keep)
}

func (s *Session) status() {
	i, ok := s.tl.Active()
	if !ok {
		fmt.Fprintln(s.out, "[*] no frames")
		return
	}
	f, _ := s.tl.ActiveFrame()
	mark := ""
	if f.Fixed {
		mark = " (fixed)"
	}
	fmt.Fprintf(s.out, "[*] frame %d/%d %q%s | onion %s | loop %s | %d fps\n",
		i+1, s.tl.Len(), f.DisplayName, mark,
		onOff(s.tl.OnionSkin().Enabled), onOff(s.player.Looping()), s.player.FrameRate())
}

// Settings returns the record that Close persists.
func (s *Session) Settings() config.Settings {
	st := s.settings
	st.FrameRate = s.player.FrameRate()
	st.SetOnionSkin(s.tl.OnionSkin())
	return st
}

// Close stops playback and saves the settings.
func (s *Session) Close() error {
	if err := s.player.Stop(); err != nil {
		log.Printf("[!] stop playback: %v", err)
	}
	if s.store == nil {
		return nil
	}
	return s.store.Save(s.Settings())
}

func intArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("bad number %q", args[0])
	}
	return n, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

const usage = `commands:
  next | prev | start | end | goto N    navigate (frames count from 0)
  play | stop | loop                    playback
  onion | depth N | forward | backward | onplay
                                        onion skin
  fix [N]                               toggle the fixed flag
  add | copy | remove | raise | lower   edit frames
  fps N                                 playback frame rate
  sync                                  rescan layers
  export gif|sprite|mp4 PATH            render the animation
  thumb [N] PATH                        save a frame preview as PNG
  status | help | quit`
