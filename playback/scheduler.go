package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/matt-g-everett/framefed/remote"
)

// NoFrame is the MountedIndex while nothing is mounted.
const NoFrame = -1

// Mode is the scheduler state.
type Mode int

const (
	// Idle is not polling.
	Idle Mode = iota
	// Playing polls the clock every tick.
	Playing
	// Stepping is held only while a step or scrub dispatches.
	Stepping
)

func (m Mode) String() string {
	switch m {
	case Playing:
		return "playing"
	case Stepping:
		return "stepping"
	default:
		return "idle"
	}
}

// Audio is the audio element playback may follow.
type Audio interface {
	Paused() bool
	CurrentTime() float64
	Play() error
	Pause()
	Seek(seconds float64)
	SetVolume(volume float64)
	SetMuted(muted bool)
}

// Resolver resolves module paths.
type Resolver interface {
	Resolve(ctx context.Context, path string) (remote.Module, error)
}

// Registrar registers remote descriptors.
type Registrar interface {
	Ensure(d remote.Descriptor)
}

// PlaybackState is what the presentation shell reads.
type PlaybackState struct {
	Mode         Mode
	TargetIndex  int
	MountedIndex int
	Loading      bool
	LastError    error
	Source       ClockSource
	FrameCount   int
}

// Options configures a Scheduler.
type Options struct {
	FrameCount    int
	FPS           float64
	OffsetSeconds float64
	// TickInterval is the polling cadence, 60 Hz when zero.
	TickInterval time.Duration
	StartFrame   int
	Export       string
	Entries      remote.EntryTemplate

	Registry Registrar
	Resolver Resolver
	Target   io.Writer
	Audio    Audio
	Logger   *slog.Logger
	Now      func() time.Time
}

// Scheduler drives frame loading and mounting. At most one load is in
// flight; ticks that arrive while loading are dropped.
type Scheduler struct {
	clock    Clock
	interval time.Duration
	export   string
	entries  remote.EntryTemplate
	registry Registrar
	resolver Resolver
	target   io.Writer
	audio    Audio
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup

	mu             sync.Mutex
	state          PlaybackState
	origin         Origin
	lastDispatched int
	mounted        remote.Module
	stopLoop       context.CancelFunc
	loopDone       chan struct{}
}

// NewScheduler creates an idle Scheduler.
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.FrameCount <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", opts.FrameCount)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %v", opts.FPS)
	}
	if opts.Resolver == nil || opts.Registry == nil {
		return nil, errors.New("scheduler needs a registry and a resolver")
	}
	if opts.Target == nil {
		return nil, errors.New("scheduler needs a mount target")
	}
	if opts.Export == "" {
		opts.Export = "Frame"
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second / 60
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	start := WrapIndex(opts.StartFrame, opts.FrameCount)
	s := &Scheduler{
		clock:          Clock{FrameCount: opts.FrameCount, FPS: opts.FPS, OffsetSeconds: opts.OffsetSeconds},
		interval:       opts.TickInterval,
		export:         opts.Export,
		entries:        opts.Entries,
		registry:       opts.Registry,
		resolver:       opts.Resolver,
		target:         opts.Target,
		audio:          opts.Audio,
		logger:         opts.Logger,
		now:            opts.Now,
		ctx:            ctx,
		cancel:         cancel,
		lastDispatched: NoFrame,
		state: PlaybackState{
			Mode:         Idle,
			TargetIndex:  start,
			MountedIndex: NoFrame,
			FrameCount:   opts.FrameCount,
		},
	}
	return s, nil
}

// State returns a copy of the playback state.
func (s *Scheduler) State() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FrameCount is the number of frames in the animation.
func (s *Scheduler) FrameCount() int {
	return s.clock.FrameCount
}

// Play records the origin, starts audio and begins polling.
func (s *Scheduler) Play() error {
	s.mu.Lock()
	if s.state.Mode == Playing {
		s.mu.Unlock()
		return nil
	}
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return errors.New("scheduler is closed")
	}
	s.origin = Origin{Timestamp: s.now(), FrameIndex: s.state.TargetIndex}
	s.state.Mode = Playing
	loopCtx, stop := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.stopLoop = stop
	s.loopDone = done
	originIndex := s.origin.FrameIndex
	s.mu.Unlock()

	if s.audio != nil {
		s.audio.Seek(s.clock.Seconds(originIndex))
		if err := s.audio.Play(); err != nil {
			s.logger.Warn("audio did not start, following the wall clock", slog.Any("error", err))
		}
	}
	s.logger.Info("playback started", slog.Int("frame", originIndex))
	go s.run(loopCtx, done)
	return nil
}

// Pause stops polling and pauses audio. A load in flight still completes
// and mounts.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	if s.state.Mode != Playing {
		s.mu.Unlock()
		return
	}
	s.state.Mode = Idle
	stop, done := s.stopLoop, s.loopDone
	s.stopLoop, s.loopDone = nil, nil
	target := s.state.TargetIndex
	s.mu.Unlock()

	stop()
	<-done
	if s.audio != nil {
		s.audio.Pause()
	}
	s.logger.Info("playback paused", slog.Int("frame", target))
}

// Step advances the target by one frame.
func (s *Scheduler) Step() {
	s.mu.Lock()
	next := s.state.TargetIndex + 1
	s.mu.Unlock()
	s.Scrub(next)
}

// Scrub moves the target to index. While idle it dispatches one load;
// while playing it re-anchors the origin and the next tick loads.
func (s *Scheduler) Scrub(index int) {
	index = WrapIndex(index, s.clock.FrameCount)

	s.mu.Lock()
	if s.state.Mode == Playing {
		s.origin = Origin{Timestamp: s.now(), FrameIndex: index}
		s.state.TargetIndex = index
		s.mu.Unlock()
		s.seekAudio(index)
		return
	}

	s.state.Mode = Stepping
	s.state.TargetIndex = index
	dispatch := !s.state.Loading
	if dispatch {
		s.beginLoadLocked(index)
	}
	s.state.Mode = Idle
	s.mu.Unlock()

	s.seekAudio(index)
	if dispatch {
		go s.load(index)
	} else {
		s.logger.Debug("scrub dispatch suppressed, load in flight", slog.Int("frame", index))
	}
}

// SetVolume passes volume through to the audio element.
func (s *Scheduler) SetVolume(volume float64) {
	if s.audio != nil {
		s.audio.SetVolume(volume)
	}
}

// SetMuted passes mute through to the audio element.
func (s *Scheduler) SetMuted(muted bool) {
	if s.audio != nil {
		s.audio.SetMuted(muted)
	}
}

// Tick evaluates the clock once and dispatches a load when the desired
// frame changed and nothing is loading.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	if s.state.Mode != Playing {
		s.mu.Unlock()
		return
	}
	index, source := s.clock.Desired(s.now(), s.origin, s.audio)
	s.state.TargetIndex = index
	s.state.Source = source
	if index == s.lastDispatched || s.state.Loading {
		s.mu.Unlock()
		return
	}
	s.beginLoadLocked(index)
	s.mu.Unlock()

	go s.load(index)
}

// Wait blocks until no load is in flight.
func (s *Scheduler) Wait() {
	s.loads.Wait()
}

// Close stops playback, cancels the load in flight and waits for it.
func (s *Scheduler) Close() {
	s.Pause()
	s.cancel()
	s.loads.Wait()
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Scheduler) beginLoadLocked(index int) {
	s.state.Loading = true
	s.lastDispatched = index
	s.loads.Add(1)
}

func (s *Scheduler) load(index int) {
	defer s.loads.Done()
	start := time.Now()

	d := s.entries.Descriptor(index)
	s.registry.Ensure(d)
	path := remote.ModulePath(d.Name, s.export)

	mod, err := s.resolver.Resolve(s.ctx, path)
	if err == nil && mod == nil {
		err = &remote.Error{Kind: remote.KindModuleMissing, Remote: d.Name}
	}
	if err != nil {
		s.mu.Lock()
		s.state.Loading = false
		s.state.LastError = err
		s.mu.Unlock()
		s.logger.Warn("frame load failed, keeping mounted frame",
			slog.Int("frame", index),
			slog.String("module", path),
			slog.Any("error", err))
		return
	}

	s.mu.Lock()
	prev := s.mounted
	s.mu.Unlock()

	swapErr := s.swap(prev, mod)

	s.mu.Lock()
	s.state.Loading = false
	if swapErr != nil {
		s.mounted = nil
		s.state.MountedIndex = NoFrame
		s.state.LastError = swapErr
	} else {
		s.mounted = mod
		s.state.MountedIndex = index
		s.state.LastError = nil
	}
	s.mu.Unlock()

	if swapErr != nil {
		s.logger.Warn("frame mount failed", slog.Int("frame", index), slog.Any("error", swapErr))
		return
	}
	s.logger.Debug("frame mounted",
		slog.Int("frame", index),
		slog.Duration("elapsed", time.Since(start)))
}

// swap unmounts prev, when it can, before mounting next.
func (s *Scheduler) swap(prev, next remote.Module) error {
	if u, ok := prev.(remote.Unmounter); ok {
		if err := u.Unmount(s.target); err != nil {
			s.logger.Warn("unmount failed", slog.Any("error", err))
		}
	}
	if err := next.Mount(s.target); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	return nil
}

func (s *Scheduler) seekAudio(index int) {
	if s.audio != nil {
		s.audio.Seek(s.clock.Seconds(index))
	}
}
