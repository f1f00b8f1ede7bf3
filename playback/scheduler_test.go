package playback

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt-g-everett/framefed/remote"
	"github.com/matt-g-everett/framefed/stream"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type recordingModule struct {
	path   string
	events *eventLog
	fail   error
}

func (m *recordingModule) Mount(target io.Writer) error {
	m.events.add("mount " + m.path)
	if m.fail != nil {
		return m.fail
	}
	_, err := io.WriteString(target, m.path+"\n")
	return err
}

type unmountableRecordingModule struct {
	recordingModule
}

func (m *unmountableRecordingModule) Unmount(target io.Writer) error {
	m.events.add("unmount " + m.path)
	_, err := io.WriteString(target, "\f")
	return err
}

type fakeResolver struct {
	mu        sync.Mutex
	calls     []string
	gate      chan struct{}
	fail      map[string]error
	mountFail map[string]error
	noUnmount bool
	events    *eventLog
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		fail:      make(map[string]error),
		mountFail: make(map[string]error),
		events:    &eventLog{},
	}
}

func (r *fakeResolver) Resolve(ctx context.Context, path string) (remote.Module, error) {
	r.mu.Lock()
	r.calls = append(r.calls, path)
	gate := r.gate
	err := r.fail[path]
	mountErr := r.mountFail[path]
	noUnmount := r.noUnmount
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	base := recordingModule{path: path, events: r.events, fail: mountErr}
	if noUnmount {
		return &base, nil
	}
	return &unmountableRecordingModule{recordingModule: base}, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeResolver) setGate(gate chan struct{}) {
	r.mu.Lock()
	r.gate = gate
	r.mu.Unlock()
}

type fixture struct {
	sched    *Scheduler
	resolver *fakeResolver
	registry *remote.Registry
	surface  *stream.Surface
	clock    *fakeClock
	audio    *stubAudio
}

func newFixture(t *testing.T, frames int, audio bool) *fixture {
	t.Helper()
	f := &fixture{
		resolver: newFakeResolver(),
		registry: remote.NewRegistry(),
		surface:  stream.NewSurface(),
		clock:    newFakeClock(),
	}
	opts := Options{
		FrameCount:   frames,
		FPS:          24,
		TickInterval: time.Hour,
		Entries:      remote.EntryTemplate{Template: "mem://frame-{id}?v={v}", CacheBust: "t"},
		Registry:     f.registry,
		Resolver:     f.resolver,
		Target:       f.surface,
		Now:          f.clock.Now,
	}
	if audio {
		f.audio = &stubAudio{paused: true}
		opts.Audio = f.audio
	}
	s, err := NewScheduler(opts)
	require.NoError(t, err)
	f.sched = s
	t.Cleanup(s.Close)
	return f
}

func TestNewSchedulerValidates(t *testing.T) {
	_, err := NewScheduler(Options{FrameCount: 0, FPS: 24})
	assert.Error(t, err)
	_, err = NewScheduler(Options{FrameCount: 10, FPS: 0})
	assert.Error(t, err)
	_, err = NewScheduler(Options{FrameCount: 10, FPS: 24})
	assert.Error(t, err)
}

func TestScrubWhileIdleLoadsAndMounts(t *testing.T) {
	f := newFixture(t, 10, false)

	f.sched.Scrub(3)
	f.sched.Wait()

	st := f.sched.State()
	assert.Equal(t, Idle, st.Mode)
	assert.Equal(t, 3, st.TargetIndex)
	assert.Equal(t, 3, st.MountedIndex)
	assert.False(t, st.Loading)
	assert.NoError(t, st.LastError)
	assert.Equal(t, "frame_0004/Frame\n", f.surface.String())

	d, ok := f.registry.Lookup("frame_0004")
	require.True(t, ok)
	assert.Equal(t, "mem://frame-0004?v=t", d.EntryLocation)
}

func TestStepWrapsAround(t *testing.T) {
	f := newFixture(t, 3, false)
	f.sched.Scrub(2)
	f.sched.Wait()
	f.sched.Step()
	f.sched.Wait()
	assert.Equal(t, 0, f.sched.State().MountedIndex)
	assert.Equal(t, []string{"frame_0003/Frame", "frame_0001/Frame"}, f.resolver.calls)
}

func TestUnmountPrecedesNextMount(t *testing.T) {
	f := newFixture(t, 10, false)
	for i := 0; i < 3; i++ {
		f.sched.Scrub(i)
		f.sched.Wait()
	}
	assert.Equal(t, []string{
		"mount frame_0001/Frame",
		"unmount frame_0001/Frame",
		"mount frame_0002/Frame",
		"unmount frame_0002/Frame",
		"mount frame_0003/Frame",
	}, f.resolver.events.list())
	assert.Equal(t, "frame_0003/Frame\n", f.surface.String())
}

func TestModulesWithoutUnmountAreReplacedInPlace(t *testing.T) {
	f := newFixture(t, 10, false)
	f.resolver.noUnmount = true
	f.sched.Scrub(0)
	f.sched.Wait()
	f.sched.Scrub(1)
	f.sched.Wait()
	assert.Equal(t, []string{"mount frame_0001/Frame", "mount frame_0002/Frame"}, f.resolver.events.list())
}

func TestFailedLoadKeepsMountedFrame(t *testing.T) {
	f := newFixture(t, 10, false)
	f.sched.Scrub(0)
	f.sched.Wait()

	boom := &remote.ResolveError{Path: "frame_0002/Frame", Attempts: 1, Err: remote.ErrLoad}
	f.resolver.fail["frame_0002/Frame"] = boom
	f.sched.Scrub(1)
	f.sched.Wait()

	st := f.sched.State()
	assert.Equal(t, 0, st.MountedIndex)
	assert.Equal(t, 1, st.TargetIndex)
	assert.False(t, st.Loading)
	assert.ErrorIs(t, st.LastError, remote.ErrLoad)
	assert.Equal(t, "frame_0001/Frame\n", f.surface.String())
	assert.Equal(t, []string{"mount frame_0001/Frame"}, f.resolver.events.list())

	f.sched.Scrub(2)
	f.sched.Wait()
	assert.NoError(t, f.sched.State().LastError, "a later success clears the error")
}

func TestMountFailureLeavesNothingMounted(t *testing.T) {
	f := newFixture(t, 10, false)
	f.sched.Scrub(0)
	f.sched.Wait()
	f.resolver.mountFail["frame_0002/Frame"] = errors.New("bad markup")
	f.sched.Scrub(1)
	f.sched.Wait()

	st := f.sched.State()
	assert.Equal(t, NoFrame, st.MountedIndex)
	assert.Error(t, st.LastError)
}

func TestAtMostOneLoadInFlight(t *testing.T) {
	f := newFixture(t, 5258, false)
	gate := make(chan struct{})
	f.resolver.setGate(gate)

	require.NoError(t, f.sched.Play())
	f.clock.Advance(100 * time.Millisecond)
	f.sched.Tick()
	require.Eventually(t, func() bool { return f.resolver.callCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, f.sched.State().Loading)

	for i := 0; i < 50; i++ {
		f.clock.Advance(37 * time.Millisecond)
		f.sched.Tick()
	}
	f.sched.Scrub(4000)
	f.sched.Tick()
	assert.Equal(t, 1, f.resolver.callCount(), "ticks during a load are dropped, not queued")

	close(gate)
	f.sched.Wait()
	assert.Equal(t, 1, f.resolver.callCount())
	assert.Equal(t, 2, f.sched.State().MountedIndex)

	f.sched.Tick()
	f.sched.Wait()
	assert.Equal(t, 2, f.resolver.callCount())
	assert.Equal(t, 4000, f.sched.State().MountedIndex, "next tick loads the most recent target")
}

func TestScrubWhileLoadingIsSuppressed(t *testing.T) {
	f := newFixture(t, 10, false)
	gate := make(chan struct{})
	f.resolver.setGate(gate)

	f.sched.Scrub(1)
	f.sched.Scrub(2)
	assert.Equal(t, 2, f.sched.State().TargetIndex)

	close(gate)
	f.sched.Wait()
	assert.Equal(t, 1, f.resolver.callCount())
	assert.Equal(t, 1, f.sched.State().MountedIndex)
}

func TestPauseMidLoadStillMounts(t *testing.T) {
	f := newFixture(t, 5258, false)
	gate := make(chan struct{})
	f.resolver.setGate(gate)

	require.NoError(t, f.sched.Play())
	f.clock.Advance(time.Second)
	f.sched.Tick()
	f.sched.Pause()
	assert.Equal(t, Idle, f.sched.State().Mode)

	close(gate)
	f.sched.Wait()
	assert.Equal(t, 24, f.sched.State().MountedIndex)
}

func TestTickSkipsUnchangedTarget(t *testing.T) {
	f := newFixture(t, 5258, false)
	require.NoError(t, f.sched.Play())
	f.sched.Tick()
	f.sched.Wait()
	f.clock.Advance(10 * time.Millisecond)
	f.sched.Tick()
	f.sched.Wait()
	assert.Equal(t, 1, f.resolver.callCount())

	f.clock.Advance(40 * time.Millisecond)
	f.sched.Tick()
	f.sched.Wait()
	assert.Equal(t, 2, f.resolver.callCount())
	assert.Equal(t, 1, f.sched.State().MountedIndex)
}

func TestTickIgnoredWhileIdle(t *testing.T) {
	f := newFixture(t, 10, false)
	f.sched.Tick()
	f.sched.Wait()
	assert.Equal(t, 0, f.resolver.callCount())
}

func TestScrubWhilePlayingReanchors(t *testing.T) {
	f := newFixture(t, 5258, false)
	require.NoError(t, f.sched.Play())
	f.clock.Advance(2 * time.Second)
	f.sched.Scrub(100)
	assert.Equal(t, 0, f.resolver.callCount(), "scrub while playing waits for the next tick")

	f.clock.Advance(time.Second)
	f.sched.Tick()
	f.sched.Wait()
	assert.Equal(t, 124, f.sched.State().MountedIndex)
	assert.Equal(t, WallClock, f.sched.State().Source)
}

func TestPlayResumesFromTarget(t *testing.T) {
	f := newFixture(t, 5258, false)
	f.sched.Scrub(48)
	f.sched.Wait()

	require.NoError(t, f.sched.Play())
	f.clock.Advance(500 * time.Millisecond)
	f.sched.Tick()
	f.sched.Wait()
	assert.Equal(t, 60, f.sched.State().MountedIndex)
	assert.Equal(t, Playing, f.sched.State().Mode)
}

func TestAudioDrivesPlayback(t *testing.T) {
	f := newFixture(t, 5258, true)
	f.sched.Scrub(24)
	f.sched.Wait()
	require.NoError(t, f.sched.Play())
	assert.Equal(t, 1, f.audio.plays)
	assert.InDelta(t, 1.0, f.audio.time, 1e-9, "audio seeks to the origin frame")

	f.audio.time = 3
	f.sched.Tick()
	f.sched.Wait()
	st := f.sched.State()
	assert.Equal(t, AudioDriven, st.Source)
	assert.Equal(t, 72, st.MountedIndex)

	f.sched.SetVolume(0.3)
	f.sched.SetMuted(true)
	assert.Equal(t, 0.3, f.audio.volume)
	assert.True(t, f.audio.muted)

	f.sched.Pause()
	assert.Equal(t, 1, f.audio.pauses)
}

func TestPlayIsIdempotentAndCloseStops(t *testing.T) {
	f := newFixture(t, 10, false)
	require.NoError(t, f.sched.Play())
	require.NoError(t, f.sched.Play())
	f.sched.Close()
	assert.Equal(t, Idle, f.sched.State().Mode)
	assert.Error(t, f.sched.Play())
}
