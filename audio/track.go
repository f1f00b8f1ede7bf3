// Package audio provides audio elements the playback clock can follow.
package audio

import (
	"math"
	"sync"
	"time"

	"github.com/matt-g-everett/framefed/util"
)

// Track is a virtual audio element: its position advances with the wall
// clock while playing. Duration, when set, ends playback at the end.
type Track struct {
	mu       sync.Mutex
	now      func() time.Time
	duration float64
	fade     time.Duration

	playing   bool
	position  float64
	startedAt time.Time

	volume    float64
	fadeFrom  float64
	fadeStart time.Time
	muted     bool
}

// NewTrack creates a paused Track at position 0.
func NewTrack(duration float64, fade time.Duration, now func() time.Time) *Track {
	if now == nil {
		now = time.Now
	}
	return &Track{now: now, duration: duration, fade: fade, volume: 1, fadeFrom: 1}
}

// Paused reports whether the track is not playing.
func (t *Track) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing && t.ended() {
		t.position = t.duration
		t.playing = false
	}
	return !t.playing
}

// CurrentTime is the position in seconds.
func (t *Track) CurrentTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positionLocked()
}

// Play starts the track from its position.
func (t *Track) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		return nil
	}
	if t.duration > 0 && t.position >= t.duration {
		t.position = 0
	}
	t.playing = true
	t.startedAt = t.now()
	return nil
}

// Pause stops the track at its position.
func (t *Track) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = t.positionLocked()
	t.playing = false
}

// Seek moves the position.
func (t *Track) Seek(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	if t.duration > 0 && seconds > t.duration {
		seconds = t.duration
	}
	t.position = seconds
	t.startedAt = t.now()
}

// SetVolume fades towards volume.
func (t *Track) SetVolume(volume float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fadeFrom = t.volumeLocked()
	t.fadeStart = t.now()
	t.volume = util.Clamp01(volume)
}

// SetMuted mutes or unmutes without touching the volume.
func (t *Track) SetMuted(muted bool) {
	t.mu.Lock()
	t.muted = muted
	t.mu.Unlock()
}

// Volume is the effective output volume, 0 while muted.
func (t *Track) Volume() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.muted {
		return 0
	}
	return t.volumeLocked()
}

func (t *Track) volumeLocked() float64 {
	if t.fade <= 0 || t.fadeStart.IsZero() {
		return t.volume
	}
	progress := float64(t.now().Sub(t.fadeStart)) / float64(t.fade)
	return util.Ramp(t.fadeFrom, t.volume, progress)
}

func (t *Track) positionLocked() float64 {
	if !t.playing {
		return t.position
	}
	pos := t.position + t.now().Sub(t.startedAt).Seconds()
	if t.duration > 0 && pos > t.duration {
		return t.duration
	}
	return pos
}

func (t *Track) ended() bool {
	return t.duration > 0 && t.positionLocked() >= t.duration
}
