package playback

import (
	"math"
	"time"
)

// ClockSource names what drove a frame index evaluation.
type ClockSource int

const (
	// WallClock counts elapsed time since the last play.
	WallClock ClockSource = iota
	// AudioDriven follows the audio position.
	AudioDriven
)

func (s ClockSource) String() string {
	if s == AudioDriven {
		return "audio"
	}
	return "wall-clock"
}

// Origin anchors wall-clock playback: the instant of the last play and the
// frame that was active then.
type Origin struct {
	Timestamp  time.Time
	FrameIndex int
}

// DesiredFrameIndex is the wall-clock frame index at now, wrapped to
// [0, frameCount).
func DesiredFrameIndex(now time.Time, origin Origin, frameCount int, fps float64) int {
	elapsed := now.Sub(origin.Timestamp).Seconds()
	return wrapIndex(math.Floor(float64(origin.FrameIndex)+elapsed*fps), frameCount)
}

// AudioFrameIndex is the frame index at an audio position, wrapped to
// [0, frameCount).
func AudioFrameIndex(currentTime, offsetSeconds float64, frameCount int, fps float64) int {
	return wrapIndex(math.Floor((currentTime+offsetSeconds)*fps), frameCount)
}

// Clock maps time to frame indexes. It holds no state and may be copied.
type Clock struct {
	FrameCount    int
	FPS           float64
	OffsetSeconds float64
}

// Desired evaluates the frame index at now, following audio when it is
// present, playing and reporting a finite position.
func (c Clock) Desired(now time.Time, origin Origin, audio Audio) (int, ClockSource) {
	if audio != nil && !audio.Paused() {
		if t := audio.CurrentTime(); !math.IsNaN(t) && !math.IsInf(t, 0) {
			return AudioFrameIndex(t, c.OffsetSeconds, c.FrameCount, c.FPS), AudioDriven
		}
	}
	return DesiredFrameIndex(now, origin, c.FrameCount, c.FPS), WallClock
}

// Seconds is the audio position that shows index.
func (c Clock) Seconds(index int) float64 {
	if c.FPS <= 0 {
		return 0
	}
	return math.Max(0, float64(index)/c.FPS-c.OffsetSeconds)
}

func wrapIndex(v float64, frameCount int) int {
	if frameCount <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	n := math.Mod(v, float64(frameCount))
	if n < 0 {
		n += float64(frameCount)
	}
	i := int(n)
	if i >= frameCount {
		i = 0
	}
	return i
}

// WrapIndex wraps any integer index into [0, frameCount).
func WrapIndex(index, frameCount int) int {
	if frameCount <= 0 {
		return 0
	}
	index %= frameCount
	if index < 0 {
		index += frameCount
	}
	return index
}
