// Package config loads framefed configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FRAMEFED_"

// Audio modes.
const (
	AudioNone    = "none"
	AudioVirtual = "virtual"
	AudioMQTT    = "mqtt"
)

// Config is the complete framefed configuration.
type Config struct {
	Playback Playback `yaml:"playback" envPrefix:"PLAYBACK_"`
	Remote   Remote   `yaml:"remote" envPrefix:"REMOTE_"`
	Audio    Audio    `yaml:"audio" envPrefix:"AUDIO_"`
	Mqtt     Mqtt     `yaml:"mqtt" envPrefix:"MQTT_"`
	Stream   Stream   `yaml:"stream" envPrefix:"STREAM_"`
	Serve    Serve    `yaml:"serve" envPrefix:"SERVE_"`
	Build    Build    `yaml:"build" envPrefix:"BUILD_"`
	Log      Log      `yaml:"log" envPrefix:"LOG_"`
}

// Playback configures the scheduler.
type Playback struct {
	FrameCount int     `yaml:"frameCount" env:"FRAME_COUNT"`
	FPS        float64 `yaml:"fps" env:"FPS"`
	TickHz     float64 `yaml:"tickHz" env:"TICK_HZ"`
	StartFrame int     `yaml:"startFrame" env:"START_FRAME"`
}

// TickInterval is the polling cadence derived from TickHz.
func (p Playback) TickInterval() time.Duration {
	if p.TickHz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / p.TickHz)
}

// Remote configures where frame units are fetched from.
type Remote struct {
	EntryTemplate string        `yaml:"entryTemplate" env:"ENTRY_TEMPLATE"`
	Export        string        `yaml:"export" env:"EXPORT"`
	CacheBust     string        `yaml:"cacheBust" env:"CACHE_BUST"`
	FetchTimeout  time.Duration `yaml:"fetchTimeout" env:"FETCH_TIMEOUT"`
}

// Audio configures the audio element playback follows.
type Audio struct {
	Mode            string  `yaml:"mode" env:"MODE"`
	OffsetSeconds   float64 `yaml:"offsetSeconds" env:"OFFSET_SECONDS"`
	Volume          float64 `yaml:"volume" env:"VOLUME"`
	FadeMs          int     `yaml:"fadeMs" env:"FADE_MS"`
	DurationSeconds float64 `yaml:"durationSeconds" env:"DURATION_SECONDS"`
}

// Fade is the volume fade duration.
func (a Audio) Fade() time.Duration {
	return time.Duration(a.FadeMs) * time.Millisecond
}

// Mqtt configures the broker connection.
type Mqtt struct {
	URL      string `yaml:"url" env:"URL"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	ClientID string `yaml:"clientId" env:"CLIENT_ID"`
	Topics   Topics `yaml:"topics" envPrefix:"TOPIC_"`
}

// Topics names the MQTT topics.
type Topics struct {
	Stage        string `yaml:"stage" env:"STAGE"`
	AudioStatus  string `yaml:"audioStatus" env:"AUDIO_STATUS"`
	AudioCommand string `yaml:"audioCommand" env:"AUDIO_COMMAND"`
}

// Stream configures publishing of the mounted frame.
type Stream struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	IntervalMs int  `yaml:"intervalMs" env:"INTERVAL_MS"`
}

// Interval is the publish cadence.
func (s Stream) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// Serve configures the unit server.
type Serve struct {
	Addr string `yaml:"addr" env:"ADDR"`
	Dir  string `yaml:"dir" env:"DIR"`
}

// Build configures the frame build driver.
type Build struct {
	FramesDir   string `yaml:"framesDir" env:"FRAMES_DIR"`
	Command     string `yaml:"command" env:"COMMAND"`
	Concurrency int    `yaml:"concurrency" env:"CONCURRENCY"`
	Silent      bool   `yaml:"silent" env:"SILENT"`
	LockFile    string `yaml:"lockFile" env:"LOCK_FILE"`
}

// Log configures logging.
type Log struct {
	Level   string   `yaml:"level" env:"LEVEL"`
	Format  string   `yaml:"format" env:"FORMAT"`
	Outputs []string `yaml:"outputs" env:"OUTPUTS" envSeparator:","`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Playback: Playback{FrameCount: 5258, FPS: 24, TickHz: 60},
		Remote: Remote{
			EntryTemplate: "http://localhost:8080/frames/frame-{id}/remoteEntry.go?v={v}",
			Export:        "Frame",
			FetchTimeout:  10 * time.Second,
		},
		Audio: Audio{Mode: AudioVirtual, Volume: 1, FadeMs: 250},
		Mqtt: Mqtt{
			URL:      "tcp://localhost:1883",
			ClientID: "framefed",
			Topics: Topics{
				Stage:        "framefed/stage",
				AudioStatus:  "framefed/audio/status",
				AudioCommand: "framefed/audio/command",
			},
		},
		Stream: Stream{IntervalMs: 33},
		Serve:  Serve{Addr: ":8080", Dir: "dist"},
		Build: Build{
			FramesDir:   "frames",
			Command:     "npm run build --workspace={pkg}",
			Concurrency: DefaultConcurrency(),
			LockFile:    ".framefed-build.lock",
		},
		Log: Log{Level: "info", Format: "auto", Outputs: []string{"stderr"}},
	}
}

// DefaultConcurrency is min(NumCPU, 8).
func DefaultConcurrency() int {
	return min(runtime.NumCPU(), 8)
}

// Load reads path, applies environment overrides and validates. A missing
// file at path is an error; an empty path uses defaults and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := Decode(f, &cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(&cfg, nil); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode reads YAML from r over cfg.
func Decode(r io.Reader, cfg *Config) error {
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from FRAMEFED_ variables. A nil environment reads
// the process environment.
func ApplyEnv(cfg *Config, environment map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks cfg for values nothing downstream can use.
func (c *Config) Validate() error {
	var errs []error
	if c.Playback.FrameCount <= 0 {
		errs = append(errs, fmt.Errorf("playback.frameCount must be positive, got %d", c.Playback.FrameCount))
	}
	if c.Playback.FPS <= 0 {
		errs = append(errs, fmt.Errorf("playback.fps must be positive, got %v", c.Playback.FPS))
	}
	if c.Remote.EntryTemplate == "" {
		errs = append(errs, errors.New("remote.entryTemplate is required"))
	} else if !strings.Contains(c.Remote.EntryTemplate, "{id}") && !strings.Contains(c.Remote.EntryTemplate, "{name}") {
		errs = append(errs, errors.New("remote.entryTemplate must contain {id} or {name}"))
	}
	if c.Remote.Export == "" {
		errs = append(errs, errors.New("remote.export is required"))
	}
	switch c.Audio.Mode {
	case AudioNone, AudioVirtual, AudioMQTT:
	default:
		errs = append(errs, fmt.Errorf("audio.mode %q is not one of none, virtual, mqtt", c.Audio.Mode))
	}
	if c.Build.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("build.concurrency must be positive, got %d", c.Build.Concurrency))
	}
	return errors.Join(errs...)
}
