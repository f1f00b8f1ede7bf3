package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/matt-g-everett/framefed/audio"
	"github.com/matt-g-everett/framefed/config"
	"github.com/matt-g-everett/framefed/logging"
	"github.com/matt-g-everett/framefed/palette"
	"github.com/matt-g-everett/framefed/playback"
	"github.com/matt-g-everett/framefed/remote"
	"github.com/matt-g-everett/framefed/stream"
)

// engine is the remote loading stack shared by play and resolve.
type engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *remote.Registry
	scope    *remote.ShareScope
	loader   *remote.Loader
	resolver *remote.Resolver
	entries  remote.EntryTemplate
	surface  *stream.Surface
}

func newEngine(cfg *config.Config, logger *slog.Logger) *engine {
	scope := remote.NewShareScope()
	scope.Provide(palette.ImportPath, func(context.Context) (remote.Symbols, error) {
		return palette.Symbols(), nil
	})
	scope.Begin()

	registry := remote.NewRegistry()
	units := remote.NewInterpLoader(remote.NewHTTPFetcher(cfg.Remote.FetchTimeout), logging.Component(logger, "interp"))
	loader := remote.NewLoader(registry, units, scope, logging.Component(logger, "loader"))
	resolver := remote.NewResolver(registry, loader, scope, logging.Component(logger, "resolver"))

	cacheBust := cfg.Remote.CacheBust
	if cacheBust == "" {
		cacheBust = uuid.NewString()
	}
	return &engine{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		scope:    scope,
		loader:   loader,
		resolver: resolver,
		entries:  remote.EntryTemplate{Template: cfg.Remote.EntryTemplate, CacheBust: cacheBust},
		surface:  stream.NewSurface(),
	}
}

func (e *engine) newScheduler(a playback.Audio) (*playback.Scheduler, error) {
	return playback.NewScheduler(playback.Options{
		FrameCount:    e.cfg.Playback.FrameCount,
		FPS:           e.cfg.Playback.FPS,
		OffsetSeconds: e.cfg.Audio.OffsetSeconds,
		TickInterval:  e.cfg.Playback.TickInterval(),
		StartFrame:    e.cfg.Playback.StartFrame,
		Export:        e.cfg.Remote.Export,
		Entries:       e.entries,
		Registry:      e.registry,
		Resolver:      e.resolver,
		Target:        e.surface,
		Audio:         a,
		Logger:        logging.Component(e.logger, "scheduler"),
	})
}

// newAudio builds the configured audio element. The MQTT element needs a
// connected client.
func (e *engine) newAudio(client mqtt.Client) (playback.Audio, error) {
	switch e.cfg.Audio.Mode {
	case config.AudioNone:
		return nil, nil
	case config.AudioVirtual:
		track := audio.NewTrack(e.cfg.Audio.DurationSeconds, e.cfg.Audio.Fade(), nil)
		track.SetVolume(e.cfg.Audio.Volume)
		return track, nil
	case config.AudioMQTT:
		if client == nil {
			return nil, fmt.Errorf("audio mode %q needs an mqtt connection", config.AudioMQTT)
		}
		r := audio.NewRemote(client, e.cfg.Mqtt.Topics.AudioCommand, e.cfg.Mqtt.Topics.AudioStatus, logging.Component(e.logger, "audio"))
		if err := r.Subscribe(); err != nil {
			return nil, err
		}
		r.SetVolume(e.cfg.Audio.Volume)
		return r, nil
	default:
		return nil, fmt.Errorf("unknown audio mode %q", e.cfg.Audio.Mode)
	}
}

func (e *engine) needsMQTT() bool {
	return e.cfg.Stream.Enabled || e.cfg.Audio.Mode == config.AudioMQTT
}

func connectMQTT(cfg config.Mqtt, logger *slog.Logger) (mqtt.Client, error) {
	mqtt.ERROR = slog.NewLogLogger(logger.Handler(), slog.LevelError)
	mqtt.WARN = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)

	options := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("connected", slog.String("broker", cfg.URL))
		})
	client := mqtt.NewClient(options)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, token.Error())
	}
	return client, nil
}
