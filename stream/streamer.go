package stream

import (
	"context"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher is the part of an MQTT client the Streamer needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Streamer that streams the mounted frame to an ledrx device.
type Streamer struct {
	client   Publisher
	surface  *Surface
	topic    string
	interval time.Duration
	logger   *slog.Logger

	lastVersion uint64
}

// NewStreamer creates an instance of a Streamer.
func NewStreamer(client Publisher, surface *Surface, topic string, interval time.Duration, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	s := new(Streamer)
	s.client = client
	s.surface = surface
	s.topic = topic
	s.interval = interval
	s.logger = logger
	return s
}

// SendFrame sends the mounted frame as binary if it changed since the last
// send. It reports whether anything was published.
func (s *Streamer) SendFrame() (bool, error) {
	if s.surface.Version() == s.lastVersion {
		return false, nil
	}
	f, version, err := s.surface.Snapshot()
	if err != nil {
		s.lastVersion = s.surface.Version()
		return false, err
	}
	b, err := f.MarshalBinary()
	if err != nil {
		s.lastVersion = version
		return false, err
	}
	token := s.client.Publish(s.topic, 2, false, b)
	token.Wait()
	if err := token.Error(); err != nil {
		return false, err
	}
	s.lastVersion = version
	return true, nil
}

// Run causes the Streamer to send Frames until ctx is done.
func (s *Streamer) Run(ctx context.Context) {
	publishTimer := time.NewTicker(s.interval)
	defer publishTimer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-publishTimer.C:
			if _, err := s.SendFrame(); err != nil {
				s.logger.Warn("stream frame failed", slog.String("topic", s.topic), slog.Any("error", err))
			}
		}
	}
}
