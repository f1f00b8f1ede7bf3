package audio

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client is the part of an MQTT client a Remote needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Command is sent to the remote player.
type Command struct {
	Type   string   `json:"type"`
	Time   *float64 `json:"time,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
	Muted  *bool    `json:"muted,omitempty"`
}

// Status is reported by the remote player.
type Status struct {
	Time   float64 `json:"time"`
	Paused bool    `json:"paused"`
}

// Remote is an audio element played by another process over MQTT. It
// publishes commands and extrapolates the position from the last status.
type Remote struct {
	client       Client
	commandTopic string
	statusTopic  string
	now          func() time.Time
	logger       *slog.Logger

	mu       sync.Mutex
	status   Status
	received time.Time
	known    bool
}

// NewRemote creates a Remote. It reports paused until the first status
// arrives.
func NewRemote(client Client, commandTopic, statusTopic string, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{
		client:       client,
		commandTopic: commandTopic,
		statusTopic:  statusTopic,
		now:          time.Now,
		logger:       logger,
		status:       Status{Paused: true},
	}
}

// Subscribe listens for status reports.
func (r *Remote) Subscribe() error {
	token := r.client.Subscribe(r.statusTopic, 0, r.handleStatus)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.statusTopic, err)
	}
	return nil
}

func (r *Remote) handleStatus(_ mqtt.Client, msg mqtt.Message) {
	var status Status
	if err := json.Unmarshal(msg.Payload(), &status); err != nil {
		r.logger.Warn("bad audio status", slog.String("topic", msg.Topic()), slog.Any("error", err))
		return
	}
	r.mu.Lock()
	r.status = status
	r.received = r.now()
	r.known = true
	r.mu.Unlock()
}

// Paused reports the last known state.
func (r *Remote) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.known || r.status.Paused
}

// CurrentTime extrapolates the last reported position. It is NaN until a
// status has arrived.
func (r *Remote) CurrentTime() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known {
		return math.NaN()
	}
	if r.status.Paused {
		return r.status.Time
	}
	return r.status.Time + r.now().Sub(r.received).Seconds()
}

// Play asks the remote player to start.
func (r *Remote) Play() error {
	return r.send(Command{Type: "play"})
}

// Pause asks the remote player to pause.
func (r *Remote) Pause() {
	r.mu.Lock()
	if r.known && !r.status.Paused {
		r.status.Time += r.now().Sub(r.received).Seconds()
		r.status.Paused = true
	}
	r.mu.Unlock()
	r.sendLogged(Command{Type: "pause"})
}

// Seek asks the remote player to move.
func (r *Remote) Seek(seconds float64) {
	r.mu.Lock()
	if r.known {
		r.status.Time = seconds
		r.received = r.now()
	}
	r.mu.Unlock()
	r.sendLogged(Command{Type: "seek", Time: &seconds})
}

// SetVolume sets the remote volume.
func (r *Remote) SetVolume(volume float64) {
	r.sendLogged(Command{Type: "volume", Volume: &volume})
}

// SetMuted mutes the remote player.
func (r *Remote) SetMuted(muted bool) {
	r.sendLogged(Command{Type: "mute", Muted: &muted})
}

func (r *Remote) sendLogged(cmd Command) {
	if err := r.send(cmd); err != nil {
		r.logger.Warn("audio command failed", slog.String("type", cmd.Type), slog.Any("error", err))
	}
}

func (r *Remote) send(cmd Command) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	token := r.client.Publish(r.commandTopic, 1, false, b)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", cmd.Type, err)
	}
	return nil
}
