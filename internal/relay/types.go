package relay

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/educube/groundstation/internal/protocol"
)

// Errors
var (
	ErrNotConnected = errors.New("mqtt not connected")
)

// Status payloads.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// CommandHandler executes commands received from the broker.
type CommandHandler interface {
	HandleCommand(ctx context.Context, req protocol.CommandRequest) error
}

// Config configures the Relay.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	RetryInterval  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		ClientID:       "educube",
		TopicPrefix:    "educube",
		QoS:            1,
		ConnectTimeout: 10 * time.Second,
		KeepAlive:      60 * time.Second,
		RetryInterval:  10 * time.Second,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Connected     bool
	Published     int64
	PublishErrors int64
	CommandsIn    int64
	CommandErrors int64
	Connects      int64
}

// TelemetryTopic returns the topic records of board are published on.
func TelemetryTopic(prefix, board string) string {
	return join(prefix, board, "telemetry")
}

// CommandTopic returns the topic commands are read from.
func CommandTopic(prefix string) string {
	return join(prefix, "command")
}

// StatusTopic returns the retained online/offline topic.
func StatusTopic(prefix string) string {
	return join(prefix, "status")
}

func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}
