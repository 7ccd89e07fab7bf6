package hub

import (
	"context"
	"errors"
	"time"

	"github.com/educube/groundstation/internal/protocol"
	"github.com/educube/groundstation/internal/telemetry"
)

// Errors
var (
	ErrHubClosed  = errors.New("hub closed")
	ErrHubStarted = errors.New("hub already started")
	ErrSlowClient = errors.New("client send buffer full")
)

// Station is what the hub needs from the ground station.
type Station interface {
	Latest() []telemetry.Record
	HandleCommand(ctx context.Context, req protocol.CommandRequest) error
}

// Check reports the health of one component. A nil error is healthy.
type Check func() error

// Config configures the Hub.
type Config struct {
	Addr         string        // Listen address
	WriteTimeout time.Duration // Per-frame write deadline
	PingInterval time.Duration // Keepalive ping period, 0 disables
	PongTimeout  time.Duration // Read deadline extension on pong
	ClientBuffer int           // Queued frames per client before it is dropped
	ReadLimit    int64         // Max inbound frame size
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         ":18888",
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		ClientBuffer: 64,
		ReadLimit:    64 * 1024,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Clients        int
	Joined         int64
	Broadcasts     int64
	DroppedClients int64
	Commands       int64
	CommandErrors  int64
	BadMessages    int64
}

// Health is the /health response body.
type Health struct {
	Status  string            `json:"status"`
	Clients int               `json:"clients"`
	Checks  map[string]string `json:"checks"`
}
