package channel

import (
	"errors"
	"log/slog"
	"time"

	"github.com/educube/groundstation/internal/telemetry"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrAlreadyClosed    = errors.New("already closed")
)

// NoticeType is the severity of an operator notice.
type NoticeType string

const (
	NoticeInfo    NoticeType = "info"
	NoticeSuccess NoticeType = "success"
	NoticeWarning NoticeType = "warning"
	NoticeError   NoticeType = "error"
)

// Notice is a transient message for the operator.
type Notice struct {
	Message string     `json:"message"`
	Type    NoticeType `json:"type"`
}

// Renderer displays a telemetry record. Render may be called from the
// receive goroutine and the refresh goroutine concurrently.
type Renderer interface {
	Render(rec telemetry.Record)
}

// RendererFunc is a function adapter for Renderer.
type RendererFunc func(telemetry.Record)

func (f RendererFunc) Render(rec telemetry.Record) {
	f(rec)
}

// Renderers fans a record out to several renderers in order.
type Renderers []Renderer

func (rs Renderers) Render(rec telemetry.Record) {
	for _, r := range rs {
		r.Render(rec)
	}
}

// Notifier shows operator notices.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc is a function adapter for Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

// MapWidget draws position markers.
type MapWidget interface {
	// AddMarker places a new marker and returns its index.
	AddMarker(lon, lat float64) int

	// UpdateMarker moves an existing marker.
	UpdateMarker(idx int, lon, lat float64)
}

// Config configures a Channel.
type Config struct {
	HandshakeTimeout time.Duration // Dial handshake timeout
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Keepalive ping interval (0 disables)
	RefreshInterval  time.Duration // Re-render interval from the store (0 disables)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		RefreshInterval:  5 * time.Second,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Connected        bool
	FramesReceived   int64
	TelemetryApplied int64
	DecodeErrors     int64
	UnknownTypes     int64
	CommandsSent     int64
	SendFailures     int64
	LastFrameAt      time.Time
}

// Option configures optional Channel collaborators.
type Option func(*Channel)

// WithRenderer sets the renderer invoked for every applied record.
func WithRenderer(r Renderer) Option {
	return func(c *Channel) {
		c.renderer = r
	}
}

// WithNotifier sets the operator notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Channel) {
		c.notifier = n
	}
}

// WithDecoder sets the telemetry decoder.
func WithDecoder(d *telemetry.Decoder) Option {
	return func(c *Channel) {
		c.decoder = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = l
	}
}
