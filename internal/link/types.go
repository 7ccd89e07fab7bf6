package link

import (
	"errors"
	"io"
	"time"
)

// Errors
var (
	ErrLinkClosed = errors.New("link closed")
	ErrQueueFull  = errors.New("transmit queue full")
)

// Port is a serial device, or anything that behaves like one.
type Port interface {
	io.ReadWriteCloser
}

// LineKind classifies a received line.
type LineKind int

const (
	KindUnknown LineKind = iota
	KindTelemetry
	KindDebug
)

func (k LineKind) String() string {
	switch k {
	case KindTelemetry:
		return "telemetry"
	case KindDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Line is one framed line from the board.
type Line struct {
	Text       string
	Kind       LineKind
	ReceivedAt time.Time
}

// Config holds link configuration.
type Config struct {
	TxQueueSize   int // Pending commands before Send fails (default: 64)
	LineBuffer    int // Received lines buffered for the consumer (default: 256)
	MaxLineLength int // Longest accepted line in bytes (default: 4096)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TxQueueSize:   64,
		LineBuffer:    256,
		MaxLineLength: 4096,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	LinesReceived   int64
	TelemetryLines  int64
	DebugLines      int64
	UnknownLines    int64
	OversizeLines   int64
	CommandsWritten int64
	WriteErrors     int64
	LastReceived    time.Time
	LastWritten     time.Time
}
