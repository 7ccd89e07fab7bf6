package archive

import (
	"time"

	"github.com/google/uuid"
)

// Config configures the Writer.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize caps queued records. The oldest are dropped beyond it.
	BufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Metrics contains writer statistics.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64 // records dropped by the input buffer
	LastFlush time.Time
}

// recordRow is a row of the telemetry_records table.
type recordRow struct {
	ID         uuid.UUID
	Board      string
	Type       string
	ReceivedAt time.Time
	Telem      string
	Data       []byte // JSONB
}
