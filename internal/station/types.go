package station

import (
	"time"

	"github.com/educube/groundstation/internal/link"
	"github.com/educube/groundstation/internal/telemetry"
)

// Link is the serial side of the station.
type Link interface {
	Lines() <-chan link.Line
	Send(cmd string) error
}

// Publisher receives every parsed telemetry record. Publish must not block.
type Publisher interface {
	Publish(rec telemetry.Record)
}

// PublisherFunc is a function adapter for Publisher.
type PublisherFunc func(telemetry.Record)

func (f PublisherFunc) Publish(rec telemetry.Record) {
	f(rec)
}

// Stats contains runtime statistics.
type Stats struct {
	Records       int64
	ParseErrors   int64
	IgnoredLines  int64
	Commands      int64
	CommandErrors int64
	LastRecordAt  time.Time
	LastCommandAt time.Time
}
