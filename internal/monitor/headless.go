package monitor

import (
	"context"
	"log/slog"

	"github.com/educube/groundstation/internal/channel"
	"github.com/educube/groundstation/internal/telemetry"
)

// Log renders records, notices and markers as log lines.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Render(rec telemetry.Record) {
	l.logger.Info("telemetry",
		"board", rec.Board,
		"received_at", rec.ReceivedAt(),
		"summary", Summary(rec),
	)
}

func (l *Log) Notify(n channel.Notice) {
	level := slog.LevelInfo
	switch n.Type {
	case channel.NoticeWarning:
		level = slog.LevelWarn
	case channel.NoticeError:
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, n.Message, "notice", n.Type)
}

func (l *Log) AddMarker(lon, lat float64) int {
	l.logger.Info("gps marker placed", "lon", lon, "lat", lat)
	return 0
}

func (l *Log) UpdateMarker(idx int, lon, lat float64) {
	l.logger.Info("gps marker moved", "marker", idx, "lon", lon, "lat", lat)
}
