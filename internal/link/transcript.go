package link

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Direction arrows used in transcript entries.
const (
	arrowRX = ">>>"
	arrowTX = "<<<"
)

// TranscriptConfig configures the rotating transcript file.
type TranscriptConfig struct {
	Dir        string // Directory for transcript files
	Prefix     string // File name prefix (default: educube_telemetry)
	MaxSizeMB  int    // Rotate after this size (default: 50)
	MaxBackups int    // Rotated files to keep (default: 10)
	Compress   bool   // Gzip rotated files
}

// Transcript records raw link traffic.
type Transcript struct {
	mu   sync.Mutex
	w    io.Writer
	path string
}

// NewTranscript wraps w. Entries are written one per Write call.
func NewTranscript(w io.Writer) *Transcript {
	return &Transcript{w: w}
}

// OpenTranscript creates a rotating transcript file named
// <prefix>_<kind>_<epoch ms>.raw in cfg.Dir.
func OpenTranscript(cfg TranscriptConfig, kind string, now time.Time) *Transcript {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "educube_telemetry"
	}
	path := filepath.Join(cfg.Dir, fmt.Sprintf("%s_%s_%d.raw", prefix, kind, now.UnixMilli()))

	return &Transcript{
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		},
		path: path,
	}
}

// Path returns the file path, or "" for a wrapped writer.
func (t *Transcript) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// RX records a received line.
func (t *Transcript) RX(at time.Time, line string) error {
	return t.write(at, arrowRX, line)
}

// TX records a transmitted command.
func (t *Transcript) TX(at time.Time, cmd string) error {
	return t.write(at, arrowTX, cmd)
}

func (t *Transcript) write(at time.Time, arrow, msg string) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, "%d\t%s\t%s\n", at.UnixMilli(), arrow, msg)
	return err
}

// Close closes the underlying writer if it is closable.
func (t *Transcript) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
