// Package logging builds the process logger: a slog handler on stderr and,
// optionally, a size-rotated log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level      slog.Level
	Format     string // text or json
	File       string // optional log file, rotated by size
	MaxSizeMB  int
	MaxBackups int

	// Output defaults to os.Stderr.
	Output io.Writer
}

// ParseLevel accepts debug, info, warn and error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// VerbosityLevel maps a repeated -v count to a level: none is error, -v is
// warn, -vv info and -vvv or more debug.
func VerbosityLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelError
	case v == 1:
		return slog.LevelWarn
	case v == 2:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// New returns a logger and a closer for its file sink. The closer is a
// no-op when no file is configured.
func New(opts Options) (*slog.Logger, io.Closer) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		out = io.MultiWriter(out, file)
		closer = file
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Verbosity is a flag.Value counting repeated -v flags. -v=N sets the
// count directly.
type Verbosity int

func (v *Verbosity) String() string {
	return strconv.Itoa(int(*v))
}

func (v *Verbosity) Set(s string) error {
	if s == "true" {
		*v++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid verbosity %q", s)
	}
	*v = Verbosity(n)
	return nil
}

func (v *Verbosity) IsBoolFlag() bool { return true }
