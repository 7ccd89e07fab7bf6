package telemetry

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultGPSScale converts the fixed-point GPS latitude/longitude integers
// reported by the CDH board into decimal degrees.
const DefaultGPSScale = 1e7

// Options configures a Decoder.
type Options struct {
	GPSScale float64 // raw lat/lon divisor (default: 1e7)
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		GPSScale: DefaultGPSScale,
	}
}

// boardParser accumulates the tokens of one telemetry line.
type boardParser interface {
	token(id string, args []string) error
	finish() Data
}

// Decoder turns board telemetry lines into structured records.
// A Decoder is stateless between calls and safe for concurrent use.
type Decoder struct {
	opts   Options
	logger *slog.Logger
}

// NewDecoder creates a new Decoder.
func NewDecoder(opts Options, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.GPSScale == 0 {
		opts.GPSScale = DefaultGPSScale
	}
	return &Decoder{
		opts:   opts,
		logger: logger,
	}
}

// Decode parses the token part of a telemetry line for the given board.
//
// Unrecognised or malformed tokens are skipped, so a known board never
// fails: an unparseable line yields empty Data. Only an unknown board
// returns an error.
func (d *Decoder) Decode(board, telem string) (Data, error) {
	var p boardParser
	switch board {
	case BoardEPS:
		p = newEPSParser()
	case BoardADC:
		p = &adcParser{}
	case BoardEXP:
		p = newEXPParser()
	case BoardCDH:
		p = &cdhParser{scale: d.opts.GPSScale}
	default:
		return Data{}, fmt.Errorf("%w: %q", ErrUnknownBoard, board)
	}

	for _, tok := range strings.Split(telem, "|") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		fields := strings.Split(tok, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if err := p.token(fields[0], fields[1:]); err != nil {
			d.logger.Debug("skipping telemetry token",
				"board", board,
				"token", tok,
				"error", err,
			)
		}
	}

	return p.finish(), nil
}

// ParseLine parses a complete "T|<board>|<tokens>" line received at the
// given time.
func (d *Decoder) ParseLine(line string, receivedAt time.Time) (Record, error) {
	line = strings.TrimSpace(line)
	parts := strings.SplitN(line, "|", 3)
	if len(parts) < 3 {
		return Record{}, fmt.Errorf("%w: %q", ErrEmptyTelemetry, line)
	}
	if parts[0] != RecordType {
		return Record{}, fmt.Errorf("%w: type %q", ErrNotTelemetry, parts[0])
	}

	data, err := d.Decode(parts[1], parts[2])
	if err != nil {
		return Record{}, err
	}

	return Record{
		Board: parts[1],
		Type:  parts[0],
		Telem: parts[2],
		Time:  receivedAt.UnixMilli(),
		Data:  data,
	}, nil
}

// Rebuild recomputes r.Data from r.Telem, discarding whatever Data the
// record carried.
func (d *Decoder) Rebuild(r Record) (Record, error) {
	data, err := d.Decode(r.Board, r.Telem)
	if err != nil {
		return Record{}, err
	}
	if r.Type == "" {
		r.Type = RecordType
	}
	r.Data = data
	return r, nil
}

// need checks that a token carries at least n fields.
func need(id string, args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s needs %d fields, got %d", ErrTelemetryParse, id, n, len(args))
	}
	return nil
}

// optional returns the first field, or nil if it is missing or blank.
func optional(args []string) *string {
	if len(args) == 0 || args[0] == "" {
		return nil
	}
	v := args[0]
	return &v
}

func unknownToken(id string) error {
	return fmt.Errorf("%w: unrecognised token %q", ErrTelemetryParse, id)
}
