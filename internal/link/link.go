package link

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var eol = []byte("\r\n")

// Link owns a serial port: one goroutine reads and frames lines, another
// drains the transmit queue.
type Link struct {
	cfg        Config
	port       Port
	transcript *Transcript
	logger     *slog.Logger

	lines chan Line
	tx    chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
	rxDone  bool
	stats   Stats
}

// New creates a Link on port. transcript may be nil.
func New(cfg Config, port Port, transcript *Transcript, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TxQueueSize <= 0 {
		cfg.TxQueueSize = def.TxQueueSize
	}
	if cfg.LineBuffer <= 0 {
		cfg.LineBuffer = def.LineBuffer
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = def.MaxLineLength
	}

	return &Link{
		cfg:        cfg,
		port:       port,
		transcript: transcript,
		logger:     logger,
		lines:      make(chan Line, cfg.LineBuffer),
		tx:         make(chan string, cfg.TxQueueSize),
	}
}

// Start begins reading and writing.
func (l *Link) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	if l.started {
		return nil
	}
	l.started = true

	l.ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(2)
	go l.rxLoop()
	go l.txLoop()

	l.logger.Info("serial link started", "transcript", l.transcript.Path())
	return nil
}

// Stop closes the port and waits for both goroutines to exit.
func (l *Link) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	started := l.started
	l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	portErr := l.port.Close()

	if !started {
		close(l.lines)
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := l.transcript.Close(); err != nil {
		l.logger.Warn("failed to close transcript", "error", err)
	}
	l.logger.Info("serial link stopped")
	return portErr
}

// Lines returns received lines. It is closed when the link stops.
func (l *Link) Lines() <-chan Line {
	return l.lines
}

// Send queues cmd for transmission exactly as given.
func (l *Link) Send(cmd string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrLinkClosed
	}

	select {
	case l.tx <- cmd:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrQueueFull, cmd)
	}
}

// Stats returns current statistics.
func (l *Link) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

// Running reports whether the link is started, not stopped, and still
// reading from the port.
func (l *Link) Running() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started && !l.closed && !l.rxDone
}

func (l *Link) rxLoop() {
	defer l.wg.Done()
	defer close(l.lines)
	defer func() {
		l.mu.Lock()
		l.rxDone = true
		l.mu.Unlock()
	}()

	split := &lineSplitter{max: l.cfg.MaxLineLength, dropped: l.dropOversize}
	scanner := bufio.NewScanner(l.port)
	scanner.Buffer(make([]byte, 0, 512), l.cfg.MaxLineLength+len(eol))
	scanner.Split(split.scan)

	latin1 := charmap.ISO8859_1.NewDecoder()

	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		text, err := latin1.Bytes(raw)
		if err != nil {
			l.logger.Warn("failed to decode line", "line", fmt.Sprintf("%q", raw), "error", err)
			continue
		}

		line := Line{Text: string(text), ReceivedAt: time.Now()}
		line.Kind = classify(line.Text)
		l.record(line)

		select {
		case l.lines <- line:
		case <-l.ctx.Done():
			return
		}
	}

	err := scanner.Err()
	select {
	case <-l.ctx.Done():
		// Stopped.
	default:
		if err == nil {
			err = io.EOF
		}
		l.logger.Error("serial read failed", "error", err)
	}
}

func (l *Link) record(line Line) {
	l.mu.Lock()
	l.stats.LinesReceived++
	l.stats.LastReceived = line.ReceivedAt
	switch line.Kind {
	case KindTelemetry:
		l.stats.TelemetryLines++
	case KindDebug:
		l.stats.DebugLines++
	default:
		l.stats.UnknownLines++
	}
	l.mu.Unlock()

	switch line.Kind {
	case KindTelemetry:
		if err := l.transcript.RX(line.ReceivedAt, line.Text); err != nil {
			l.logger.Warn("failed to write transcript", "error", err)
		}
		l.logger.Debug("received telemetry", "line", line.Text)
	case KindDebug:
		l.logger.Debug("received debug message", "line", line.Text)
	default:
		l.logger.Warn("received unrecognised message", "line", line.Text)
	}
}

func (l *Link) dropOversize(n int) {
	l.mu.Lock()
	l.stats.OversizeLines++
	l.mu.Unlock()
	l.logger.Warn("discarded oversize line", "bytes", n, "max", l.cfg.MaxLineLength)
}

func (l *Link) txLoop() {
	defer l.wg.Done()

	latin1 := charmap.ISO8859_1.NewEncoder()

	for {
		select {
		case <-l.ctx.Done():
			return
		case cmd := <-l.tx:
			l.write(latin1, cmd)
		}
	}
}

func (l *Link) write(enc *encoding.Encoder, cmd string) {
	out, err := enc.String(cmd)
	if err == nil {
		_, err = io.WriteString(l.port, out)
	}

	now := time.Now()
	l.mu.Lock()
	if err != nil {
		l.stats.WriteErrors++
	} else {
		l.stats.CommandsWritten++
		l.stats.LastWritten = now
	}
	l.mu.Unlock()

	if err != nil {
		if !errors.Is(err, io.ErrClosedPipe) {
			l.logger.Warn("failed to write command", "command", cmd, "error", err)
		}
		return
	}

	if err := l.transcript.TX(now, cmd); err != nil {
		l.logger.Warn("failed to write transcript", "error", err)
	}
}

// classify looks at the line prefix, ignoring leading whitespace.
func classify(text string) LineKind {
	text = strings.TrimLeft(text, " \t")
	switch {
	case strings.HasPrefix(text, "T|"):
		return KindTelemetry
	case strings.HasPrefix(text, "DEBUG|"):
		return KindDebug
	}
	return KindUnknown
}

// lineSplitter frames \r\n lines no longer than max bytes. A longer line
// is discarded through its terminator and reported to dropped with its
// length.
type lineSplitter struct {
	max     int
	dropped func(n int)

	discarding bool
	skipped    int
}

func (s *lineSplitter) scan(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if !s.discarding {
		advance, token, err = scanCRLF(data, atEOF)
		if len(token) <= s.max && (advance > 0 || s.mayFit(data)) {
			return advance, token, err
		}
		s.discarding = true
		s.skipped = 0
	}

	if i := bytes.Index(data, eol); i >= 0 {
		s.finish(i)
		return i + len(eol), nil, nil
	}
	if atEOF {
		s.finish(len(data))
		return len(data), nil, nil
	}
	// Keep a trailing \r, it may start the terminator.
	n := len(data)
	if data[n-1] == '\r' {
		n--
	}
	s.skipped += n
	return n, nil, nil
}

// mayFit reports whether unterminated data can still become a line of at
// most max bytes.
func (s *lineSplitter) mayFit(data []byte) bool {
	n := len(data)
	return n <= s.max || (n == s.max+1 && data[n-1] == '\r')
}

func (s *lineSplitter) finish(n int) {
	s.discarding = false
	if s.dropped != nil {
		s.dropped(s.skipped + n)
	}
}

// scanCRLF is a bufio.SplitFunc splitting on \r\n. A trailing partial line
// at EOF is returned as is.
func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.Index(data, eol); i >= 0 {
		return i + len(eol), data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
