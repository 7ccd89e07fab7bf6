package station

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/educube/groundstation/internal/command"
	"github.com/educube/groundstation/internal/link"
	"github.com/educube/groundstation/internal/protocol"
	"github.com/educube/groundstation/internal/store"
	"github.com/educube/groundstation/internal/telemetry"
)

// Station connects the serial link to the telemetry store and publishers.
type Station struct {
	link       Link
	decoder    *telemetry.Decoder
	store      *store.Store
	publishers []Publisher
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	mu    sync.RWMutex
	stats Stats
}

// New creates a Station. A nil st gets a fresh store.
func New(l Link, decoder *telemetry.Decoder, st *store.Store, logger *slog.Logger) *Station {
	if logger == nil {
		logger = slog.Default()
	}
	if decoder == nil {
		decoder = telemetry.NewDecoder(telemetry.DefaultOptions(), logger)
	}
	if st == nil {
		st = store.New()
	}
	return &Station{
		link:    l,
		decoder: decoder,
		store:   st,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// AddPublisher registers p. Must be called before Start.
func (s *Station) AddPublisher(p Publisher) {
	s.publishers = append(s.publishers, p)
}

// Start begins consuming link lines.
func (s *Station) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.consumeLoop()

	s.logger.Info("station started", "publishers", len(s.publishers))
	return nil
}

// Stop waits for the consume loop to exit.
func (s *Station) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("station stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the station stops consuming, either because it was
// stopped or because the link closed.
func (s *Station) Done() <-chan struct{} {
	return s.done
}

func (s *Station) consumeLoop() {
	defer s.wg.Done()
	defer close(s.done)

	lines := s.link.Lines()
	for {
		select {
		case <-s.ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				s.logger.Warn("serial link closed")
				return
			}
			s.HandleLine(line)
		}
	}
}

// HandleLine parses a telemetry line and publishes the record. Other lines
// were already logged by the link and are ignored.
func (s *Station) HandleLine(line link.Line) {
	if line.Kind != link.KindTelemetry {
		s.mu.Lock()
		s.stats.IgnoredLines++
		s.mu.Unlock()
		return
	}

	rec, err := s.decoder.ParseLine(line.Text, line.ReceivedAt)
	if err != nil {
		s.mu.Lock()
		s.stats.ParseErrors++
		s.mu.Unlock()
		s.logger.Warn("dropping unparseable telemetry", "line", line.Text, "error", err)
		return
	}

	s.store.Put(rec)

	s.mu.Lock()
	s.stats.Records++
	s.stats.LastRecordAt = line.ReceivedAt
	s.mu.Unlock()

	for _, p := range s.publishers {
		p.Publish(rec)
	}
}

// HandleCommand translates req and queues it on the link.
func (s *Station) HandleCommand(ctx context.Context, req protocol.CommandRequest) error {
	cmd, err := command.Translate(req)
	if err != nil {
		s.commandFailed()
		return err
	}
	return s.send(ctx, cmd, slog.LevelInfo)
}

// RequestTelemetry asks board to transmit telemetry.
func (s *Station) RequestTelemetry(ctx context.Context, board string) error {
	cmd, err := command.RequestTelemetry(board)
	if err != nil {
		s.commandFailed()
		return err
	}
	return s.send(ctx, cmd, slog.LevelDebug)
}

func (s *Station) send(ctx context.Context, cmd string, level slog.Level) error {
	if err := ctx.Err(); err != nil {
		s.commandFailed()
		return err
	}

	framed := command.Frame(cmd)
	if err := s.link.Send(framed); err != nil {
		s.commandFailed()
		return fmt.Errorf("send %s: %w", framed, err)
	}

	s.mu.Lock()
	s.stats.Commands++
	s.stats.LastCommandAt = time.Now()
	s.mu.Unlock()

	s.logger.Log(ctx, level, "writing command", "command", framed)
	return nil
}

func (s *Station) commandFailed() {
	s.mu.Lock()
	s.stats.CommandErrors++
	s.mu.Unlock()
}

// Latest returns the latest record for every board.
func (s *Station) Latest() []telemetry.Record {
	return s.store.Snapshot()
}

// NewSince returns records received after cutoff (epoch ms).
func (s *Station) NewSince(cutoff int64) []telemetry.Record {
	return s.store.NewSince(cutoff)
}

// Store returns the station's telemetry store.
func (s *Station) Store() *store.Store {
	return s.store
}

// Stats returns current statistics.
func (s *Station) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
