package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Requester asks a board for telemetry.
type Requester interface {
	RequestTelemetry(ctx context.Context, board string) error
}

// RequesterFunc is a function adapter for Requester.
type RequesterFunc func(ctx context.Context, board string) error

func (f RequesterFunc) RequestTelemetry(ctx context.Context, board string) error {
	return f(ctx, board)
}

// Config holds poller configuration.
type Config struct {
	Boards      []string      // Boards to request (default: CDH, which forwards all)
	Interval    time.Duration // Request interval (default: 5s)
	Concurrency int           // Max concurrent requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 2s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Boards:      []string{"CDH"},
		Interval:    5 * time.Second,
		Concurrency: 4,
		Timeout:     2 * time.Second,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Cycles   int64
	Requests int64
	Errors   int64
	LastRun  time.Time
}

// Poller periodically requests telemetry.
type Poller struct {
	cfg       Config
	requester Requester
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycles   atomic.Int64
	requests atomic.Int64
	errors   atomic.Int64
	lastRun  atomic.Int64 // unix nanos
}

// New creates a new Poller.
func New(cfg Config, requester Requester, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Poller{
		cfg:       cfg,
		requester: requester,
		logger:    logger,
	}
}

// Start begins the request loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("telemetry poller started",
		"boards", p.cfg.Boards,
		"interval", p.cfg.Interval,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("telemetry poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	s := Stats{
		Cycles:   p.cycles.Load(),
		Requests: p.requests.Load(),
		Errors:   p.errors.Load(),
	}
	if ns := p.lastRun.Load(); ns != 0 {
		s.LastRun = time.Unix(0, ns)
	}
	return s
}

// run is the main request loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Request immediately on start.
	p.requestAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.requestAll()
		}
	}
}

// requestAll requests telemetry from every board concurrently.
func (p *Poller) requestAll() {
	start := time.Now()

	if len(p.cfg.Boards) == 0 {
		p.logger.Debug("no boards to poll")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var requested, failed atomic.Int64

	for _, board := range p.cfg.Boards {
		wg.Add(1)
		go func(board string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.request(board); err != nil {
				p.logger.Warn("failed to request telemetry",
					"board", board,
					"err", err,
				)
				failed.Add(1)
				return
			}

			requested.Add(1)
		}(board)
	}

	wg.Wait()

	p.cycles.Add(1)
	p.requests.Add(requested.Load())
	p.errors.Add(failed.Load())
	p.lastRun.Store(start.UnixNano())

	p.logger.Debug("telemetry request cycle complete",
		"boards", len(p.cfg.Boards),
		"requested", requested.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

func (p *Poller) request(board string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()
	return p.requester.RequestTelemetry(ctx, board)
}
