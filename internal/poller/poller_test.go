package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingRequester counts requests per board.
type recordingRequester struct {
	mu     sync.Mutex
	boards map[string]int
	err    error
}

func (r *recordingRequester) RequestTelemetry(ctx context.Context, board string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.boards == nil {
		r.boards = make(map[string]int)
	}
	r.boards[board]++
	return r.err
}

func (r *recordingRequester) count(board string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.boards[board]
}

func TestPoller_RequestAll(t *testing.T) {
	req := &recordingRequester{}
	cfg := Config{
		Boards:      []string{"CDH", "EPS", "ADC"},
		Interval:    time.Hour, // Long interval, we'll trigger manually.
		Concurrency: 2,
		Timeout:     time.Second,
	}

	p := New(cfg, req, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.ctx = ctx

	p.requestAll()

	for _, b := range cfg.Boards {
		if got := req.count(b); got != 1 {
			t.Errorf("requests for %s = %d, want 1", b, got)
		}
	}

	stats := p.Stats()
	if stats.Cycles != 1 || stats.Requests != 3 || stats.Errors != 0 {
		t.Errorf("Stats = %+v", stats)
	}
	if stats.LastRun.IsZero() {
		t.Error("LastRun not set")
	}
}

func TestPoller_Errors(t *testing.T) {
	req := &recordingRequester{err: errors.New("queue full")}
	p := New(Config{Boards: []string{"CDH"}, Interval: time.Hour, Concurrency: 1, Timeout: time.Second}, req, nil)
	p.ctx = context.Background()

	p.requestAll()

	if stats := p.Stats(); stats.Errors != 1 || stats.Requests != 0 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestPoller_StartStop(t *testing.T) {
	req := &recordingRequester{}

	cfg := Config{
		Boards:      []string{"CDH"},
		Interval:    50 * time.Millisecond,
		Concurrency: 1,
		Timeout:     time.Second,
	}

	p := New(cfg, req, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Immediate request plus at least one tick.
	time.Sleep(80 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := req.count("CDH"); got < 2 {
		t.Errorf("requests = %d, want at least 2", got)
	}

	// No requests after Stop.
	after := req.count("CDH")
	time.Sleep(80 * time.Millisecond)
	if got := req.count("CDH"); got != after {
		t.Errorf("requests after Stop = %d, want %d", got, after)
	}
}

func TestPoller_Concurrency(t *testing.T) {
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32

	req := RequesterFunc(func(ctx context.Context, board string) error {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)

		// Track max concurrent requests.
		for {
			old := maxInFlight.Load()
			if current <= old || maxInFlight.CompareAndSwap(old, current) {
				break
			}
		}

		// Simulate some work.
		time.Sleep(20 * time.Millisecond)
		return nil
	})

	var boards []string
	for i := 0; i < 12; i++ {
		boards = append(boards, "B"+string(rune('A'+i)))
	}

	cfg := Config{
		Boards:      boards,
		Interval:    time.Hour,
		Concurrency: 3, // Limit to 3 concurrent.
		Timeout:     time.Second,
	}

	p := New(cfg, req, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.ctx = ctx

	p.requestAll()

	if got := maxInFlight.Load(); got > 3 {
		t.Errorf("maxInFlight = %d, want <= 3", got)
	}
	if got := p.Stats().Requests; got != 12 {
		t.Errorf("Requests = %d, want 12", got)
	}
}

func TestPoller_RequestTimeout(t *testing.T) {
	req := RequesterFunc(func(ctx context.Context, board string) error {
		<-ctx.Done()
		return ctx.Err()
	})

	p := New(Config{Boards: []string{"CDH"}, Interval: time.Hour, Concurrency: 1, Timeout: 10 * time.Millisecond}, req, nil)
	p.ctx = context.Background()

	start := time.Now()
	p.requestAll()

	if time.Since(start) > time.Second {
		t.Error("request did not time out")
	}
	if got := p.Stats().Errors; got != 1 {
		t.Errorf("Errors = %d, want 1", got)
	}
}
