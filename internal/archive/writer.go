package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/educube/groundstation/internal/database"
	"github.com/educube/groundstation/internal/queue"
	"github.com/educube/groundstation/internal/telemetry"
)

const insertRecord = `
	INSERT INTO telemetry_records (id, board, type, received_at, telem, data)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT DO NOTHING
`

// Writer consumes published records and writes them to telemetry_records.
type Writer struct {
	cfg    Config
	logger *slog.Logger

	// Input from the station
	input *queue.Buffer[telemetry.Record]

	// Database
	db database.Batcher

	// Batching
	batch   []recordRow
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics Metrics
	lastErr error
}

// NewWriter creates a Writer inserting through db.
func NewWriter(cfg Config, db database.Batcher, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	return &Writer{
		cfg:    cfg,
		input:  queue.New[telemetry.Record](min(cfg.BatchSize, cfg.BufferSize), cfg.BufferSize),
		db:     db,
		logger: logger,
		batch:  make([]recordRow, 0, cfg.BatchSize),
	}
}

// Publish queues rec for archiving. It never blocks the station.
func (w *Writer) Publish(rec telemetry.Record) {
	if !w.input.Push(rec) {
		w.logger.Debug("archive closed, dropping record", "board", rec.Board)
	}
}

// Start begins consuming records and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"buffer_size", w.cfg.BufferSize,
	)
	return nil
}

// Stop stops consuming, then writes whatever is still queued.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	if w.cancel != nil {
		w.cancel()
	}
	w.input.Close()

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
		return ctx.Err()
	}

	// Final flush
	for _, rec := range w.input.Drain(0) {
		w.add(rec)
	}
	w.flush(ctx)

	w.logger.Info("archive writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	m := w.metrics
	w.batchMu.Unlock()

	m.Dropped = w.input.Stats().Dropped
	return m
}

// Healthy returns the error of the last flush, if it failed.
func (w *Writer) Healthy() error {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.lastErr
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		rec, ok := w.input.Pop(w.ctx)
		if !ok {
			return
		}
		full := w.add(rec)
		if w.ctx.Err() != nil {
			// Stop flushes what is left.
			return
		}
		if full {
			w.flush(w.ctx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// add transforms rec and appends it to the batch. It reports whether the
// batch is full.
func (w *Writer) add(rec telemetry.Record) bool {
	row, err := transform(rec)
	if err != nil {
		w.logger.Warn("dropping unarchivable record", "board", rec.Board, "error", err)
		return false
	}

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts a record to a row.
func transform(rec telemetry.Record) (recordRow, error) {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return recordRow{}, fmt.Errorf("marshal data: %w", err)
	}

	typ := rec.Type
	if typ == "" {
		typ = telemetry.RecordType
	}

	return recordRow{
		ID:         uuid.New(),
		Board:      rec.Board,
		Type:       typ,
		ReceivedAt: rec.ReceivedAt().UTC(),
		Telem:      rec.Telem,
		Data:       data,
	}, nil
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]recordRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.lastErr = err
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.metrics.LastFlush = time.Now()
	w.lastErr = nil
	w.batchMu.Unlock()

	w.logger.Debug("flushed telemetry records",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []recordRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertRecord, r.ID, r.Board, r.Type, r.ReceivedAt, r.Telem, r.Data)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
