package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TelemetryTable is the table archived records are inserted into.
const TelemetryTable = "telemetry_records"

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS telemetry_records (
		id          UUID        NOT NULL,
		board       TEXT        NOT NULL,
		type        TEXT        NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		telem       TEXT        NOT NULL,
		data        JSONB       NOT NULL,
		PRIMARY KEY (id, received_at)
	)`,
	`CREATE INDEX IF NOT EXISTS telemetry_records_board_time_idx
		ON telemetry_records (board, received_at DESC)`,
}

// hypertable converts the table when the TimescaleDB extension is present.
// Plain PostgreSQL keeps an ordinary table.
const hypertable = `DO $$
BEGIN
	IF EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'timescaledb') THEN
		PERFORM create_hypertable('telemetry_records', 'received_at', if_not_exists => TRUE);
	END IF;
END
$$`

// EnsureSchema creates the telemetry table and its indexes if missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range append(schema, hypertable) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Batcher is satisfied by *pgxpool.Pool and *pgx.Conn.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}
