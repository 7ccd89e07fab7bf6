// Package database provides the TimescaleDB connection pool for archived
// telemetry and the schema the archive writer inserts into.
//
// Records land in a single hypertable keyed by board and receive time:
//
//	telemetry_records(id, board, type, received_at, telem, data)
//
// data holds the decoded record as JSONB, so new telemetry fields need no
// migration.
package database
