// Package archive persists telemetry records to TimescaleDB.
//
// The Writer is a station publisher: records are queued in a growable buffer
// and written with pgx batches, flushed when the batch fills or on a timer,
// whichever comes first. Inserts are append-only.
package archive
