// Package store holds the latest telemetry record for each board.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/educube/groundstation/internal/telemetry"
)

// Store maps a board identifier to the most recent record received for it.
//
// Writes replace a board's entry wholesale; entries are never merged or
// deleted. Readers always observe the latest write.
type Store struct {
	mu      sync.RWMutex
	records map[string]telemetry.Record

	// Stats
	writes     int64
	lastUpdate time.Time
}

// Stats contains store statistics.
type Stats struct {
	Boards     int
	Writes     int64
	LastUpdate time.Time
}

// New creates a Store, optionally seeded with an initial snapshot.
func New(seed ...telemetry.Record) *Store {
	s := &Store{
		records: make(map[string]telemetry.Record, len(telemetry.Boards)),
	}
	for _, r := range seed {
		s.records[r.Board] = r
	}
	return s
}

// Put stores r as the latest record for r.Board.
func (s *Store) Put(r telemetry.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[r.Board] = r
	s.writes++
	s.lastUpdate = time.Now()
}

// Get returns the latest record for board.
func (s *Store) Get(board string) (telemetry.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[board]
	return r, ok
}

// Snapshot returns every stored record ordered by board.
func (s *Store) Snapshot() []telemetry.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]telemetry.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Board < out[j].Board })
	return out
}

// NewSince returns the stored records received strictly after cutoff
// (epoch milliseconds), ordered by board.
func (s *Store) NewSince(cutoff int64) []telemetry.Record {
	var out []telemetry.Record
	for _, r := range s.Snapshot() {
		if r.Time > cutoff {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of boards with a record.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Boards:     len(s.records),
		Writes:     s.writes,
		LastUpdate: s.lastUpdate,
	}
}
