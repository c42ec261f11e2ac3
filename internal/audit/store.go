package audit

import (
	"sync"
	"time"
)

const (
	defaultCapacity = 1000
	defaultListSize = 50
)

// Entry is one filter decision.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	SignalID  string    `json:"signalId"`
	Source    string    `json:"source,omitempty"`
	Filter    string    `json:"filter"`
	Allowed   bool      `json:"allowed"`
	TraceID   string    `json:"traceId,omitempty"`
}

// Store keeps the most recent decisions in memory, dropping the oldest once
// capacity is reached.
type Store struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	allowed  int64
	rejected int64
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Store{
		capacity: capacity,
		entries:  make([]Entry, 0, min(capacity, 200)),
	}
}

func (s *Store) Add(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Allowed {
		s.allowed++
	} else {
		s.rejected++
	}
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.capacity {
		s.entries = s.entries[len(s.entries)-s.capacity:]
	}
}

// List returns up to limit entries, newest first.
func (s *Store) List(limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = defaultListSize
	}
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	start := len(s.entries) - limit
	result := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= start; i-- {
		result = append(result, s.entries[i])
	}
	return result
}

// Totals returns how many allowed and rejected decisions were ever added,
// including entries already dropped.
func (s *Store) Totals() (allowed, rejected int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.allowed, s.rejected
}
