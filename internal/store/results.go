package store

import (
	"sync"

	"github.com/testbench/inspection-agent/internal/models"
)

// ResultsStore archives finished session records, newest last, evicting the
// oldest record at capacity.
type ResultsStore struct {
	mu       sync.RWMutex
	records  []models.SessionRecord
	capacity int
}

func NewResultsStore(capacity int) *ResultsStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &ResultsStore{capacity: capacity}
}

func (s *ResultsStore) Add(record models.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == s.capacity {
		s.records = s.records[1:]
	}
	s.records = append(s.records, record)
}

func (s *ResultsStore) List() []models.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SessionRecord, len(s.records))
	copy(out, s.records)
	return out
}
