package store

import (
	"sync"

	"github.com/testbench/inspection-agent/internal/models"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

// ring is a fixed-capacity buffer dropping the oldest entry on overflow.
type ring struct {
	items    []models.Reading
	capacity int
	head     int // next write position
	size     int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{
		items:    make([]models.Reading, capacity),
		capacity: capacity,
	}
}

func (r *ring) append(item models.Reading) {
	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// snapshot returns the entries oldest first.
func (r *ring) snapshot() []models.Reading {
	out := make([]models.Reading, 0, r.size)
	start := (r.head - r.size + r.capacity) % r.capacity
	for i := 0; i < r.size; i++ {
		out = append(out, r.items[(start+i)%r.capacity])
	}
	return out
}

// HistoryStore keeps bounded, per-phase ordered reading buffers plus one
// merged view across phases. Capacity enforcement and read-only snapshots
// only; verdict logic lives with the session controller.
type HistoryStore struct {
	mu       sync.RWMutex
	phases   map[string]*ring
	order    []string
	merged   *ring
	phaseCap int
}

func NewHistoryStore(phaseCapacity, mergedCapacity int) *HistoryStore {
	return &HistoryStore{
		phases:   make(map[string]*ring),
		merged:   newRing(mergedCapacity),
		phaseCap: phaseCapacity,
	}
}

// Append adds a reading to the phase buffer and to the merged view, evicting
// the oldest entries at capacity.
func (s *HistoryStore) Append(phase string, r models.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.phases[phase]
	if !ok {
		buf = newRing(s.phaseCap)
		s.phases[phase] = buf
		s.order = append(s.order, phase)
	}
	buf.append(r)
	s.merged.append(r)
}

// Snapshot returns the readings of one phase, oldest first.
func (s *HistoryStore) Snapshot(phase string) ([]models.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.phases[phase]
	if !ok {
		return nil, srvErrors.NewPhaseNotFoundError(phase)
	}
	return buf.snapshot(), nil
}

// Merged returns the cross-phase view in arrival order.
func (s *HistoryStore) Merged() []models.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.merged.snapshot()
}

// Phases returns the phase names in first-seen order.
func (s *HistoryStore) Phases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Reset drops all buffers. Called when a new session starts.
func (s *HistoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = make(map[string]*ring)
	s.order = nil
	s.merged = newRing(s.merged.capacity)
}
