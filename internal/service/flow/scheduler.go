package flow

import (
	"sync"
	"time"
)

// Scheduler runs delayed transitions. A cancelled entry never fires, even if its timer already expired.
type Scheduler struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[uint64]*time.Timer)}
}

// Schedule runs fn after delay and returns its cancel func.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.pending[id] = time.AfterFunc(delay, func() {
		if s.take(id) {
			fn()
		}
	})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t, ok := s.pending[id]; ok {
			t.Stop()
			delete(s.pending, id)
		}
	}
}

func (s *Scheduler) take(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	return true
}

// CancelAll drops every pending entry.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
