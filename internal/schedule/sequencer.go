package schedule

import "sync"

// Sequencer hands out monotonically increasing tickets for async requests
// against a single state slot. A completion is accepted only if it carries
// the most recently issued ticket, so responses arriving out of order cannot
// overwrite newer state.
type Sequencer struct {
	mu     sync.Mutex
	issued uint64
}

// Next issues a new ticket, invalidating all previously issued ones.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Accept reports whether a completion with the given ticket is still
// current.
func (s *Sequencer) Accept(ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ticket == s.issued
}
