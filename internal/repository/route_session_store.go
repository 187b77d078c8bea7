package repository

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CarbonSense/service-estimation/internal/domain/route"
	"github.com/CarbonSense/service-estimation/internal/platform/domain"
)

// DefaultSessionTTL is how long an untouched route selection survives.
const DefaultSessionTTL = 30 * time.Minute

type sessionEntry struct {
	selection *route.RouteSelection
	expiresAt time.Time
}

// RouteSessionStore keeps route selections in memory. Selections are
// transient per-session state and are never persisted; idle sessions are
// evicted after the TTL.
type RouteSessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[uuid.UUID]*sessionEntry
	now      func() time.Time
}

// NewRouteSessionStore creates a store with the given idle TTL.
func NewRouteSessionStore(ttl time.Duration) *RouteSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RouteSessionStore{
		ttl:      ttl,
		sessions: make(map[uuid.UUID]*sessionEntry),
		now:      time.Now,
	}
}

// Put stores a selection and refreshes its TTL.
func (s *RouteSessionStore) Put(sel *route.RouteSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sel.ID()] = &sessionEntry{
		selection: sel,
		expiresAt: s.now().Add(s.ttl),
	}
}

// Get retrieves a live selection and refreshes its TTL.
func (s *RouteSessionStore) Get(id uuid.UUID) (*route.RouteSelection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, domain.NewNotFoundError("RouteSession", id.String())
	}
	if s.now().After(entry.expiresAt) {
		delete(s.sessions, id)
		return nil, domain.NewNotFoundError("RouteSession", id.String())
	}
	entry.expiresAt = s.now().Add(s.ttl)
	return entry.selection, nil
}

// Delete removes a selection.
func (s *RouteSessionStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports how many live sessions remain, evicting expired ones.
func (s *RouteSessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, id)
		}
	}
	return len(s.sessions)
}
