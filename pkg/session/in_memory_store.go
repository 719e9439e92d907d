package session

import (
	"context"
	"sync"
	"time"

	"github.com/meshguard/authservice/pkg/clock"
	"github.com/meshguard/authservice/pkg/oidc"
)

type sessionEntry struct {
	tokenResponse *oidc.TokenResponse
	added         time.Time
	lastAccessed  time.Time
}

// InMemoryStore is a Store backed by a mutex protected map.
type InMemoryStore struct {
	clock           clock.Clock
	absoluteTimeout time.Duration
	idleTimeout     time.Duration

	lock     sync.Mutex
	sessions map[string]*sessionEntry
}

// NewInMemoryStore creates a Store that keeps sessions in process
// memory. Sessions do not survive restarts. A zero absolute or idle
// timeout disables the respective expiry policy.
func NewInMemoryStore(clock clock.Clock, absoluteTimeout, idleTimeout time.Duration) *InMemoryStore {
	return &InMemoryStore{
		clock:           clock,
		absoluteTimeout: absoluteTimeout,
		idleTimeout:     idleTimeout,
		sessions:        map[string]*sessionEntry{},
	}
}

func (s *InMemoryStore) hasExpired(entry *sessionEntry, now time.Time) bool {
	if s.absoluteTimeout != 0 && now.Sub(entry.added) > s.absoluteTimeout {
		return true
	}
	return s.idleTimeout != 0 && now.Sub(entry.lastAccessed) > s.idleTimeout
}

func (s *InMemoryStore) Get(ctx context.Context, sessionID string) (*oidc.TokenResponse, error) {
	now := s.clock.Now()
	s.lock.Lock()
	defer s.lock.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if s.hasExpired(entry, now) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	entry.lastAccessed = now
	return entry.tokenResponse, nil
}

func (s *InMemoryStore) Set(ctx context.Context, sessionID string, tokenResponse *oidc.TokenResponse) error {
	now := s.clock.Now()
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sessions[sessionID] = &sessionEntry{
		tokenResponse: tokenResponse,
		added:         now,
		lastAccessed:  now,
	}
	return nil
}

func (s *InMemoryStore) Remove(ctx context.Context, sessionID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// RemoveAllExpired scrubs sessions that have exceeded the absolute or
// idle timeout. It is intended to be called periodically, so that
// sessions of user agents that never return still get released.
func (s *InMemoryStore) RemoveAllExpired() {
	now := s.clock.Now()
	s.lock.Lock()
	defer s.lock.Unlock()
	for sessionID, entry := range s.sessions {
		if s.hasExpired(entry, now) {
			delete(s.sessions, sessionID)
		}
	}
}
