package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type memorySession struct {
	values    map[string][]byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Sessions are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
	clock    clockwork.Clock
}

// NewMemoryStore creates an empty in-memory store. A nil clock uses real time.
func NewMemoryStore(ttl time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		clock:    clock,
	}
}

func (s *MemoryStore) Get(_ context.Context, id, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	v, ok := sess.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(_ context.Context, id, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(id)
	if !ok {
		sess = &memorySession{values: make(map[string][]byte)}
		s.sessions[id] = sess
	}
	sess.values[key] = append([]byte(nil), value...)
	sess.expiresAt = s.clock.Now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Sweep removes expired sessions and reports how many were dropped.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	n := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CheckReadiness(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// live returns the session if it exists and has not expired. Callers hold mu.
func (s *MemoryStore) live(id string) (*memorySession, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if !s.clock.Now().Before(sess.expiresAt) {
		delete(s.sessions, id)
		return nil, false
	}
	return sess, true
}
