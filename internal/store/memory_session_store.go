package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dunamismax/passportflow/internal/domain"
)

// MemorySessionStore keeps snapshots as encoded JSON so that callers never
// share memory with the stored value.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string][]byte),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[state.ID]; ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, state.ID)
	}
	s.sessions[state.ID] = raw
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (domain.SessionState, bool, error) {
	s.mu.RLock()
	raw, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return domain.SessionState{}, false, nil
	}

	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, false, fmt.Errorf("unmarshal session: %w", err)
	}
	return state, true, nil
}

func (s *MemorySessionStore) Save(_ context.Context, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[state.ID]; !ok {
		return fmt.Errorf("session %s: %w", state.ID, domain.ErrNotFound)
	}
	s.sessions[state.ID] = raw
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

type MemoryActivityLog struct {
	mu      sync.Mutex
	entries []domain.ActivityLog
	nextID  int64
	now     func() time.Time
}

func NewMemoryActivityLog() *MemoryActivityLog {
	return &MemoryActivityLog{now: time.Now}
}

func (l *MemoryActivityLog) Record(_ context.Context, entry domain.ActivityLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	entry.ID = l.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *MemoryActivityLog) Recent(_ context.Context, limit int) ([]domain.ActivityLog, error) {
	limit = activityLimit(limit)

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.ActivityLog, 0, min(limit, len(l.entries)))
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}
