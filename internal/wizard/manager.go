package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/id"
	"github.com/dunamismax/passportflow/internal/preview"
	"github.com/rs/zerolog"
)

// SnapshotStore persists session snapshots between requests.
type SnapshotStore interface {
	Create(ctx context.Context, state domain.SessionState) error
	Get(ctx context.Context, id string) (domain.SessionState, bool, error)
	Save(ctx context.Context, state domain.SessionState) error
	Delete(ctx context.Context, id string) error
}

// Manager hosts many sessions for the API. Live sessions stay in memory so
// their locks and in-flight guards are shared by every request; snapshots
// are written through to the store after each change.
type Manager struct {
	mu        sync.Mutex
	live      map[string]*Session
	snapshots SnapshotStore
	template  Options
	logger    zerolog.Logger
}

func NewManager(snapshots SnapshotStore, template Options) (*Manager, error) {
	if snapshots == nil {
		return nil, errors.New("wizard: snapshot store is required")
	}
	if template.Service == nil {
		return nil, errors.New("wizard: processing service is required")
	}
	if template.Previews == nil {
		template.Previews = preview.NewMemoryCache()
	}
	return &Manager{
		live:      make(map[string]*Session),
		snapshots: snapshots,
		template:  template,
		logger:    template.Logger.With().Str("component", "wizard_manager").Logger(),
	}, nil
}

// Create starts a session on the first stage with the size catalog loaded.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	opts := m.template
	opts.ID = id.New()
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	s.LoadSizes(ctx)

	if err := m.snapshots.Create(ctx, s.Snapshot()); err != nil {
		return nil, fmt.Errorf("persist session %s: %w", s.ID(), err)
	}

	m.mu.Lock()
	m.live[s.ID()] = s
	m.mu.Unlock()
	m.logger.Info().Str("session_id", s.ID()).Msg("session created")
	return s, nil
}

func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.live[sessionID]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	state, found, err := m.snapshots.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !found {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}

	opts := m.template
	opts.ID = state.ID
	s, err = Resume(state, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.live[sessionID]; ok {
		return existing, nil
	}
	m.live[sessionID] = s
	return s, nil
}

// Save writes the snapshot through. When the store no longer knows the
// session it has expired there, so the live copy is dropped as well.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	err := m.snapshots.Save(ctx, s.Snapshot())
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		m.drop(ctx, s)
	}
	return fmt.Errorf("persist session %s: %w", s.ID(), err)
}

func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	s, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.live, sessionID)
	m.mu.Unlock()

	if err := s.Close(ctx); err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("release preview failed")
	}
	if err := m.snapshots.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	m.logger.Info().Str("session_id", sessionID).Msg("session deleted")
	return nil
}

// EvictIdle closes live sessions untouched for at least ttl and removes
// their snapshots. Sessions with a request outstanding are kept.
func (m *Manager) EvictIdle(ctx context.Context, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	var idle []*Session
	m.mu.Lock()
	for _, s := range m.live {
		if s.IdleFor() >= ttl && len(s.Busy()) == 0 {
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.drop(ctx, s)
		if err := m.snapshots.Delete(ctx, s.ID()); err != nil {
			m.logger.Warn().Err(err).Str("session_id", s.ID()).Msg("delete idle snapshot failed")
		}
	}
	if len(idle) > 0 {
		m.logger.Info().Int("evicted", len(idle)).Dur("ttl", ttl).Msg("idle sessions evicted")
	}
	return len(idle)
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (m *Manager) RunEviction(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle(ctx, ttl)
		}
	}
}

// drop forgets s if it is still the live entry for its id and releases its
// preview.
func (m *Manager) drop(ctx context.Context, s *Session) {
	m.mu.Lock()
	current, ok := m.live[s.ID()]
	if ok && current == s {
		delete(m.live, s.ID())
	}
	m.mu.Unlock()
	if !ok || current != s {
		return
	}

	if err := s.Close(ctx); err != nil {
		m.logger.Warn().Err(err).Str("session_id", s.ID()).Msg("release preview failed")
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
