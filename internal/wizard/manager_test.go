package wizard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/preview"
	"github.com/dunamismax/passportflow/internal/processing"
	"github.com/dunamismax/passportflow/internal/processing/processingtest"
	"github.com/dunamismax/passportflow/internal/store"
	"github.com/dunamismax/passportflow/internal/wizard"
	"github.com/rs/zerolog"
)

func newManager(t *testing.T) (*wizard.Manager, *store.MemorySessionStore, *processing.Client, *preview.MemoryCache) {
	t.Helper()
	return newManagerWithClock(t, nil)
}

func newManagerWithClock(t *testing.T, clock func() time.Time) (*wizard.Manager, *store.MemorySessionStore, *processing.Client, *preview.MemoryCache) {
	t.Helper()
	srv := processingtest.NewServer()
	t.Cleanup(srv.Close)

	client, err := processing.NewClient(processing.Config{BaseURL: srv.URL, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	snapshots := store.NewMemorySessionStore()
	previews := preview.NewMemoryCache()
	m, err := wizard.NewManager(snapshots, wizard.Options{Service: client, Previews: previews, Logger: zerolog.Nop(), Clock: clock})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, snapshots, client, previews
}

func TestManagerCreatePersistsSnapshot(t *testing.T) {
	m, snapshots, _, _ := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	state, ok, err := snapshots.Get(ctx, s.ID())
	if err != nil || !ok {
		t.Fatalf("expected persisted snapshot, ok=%v err=%v", ok, err)
	}
	if state.Stage != domain.StageUpload {
		t.Fatalf("expected upload stage, got %s", state.Stage)
	}
	if len(state.Sizes) != 3 {
		t.Fatalf("expected loaded catalog, got %v", state.Sizes.Keys())
	}

	same, err := m.Get(ctx, s.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if same != s {
		t.Fatal("expected live session to be reused")
	}
}

func TestManagerResumesFromStore(t *testing.T) {
	m, snapshots, client, previews := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SelectFile(ctx, jpegUpload(64)); err != nil {
		t.Fatalf("select file: %v", err)
	}
	s.Advance()
	if err := m.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	other, err := wizard.NewManager(snapshots, wizard.Options{Service: client, Previews: previews, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	resumed, err := other.Get(ctx, s.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resumed.Stage() != domain.StageEdit {
		t.Fatalf("expected edit stage, got %s", resumed.Stage())
	}
	if resumed.Artifact().SourceRef != s.Artifact().SourceRef {
		t.Fatal("expected artifact to survive the round trip")
	}
	if _, _, err := resumed.PreviewSource(ctx); err != nil {
		t.Fatalf("expected preview to be reachable from the resumed session: %v", err)
	}
}

func TestManagerDelete(t *testing.T) {
	m, snapshots, _, previews := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SelectFile(ctx, jpegUpload(64)); err != nil {
		t.Fatalf("select file: %v", err)
	}
	if err := m.Delete(ctx, s.ID()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, ok, _ := snapshots.Get(ctx, s.ID()); ok {
		t.Fatal("expected snapshot removed")
	}
	if previews.Len() != 0 {
		t.Fatalf("expected preview released, cache has %d", previews.Len())
	}
	if m.Len() != 0 {
		t.Fatalf("expected no live sessions, got %d", m.Len())
	}
	if _, err := m.Get(ctx, s.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m, snapshots, _, previews := newManagerWithClock(t, func() time.Time { return now })
	ctx := context.Background()

	idle, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := idle.SelectFile(ctx, jpegUpload(64)); err != nil {
		t.Fatalf("select file: %v", err)
	}

	now = now.Add(time.Hour)
	active, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if n := m.EvictIdle(ctx, 30*time.Minute); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if m.Len() != 1 {
		t.Fatalf("expected one live session, got %d", m.Len())
	}
	if previews.Len() != 0 {
		t.Fatalf("expected idle preview released, cache has %d", previews.Len())
	}
	if _, ok, _ := snapshots.Get(ctx, idle.ID()); ok {
		t.Fatal("expected idle snapshot removed")
	}
	if _, err := m.Get(ctx, idle.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected evicted session to be gone, got %v", err)
	}
	if same, err := m.Get(ctx, active.ID()); err != nil || same != active {
		t.Fatalf("expected active session kept, err=%v", err)
	}

	if n := m.EvictIdle(ctx, 0); n != 0 {
		t.Fatalf("expected zero ttl to disable eviction, got %d", n)
	}
}

func TestManagerSaveDropsExpiredSession(t *testing.T) {
	m, snapshots, _, previews := newManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SelectFile(ctx, jpegUpload(64)); err != nil {
		t.Fatalf("select file: %v", err)
	}
	if err := snapshots.Delete(ctx, s.ID()); err != nil {
		t.Fatalf("delete snapshot: %v", err)
	}

	if err := m.Save(ctx, s); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected live entry dropped, got %d", m.Len())
	}
	if previews.Len() != 0 {
		t.Fatalf("expected preview released, cache has %d", previews.Len())
	}
	if _, err := m.Get(ctx, s.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewManagerRequiresDependencies(t *testing.T) {
	if _, err := wizard.NewManager(nil, wizard.Options{}); err == nil {
		t.Fatal("expected missing store to fail")
	}
	if _, err := wizard.NewManager(store.NewMemorySessionStore(), wizard.Options{}); err == nil {
		t.Fatal("expected missing service to fail")
	}
}
