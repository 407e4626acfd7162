// Package wizard drives one passport photo through the five stages: upload,
// edit, background, size and processing, download. A Session is the single
// writer of its artifact; every exported method is safe to call from
// concurrent request handlers and serializes on the session lock. Network
// calls run with the lock released, and their results are applied only if
// the inputs they were computed from are still current.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dunamismax/passportflow/internal/artifact"
	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/gate"
	"github.com/dunamismax/passportflow/internal/preview"
	"github.com/dunamismax/passportflow/internal/processing"
	"github.com/rs/zerolog"
)

var ErrNoPhoto = fmt.Errorf("%w: no photo uploaded", domain.ErrInvalidInput)

// Service is the part of the processing client a session needs.
type Service interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (processing.UploadResult, error)
	CatalogOrFallback(ctx context.Context) (domain.Catalog, bool)
	Process(ctx context.Context, req processing.ProcessRequest) (domain.ProcessedResult, error)
	RequestMultiCopyOutput(ctx context.Context, refs []string, copies int) (string, error)
}

type Options struct {
	ID       string
	Service  Service
	Previews preview.Cache
	// NoWatermark is reserved for the premium tier. The free tier always
	// asks the service for a watermark.
	NoWatermark bool
	Logger      zerolog.Logger
	Clock       func() time.Time
}

type Session struct {
	mu sync.Mutex

	id              string
	stage           domain.Stage
	store           *artifact.Store
	sizes           domain.Catalog
	catalogDegraded bool
	lastError       string
	errorInputs     artifact.Inputs
	outputRef       string
	copies          int
	createdAt       time.Time
	updatedAt       time.Time
	// epoch changes on Restart so that uploads started before the restart
	// are dropped when they land.
	epoch uint64

	service   Service
	previews  preview.Cache
	inflight  *processing.InFlight
	watermark bool
	logger    zerolog.Logger
	now       func() time.Time
}

func New(opts Options) (*Session, error) {
	if opts.Service == nil {
		return nil, errors.New("wizard: processing service is required")
	}
	if strings.TrimSpace(opts.ID) == "" {
		return nil, errors.New("wizard: session id is required")
	}

	s := newSession(opts)
	s.stage = domain.FirstStage
	s.store = artifact.NewStore()
	if us, ok := domain.FallbackCatalog().Lookup(domain.DefaultSizeKey); ok {
		_ = s.store.SetSizeSpec(us)
	}
	s.copies = domain.DefaultCopies
	s.createdAt = s.now()
	s.updatedAt = s.createdAt
	return s, nil
}

// Resume rebuilds a session from a persisted snapshot. In-flight state is
// never persisted, so a resumed session starts idle.
func Resume(state domain.SessionState, opts Options) (*Session, error) {
	if opts.ID == "" {
		opts.ID = state.ID
	}
	if opts.Service == nil {
		return nil, errors.New("wizard: processing service is required")
	}
	if strings.TrimSpace(opts.ID) == "" {
		return nil, errors.New("wizard: session id is required")
	}
	if !state.Stage.Valid() {
		return nil, fmt.Errorf("wizard: invalid stage %d in snapshot", state.Stage)
	}

	s := newSession(opts)
	s.stage = state.Stage
	s.store = artifact.Restore(state.Artifact)
	s.sizes = append(domain.Catalog(nil), state.Sizes...)
	s.catalogDegraded = state.CatalogDegraded
	s.lastError = state.LastError
	s.errorInputs = s.store.Inputs()
	s.outputRef = state.OutputRef
	s.copies = state.Copies
	if !domain.ValidCopies(s.copies) {
		s.copies = domain.DefaultCopies
	}
	if !s.store.Current().IsProcessed() {
		s.outputRef = ""
	}
	s.createdAt = state.CreatedAt
	s.updatedAt = state.UpdatedAt
	return s, nil
}

func newSession(opts Options) *Session {
	previews := opts.Previews
	if previews == nil {
		previews = preview.NewMemoryCache()
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Session{
		id:        opts.ID,
		service:   opts.Service,
		previews:  previews,
		inflight:  processing.NewInFlight(),
		watermark: !opts.NoWatermark,
		logger:    opts.Logger.With().Str("component", "wizard").Str("session_id", opts.ID).Logger(),
		now:       clock,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Stage() domain.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

func (s *Session) Artifact() domain.PhotoArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Current()
}

func (s *Session) Sizes() (domain.Catalog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalogLocked(), s.catalogDegraded
}

func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Session) OutputRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputRef
}

func (s *Session) Busy() []processing.Action {
	return s.inflight.Active()
}

// IdleFor is the time since the session last changed.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.updatedAt)
}

func (s *Session) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionState{
		ID:              s.id,
		Stage:           s.stage,
		Artifact:        s.store.Current(),
		Sizes:           append(domain.Catalog(nil), s.sizes...),
		CatalogDegraded: s.catalogDegraded,
		LastError:       s.lastError,
		OutputRef:       s.outputRef,
		Copies:          s.copies,
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.updatedAt,
	}
}

// Advance moves one stage forward if the gate admits it. A rejection leaves
// the session untouched and carries the reason.
func (s *Session) Advance() gate.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := gate.AdmitForward(s.stage, s.store.Current(), gate.ProcessState{LastError: s.lastError})
	if !d.Admitted {
		s.logger.Debug().Str("stage", s.stage.String()).Str("reason", d.Reason).Msg("advance rejected")
		return d
	}
	s.stage++
	s.touch()
	s.logger.Debug().Str("stage", s.stage.String()).Msg("advanced")
	return d
}

// Retreat moves one stage back. It never touches the artifact.
func (s *Session) Retreat() gate.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := gate.AdmitBack(s.stage)
	if d.Admitted {
		s.stage--
		s.touch()
	}
	return d
}

// Restart clears the photo and returns to the first stage. Size and
// background selections carry over, as do the loaded sizes.
func (s *Session) Restart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref := s.store.Current().PreviewRef; ref != "" {
		if err := s.previews.Delete(ctx, ref); err != nil {
			s.logger.Warn().Err(err).Str("preview_ref", ref).Msg("drop preview failed")
		}
	}
	s.epoch++
	s.store.ResetPhoto()
	s.stage = domain.FirstStage
	s.lastError = ""
	s.outputRef = ""
	s.copies = domain.DefaultCopies
	s.touch()
	s.logger.Info().Msg("session restarted")
}

// Close releases the cached preview. The session must not be used after.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := s.store.Current().PreviewRef
	if ref == "" {
		return nil
	}
	return s.previews.Delete(ctx, ref)
}

func (s *Session) catalogLocked() domain.Catalog {
	if len(s.sizes) == 0 {
		return domain.FallbackCatalog()
	}
	return append(domain.Catalog(nil), s.sizes...)
}

// settle clears results that depend on a processed photo once it is gone,
// and an error reported for inputs that have since changed.
func (s *Session) settle() {
	if !s.store.Current().IsProcessed() {
		s.outputRef = ""
	}
	if s.lastError != "" && s.errorInputs != s.store.Inputs() {
		s.lastError = ""
	}
	s.touch()
}

func (s *Session) setError(msg string) {
	s.lastError = msg
	s.errorInputs = s.store.Inputs()
	s.touch()
}

func (s *Session) touch() {
	s.updatedAt = s.now()
}
