// Package api hosts wizard sessions over HTTP for a thin UI. Every request
// operates on exactly one session; the session lock serializes writers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/preview"
	"github.com/dunamismax/passportflow/internal/queue"
	"github.com/dunamismax/passportflow/internal/wizard"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger                 zerolog.Logger
	sessions               *wizard.Manager
	renderer               preview.Renderer
	previewMaxEdge         int
	exports                exportEnqueuer
	activity               activityLog
	rateLimiter            RateLimiter
	rateLimitSubjectHeader string
	metrics                *metrics
	tracer                 trace.Tracer
	mux                    *http.ServeMux
}

type exportEnqueuer interface {
	EnqueueExport(ctx context.Context, payload queue.ExportPayload) (*asynq.TaskInfo, error)
	Queue() string
}

type activityLog interface {
	Record(ctx context.Context, entry domain.ActivityLog) error
	Recent(ctx context.Context, limit int) ([]domain.ActivityLog, error)
}

type Options struct {
	Logger   zerolog.Logger
	Sessions *wizard.Manager
	Renderer preview.Renderer
	// PreviewMaxEdge bounds rendered previews. Zero means preview.DefaultMaxEdge.
	PreviewMaxEdge int
	// Exports and Activity are optional; without them the export and
	// activity routes answer 503.
	Exports         exportEnqueuer
	Activity        activityLog
	RateLimiter     RateLimiter
	RateLimitHeader string
	Registry        *prometheus.Registry
}

func NewServer(opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	renderer := opts.Renderer
	if renderer == nil {
		r, err := preview.NewRenderer()
		if err != nil {
			return nil, fmt.Errorf("initialize preview renderer: %w", err)
		}
		renderer = r
	}

	s := &Server{
		logger:                 opts.Logger.With().Str("component", "api").Logger(),
		sessions:               opts.Sessions,
		renderer:               renderer,
		previewMaxEdge:         opts.PreviewMaxEdge,
		exports:                opts.Exports,
		activity:               opts.Activity,
		rateLimiter:            opts.RateLimiter,
		rateLimitSubjectHeader: opts.RateLimitHeader,
		metrics:                newMetrics(opts.Registry),
		tracer:                 otel.Tracer("passportflow/api"),
		mux:                    http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /v1/activity", s.handleActivity)

	s.mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /v1/sessions/{id}/upload", s.handleUpload)
	s.mux.HandleFunc("POST /v1/sessions/{id}/transform", s.handleTransform)
	s.mux.HandleFunc("PUT /v1/sessions/{id}/background", s.handleBackground)
	s.mux.HandleFunc("PUT /v1/sessions/{id}/size", s.handleSize)
	s.mux.HandleFunc("POST /v1/sessions/{id}/process", s.handleProcess)
	s.mux.HandleFunc("POST /v1/sessions/{id}/output", s.handleOutput)
	s.mux.HandleFunc("POST /v1/sessions/{id}/export", s.handleExport)
	s.mux.HandleFunc("POST /v1/sessions/{id}/advance", s.handleAdvance)
	s.mux.HandleFunc("POST /v1/sessions/{id}/retreat", s.handleRetreat)
	s.mux.HandleFunc("POST /v1/sessions/{id}/restart", s.handleRestart)
	s.mux.HandleFunc("GET /v1/sessions/{id}/preview", s.handlePreview)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "activity log is not configured"})
		return
	}
	entries, err := s.activity.Recent(r.Context(), 0)
	if err != nil {
		s.logger.Error().Err(err).Msg("list activity failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load activity"})
		return
	}
	if entries == nil {
		entries = []domain.ActivityLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

// session loads the session named in the path, writing the error response
// itself when it cannot.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

// persist writes the session snapshot through. Live sessions are
// authoritative, so a failed write is logged and the request still succeeds.
func (s *Server) persist(ctx context.Context, sess *wizard.Session) {
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID()).Msg("persist session failed")
	}
}

func (s *Server) record(r *http.Request, sessionID, action, filename string) {
	if s.activity == nil {
		return
	}
	entry := domain.ActivityLog{
		SessionID: sessionID,
		Action:    action,
		Filename:  filename,
		IPAddress: clientAddress(r),
	}
	if err := s.activity.Record(r.Context(), entry); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Str("action", action).Msg("activity log write failed")
	}
}

func clientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidInput, err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: multiple JSON values are not allowed", domain.ErrInvalidInput)
	}
	return nil
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON(r *http.Request, into any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decodeJSON(r, into)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
