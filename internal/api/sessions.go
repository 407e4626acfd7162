package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/gate"
	"github.com/dunamismax/passportflow/internal/id"
	"github.com/dunamismax/passportflow/internal/preview"
	"github.com/dunamismax/passportflow/internal/queue"
	"github.com/dunamismax/passportflow/internal/wizard"
)

// multipart overhead allowed on top of the photo itself
const uploadSlack = 64 << 10

type transformRequest struct {
	Op         string   `json:"op"`
	Zoom       *float64 `json:"zoom,omitempty"`
	Brightness *int     `json:"brightness,omitempty"`
	Contrast   *int     `json:"contrast,omitempty"`
}

type backgroundRequest struct {
	Preset string `json:"preset,omitempty"`
	Color  string `json:"color,omitempty"`
}

type sizeRequest struct {
	Key string `json:"key"`
}

type outputRequest struct {
	Copies int `json:"copies"`
}

type exportRequest struct {
	WebhookURL string `json:"webhook_url,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, gate.MaxUploadBytes+uploadSlack)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, domain.ErrFileTooLarge)
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidInput))
		return
	}
	defer file.Close()

	// one byte past the limit is enough for the size check to reject it
	data, err := io.ReadAll(io.LimitReader(file, gate.MaxUploadBytes+1))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: read upload: %v", domain.ErrInvalidInput, err))
		return
	}

	err = sess.SelectFile(r.Context(), wizard.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	s.persist(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.record(r, sess.ID(), domain.ActivityUpload, sess.Artifact().SourceRef)
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req transformRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var err error
	switch req.Op {
	case "zoom_in":
		_, err = sess.ZoomIn()
	case "zoom_out":
		_, err = sess.ZoomOut()
	case "rotate_left":
		_, err = sess.RotateLeft()
	case "rotate_right":
		_, err = sess.RotateRight()
	case "reset":
		_, err = sess.ResetTransform()
	case "set":
		err = applySet(sess, req)
	default:
		err = fmt.Errorf("%w: unknown transform op %q", domain.ErrInvalidInput, req.Op)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

// applySet commits every provided field in one write.
func applySet(sess *wizard.Session, req transformRequest) error {
	if req.Zoom == nil && req.Brightness == nil && req.Contrast == nil {
		return fmt.Errorf("%w: set needs zoom, brightness or contrast", domain.ErrInvalidInput)
	}
	draft := sess.BeginEdit()
	if req.Zoom != nil {
		draft.SetZoom(*req.Zoom)
	}
	if req.Brightness != nil {
		draft.SetBrightness(*req.Brightness)
	}
	if req.Contrast != nil {
		draft.SetContrast(*req.Contrast)
	}
	_, err := draft.Commit()
	return err
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req backgroundRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		spec domain.BackgroundSpec
		err  error
	)
	if req.Color != "" {
		spec, err = domain.CustomBackground(req.Color)
	} else {
		spec, err = domain.ParseBackground(req.Preset)
	}
	if err == nil {
		err = sess.SelectBackground(spec)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleSize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req sizeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.SelectSize(req.Key); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	err := sess.Process(r.Context())
	if !errors.Is(err, domain.ErrInFlight) {
		s.persist(r.Context(), sess)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.record(r, sess.ID(), domain.ActivityProcess, sess.Artifact().ProcessedRef)
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req outputRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Copies == 0 {
		req.Copies = domain.DefaultCopies
	}

	ref, err := sess.RequestOutput(r.Context(), req.Copies)
	if !errors.Is(err, domain.ErrInFlight) {
		s.persist(r.Context(), sess)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.record(r, sess.ID(), domain.ActivityOutput, ref)
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "export queue is not configured"})
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var body exportRequest
	if err := decodeOptionalJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := sess.ExportRequest(body.WebhookURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	payload := queue.ExportPayload{
		ExportID:    id.New(),
		Request:     req,
		RequestedAt: time.Now().UTC(),
	}
	info, err := s.exports.EnqueueExport(r.Context(), payload)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID()).Msg("enqueue export failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue export"})
		return
	}
	s.metrics.exportsEnqueued.WithLabelValues(info.Queue).Inc()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"export_id":   payload.ExportID,
		"session_id":  sess.ID(),
		"status":      domain.ExportStatusQueued,
		"queue":       info.Queue,
		"task_id":     info.ID,
		"state":       info.State.String(),
		"enqueued_at": info.NextProcessAt,
		"refs":        req.Refs(),
	})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if d := sess.Advance(); !d.Admitted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": d.Reason})
		return
	}
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleRetreat(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if d := sess.Retreat(); !d.Admitted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": d.Reason})
		return
	}
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Restart(r.Context())
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	src, state, err := sess.PreviewSource(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := preview.Render(r.Context(), s.renderer, src, state, preview.Options{
		MaxEdge: s.previewMaxEdge,
		Format:  "png",
	})
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID()).Msg("render preview failed")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "preview could not be rendered"})
		return
	}

	w.Header().Set("Content-Type", out.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}
