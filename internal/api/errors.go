package api

import (
	"errors"
	"net/http"

	"github.com/dunamismax/passportflow/internal/domain"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInFlight), errors.Is(err, domain.ErrStaleResult):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUpload),
		errors.Is(err, domain.ErrProcessing),
		errors.Is(err, domain.ErrOutputGeneration),
		errors.Is(err, domain.ErrCatalogUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error, status int) string {
	switch status {
	case http.StatusNotFound:
		return "session not found"
	case http.StatusConflict:
		if errors.Is(err, domain.ErrInFlight) {
			return "request already in progress"
		}
		return "the photo changed while the request was running"
	case http.StatusInternalServerError:
		return "internal error"
	default:
		return domain.UserMessage(err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := s.logger.Warn()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		event = s.logger.Error()
	}
	event.Err(err).Str("route", routeLabel(r.URL.Path)).Int("status", status).Str("session_id", r.PathValue("id")).Msg("request failed")
	writeJSON(w, status, map[string]string{"error": messageFor(err, status)})
}
