package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/passportflow/internal/ratelimit"
)

type RateLimiter interface {
	Allow(ctx context.Context, subject string, cost int) (ratelimit.Decision, error)
}

// withRateLimit charges every session write against one bucket per client.
// The bucket is shared by all of a client's sessions, so opening new
// sessions does not reset the budget. A failing limiter lets the request
// through.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || !strings.HasPrefix(r.URL.Path, "/v1/sessions") {
			next.ServeHTTP(w, r)
			return
		}

		subject := s.rateLimitSubject(r)
		action := sessionAction(r.URL.Path)
		cost := actionCost(action)

		decision, err := s.rateLimiter.Allow(r.Context(), subject, cost)
		if err != nil {
			s.logger.Warn().Err(err).Str("subject", subject).Str("action", action).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		w.Header().Set("X-RateLimit-Cost", strconv.Itoa(cost))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
		s.metrics.rateLimitRejected.WithLabelValues(routeLabel(r.URL.Path)).Inc()
		s.logger.Info().Str("subject", subject).Str("action", action).Dur("retry_after", decision.RetryAfter).Msg("rate limited")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "Too many requests. Please wait a moment and try again.",
		})
	})
}

// rateLimitSubject prefers the configured client header and falls back to
// the client address.
func (s *Server) rateLimitSubject(r *http.Request) string {
	if s.rateLimitSubjectHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(s.rateLimitSubjectHeader)); v != "" {
			return v
		}
	}
	return clientAddress(r)
}

// actionCost prices actions that reach the processing service above local
// edits.
func actionCost(action string) int {
	switch action {
	case "upload":
		return ratelimit.CostUpload
	case "process":
		return ratelimit.CostProcess
	case "output", "export":
		return ratelimit.CostOutput
	default:
		return ratelimit.CostEdit
	}
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(d.Round(time.Second)/time.Second))
}
