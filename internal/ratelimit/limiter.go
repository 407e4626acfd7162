package ratelimit

import (
	"context"
	"strings"
	"time"
)

const DefaultKeyPrefix = "passportflow:ratelimit"

// Costs charged per wizard action. Uploads and processing calls hit the
// collaborator and are priced above plain edits.
const (
	CostEdit    = 1
	CostUpload  = 3
	CostProcess = 3
	CostOutput  = 5
)

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, subject string, cost int) (Decision, error)
}

func normalizeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "anonymous"
	}
	return subject
}

func normalizeCost(cost int) int {
	if cost < 1 {
		return 1
	}
	return cost
}
