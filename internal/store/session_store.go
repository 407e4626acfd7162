package store

import (
	"context"
	"errors"

	"github.com/dunamismax/passportflow/internal/domain"
)

var ErrSessionExists = errors.New("session already exists")

type SessionStore interface {
	Create(ctx context.Context, state domain.SessionState) error
	Get(ctx context.Context, id string) (domain.SessionState, bool, error)
	Save(ctx context.Context, state domain.SessionState) error
	Delete(ctx context.Context, id string) error
}

type ActivityLog interface {
	Record(ctx context.Context, entry domain.ActivityLog) error
	Recent(ctx context.Context, limit int) ([]domain.ActivityLog, error)
}

const DefaultActivityLimit = 50

func activityLimit(limit int) int {
	if limit <= 0 || limit > DefaultActivityLimit {
		return DefaultActivityLimit
	}
	return limit
}
