package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalTokenBucket keeps one in-process limiter per subject. It is used when
// sessions live in memory and there is a single API replica.
type LocalTokenBucket struct {
	mu       sync.Mutex
	capacity int
	every    rate.Limit
	idle     time.Duration
	buckets  map[string]*localBucket
	now      func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalTokenBucket(capacity int, window time.Duration) (*LocalTokenBucket, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	return &LocalTokenBucket{
		capacity: capacity,
		every:    rate.Limit(float64(capacity) / window.Seconds()),
		idle:     2 * window,
		buckets:  make(map[string]*localBucket),
		now:      time.Now,
	}, nil
}

func (l *LocalTokenBucket) Allow(_ context.Context, subject string, cost int) (Decision, error) {
	cost = normalizeCost(cost)
	if cost > l.capacity {
		return Decision{}, fmt.Errorf("cost %d exceeds bucket capacity %d", cost, l.capacity)
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictLocked(now)
	key := normalizeSubject(subject)
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.every, l.capacity)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, cost) {
		return Decision{
			Allowed:   true,
			Remaining: int64(math.Floor(b.limiter.TokensAt(now))),
		}, nil
	}

	tokens := b.limiter.TokensAt(now)
	missing := float64(cost) - tokens
	retry := time.Duration(math.Ceil(missing/float64(l.every)*1000)) * time.Millisecond
	return Decision{
		Allowed:    false,
		Remaining:  int64(math.Max(0, math.Floor(tokens))),
		RetryAfter: retry,
	}, nil
}

func (l *LocalTokenBucket) evictLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, key)
		}
	}
}
