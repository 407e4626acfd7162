package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalTokenBucketChargesCost(t *testing.T) {
	l, err := NewLocalTokenBucket(10, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "203.0.113.7", CostUpload)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("expected upload %d to be allowed", i)
		}
	}

	d, err := l.Allow(ctx, "203.0.113.7", CostUpload)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected fourth upload to be limited")
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("expected retry-after, got %s", d.RetryAfter)
	}

	other, _ := l.Allow(ctx, "198.51.100.1", CostEdit)
	if !other.Allowed {
		t.Fatal("expected subjects to have independent buckets")
	}
}

func TestLocalTokenBucketRefills(t *testing.T) {
	l, err := NewLocalTokenBucket(2, time.Second)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	l.Allow(ctx, "s", 2)
	if d, _ := l.Allow(ctx, "s", 1); d.Allowed {
		t.Fatal("expected empty bucket")
	}
	now = now.Add(time.Second)
	if d, _ := l.Allow(ctx, "s", 2); !d.Allowed {
		t.Fatal("expected bucket to refill after the window")
	}
}

func TestLocalTokenBucketRejectsOversizedCost(t *testing.T) {
	l, _ := NewLocalTokenBucket(2, time.Second)
	if _, err := l.Allow(context.Background(), "s", CostOutput); err == nil {
		t.Fatal("expected cost above capacity to fail")
	}
}

func TestNewRedisTokenBucketValidation(t *testing.T) {
	if _, err := NewRedisTokenBucket(nil, 10, time.Minute, ""); err == nil {
		t.Fatal("expected nil client to fail")
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	if _, err := NewRedisTokenBucket(client, 0, time.Minute, ""); err == nil {
		t.Fatal("expected zero capacity to fail")
	}
	l, err := NewRedisTokenBucket(client, 10, time.Minute, "")
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if l.keyPrefix != DefaultKeyPrefix {
		t.Fatalf("expected default prefix, got %q", l.keyPrefix)
	}
	if got := l.key(" 10.0.0.7 "); got != "passportflow:ratelimit:{10.0.0.7}" {
		t.Fatalf("unexpected bucket key %q", got)
	}
	if _, err := l.Allow(context.Background(), "s", 11); err == nil {
		t.Fatal("expected cost above capacity to fail before reaching redis")
	}
}

func TestNormalizeSubject(t *testing.T) {
	if got := normalizeSubject("  "); got != "anonymous" {
		t.Fatalf("expected anonymous, got %q", got)
	}
	if got := normalizeCost(0); got != 1 {
		t.Fatalf("expected minimum cost 1, got %d", got)
	}
}
