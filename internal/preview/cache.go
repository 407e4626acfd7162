package preview

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dunamismax/passportflow/internal/domain"
)

// Cache keeps the bytes of uploaded photos for local preview. Put returns
// the reference stored on the artifact as its preview reference.
type Cache interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

const memoryScheme = "mem://"

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("preview key: %w", domain.ErrEmptyReference)
	}
	if len(data) == 0 {
		return "", ErrEmptySource
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	c.mu.Lock()
	c.entries[key] = buf
	c.mu.Unlock()
	return memoryScheme + key, nil
}

func (c *MemoryCache) Get(_ context.Context, ref string) ([]byte, error) {
	key, ok := strings.CutPrefix(ref, memoryScheme)
	if !ok {
		return nil, fmt.Errorf("preview %q: %w", ref, domain.ErrNotFound)
	}

	c.mu.RLock()
	data, found := c.entries[key]
	c.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("preview %q: %w", ref, domain.ErrNotFound)
	}
	return data, nil
}

func (c *MemoryCache) Delete(_ context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, memoryScheme)
	if !ok {
		return nil
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
