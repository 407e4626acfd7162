package preview

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dunamismax/passportflow/internal/domain"
)

const objectScheme = "object://"

type ObjectStore interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	RemoveObject(ctx context.Context, objectKey string) error
}

// ObjectCache keeps previews in object storage so that any API replica can
// render a session's preview.
type ObjectCache struct {
	store  ObjectStore
	prefix string
}

func NewObjectCache(store ObjectStore, prefix string) (*ObjectCache, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "previews"
	}
	return &ObjectCache{store: store, prefix: prefix}, nil
}

func (c *ObjectCache) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("preview key: %w", domain.ErrEmptyReference)
	}
	if len(data) == 0 {
		return "", ErrEmptySource
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey := path.Join(c.prefix, key)
	if err := c.store.WriteObject(ctx, objectKey, data, contentType); err != nil {
		return "", fmt.Errorf("store preview: %w", err)
	}
	return objectScheme + objectKey, nil
}

func (c *ObjectCache) Get(ctx context.Context, ref string) ([]byte, error) {
	objectKey, err := c.objectKey(ref)
	if err != nil {
		return nil, err
	}
	data, err := c.store.ReadObject(ctx, objectKey)
	if err != nil {
		return nil, fmt.Errorf("load preview: %w", err)
	}
	return data, nil
}

func (c *ObjectCache) Delete(ctx context.Context, ref string) error {
	objectKey, err := c.objectKey(ref)
	if err != nil {
		return nil
	}
	if err := c.store.RemoveObject(ctx, objectKey); err != nil {
		return fmt.Errorf("remove preview: %w", err)
	}
	return nil
}

func (c *ObjectCache) objectKey(ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, objectScheme)
	if !ok || !strings.HasPrefix(key, c.prefix+"/") {
		return "", fmt.Errorf("preview %q: %w", ref, domain.ErrNotFound)
	}
	return key, nil
}
