package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dunamismax/passportflow/internal/config"
	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/minio/minio-go/v7"
)

func TestNewClientRequiresBucketAndEndpoint(t *testing.T) {
	if _, err := NewClient(config.StorageConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected missing bucket to fail")
	}
	if _, err := NewClient(config.StorageConfig{Bucket: "passportflow"}); err == nil {
		t.Fatal("expected missing endpoint to fail")
	}

	c, err := NewClient(config.Default().Storage)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.Bucket() != "passportflow" {
		t.Fatalf("unexpected bucket %q", c.Bucket())
	}
}

func TestIsMissing(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{minio.ErrorResponse{Code: "NoSuchKey"}, true},
		{minio.ErrorResponse{Code: "NoSuchObject"}, true},
		{minio.ErrorResponse{Code: "AccessDenied"}, false},
		{errors.New("dial tcp: refused"), false},
	}
	for _, tc := range cases {
		if got := isMissing(tc.err); got != tc.want {
			t.Fatalf("isMissing(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestObjectErrorMapsMissingToNotFound(t *testing.T) {
	c := &Client{bucket: "passportflow"}

	err := c.objectError("get", "previews/s/a.jpg", minio.ErrorResponse{Code: "NoSuchKey"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	cause := fmt.Errorf("connection reset")
	err = c.objectError("read", "previews/s/a.jpg", cause)
	if errors.Is(err, domain.ErrNotFound) || !errors.Is(err, cause) {
		t.Fatalf("expected transport error to pass through, got %v", err)
	}
}

func TestExpirePrefixRequiresPrefix(t *testing.T) {
	c, err := NewClient(config.Default().Storage)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.ExpirePrefix(t.Context(), " / ", 1); err == nil {
		t.Fatal("expected empty prefix to fail before reaching the server")
	}
}
