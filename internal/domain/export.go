package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	ExportStatusQueued    = "queued"
	ExportStatusRunning   = "running"
	ExportStatusSucceeded = "succeeded"
	ExportStatusFailed    = "failed"
)

var CopiesPerSheet = []int{4, 6, 8}

const DefaultCopies = 4

func ValidCopies(n int) bool {
	for _, c := range CopiesPerSheet {
		if c == n {
			return true
		}
	}
	return false
}

type ExportRequest struct {
	SessionID    string `json:"session_id"`
	ProcessedRef string `json:"processed_ref"`
	OutputRef    string `json:"output_ref,omitempty"`
	WebhookURL   string `json:"webhook_url,omitempty"`
}

type ExportedObject struct {
	Ref         string `json:"ref"`
	ObjectKey   string `json:"object_key"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
	URL         string `json:"url,omitempty"`
}

type ExportResult struct {
	ExportID    string           `json:"export_id"`
	SessionID   string           `json:"session_id"`
	Objects     []ExportedObject `json:"objects"`
	CompletedAt time.Time        `json:"completed_at"`
}

func (r ExportRequest) Refs() []string {
	refs := []string{strings.TrimSpace(r.ProcessedRef)}
	if out := strings.TrimSpace(r.OutputRef); out != "" {
		refs = append(refs, out)
	}
	return refs
}

func (r ExportRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return errors.New("session_id is required")
	}
	if strings.TrimSpace(r.ProcessedRef) == "" {
		return errors.New("processed_ref is required; process the photo first")
	}
	if hook := strings.TrimSpace(r.WebhookURL); hook != "" {
		u, err := url.Parse(hook)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("webhook_url must be an absolute http(s) URL")
		}
	}
	return nil
}
