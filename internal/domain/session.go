package domain

import "time"

// SessionState is the serializable snapshot of one wizard session. In-flight
// request flags are deliberately absent: they never outlive a process.
type SessionState struct {
	ID              string        `json:"id"`
	Stage           Stage         `json:"stage"`
	Artifact        PhotoArtifact `json:"artifact"`
	Sizes           Catalog       `json:"sizes"`
	CatalogDegraded bool          `json:"catalog_degraded"`
	LastError       string        `json:"last_error,omitempty"`
	OutputRef       string        `json:"output_ref,omitempty"`
	Copies          int           `json:"copies"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
