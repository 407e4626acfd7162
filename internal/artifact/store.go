// Package artifact holds the single mutable cell that carries a session's
// photo through the wizard and enforces the invalidation rule: any change to
// an input of the processing call clears the processed result.
package artifact

import (
	"fmt"
	"strings"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/transform"
)

// Inputs is the tuple a processed result was computed from.
type Inputs struct {
	SourceRef  string
	SizeKey    string
	Background domain.BackgroundSpec
	Transform  transform.State
}

// Store is owned by exactly one wizard session and is not safe for
// concurrent use on its own; the session serializes access.
type Store struct {
	current domain.PhotoArtifact
}

func NewStore() *Store {
	return &Store{current: domain.NewPhotoArtifact()}
}

func Restore(a domain.PhotoArtifact) *Store {
	a = a.Clone()
	a.Transform = transform.Normalize(a.Transform)
	if a.Background.Preset == "" {
		a.Background = domain.DefaultBackground()
	}
	if !a.IsProcessed() {
		a.Result = nil
	}
	return &Store{current: a}
}

// SetOriginal records an accepted upload. It clears the processed result and
// resets the transform; size and background selections are kept.
func (s *Store) SetOriginal(ref, sourcePath, previewRef string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("set original: %w", domain.ErrEmptyReference)
	}
	if strings.TrimSpace(previewRef) == "" {
		return fmt.Errorf("set original preview: %w", domain.ErrEmptyReference)
	}
	s.current.SourceRef = ref
	s.current.SourcePath = sourcePath
	s.current.PreviewRef = previewRef
	s.current.Transform = transform.Reset()
	s.invalidate()
	return nil
}

func (s *Store) UpdateTransform(next transform.State) {
	next = transform.Normalize(next)
	if next == s.current.Transform {
		return
	}
	s.current.Transform = next
	s.invalidate()
}

func (s *Store) SetSizeSpec(spec domain.SizeSpec) error {
	if strings.TrimSpace(spec.Key) == "" {
		return fmt.Errorf("set size: %w", domain.ErrUnknownSize)
	}
	if spec == s.current.SizeSpec {
		return nil
	}
	s.current.SizeSpec = spec
	s.invalidate()
	return nil
}

func (s *Store) SetBackgroundSpec(spec domain.BackgroundSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if spec == s.current.Background {
		return nil
	}
	s.current.Background = spec
	s.invalidate()
	return nil
}

// SetProcessed records a successful processing result. The result is only
// accepted if it was computed from the current inputs.
func (s *Store) SetProcessed(from Inputs, result domain.ProcessedResult) error {
	if strings.TrimSpace(result.Filename) == "" {
		return fmt.Errorf("set processed: %w", domain.ErrEmptyReference)
	}
	if from != s.Inputs() {
		return domain.ErrStaleResult
	}
	r := result
	s.current.ProcessedRef = result.Filename
	s.current.Result = &r
	return nil
}

// Inputs returns the tuple the next processing call would be computed from.
func (s *Store) Inputs() Inputs {
	return Inputs{
		SourceRef:  s.current.SourceRef,
		SizeKey:    s.current.SizeSpec.Key,
		Background: s.current.Background,
		Transform:  s.current.Transform,
	}
}

func (s *Store) Current() domain.PhotoArtifact {
	return s.current.Clone()
}

// ResetPhoto clears the upload, transform and result for a restart. Size and
// background selections carry over.
func (s *Store) ResetPhoto() {
	size := s.current.SizeSpec
	bg := s.current.Background
	s.current = domain.NewPhotoArtifact()
	s.current.SizeSpec = size
	s.current.Background = bg
}

func (s *Store) invalidate() {
	s.current.ProcessedRef = ""
	s.current.Result = nil
}
