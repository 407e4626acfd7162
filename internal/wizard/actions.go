package wizard

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/gate"
	"github.com/dunamismax/passportflow/internal/processing"
	"github.com/dunamismax/passportflow/internal/transform"
)

// Upload is a file chosen by the user.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// LoadSizes fetches the size catalog, falling back to the built-in sizes
// when the service cannot provide one, and selects the first entry.
func (s *Session) LoadSizes(ctx context.Context) domain.Catalog {
	done, err := s.inflight.Begin(processing.ActionCatalog)
	if err != nil {
		return s.mustSizes()
	}
	catalog, degraded := s.service.CatalogOrFallback(ctx)
	done()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = catalog
	s.catalogDegraded = degraded
	if first, ok := catalog.First(); ok {
		_ = s.store.SetSizeSpec(first)
	}
	s.settle()
	s.logger.Debug().Strs("sizes", catalog.Keys()).Bool("fallback", degraded).Msg("size catalog loaded")
	return append(domain.Catalog(nil), catalog...)
}

func (s *Session) mustSizes() domain.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalogLocked()
}

// SelectFile checks the file locally, uploads it, and on success makes it
// the session's photo with a reset transform. Local rejections never reach
// the service; failed uploads leave the current photo in place.
func (s *Session) SelectFile(ctx context.Context, up Upload) error {
	info := gate.FileInfo{Name: up.Name, ContentType: up.ContentType, Size: int64(len(up.Data))}
	if err := gate.CheckFile(info); err != nil {
		s.fail(err)
		return err
	}

	done, err := s.inflight.Begin(processing.ActionUpload)
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	contentType := gate.NormalizeContentType(up.ContentType, up.Name)
	res, err := s.service.Upload(ctx, path.Base(up.Name), contentType, up.Data)
	if err != nil {
		s.fail(err)
		return err
	}

	previewRef, err := s.previews.Put(ctx, s.id+"/"+res.Filename, up.Data, contentType)
	if err != nil {
		err = domain.Wrap(domain.ErrUpload, "cache preview", "Failed to upload image. Please try again.", err)
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		_ = s.previews.Delete(ctx, previewRef)
		return fmt.Errorf("upload %s: %w", res.Filename, domain.ErrStaleResult)
	}

	old := s.store.Current().PreviewRef
	if err := s.store.SetOriginal(res.Filename, res.Filepath, previewRef); err != nil {
		return err
	}
	if old != "" && old != previewRef {
		if err := s.previews.Delete(ctx, old); err != nil {
			s.logger.Warn().Err(err).Str("preview_ref", old).Msg("drop replaced preview failed")
		}
	}
	s.lastError = ""
	s.settle()
	s.logger.Info().Str("source_ref", res.Filename).Int("bytes", len(up.Data)).Msg("photo uploaded")
	return nil
}

func (s *Session) SelectSize(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec, ok := s.catalogLocked().Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSize, key)
	}
	if err := s.store.SetSizeSpec(spec); err != nil {
		return err
	}
	s.settle()
	return nil
}

func (s *Session) SelectBackground(spec domain.BackgroundSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetBackgroundSpec(spec); err != nil {
		return err
	}
	s.settle()
	return nil
}

// Process asks the service to process the photo with the current size and
// background. A second call while one is outstanding fails with
// domain.ErrInFlight and sends nothing.
func (s *Session) Process(ctx context.Context) error {
	s.mu.Lock()
	current := s.store.Current()
	if !current.HasSource() {
		s.mu.Unlock()
		return ErrNoPhoto
	}
	if current.SizeSpec.IsZero() {
		s.mu.Unlock()
		return domain.ErrUnknownSize
	}
	done, err := s.inflight.Begin(processing.ActionProcess)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	defer done()
	inputs := s.store.Inputs()
	s.mu.Unlock()

	result, err := s.service.Process(ctx, processing.ProcessRequest{
		SourceRef:  inputs.SourceRef,
		SizeKey:    inputs.SizeKey,
		Background: inputs.Background,
		Watermark:  s.watermark,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if inputs == s.store.Inputs() {
			s.setError(domain.UserMessage(err))
		}
		return err
	}
	if err := s.store.SetProcessed(inputs, result); err != nil {
		if errors.Is(err, domain.ErrStaleResult) {
			s.logger.Info().Str("processed_ref", result.Filename).Msg("discarding result for superseded inputs")
		}
		return err
	}
	s.lastError = ""
	s.outputRef = ""
	s.touch()
	s.logger.Info().Str("processed_ref", result.Filename).Str("size", inputs.SizeKey).Msg("photo processed")
	return nil
}

// RequestOutput asks for a sheet with copies prints of the processed photo.
func (s *Session) RequestOutput(ctx context.Context, copies int) (string, error) {
	if !domain.ValidCopies(copies) {
		return "", fmt.Errorf("%w: %d", domain.ErrInvalidCopies, copies)
	}

	s.mu.Lock()
	processed := s.store.Current().ProcessedRef
	if processed == "" {
		s.mu.Unlock()
		return "", fmt.Errorf("output sheet: %w", domain.ErrEmptyReference)
	}
	done, err := s.inflight.Begin(processing.ActionOutput)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	defer done()
	s.mu.Unlock()

	ref, err := s.service.RequestMultiCopyOutput(ctx, []string{processed}, copies)

	s.mu.Lock()
	defer s.mu.Unlock()
	stale := s.store.Current().ProcessedRef != processed
	if err != nil {
		if !stale {
			s.setError(domain.UserMessage(err))
		}
		return "", err
	}
	if stale {
		return "", fmt.Errorf("output sheet %s: %w", ref, domain.ErrStaleResult)
	}
	s.outputRef = ref
	s.copies = copies
	s.lastError = ""
	s.touch()
	s.logger.Info().Str("output_ref", ref).Int("copies", copies).Msg("output sheet generated")
	return ref, nil
}

// PreviewSource returns the bytes of the uploaded photo and the transform to
// render it with.
func (s *Session) PreviewSource(ctx context.Context) ([]byte, transform.State, error) {
	s.mu.Lock()
	current := s.store.Current()
	s.mu.Unlock()

	if !current.HasPreview() {
		return nil, transform.State{}, ErrNoPhoto
	}
	data, err := s.previews.Get(ctx, current.PreviewRef)
	if err != nil {
		return nil, transform.State{}, fmt.Errorf("load preview %s: %w", current.PreviewRef, err)
	}
	return data, current.Transform, nil
}

func (s *Session) fail(err error) {
	msg := domain.UserMessage(err)
	if strings.TrimSpace(msg) == "" {
		return
	}
	s.mu.Lock()
	s.setError(msg)
	s.mu.Unlock()
}

// ExportRequest describes the session's finished files for the export
// worker. The photo must be processed; the sheet is included when one was
// generated from the current processed photo.
func (s *Session) ExportRequest(webhookURL string) (domain.ExportRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.store.Current()
	if !current.IsProcessed() {
		return domain.ExportRequest{}, fmt.Errorf("export: %w", domain.ErrEmptyReference)
	}
	req := domain.ExportRequest{
		SessionID:    s.id,
		ProcessedRef: current.ProcessedRef,
		OutputRef:    s.outputRef,
		WebhookURL:   strings.TrimSpace(webhookURL),
	}
	if err := req.Validate(); err != nil {
		return domain.ExportRequest{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return req, nil
}
