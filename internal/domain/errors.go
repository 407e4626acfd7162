package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUpload             = errors.New("upload failed")
	ErrProcessing         = errors.New("processing failed")
	ErrOutputGeneration   = errors.New("output generation failed")
	ErrCatalogUnavailable = errors.New("size catalog unavailable")
	ErrInFlight           = errors.New("request already in flight")
	ErrStaleResult        = errors.New("result computed from superseded inputs")
	ErrNotFound           = errors.New("not found")
)

var (
	ErrUnsupportedType = fmt.Errorf("%w: unsupported file type", ErrInvalidInput)
	ErrFileTooLarge    = fmt.Errorf("%w: file too large", ErrInvalidInput)
	ErrEmptyReference  = fmt.Errorf("%w: empty reference", ErrInvalidInput)
	ErrUnknownSize     = fmt.Errorf("%w: unknown size", ErrInvalidInput)
	ErrInvalidColor    = fmt.Errorf("%w: invalid background", ErrInvalidInput)
	ErrInvalidCopies   = fmt.Errorf("%w: invalid copies per sheet", ErrInvalidInput)
)

// Error tags a failure with one of the markers above and carries the short
// message shown to the user on the current stage.
type Error struct {
	Marker  error
	Op      string
	Message string
	Err     error
}

// Wrap builds a tagged error. A nil marker defaults to ErrInvalidInput.
func Wrap(marker error, op, message string, err error) error {
	if marker == nil {
		marker = ErrInvalidInput
	}
	return &Error{Marker: marker, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message), Err: err}
}

func (e *Error) Error() string {
	parts := make([]string, 0, 4)
	parts = append(parts, e.Marker.Error())
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// UserMessage returns the message to attach to the current stage.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) && tagged.Message != "" {
		return tagged.Message
	}
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return "Please upload a JPG or PNG image"
	case errors.Is(err, ErrFileTooLarge):
		return "File size must be less than 5MB"
	case errors.Is(err, ErrUpload):
		return "Failed to upload image. Please try again."
	case errors.Is(err, ErrProcessing):
		return "Failed to process image. Please try again."
	case errors.Is(err, ErrOutputGeneration):
		return "Failed to generate PDF. Please try again."
	default:
		return err.Error()
	}
}
