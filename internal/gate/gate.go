// Package gate decides whether the wizard may move forward from a stage.
// Checks are stateless; expected user states produce a Decision, never an
// error. File pre-checks run before any network call.
package gate

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dunamismax/passportflow/internal/domain"
)

const MaxUploadBytes = 5 * 1024 * 1024

var allowedContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

type FileInfo struct {
	Name        string
	ContentType string
	Size        int64
}

type Decision struct {
	Admitted bool
	Reason   string
}

func Admit() Decision {
	return Decision{Admitted: true}
}

func Reject(reason string) Decision {
	return Decision{Admitted: false, Reason: reason}
}

// ProcessState is what the size stage knows about its latest processing call.
type ProcessState struct {
	LastError string
}

// CheckFile validates a selected file. The content type falls back to the
// file extension when the caller could not provide one.
func CheckFile(f FileInfo) error {
	ct := NormalizeContentType(f.ContentType, f.Name)
	if _, ok := allowedContentTypes[ct]; !ok {
		if ct == "" {
			ct = "unknown"
		}
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedType, ct)
	}
	if f.Size <= 0 {
		return fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}
	if f.Size > MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrFileTooLarge, f.Size, MaxUploadBytes)
	}
	return nil
}

func NormalizeContentType(contentType, name string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct != "" && ct != "application/octet-stream" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			return parsed
		}
		return ct
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return ct
	}
}

// AdmitForward decides whether the wizard may leave stage for stage+1.
func AdmitForward(stage domain.Stage, a domain.PhotoArtifact, ps ProcessState) Decision {
	switch stage {
	case domain.StageUpload:
		if !a.HasPreview() {
			return Reject("Upload a photo to continue")
		}
		return Admit()
	case domain.StageEdit, domain.StageBackground:
		return Admit()
	case domain.StageSize:
		if a.IsProcessed() {
			return Admit()
		}
		if msg := strings.TrimSpace(ps.LastError); msg != "" {
			return Reject(msg)
		}
		return Reject("Process the photo before continuing")
	case domain.StageDownload:
		return Reject("Already at the last step")
	default:
		return Reject(fmt.Sprintf("unknown stage %d", int(stage)))
	}
}

// AdmitBack always admits while there is a previous stage.
func AdmitBack(stage domain.Stage) Decision {
	if stage <= domain.FirstStage {
		return Reject("Already at the first step")
	}
	return Admit()
}
