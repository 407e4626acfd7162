package domain

import (
	"strings"

	"github.com/dunamismax/passportflow/internal/transform"
)

// PhotoArtifact is the photo carried through the wizard.
type PhotoArtifact struct {
	SourceRef    string           `json:"source_ref"`
	SourcePath   string           `json:"source_path,omitempty"`
	PreviewRef   string           `json:"preview_ref"`
	Transform    transform.State  `json:"transform"`
	ProcessedRef string           `json:"processed_ref,omitempty"`
	Result       *ProcessedResult `json:"result,omitempty"`
	SizeSpec     SizeSpec         `json:"size_spec"`
	Background   BackgroundSpec   `json:"background_spec"`
}

// ProcessedResult is the metadata echoed by a successful processing call.
type ProcessedResult struct {
	Filename string   `json:"processed_filename"`
	Path     string   `json:"processed_filepath,omitempty"`
	Size     SizeSpec `json:"size"`
}

func NewPhotoArtifact() PhotoArtifact {
	return PhotoArtifact{
		Transform:  transform.Reset(),
		Background: DefaultBackground(),
	}
}

func (a PhotoArtifact) HasPreview() bool {
	return strings.TrimSpace(a.PreviewRef) != ""
}

func (a PhotoArtifact) HasSource() bool {
	return strings.TrimSpace(a.SourceRef) != ""
}

func (a PhotoArtifact) IsProcessed() bool {
	return strings.TrimSpace(a.ProcessedRef) != ""
}

// Clone returns a copy that shares no pointers with a.
func (a PhotoArtifact) Clone() PhotoArtifact {
	if a.Result != nil {
		r := *a.Result
		a.Result = &r
	}
	return a
}
