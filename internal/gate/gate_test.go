package gate

import (
	"errors"
	"testing"

	"github.com/dunamismax/passportflow/internal/domain"
)

func TestCheckFile(t *testing.T) {
	cases := []struct {
		name string
		file FileInfo
		want error
	}{
		{name: "jpeg", file: FileInfo{Name: "me.jpg", ContentType: "image/jpeg", Size: 2 << 20}},
		{name: "jpg alias", file: FileInfo{Name: "me.jpg", ContentType: "image/jpg", Size: 100}},
		{name: "png by extension", file: FileInfo{Name: "me.PNG", Size: 100}},
		{name: "text", file: FileInfo{Name: "notes.txt", ContentType: "text/plain", Size: 10}, want: domain.ErrUnsupportedType},
		{name: "gif", file: FileInfo{Name: "a.gif", ContentType: "image/gif", Size: 10}, want: domain.ErrUnsupportedType},
		{name: "exactly 5MiB", file: FileInfo{Name: "a.png", ContentType: "image/png", Size: MaxUploadBytes}},
		{name: "too large", file: FileInfo{Name: "a.png", ContentType: "image/png", Size: MaxUploadBytes + 1}, want: domain.ErrFileTooLarge},
		{name: "empty", file: FileInfo{Name: "a.png", ContentType: "image/png"}, want: domain.ErrInvalidInput},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckFile(tc.file)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected file to pass, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected every local rejection to be invalid input, got %v", err)
			}
		})
	}
}

func TestAdmitForward(t *testing.T) {
	empty := domain.NewPhotoArtifact()

	uploaded := domain.NewPhotoArtifact()
	uploaded.SourceRef = "a.jpg"
	uploaded.PreviewRef = "mem://a"

	processed := uploaded
	processed.ProcessedRef = "processed_a.jpg"

	cases := []struct {
		name     string
		stage    domain.Stage
		artifact domain.PhotoArtifact
		ps       ProcessState
		admitted bool
		reason   string
	}{
		{name: "upload without preview", stage: domain.StageUpload, artifact: empty, admitted: false},
		{name: "upload with preview", stage: domain.StageUpload, artifact: uploaded, admitted: true},
		{name: "edit", stage: domain.StageEdit, artifact: empty, admitted: true},
		{name: "background", stage: domain.StageBackground, artifact: empty, admitted: true},
		{name: "size unprocessed", stage: domain.StageSize, artifact: uploaded, admitted: false},
		{name: "size failed", stage: domain.StageSize, artifact: uploaded, ps: ProcessState{LastError: "Failed to process image. Please try again."}, admitted: false, reason: "Failed to process image. Please try again."},
		{name: "size processed", stage: domain.StageSize, artifact: processed, admitted: true},
		{name: "download", stage: domain.StageDownload, artifact: processed, admitted: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := AdmitForward(tc.stage, tc.artifact, tc.ps)
			if d.Admitted != tc.admitted {
				t.Fatalf("expected admitted=%v, got %+v", tc.admitted, d)
			}
			if !d.Admitted && d.Reason == "" {
				t.Fatal("expected a rejection reason")
			}
			if tc.reason != "" && d.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, d.Reason)
			}
		})
	}
}

func TestAdmitBack(t *testing.T) {
	if AdmitBack(domain.StageUpload).Admitted {
		t.Fatal("expected no back transition from the first stage")
	}
	for s := domain.StageEdit; s <= domain.StageDownload; s++ {
		if !AdmitBack(s).Admitted {
			t.Fatalf("expected back transition from %s", s)
		}
	}
}
