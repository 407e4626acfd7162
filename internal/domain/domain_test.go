package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCatalogUnmarshalKeepsServerOrder(t *testing.T) {
	raw := `{"india":{"name":"India (51x51 mm)","width":602,"height":602},"us":{"name":"US (2x2 inches)","width":600,"height":600}}`

	var c Catalog
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal catalog: %v", err)
	}

	if diff := cmp.Diff([]string{"india", "us"}, c.Keys()); diff != "" {
		t.Fatalf("key order mismatch (-want +got):\n%s", diff)
	}
	first, ok := c.First()
	if !ok || first.Key != "india" || first.Width != 602 {
		t.Fatalf("unexpected first entry: %+v", first)
	}

	encoded, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal catalog: %v", err)
	}
	if string(encoded) != raw {
		t.Fatalf("expected re-encoded catalog to match input\nwant %s\ngot  %s", raw, encoded)
	}
}

func TestCatalogUnmarshalRejectsArray(t *testing.T) {
	var c Catalog
	if err := json.Unmarshal([]byte(`[1,2]`), &c); err == nil {
		t.Fatal("expected error for array payload")
	}
}

func TestFallbackCatalogLiterals(t *testing.T) {
	want := Catalog{
		{Key: "us", Name: "US (2x2 inches)", Width: 600, Height: 600},
		{Key: "eu", Name: "EU/UK/Pakistan (35x45 mm)", Width: 413, Height: 531},
		{Key: "india", Name: "India (51x51 mm)", Width: 602, Height: 602},
	}
	if diff := cmp.Diff(want, FallbackCatalog()); diff != "" {
		t.Fatalf("fallback mismatch (-want +got):\n%s", diff)
	}
	if err := FallbackCatalog().Validate(); err != nil {
		t.Fatalf("fallback catalog should validate: %v", err)
	}
}

func TestCatalogValidateRejectsDuplicates(t *testing.T) {
	c := Catalog{
		{Key: "us", Width: 1, Height: 1},
		{Key: "us", Width: 2, Height: 2},
	}
	if err := c.Validate(); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestParseBackground(t *testing.T) {
	cases := []struct {
		in      string
		want    BackgroundSpec
		wantErr bool
	}{
		{in: "white", want: BackgroundSpec{Preset: BackgroundWhite}},
		{in: "light-gray", want: BackgroundSpec{Preset: BackgroundLightGray}},
		{in: " Blue ", want: BackgroundSpec{Preset: BackgroundBlue}},
		{in: "transparent", want: BackgroundSpec{Preset: BackgroundTransparent}},
		{in: "#00AAff", want: BackgroundSpec{Preset: BackgroundCustom, Color: "#00aaff"}},
		{in: "#12345", wantErr: true},
		{in: "purple", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseBackground(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("%q: expected invalid input error, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.in, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("%q mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestBackgroundWireValue(t *testing.T) {
	custom, _ := CustomBackground("#102030")
	if custom.WireValue() != "#102030" {
		t.Fatalf("expected custom color on the wire, got %s", custom.WireValue())
	}
	if (BackgroundSpec{}).WireValue() != "white" {
		t.Fatal("expected unset background to default to white")
	}
	if !(BackgroundSpec{Preset: BackgroundTransparent}).RequiresAlpha() {
		t.Fatal("expected transparent to require alpha")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	for _, err := range []error{ErrUnsupportedType, ErrFileTooLarge, ErrEmptyReference, ErrUnknownSize, ErrInvalidColor, ErrInvalidCopies} {
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected %v to match ErrInvalidInput", err)
		}
	}

	cause := errors.New("connection refused")
	err := fmt.Errorf("session s1: %w", Wrap(ErrProcessing, "process", "Failed to process image. Please try again.", cause))
	if !errors.Is(err, ErrProcessing) {
		t.Fatal("expected processing marker")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be preserved")
	}
	if got := UserMessage(err); got != "Failed to process image. Please try again." {
		t.Fatalf("unexpected user message: %q", got)
	}
	if got := UserMessage(ErrFileTooLarge); got != "File size must be less than 5MB" {
		t.Fatalf("unexpected user message: %q", got)
	}
}

func TestExportRequestValidate(t *testing.T) {
	valid := ExportRequest{SessionID: "s1", ProcessedRef: "processed_a.png", OutputRef: "sheet.pdf"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}
	if diff := cmp.Diff([]string{"processed_a.png", "sheet.pdf"}, valid.Refs()); diff != "" {
		t.Fatalf("refs mismatch (-want +got):\n%s", diff)
	}

	if err := (ExportRequest{}).Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingProcessed := ExportRequest{SessionID: "s1"}
	if err := missingProcessed.Validate(); err == nil {
		t.Fatal("expected validation error for missing processed_ref")
	}

	badHook := ExportRequest{SessionID: "s1", ProcessedRef: "p.png", WebhookURL: "ftp://example.com"}
	if err := badHook.Validate(); err == nil {
		t.Fatal("expected validation error for non-http webhook")
	}
}

func TestStages(t *testing.T) {
	names := make([]string, 0)
	for _, s := range Stages() {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"Upload", "Edit", "Background", "Size", "Download"}, names); diff != "" {
		t.Fatalf("stage names mismatch (-want +got):\n%s", diff)
	}
	if Stage(0).Valid() || Stage(6).Valid() {
		t.Fatal("expected out of range stages to be invalid")
	}
}
