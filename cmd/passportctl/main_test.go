package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dunamismax/passportflow/internal/processing/processingtest"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PASSPORTFLOW_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("PASSPORTFLOW_CONFIG", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writePhoto(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, "portrait.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	return path
}

func TestSizesCommandListsCatalog(t *testing.T) {
	isolateEnv(t)
	srv := processingtest.NewServer()
	defer srv.Close()

	out, err := execute(t, "sizes", "--service-url", srv.URL)
	if err != nil {
		t.Fatalf("sizes: %v", err)
	}
	for _, want := range []string{"us", "EU/UK/Pakistan (35x45 mm)", "602"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSizesCommandFallsBackSilently(t *testing.T) {
	isolateEnv(t)
	srv := processingtest.NewServer()
	defer srv.Close()
	srv.Set(func(s *processingtest.Server) { s.FailCatalog = true })

	out, err := execute(t, "sizes", "--service-url", srv.URL)
	if err != nil {
		t.Fatalf("expected fallback instead of error, got %v", err)
	}
	if !strings.Contains(out, "US (2x2 inches)") {
		t.Fatalf("expected built-in sizes, got:\n%s", out)
	}
}

func TestRunCommandWritesPhotoAndSheet(t *testing.T) {
	isolateEnv(t)
	srv := processingtest.NewServer()
	defer srv.Close()

	dir := t.TempDir()
	photo := writePhoto(t, dir, 32, 48)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "run",
		"--service-url", srv.URL,
		"--file", photo,
		"--rotate", "90",
		"--background", "blue",
		"--size", "eu",
		"--copies", "6",
		"--out", outDir,
	)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}

	call := srv.LastProcess()
	if call.Size != "eu" || call.Background != "blue" || !call.Watermark {
		t.Fatalf("unexpected process call %+v", call)
	}
	if got := srv.LastOutput().Copies; got != 6 {
		t.Fatalf("expected 6 copies, got %d", got)
	}

	processed, err := os.ReadFile(filepath.Join(outDir, "processed_upload-1.png"))
	if err != nil {
		t.Fatalf("read processed photo: %v", err)
	}
	if !strings.HasPrefix(string(processed), "processed:upload-1.png") {
		t.Fatalf("unexpected processed bytes %q", processed)
	}
	sheet, err := os.ReadFile(filepath.Join(outDir, "passport_photos_1.pdf"))
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if !strings.HasPrefix(string(sheet), "%PDF") {
		t.Fatalf("unexpected sheet bytes %q", sheet)
	}
	if !strings.Contains(out, "EU/UK/Pakistan") {
		t.Fatalf("expected summary to name the size, got:\n%s", out)
	}
}

func TestRunCommandRejectsBadInput(t *testing.T) {
	isolateEnv(t)
	srv := processingtest.NewServer()
	defer srv.Close()
	photo := writePhoto(t, t.TempDir(), 8, 8)
	webp := filepath.Join(t.TempDir(), "portrait.webp")
	if err := os.WriteFile(webp, []byte("RIFF\x1a\x00\x00\x00WEBPVP8 "), 0o644); err != nil {
		t.Fatalf("write webp: %v", err)
	}

	cases := map[string][]string{
		"missing file": {"run", "--service-url", srv.URL},
		"both colors":  {"run", "--service-url", srv.URL, "--file", photo, "--background", "white", "--color", "#112233"},
		"bad copies":   {"run", "--service-url", srv.URL, "--file", photo, "--copies", "5"},
		"unknown size": {"run", "--service-url", srv.URL, "--file", photo, "--size", "mars"},
		"bad color":    {"run", "--service-url", srv.URL, "--file", photo, "--color", "blue"},
		"unsupported":  {"run", "--service-url", srv.URL, "--file", filepath.Join(t.TempDir(), "missing.gif")},
		"webp":         {"run", "--service-url", srv.URL, "--file", webp},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := execute(t, args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if got := srv.ProcessCount(); got != 0 {
		t.Fatalf("expected no processing calls, got %d", got)
	}
}

func TestRunCommandHelpNamesAcceptedFormats(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "run", "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out, "JPEG or PNG") || strings.Contains(out, "WebP") {
		t.Fatalf("unexpected --file help:\n%s", out)
	}
}

func TestPreviewCommandRendersLocally(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	photo := writePhoto(t, dir, 40, 20)
	target := filepath.Join(dir, "preview.png")

	// No service is running; the preview must not need one.
	out, err := execute(t, "preview", "--service-url", "http://127.0.0.1:1", "--file", photo, "--rotate", "90", "--out", target)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	f, err := os.Open(target)
	if err != nil {
		t.Fatalf("open preview: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if cfg.Width != 20 || cfg.Height != 40 {
		t.Fatalf("expected rotated 20x40 preview, got %dx%d", cfg.Width, cfg.Height)
	}
	if !strings.Contains(out, "20x40") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestFormatForPath(t *testing.T) {
	cases := map[string]string{
		"out.jpg":  "jpeg",
		"OUT.JPEG": "jpeg",
		"out.png":  "png",
		"out":      "png",
	}
	for path, want := range cases {
		if got := formatForPath(path); got != want {
			t.Fatalf("formatForPath(%q) = %q, want %q", path, got, want)
		}
	}
}
