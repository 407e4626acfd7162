package preview

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/transform"
)

func TestRenderIdentityKeepsDimensions(t *testing.T) {
	src := samplePNG(t, 40, 20, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	out, err := Render(context.Background(), stdRenderer{}, src, transform.Reset(), Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Width != 40 || out.Height != 20 {
		t.Fatalf("unexpected size %dx%d", out.Width, out.Height)
	}
	if out.ContentType() != "image/png" {
		t.Fatalf("unexpected content type %q", out.ContentType())
	}
	img := decode(t, out.Data)
	assertColor(t, img.At(10, 10), color.NRGBA{R: 200, G: 100, B: 50, A: 255})
}

func TestRenderRotationSwapsDimensions(t *testing.T) {
	src := samplePNG(t, 40, 20, color.NRGBA{R: 10, G: 10, B: 10, A: 255})

	state := transform.RotateRight(transform.Reset())
	out, err := Render(context.Background(), stdRenderer{}, src, state, Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Width != 20 || out.Height != 40 {
		t.Fatalf("expected 20x40 after a quarter turn, got %dx%d", out.Width, out.Height)
	}

	state = transform.RotateRight(state)
	out, err = Render(context.Background(), stdRenderer{}, src, state, Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Width != 40 || out.Height != 20 {
		t.Fatalf("expected 40x20 after a half turn, got %dx%d", out.Width, out.Height)
	}
}

func TestRenderLevels(t *testing.T) {
	src := samplePNG(t, 8, 8, color.NRGBA{R: 100, G: 100, B: 100, A: 255})

	dark := transform.SetBrightness(transform.Reset(), 0)
	out, err := Render(context.Background(), stdRenderer{}, src, transform.SetContrast(dark, 100), Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	assertColor(t, decode(t, out.Data).At(4, 4), color.NRGBA{A: 255})

	flat := transform.SetContrast(transform.Reset(), 0)
	out, err = Render(context.Background(), stdRenderer{}, src, flat, Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	assertColor(t, decode(t, out.Data).At(4, 4), color.NRGBA{R: 128, G: 128, B: 128, A: 255})
}

func TestRenderZoomOutLeavesTransparentBorder(t *testing.T) {
	src := samplePNG(t, 40, 40, color.NRGBA{R: 255, A: 255})

	out, err := Render(context.Background(), stdRenderer{}, src, transform.SetZoom(transform.Reset(), 0.5), Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img := decode(t, out.Data)
	if out.Width != 40 || out.Height != 40 {
		t.Fatalf("zoom must not change canvas size, got %dx%d", out.Width, out.Height)
	}
	if _, _, _, a := img.At(1, 1).RGBA(); a != 0 {
		t.Fatalf("expected transparent corner, got alpha %d", a)
	}
	if r, _, _, a := img.At(20, 20).RGBA(); r>>8 < 250 || a>>8 < 250 {
		t.Fatalf("expected opaque red center, got r=%d a=%d", r>>8, a>>8)
	}
}

func TestRenderFitsLargeSource(t *testing.T) {
	src := samplePNG(t, 300, 150, color.NRGBA{G: 255, A: 255})

	out, err := Render(context.Background(), stdRenderer{}, src, transform.Reset(), Options{MaxEdge: 100, Format: "jpg"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Width != 100 || out.Height != 50 {
		t.Fatalf("expected 100x50, got %dx%d", out.Width, out.Height)
	}
	if out.Format != "jpeg" || out.ContentType() != "image/jpeg" {
		t.Fatalf("unexpected format %q", out.Format)
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	if _, err := Render(context.Background(), stdRenderer{}, nil, transform.Reset(), Options{}); !errors.Is(err, ErrEmptySource) {
		t.Fatalf("expected empty source error, got %v", err)
	}
	if _, err := Render(context.Background(), stdRenderer{}, []byte("not an image"), transform.Reset(), Options{}); err == nil {
		t.Fatal("expected decode failure")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := samplePNG(t, 4, 4, color.NRGBA{A: 255})
	if _, err := Render(ctx, stdRenderer{}, src, transform.Reset(), Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestRenderRejectsOversizedDimensions(t *testing.T) {
	// A few dozen bytes that declare a 20000x20000 image.
	src := pngHeader(20000, 20000)

	if _, err := Render(context.Background(), stdRenderer{}, src, transform.Reset(), Options{}); !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("expected too large, got %v", err)
	}
	if err := checkSourcePixels(pngHeader(8000, 5000)); err != nil {
		t.Fatalf("expected 40 MP to be allowed, got %v", err)
	}
	if err := checkSourcePixels(pngHeader(8000, 5001)); !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("expected just over budget to fail, got %v", err)
	}
}

// pngHeader is a PNG signature and IHDR chunk for an 8-bit grayscale image.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestLevel(t *testing.T) {
	cases := []struct {
		in         uint8
		brightness float64
		contrast   float64
		want       uint8
	}{
		{in: 100, brightness: 1, contrast: 1, want: 100},
		{in: 100, brightness: 2, contrast: 1, want: 200},
		{in: 200, brightness: 2, contrast: 1, want: 255},
		{in: 255, brightness: 0, contrast: 1, want: 0},
		{in: 0, brightness: 1, contrast: 0, want: 128},
		{in: 255, brightness: 1, contrast: 2, want: 255},
	}
	for _, tc := range cases {
		if got := level(tc.in, tc.brightness, tc.contrast); got != tc.want {
			t.Fatalf("level(%d, %v, %v) = %d, want %d", tc.in, tc.brightness, tc.contrast, got, tc.want)
		}
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	data := []byte("photo")
	ref, err := c.Put(ctx, "s1/a.jpg", data, "image/jpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	data[0] = 'X'

	got, err := c.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "photo" {
		t.Fatalf("cache must copy input, got %q", got)
	}

	if err := c.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, ref); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := c.Put(ctx, " ", data, ""); !errors.Is(err, domain.ErrEmptyReference) {
		t.Fatalf("expected empty reference, got %v", err)
	}
	if _, err := c.Put(ctx, "k", nil, ""); !errors.Is(err, ErrEmptySource) {
		t.Fatalf("expected empty source, got %v", err)
	}
}

type fakeObjectStore struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectStore) WriteObject(_ context.Context, key string, data []byte, contentType string) error {
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeObjectStore) ReadObject(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return data, nil
}

func (f *fakeObjectStore) RemoveObject(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func TestObjectCache(t *testing.T) {
	ctx := context.Background()
	store := newFakeObjectStore()
	c, err := NewObjectCache(store, "/previews/")
	if err != nil {
		t.Fatalf("new object cache: %v", err)
	}

	ref, err := c.Put(ctx, "s1/upload-1.png", []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref != "object://previews/s1/upload-1.png" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if store.types["previews/s1/upload-1.png"] != "image/png" {
		t.Fatalf("content type not forwarded: %v", store.types)
	}

	got, err := c.Get(ctx, ref)
	if err != nil || string(got) != "png" {
		t.Fatalf("get: %q %v", got, err)
	}
	if _, err := c.Get(ctx, "mem://s1/upload-1.png"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected foreign ref to be not found, got %v", err)
	}
	if err := c.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.objects) != 0 {
		t.Fatalf("expected object removed, have %v", store.objects)
	}
}

func samplePNG(t *testing.T, w, h int, fill color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode sample: %v", err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return img
}

func assertColor(t *testing.T, got color.Color, want color.NRGBA) {
	t.Helper()
	g := color.NRGBAModel.Convert(got).(color.NRGBA)
	if g != want {
		t.Fatalf("expected %+v, got %+v", want, g)
	}
}
