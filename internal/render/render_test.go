package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/aura-seminar/certificates/internal/models"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testAssets(t *testing.T) fstest.MapFS {
	t.Helper()
	return fstest.MapFS{
		"template.png":      {Data: solidPNG(t, 600, 400, color.White)},
		"divider.png":       {Data: solidPNG(t, 300, 4, color.Black)},
		"badge.png":         {Data: solidPNG(t, 40, 40, color.RGBA{R: 200, G: 160, A: 255})},
		"watermark.png":     {Data: solidPNG(t, 120, 120, color.NRGBA{R: 240, G: 240, B: 240, A: 40})},
		"fonts/bold.ttf":    {Data: gobold.TTF},
		"fonts/regular.ttf": {Data: goregular.TTF},
	}
}

func testRegistration() *models.Registration {
	return &models.Registration{
		ID:              1,
		Present:         true,
		CertificateCode: "0b9e3c55-4a0a-4d0e-9b8f-3f0c2c3f4e11",
		User:            &models.User{ID: 1, Email: "mary@example.com", FullName: "MARY O'BRIEN"},
		Event: &models.Event{
			ID:       5,
			Name:     "Concurrency Patterns in Practice",
			Slug:     "concurrency-patterns",
			Type:     "online_seminar",
			StartsAt: time.Date(2026, 5, 14, 18, 30, 0, 0, time.UTC),
		},
	}
}

func TestRenderImage(t *testing.T) {
	r := New(testAssets(t), Options{})

	out, err := r.RenderImage(testRegistration())
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 600, 400), img.Bounds())
}

func TestRenderImage_Deterministic(t *testing.T) {
	r := New(testAssets(t), Options{})

	first, err := r.RenderImage(testRegistration())
	require.NoError(t, err)
	second, err := r.RenderImage(testRegistration())
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second))
}

func TestRenderImage_AssetFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(fstest.MapFS)
	}{
		{"missing template", func(fs fstest.MapFS) { delete(fs, "template.png") }},
		{"corrupt badge", func(fs fstest.MapFS) { fs["badge.png"] = &fstest.MapFile{Data: []byte("not a png")} }},
		{"missing font", func(fs fstest.MapFS) { delete(fs, "fonts/regular.ttf") }},
		{"corrupt font", func(fs fstest.MapFS) { fs["fonts/bold.ttf"] = &fstest.MapFile{Data: []byte("garbage")} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets := testAssets(t)
			tt.mutate(assets)

			out, err := New(assets, Options{}).RenderImage(testRegistration())
			require.ErrorIs(t, err, ErrAsset)
			assert.Nil(t, out)
		})
	}
}

func TestRenderImage_Incomplete(t *testing.T) {
	r := New(testAssets(t), Options{})

	reg := testRegistration()
	reg.Event = nil
	_, err := r.RenderImage(reg)
	require.ErrorIs(t, err, ErrIncomplete)

	reg = testRegistration()
	reg.CertificateCode = ""
	_, err = r.RenderImage(reg)
	require.ErrorIs(t, err, ErrIncomplete)
}

func TestRenderDocument(t *testing.T) {
	r := New(testAssets(t), Options{})
	img, err := r.RenderImage(testRegistration())
	require.NoError(t, err)

	doc, err := r.RenderDocument(img)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.Contains(t, string(doc), "/MediaBox [0 0 600.00 400.00]")
}

func TestRenderDocument_AcceptsPNG(t *testing.T) {
	doc, err := New(nil, Options{}).RenderDocument(solidPNG(t, 80, 50, color.White))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "/MediaBox [0 0 80.00 50.00]")
}

func TestRenderDocument_RejectsInvalidImage(t *testing.T) {
	r := New(nil, Options{})

	_, err := r.RenderDocument(nil)
	require.Error(t, err)

	_, err = r.RenderDocument([]byte("definitely not an image"))
	require.Error(t, err)
}
