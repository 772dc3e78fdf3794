package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // DecodeConfig for rendered certificates

	"github.com/go-pdf/fpdf"
)

var pdfImageTypes = map[string]string{
	"jpeg": "JPG",
	"png":  "PNG",
}

// RenderDocument wraps an encoded image into a one-page PDF. The page is exactly the image's
// pixel size (1px = 1pt) and the image fills it with no margin.
func (r *Renderer) RenderDocument(img []byte) ([]byte, error) {
	if len(img) == 0 {
		return nil, errors.New("render document: empty image")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("render document: decode image header: %w", err)
	}
	imageType, ok := pdfImageTypes[format]
	if !ok {
		return nil, fmt.Errorf("render document: unsupported image format %q", format)
	}
	w, h := float64(cfg.Width), float64(cfg.Height)

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("certificate", opts, bytes.NewReader(img))
	pdf.ImageOptions("certificate", 0, 0, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}
