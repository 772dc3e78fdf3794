// Package render draws certificate artifacts: a JPEG certificate composed over a fixed template,
// and a single-page PDF wrapping that image.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // template and decorations are PNG
	"io/fs"
	"time"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"

	"github.com/aura-seminar/certificates/internal/models"
)

var (
	// ErrAsset wraps every failure to read or parse a template image or font.
	ErrAsset = errors.New("certificate asset unavailable")
	// ErrIncomplete is returned when the registration lacks data printed on the certificate.
	ErrIncomplete = errors.New("registration incomplete for certificate")
)

// Assets names the files read from the renderer's asset filesystem.
type Assets struct {
	Template    string
	Divider     string
	Badge       string
	Watermark   string
	BoldFont    string
	RegularFont string
}

// DefaultAssets is the layout of the certificate asset directory.
func DefaultAssets() Assets {
	return Assets{
		Template:    "template.png",
		Divider:     "divider.png",
		Badge:       "badge.png",
		Watermark:   "watermark.png",
		BoldFont:    "fonts/bold.ttf",
		RegularFont: "fonts/regular.ttf",
	}
}

// Options configures the renderer.
type Options struct {
	Assets   Assets
	Location *time.Location
	Heading  string
}

// Renderer produces certificate artifacts from an injected asset filesystem.
// Assets are read on every call; nothing is cached between renders.
type Renderer struct {
	assets fs.FS
	opts   Options
}

// New creates a renderer reading template files from assets.
func New(assets fs.FS, opts Options) *Renderer {
	if opts.Assets == (Assets{}) {
		opts.Assets = DefaultAssets()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Heading == "" {
		opts.Heading = "CERTIFICATE OF ATTENDANCE"
	}
	return &Renderer{assets: assets, opts: opts}
}

const (
	ink          = "#1f2933"
	mutedInk     = "#52606d"
	headingSize  = 48
	bodySize     = 26
	captionSize  = 14
	titleWidth   = 0.8 // fraction of the template width
	titleSpacing = 1.3
)

// RenderImage composes the certificate for reg and encodes it as a JPEG at maximum quality.
func (r *Renderer) RenderImage(reg *models.Registration) ([]byte, error) {
	if reg == nil || !reg.HasAssociations() || reg.CertificateCode == "" {
		return nil, ErrIncomplete
	}
	tpl, err := r.loadImage(r.opts.Assets.Template)
	if err != nil {
		return nil, err
	}
	divider, err := r.loadImage(r.opts.Assets.Divider)
	if err != nil {
		return nil, err
	}
	badge, err := r.loadImage(r.opts.Assets.Badge)
	if err != nil {
		return nil, err
	}
	watermark, err := r.loadImage(r.opts.Assets.Watermark)
	if err != nil {
		return nil, err
	}
	bold, err := r.loadFont(r.opts.Assets.BoldFont)
	if err != nil {
		return nil, err
	}
	regular, err := r.loadFont(r.opts.Assets.RegularFont)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContextForImage(tpl)
	w, h := float64(dc.Width()), float64(dc.Height())
	cx := w / 2

	dc.DrawImageAnchored(watermark, int(cx), int(h/2), 0.5, 0.5)
	dc.DrawImageAnchored(badge, int(cx), int(h*0.14), 0.5, 0.5)
	dc.DrawImageAnchored(divider, int(cx), int(h*0.30), 0.5, 0.5)
	dc.DrawImageAnchored(divider, int(cx), int(h*0.74), 0.5, 0.5)

	name := FormatDisplayName(reg.User.FullName)
	title := reg.Event.Name
	held := fmt.Sprintf("attended the %s held on %s",
		HumanizeEventType(reg.Event.Type),
		reg.Event.StartsAt.In(r.opts.Location).Format("January 2, 2006 at 15:04"))

	steps := []struct {
		font  *opentype.Font
		size  float64
		color string
		draw  func()
	}{
		{bold, headingSize, ink, func() { dc.DrawStringAnchored(r.opts.Heading, cx, h*0.24, 0.5, 0.5) }},
		{regular, bodySize, mutedInk, func() { dc.DrawStringAnchored("This certifies that", cx, h*0.37, 0.5, 0.5) }},
		{bold, SelectFontSize(utf8.RuneCountInString(name), NameSizes, DefaultNameSize), ink, func() {
			dc.DrawStringAnchored(name, cx, h*0.45, 0.5, 0.5)
		}},
		{regular, bodySize, mutedInk, func() { dc.DrawStringAnchored(held, cx, h*0.53, 0.5, 0.5) }},
		{bold, SelectFontSize(utf8.RuneCountInString(title), TitleSizes, DefaultTitleSize), ink, func() {
			dc.DrawStringWrapped(title, cx, h*0.63, 0.5, 0.5, w*titleWidth, titleSpacing, gg.AlignCenter)
		}},
		{regular, captionSize, mutedInk, func() {
			dc.DrawStringAnchored("Certificate code: "+reg.CertificateCode, cx, h*0.95, 0.5, 0.5)
		}},
	}
	for _, s := range steps {
		face, err := newFace(s.font, s.size)
		if err != nil {
			return nil, err
		}
		dc.SetFontFace(face)
		dc.SetHexColor(s.color)
		s.draw()
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: 100}); err != nil {
		return nil, fmt.Errorf("encode certificate image: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) loadImage(name string) (image.Image, error) {
	f, err := r.assets.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrAsset, name, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrAsset, name, err)
	}
	return img, nil
}

func (r *Renderer) loadFont(name string) (*opentype.Font, error) {
	data, err := fs.ReadFile(r.assets, name)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrAsset, name, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrAsset, name, err)
	}
	return f, nil
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("%w: font face %.0fpt: %w", ErrAsset, size, err)
	}
	return face, nil
}
