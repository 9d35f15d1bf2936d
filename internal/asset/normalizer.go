package asset

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"unicode/utf8"

	// Register decoders for the formats traders typically screenshot in.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"trade-app/internal/types"
)

const (
	DefaultMaxDimension       = 1024
	DefaultJPEGQuality        = 85
	DefaultDocumentCharBudget = 4000
	DefaultMaxPixels          = 50_000_000

	outputMIME = "image/jpeg"
)

// Config bounds the normalized output. MaxPixels caps the declared size of an
// upload before it is decoded.
type Config struct {
	MaxDimension       int
	MaxPixels          int
	JPEGQuality        int
	DocumentCharBudget int
}

// Normalizer converts uploaded images into bounded JPEG blobs and extracts
// text from financial files.
type Normalizer struct {
	maxDim     int
	maxPixels  int
	quality    int
	textBudget int
}

func NewNormalizer(cfg Config) *Normalizer {
	n := &Normalizer{
		maxDim:     cfg.MaxDimension,
		maxPixels:  cfg.MaxPixels,
		quality:    cfg.JPEGQuality,
		textBudget: cfg.DocumentCharBudget,
	}
	if n.maxDim <= 0 {
		n.maxDim = DefaultMaxDimension
	}
	if n.maxPixels <= 0 {
		n.maxPixels = DefaultMaxPixels
	}
	if n.quality <= 0 || n.quality > 100 {
		n.quality = DefaultJPEGQuality
	}
	if n.textBudget <= 0 {
		n.textBudget = DefaultDocumentCharBudget
	}
	return n
}

// Normalize decodes data, flattens it onto white, caps the larger side at the
// configured dimension and re-encodes it as JPEG.
func (n *Normalizer) Normalize(kind, name string, data []byte) (types.AssetRef, error) {
	if len(data) == 0 {
		return types.AssetRef{}, fmt.Errorf("%w: %s is empty", types.ErrInvalidAsset, displayName(name))
	}

	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return types.AssetRef{}, fmt.Errorf("%w: cannot decode %s: %v", types.ErrInvalidAsset, displayName(name), err)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return types.AssetRef{}, fmt.Errorf("%w: %s has no pixels", types.ErrInvalidAsset, displayName(name))
	}
	if int64(hdr.Width)*int64(hdr.Height) > int64(n.maxPixels) {
		return types.AssetRef{}, fmt.Errorf("%w: %s is %dx%d, above the %d pixel limit",
			types.ErrInvalidAsset, displayName(name), hdr.Width, hdr.Height, n.maxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return types.AssetRef{}, fmt.Errorf("%w: cannot decode %s: %v", types.ErrInvalidAsset, displayName(name), err)
	}

	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return types.AssetRef{}, fmt.Errorf("%w: %s has no pixels", types.ErrInvalidAsset, displayName(name))
	}

	w, h := fitWithin(b.Dx(), b.Dy(), n.maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.quality}); err != nil {
		return types.AssetRef{}, fmt.Errorf("%w: re-encode %s (%s): %v", types.ErrInvalidAsset, displayName(name), format, err)
	}

	return types.AssetRef{
		Kind:   kind,
		Name:   name,
		MIME:   outputMIME,
		Data:   buf.Bytes(),
		Width:  w,
		Height: h,
		Size:   buf.Len(),
	}, nil
}

// ExtractDocument keeps the financial file as-is and attaches its plain text.
// PDFs are text-extracted; UTF-8 text files are used directly.
func (n *Normalizer) ExtractDocument(name string, data []byte) (types.AssetRef, error) {
	if len(data) == 0 {
		return types.AssetRef{}, fmt.Errorf("%w: %s is empty", types.ErrInvalidAsset, displayName(name))
	}

	var (
		text string
		mime string
		err  error
	)
	switch {
	case isPDF(data):
		mime = "application/pdf"
		text, err = extractPDFText(data)
		if err != nil {
			return types.AssetRef{}, fmt.Errorf("%w: %s: %v", types.ErrInvalidAsset, displayName(name), err)
		}
	case utf8.Valid(data):
		mime = "text/plain; charset=utf-8"
		text = string(data)
	default:
		return types.AssetRef{}, fmt.Errorf("%w: %s is neither PDF nor UTF-8 text", types.ErrInvalidAsset, displayName(name))
	}

	return types.AssetRef{
		Kind: types.AssetFinancialFile,
		Name: name,
		MIME: mime,
		Data: data,
		Size: len(data),
		Text: Truncate(collapseBlankLines(text), n.textBudget),
	}, nil
}

// fitWithin scales (w, h) so the larger side is at most limit, keeping aspect ratio.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := int(float64(h)*float64(limit)/float64(w) + 0.5)
		return limit, max(nh, 1)
	}
	nw := int(float64(w)*float64(limit)/float64(h) + 0.5)
	return max(nw, 1), limit
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}

func displayName(name string) string {
	if name == "" {
		return "upload"
	}
	return name
}
