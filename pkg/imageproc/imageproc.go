// Package imageproc renders the stored size variants of an uploaded photo.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// Size names a stored variant.
type Size string

const (
	SizeThumbnail Size = "thumbnail"
	SizeMedium    Size = "medium"
	SizeLarge     Size = "large"
	SizeOriginal  Size = "original"
)

// Sizes lists every variant in storage order.
var Sizes = []Size{SizeThumbnail, SizeMedium, SizeLarge, SizeOriginal}

// Valid reports whether s is a known size.
func (s Size) Valid() bool {
	for _, v := range Sizes {
		if v == s {
			return true
		}
	}
	return false
}

const (
	thumbnailEdge = 200
	mediumEdge    = 800
	largeEdge     = 1600
	jpegQuality   = 85
)

// ErrUnsupported is returned for image formats that cannot be decoded.
var ErrUnsupported = errors.New("imageproc: unsupported image format")

// Variant is one encoded output.
type Variant struct {
	Size   Size
	Data   []byte
	Width  int
	Height int
}

// Result holds every variant plus the source dimensions.
type Result struct {
	Format   string
	Width    int
	Height   int
	Variants map[Size]Variant
}

// ContentType is the MIME type of the re-encoded variants.
func (r *Result) ContentType() string {
	return "image/" + r.Format
}

// Processor creates resized variants.
type Processor interface {
	Process(data []byte, mimeType string) (*Result, error)
}

// Imaging is the Processor backed by disintegration/imaging.
type Imaging struct{}

// NewImaging returns the default processor.
func NewImaging() *Imaging { return &Imaging{} }

// Process decodes data and renders a square thumbnail crop, medium and large
// fits that never upscale, and the untouched original bytes.
func (Imaging) Process(data []byte, mimeType string) (*Result, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	outFormat, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
	b := src.Bounds()
	res := &Result{
		Format:   format,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Variants: make(map[Size]Variant, len(Sizes)),
	}

	renders := map[Size]image.Image{
		SizeThumbnail: imaging.Fill(src, thumbnailEdge, thumbnailEdge, imaging.Center, imaging.Lanczos),
		SizeMedium:    fit(src, mediumEdge),
		SizeLarge:     fit(src, largeEdge),
	}
	for size, img := range renders {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, outFormat, imaging.JPEGQuality(jpegQuality)); err != nil {
			return nil, fmt.Errorf("encode %s: %w", size, err)
		}
		ib := img.Bounds()
		res.Variants[size] = Variant{Size: size, Data: buf.Bytes(), Width: ib.Dx(), Height: ib.Dy()}
	}
	res.Variants[SizeOriginal] = Variant{Size: SizeOriginal, Data: data, Width: res.Width, Height: res.Height}
	return res, nil
}

func fit(src image.Image, edge int) image.Image {
	b := src.Bounds()
	if b.Dx() <= edge && b.Dy() <= edge {
		return src
	}
	return imaging.Fit(src, edge, edge, imaging.Lanczos)
}
