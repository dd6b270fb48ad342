package transform

import (
	"fmt"
	"math"

	"github.com/flexconvert/flexconvert/internal/codec"
)

// ImageScale is the upscale factor for page-to-image rendering.
const ImageScale = 2.0

// ToImagesOptions selects the page image format.
type ToImagesOptions struct {
	// Format is png or jpeg.
	Format  codec.Format `json:"format"`
	Quality float64      `json:"quality"`
}

// Validate checks the output format and quality.
func (o ToImagesOptions) Validate() error {
	if o.Format != codec.FormatPNG && o.Format != codec.FormatJPEG {
		return invalid("format", "must be png or jpeg, got %q", o.Format)
	}
	if o.Quality < 0 || o.Quality > 1 {
		return invalid("quality", "must be between 0 and 1")
	}
	return nil
}

// ToImages renders every page at 2x and encodes one image per page.
func ToImages(doc *codec.Document, r codec.Rasterizer, opts ToImagesOptions, onPage func(done, total int)) ([]Output, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	data, err := codec.EncodePDF(doc)
	if err != nil {
		return nil, err
	}
	pages, err := r.Render(data, ImageScale, onPage)
	if err != nil {
		return nil, err
	}

	outputs := make([]Output, 0, len(pages))
	for i, img := range pages {
		encoded, format, err := codec.EncodeImage(codec.NewRaster(img, codec.FormatPNG), codec.EncodeOptions{
			Format:  opts.Format,
			Quality: opts.Quality,
		})
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		outputs = append(outputs, Output{
			Name:   OutputName(doc.Name, fmt.Sprintf("page_%d", i+1), format),
			Format: format,
			Data:   encoded,
		})
	}
	return outputs, nil
}

// CompressOptions selects a compression level from 1 (lightest) to 9 (strongest).
type CompressOptions struct {
	Level int `json:"level"`
}

// Validate checks the level range.
func (o CompressOptions) Validate() error {
	if o.Level < 1 || o.Level > 9 {
		return invalid("level", "must be between 1 and 9, got %d", o.Level)
	}
	return nil
}

// Scale returns the render scale, from 2.0 at level 1 down to 0.8 at level 9.
func (o CompressOptions) Scale() float64 {
	return 2.0 - 1.2*o.position()
}

// Quality returns the JPEG quality, from 0.95 at level 1 down to 0.3 at level 9.
func (o CompressOptions) Quality() float64 {
	return 0.95 - 0.65*o.position()
}

func (o CompressOptions) position() float64 {
	return float64(o.Level-1) / 8
}

// CompressResult is the compressed document. Degraded is set when
// rendering failed and the document was re-saved without rasterization.
type CompressResult struct {
	Output   Output
	Degraded bool
	Warning  string
}

// Compress rasterizes every page and rebuilds the document from JPEG page
// images, trading text and vector fidelity for size.
func Compress(doc *codec.Document, r codec.Rasterizer, opts CompressOptions) (*CompressResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	name := OutputName(doc.Name, "compressed", codec.FormatPDF)
	data, err := codec.EncodePDF(doc)
	if err != nil {
		return nil, err
	}

	scale := opts.Scale()
	images, err := r.Render(data, scale, nil)
	if err != nil {
		return &CompressResult{
			Output:   Output{Name: name, Format: codec.FormatPDF, Data: data},
			Degraded: true,
			Warning:  fmt.Sprintf("pages could not be rendered, document saved without compression: %v", err),
		}, nil
	}

	quality := int(math.Round(opts.Quality() * 100))
	pages := make([]codec.ImagePage, len(images))
	for i, img := range images {
		b := img.Bounds()
		pages[i] = codec.ImagePage{
			Image:   img,
			Width:   float64(b.Dx()) / scale,
			Height:  float64(b.Dy()) / scale,
			Quality: quality,
		}
	}

	compressed, err := codec.WriteImagePDF(doc.Title, pages)
	if err != nil {
		return nil, err
	}
	return &CompressResult{Output: Output{Name: name, Format: codec.FormatPDF, Data: compressed}}, nil
}
