package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/gen2brain/webp"
	"golang.org/x/image/bmp"
	xwebp "golang.org/x/image/webp"
)

// Raster is a decoded image. Transforms never modify a Raster in place.
type Raster struct {
	Image  *image.NRGBA
	Format Format
}

// Width returns the pixel width.
func (r *Raster) Width() int {
	return r.Image.Bounds().Dx()
}

// Height returns the pixel height.
func (r *Raster) Height() int {
	return r.Image.Bounds().Dy()
}

// Clone returns an independent copy.
func (r *Raster) Clone() *Raster {
	return &Raster{Image: ToNRGBA(r.Image), Format: r.Format}
}

// NewRaster wraps img, copying it into a zero-origin NRGBA buffer.
func NewRaster(img image.Image, format Format) *Raster {
	return &Raster{Image: ToNRGBA(img), Format: format}
}

// ToNRGBA copies img into a new NRGBA buffer whose bounds start at the origin.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// DecodeImage decodes jpeg, png, gif, bmp and webp inputs.
func DecodeImage(f File) (*Raster, error) {
	if len(f.Data) == 0 {
		return nil, fileError(f.Name, ErrEmptyFile)
	}

	format := DetectFormat(f)
	r := bytes.NewReader(f.Data)

	var (
		img image.Image
		err error
	)
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatGIF:
		img, err = gif.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	case FormatWebP:
		img, err = xwebp.Decode(r)
	default:
		return nil, fileError(f.Name, fmt.Errorf("%w: not an image", ErrUnsupportedFormat))
	}
	if err != nil {
		return nil, fileError(f.Name, fmt.Errorf("%w: %v", ErrCorruptFile, err))
	}

	return NewRaster(img, format), nil
}

// EncodeOptions selects the output format and lossy quality.
type EncodeOptions struct {
	Format Format

	// Quality is in [0, 1]. Zero selects DefaultQuality. PNG ignores it.
	Quality float64
}

// DefaultQuality is used when EncodeOptions.Quality is zero.
const DefaultQuality = 0.92

// EncodeImage serializes r. An empty format re-encodes in the source format
// when it is encodable, and as PNG otherwise.
func EncodeImage(r *Raster, opts EncodeOptions) ([]byte, Format, error) {
	format := opts.Format
	if format == FormatUnknown {
		format = r.Format
		if !format.IsEncodable() {
			format = FormatPNG
		}
	}
	if !format.IsEncodable() {
		return nil, format, fmt.Errorf("%w: cannot encode %q", ErrUnsupportedFormat, format)
	}
	if opts.Quality < 0 || opts.Quality > 1 {
		return nil, format, fmt.Errorf("%w: quality must be between 0 and 1", ErrEncodeFailed)
	}

	quality := opts.Quality
	if quality == 0 {
		quality = DefaultQuality
	}
	q := int(math.Round(quality * 100))
	if q < 1 {
		q = 1
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, opaqueRGBA(r.Image), &jpeg.Options{Quality: q})
	case FormatPNG:
		err = png.Encode(&buf, r.Image)
	case FormatWebP:
		err = webp.Encode(&buf, r.Image, webp.Options{Quality: q})
	}
	if err != nil {
		return nil, format, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	return buf.Bytes(), format, nil
}
