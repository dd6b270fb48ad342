package transform

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/flexconvert/flexconvert/internal/codec"
)

// ImageOperation transforms one raster into a new raster.
type ImageOperation interface {
	Validate(r *codec.Raster) error
	Apply(r *codec.Raster) (*codec.Raster, error)
}

// ProcessImage decodes f, applies op and encodes the result.
func ProcessImage(f codec.File, tool string, op ImageOperation, enc codec.EncodeOptions) (Output, error) {
	r, err := codec.DecodeImage(f)
	if err != nil {
		return Output{}, err
	}
	if err := op.Validate(r); err != nil {
		return Output{}, err
	}
	out, err := op.Apply(r)
	if err != nil {
		return Output{}, err
	}
	data, format, err := codec.EncodeImage(out, enc)
	if err != nil {
		return Output{}, err
	}
	return Output{Name: OutputName(f.Name, tool, format), Format: format, Data: data}, nil
}

// =============================================================================
// Geometry
// =============================================================================

// ResizeOptions fits the image within MaxWidth x MaxHeight. A zero bound
// leaves that dimension unconstrained. Images are never upscaled.
type ResizeOptions struct {
	MaxWidth  int `json:"maxWidth"`
	MaxHeight int `json:"maxHeight"`
}

// Validate requires at least one positive bound.
func (o ResizeOptions) Validate(r *codec.Raster) error {
	if o.MaxWidth < 0 || o.MaxHeight < 0 {
		return invalid("size", "bounds must not be negative")
	}
	if o.MaxWidth == 0 && o.MaxHeight == 0 {
		return invalid("size", "set maxWidth or maxHeight")
	}
	return nil
}

// Dimensions returns the target size for a w x h source.
func (o ResizeOptions) Dimensions(w, h int) (int, int) {
	scale := 1.0
	if o.MaxWidth > 0 {
		scale = math.Min(scale, float64(o.MaxWidth)/float64(w))
	}
	if o.MaxHeight > 0 {
		scale = math.Min(scale, float64(o.MaxHeight)/float64(h))
	}
	return max(1, int(math.Round(float64(w)*scale))), max(1, int(math.Round(float64(h)*scale)))
}

// Apply scales with Catmull-Rom resampling.
func (o ResizeOptions) Apply(r *codec.Raster) (*codec.Raster, error) {
	if err := o.Validate(r); err != nil {
		return nil, err
	}
	w, h := o.Dimensions(r.Width(), r.Height())
	return &codec.Raster{Image: scaleTo(r.Image, w, h), Format: r.Format}, nil
}

func scaleTo(src *image.NRGBA, w, h int) *image.NRGBA {
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		return codec.ToNRGBA(src)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// CropOptions selects a pixel rectangle.
type CropOptions struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Validate requires the rectangle to lie inside the image.
func (o CropOptions) Validate(r *codec.Raster) error {
	switch {
	case o.Width < 1 || o.Height < 1:
		return invalid("crop", "width and height must be positive")
	case o.X < 0 || o.Y < 0:
		return invalid("crop", "origin must not be negative")
	case o.X+o.Width > r.Width() || o.Y+o.Height > r.Height():
		return invalid("crop", "rectangle %dx%d+%d+%d exceeds image %dx%d",
			o.Width, o.Height, o.X, o.Y, r.Width(), r.Height())
	}
	return nil
}

// Apply copies the selected region into a new image.
func (o CropOptions) Apply(r *codec.Raster) (*codec.Raster, error) {
	if err := o.Validate(r); err != nil {
		return nil, err
	}
	rect := image.Rect(o.X, o.Y, o.X+o.Width, o.Y+o.Height)
	return &codec.Raster{Image: codec.ToNRGBA(r.Image.SubImage(rect)), Format: r.Format}, nil
}

// RotateImageOptions rotates clockwise by an arbitrary angle. The canvas
// grows to the rotated bounding box so nothing is clipped.
type RotateImageOptions struct {
	Degrees float64 `json:"degrees"`
}

// Validate rejects non-finite angles.
func (o RotateImageOptions) Validate(r *codec.Raster) error {
	if math.IsNaN(o.Degrees) || math.IsInf(o.Degrees, 0) {
		return invalid("degrees", "must be a finite number")
	}
	return nil
}

// Apply rotates the image. Multiples of 90 degrees are exact pixel moves.
func (o RotateImageOptions) Apply(r *codec.Raster) (*codec.Raster, error) {
	if err := o.Validate(r); err != nil {
		return nil, err
	}

	deg := math.Mod(o.Degrees, 360)
	if deg < 0 {
		deg += 360
	}
	if deg == math.Trunc(deg) && int(deg)%90 == 0 {
		return &codec.Raster{Image: rotateRight(r.Image, int(deg)/90), Format: r.Format}, nil
	}

	w, h := float64(r.Width()), float64(r.Height())
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	nw := int(math.Ceil(w*math.Abs(cos) + h*math.Abs(sin) - 1e-9))
	nh := int(math.Ceil(w*math.Abs(sin) + h*math.Abs(cos) - 1e-9))

	cx, cy := w/2, h/2
	ncx, ncy := float64(nw)/2, float64(nh)/2
	m := f64.Aff3{
		cos, -sin, ncx - cos*cx + sin*cy,
		sin, cos, ncy - sin*cx - cos*cy,
	}

	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.BiLinear.Transform(dst, m, r.Image, r.Image.Bounds(), draw.Over, nil)
	return &codec.Raster{Image: dst, Format: r.Format}, nil
}

// rotateRight turns src clockwise by quarter turns.
func rotateRight(src *image.NRGBA, turns int) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if turns%2 == 0 {
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				sx, sy := x, y
				if turns == 2 {
					sx, sy = w-1-x, h-1-y
				}
				copyPixel(dst, x, y, src, sx, sy)
			}
		}
		return dst
	}

	dst := image.NewNRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			if turns == 1 {
				copyPixel(dst, x, y, src, y, h-1-x)
			} else {
				copyPixel(dst, x, y, src, w-1-y, x)
			}
		}
	}
	return dst
}

func copyPixel(dst *image.NRGBA, dx, dy int, src *image.NRGBA, sx, sy int) {
	di := dst.PixOffset(dx, dy)
	si := src.PixOffset(sx+src.Rect.Min.X, sy+src.Rect.Min.Y)
	copy(dst.Pix[di:di+4], src.Pix[si:si+4])
}

// FlipOptions mirrors the image along either or both axes.
type FlipOptions struct {
	Horizontal bool `json:"horizontal"`
	Vertical   bool `json:"vertical"`
}

// Validate requires at least one axis.
func (o FlipOptions) Validate(r *codec.Raster) error {
	if !o.Horizontal && !o.Vertical {
		return invalid("flip", "choose horizontal or vertical")
	}
	return nil
}

// Apply mirrors the pixels.
func (o FlipOptions) Apply(r *codec.Raster) (*codec.Raster, error) {
	if err := o.Validate(r); err != nil {
		return nil, err
	}
	w, h := r.Width(), r.Height()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx, sy := x, y
			if o.Horizontal {
				sx = w - 1 - x
			}
			if o.Vertical {
				sy = h - 1 - y
			}
			copyPixel(dst, x, y, r.Image, sx, sy)
		}
	}
	return &codec.Raster{Image: dst, Format: r.Format}, nil
}

// ConvertOptions re-encodes without touching pixels; the target format is
// carried by the encode options.
type ConvertOptions struct{}

// Validate always succeeds.
func (ConvertOptions) Validate(*codec.Raster) error { return nil }

// Apply returns a copy.
func (ConvertOptions) Apply(r *codec.Raster) (*codec.Raster, error) {
	return r.Clone(), nil
}

var (
	_ ImageOperation = ResizeOptions{}
	_ ImageOperation = CropOptions{}
	_ ImageOperation = RotateImageOptions{}
	_ ImageOperation = FlipOptions{}
	_ ImageOperation = ConvertOptions{}
)
