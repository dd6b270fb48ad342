package transform

import (
	"bytes"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/codec"
)

func TestResize_NeverUpscales(t *testing.T) {
	sources := [][2]int{{1, 1}, {640, 480}, {480, 640}, {1000, 10}, {33, 77}}
	bounds := [][2]int{{0, 100}, {100, 0}, {50, 50}, {2000, 2000}, {1, 1000}, {320, 240}, {7, 3}}

	for _, src := range sources {
		for _, b := range bounds {
			o := ResizeOptions{MaxWidth: b[0], MaxHeight: b[1]}
			w, h := o.Dimensions(src[0], src[1])

			assert.LessOrEqual(t, w, src[0])
			assert.LessOrEqual(t, h, src[1])
			if b[0] > 0 {
				assert.LessOrEqual(t, w, max(b[0], 1))
			}
			if b[1] > 0 && w > 1 && h > 1 {
				assert.LessOrEqual(t, h, b[1])
			}
			if w > 1 && h > 1 {
				srcRatio := float64(src[0]) / float64(src[1])
				gotRatio := float64(w) / float64(h)
				// Rounding moves each side by at most half a pixel.
				tolerance := srcRatio * (0.5/float64(w) + 0.5/float64(h)) * 1.01
				assert.InDelta(t, srcRatio, gotRatio, tolerance, "src %v bounds %v", src, b)
			}
		}
	}
}

func TestResize_Apply(t *testing.T) {
	r := solid(200, 100, color.NRGBA{G: 255, A: 255})

	out, err := ResizeOptions{MaxWidth: 50, MaxHeight: 50}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, 50, out.Width())
	assert.Equal(t, 25, out.Height())
	assert.Equal(t, 200, r.Width())

	same, err := ResizeOptions{MaxWidth: 400}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, 200, same.Width())

	_, err = ResizeOptions{}.Apply(r)
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = ResizeOptions{MaxWidth: -1, MaxHeight: 10}.Apply(r)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestCrop(t *testing.T) {
	r := marked(10, 8)

	out, err := CropOptions{X: 2, Y: 3, Width: 4, Height: 5}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Width())
	assert.Equal(t, 5, out.Height())
	assert.Equal(t, color.NRGBA{R: 2, G: 3, A: 255}, out.Image.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 5, G: 7, A: 255}, out.Image.NRGBAAt(3, 4))

	for _, o := range []CropOptions{
		{X: 0, Y: 0, Width: 0, Height: 1},
		{X: -1, Y: 0, Width: 2, Height: 2},
		{X: 8, Y: 0, Width: 3, Height: 2},
		{X: 0, Y: 7, Width: 1, Height: 2},
	} {
		_, err := o.Apply(r)
		assert.ErrorIs(t, err, ErrInvalidOptions, "%+v", o)
	}
}

func TestRotateImage(t *testing.T) {
	r := marked(4, 2)

	cw, err := RotateImageOptions{Degrees: 90}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, 2, cw.Width())
	assert.Equal(t, 4, cw.Height())
	// Top-left of the source ends up top-right.
	assert.Equal(t, color.NRGBA{R: 0, G: 0, A: 255}, cw.Image.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{R: 3, G: 1, A: 255}, cw.Image.NRGBAAt(0, 3))

	ccw, err := RotateImageOptions{Degrees: -90}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0, G: 0, A: 255}, ccw.Image.NRGBAAt(0, 3))

	half, err := RotateImageOptions{Degrees: 180}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 3, G: 1, A: 255}, half.Image.NRGBAAt(0, 0))

	full, err := RotateImageOptions{Degrees: 360}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, r.Image.Pix, full.Image.Pix)
}

func TestRotateImage_BoundingBox(t *testing.T) {
	r := solid(100, 50, color.NRGBA{B: 255, A: 255})

	out, err := RotateImageOptions{Degrees: 30}.Apply(r)
	require.NoError(t, err)

	rad := 30 * math.Pi / 180
	wantW := 100*math.Cos(rad) + 50*math.Sin(rad)
	wantH := 100*math.Sin(rad) + 50*math.Cos(rad)
	assert.Equal(t, int(math.Ceil(wantW)), out.Width())
	assert.Equal(t, int(math.Ceil(wantH)), out.Height())

	// The centre keeps the source colour; corners are transparent.
	assert.Equal(t, uint8(255), out.Image.NRGBAAt(out.Width()/2, out.Height()/2).B)
	assert.Equal(t, uint8(0), out.Image.NRGBAAt(0, 0).A)

	_, err = RotateImageOptions{Degrees: math.NaN()}.Apply(r)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestFlip(t *testing.T) {
	r := marked(3, 2)

	h, err := FlipOptions{Horizontal: true}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 2, G: 0, A: 255}, h.Image.NRGBAAt(0, 0))

	v, err := FlipOptions{Vertical: true}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0, G: 1, A: 255}, v.Image.NRGBAAt(0, 0))

	both, err := FlipOptions{Horizontal: true, Vertical: true}.Apply(r)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 2, G: 1, A: 255}, both.Image.NRGBAAt(0, 0))

	_, err = FlipOptions{}.Apply(r)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestProcessImage_Convert(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, marked(6, 4).Image))

	out, err := ProcessImage(codec.File{Name: "photos/cat.png", Data: buf.Bytes()}, "converted",
		ConvertOptions{}, codec.EncodeOptions{Format: codec.FormatWebP, Quality: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "cat_converted.webp", out.Name)
	assert.Equal(t, codec.FormatWebP, out.Format)
	assert.Equal(t, codec.FormatWebP, codec.DetectFormat(out.File()))
}

func TestProcessImage_ValidationStopsBeforeEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, marked(6, 4).Image))

	_, err := ProcessImage(codec.File{Name: "a.png", Data: buf.Bytes()}, "cropped",
		CropOptions{Width: 10, Height: 10}, codec.EncodeOptions{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = ProcessImage(codec.File{Name: "broken.png", Data: []byte("nope")}, "cropped",
		CropOptions{Width: 1, Height: 1}, codec.EncodeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.png")
}
