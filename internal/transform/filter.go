package transform

import (
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/flexconvert/flexconvert/internal/codec"
)

// =============================================================================
// Grayscale
// =============================================================================

// GrayscaleOptions converts to luminance with the ITU-R BT.601 weights.
type GrayscaleOptions struct{}

// Validate always succeeds.
func (GrayscaleOptions) Validate(*codec.Raster) error { return nil }

// Apply writes 0.299R + 0.587G + 0.114B to all three channels.
func (GrayscaleOptions) Apply(r *codec.Raster) (*codec.Raster, error) {
	out := r.Clone()
	pix := out.Image.Pix
	for i := 0; i < len(pix); i += 4 {
		l := luminance(pix[i], pix[i+1], pix[i+2])
		pix[i], pix[i+1], pix[i+2] = l, l, l
	}
	return out, nil
}

func luminance(r, g, b uint8) uint8 {
	return clamp8(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}

func clamp8(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 255)))
}

// =============================================================================
// Adjust
// =============================================================================

// MaxAdjustFactor bounds the brightness, contrast and saturation multipliers.
const MaxAdjustFactor = 3.0

// AdjustOptions holds multipliers where 1.0 leaves the image unchanged.
// A zero field also means unchanged.
type AdjustOptions struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
}

// Validate checks every multiplier is within [0, 3].
func (o AdjustOptions) Validate(*codec.Raster) error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"brightness", o.Brightness},
		{"contrast", o.Contrast},
		{"saturation", o.Saturation},
	} {
		if math.IsNaN(f.value) || f.value < 0 || f.value > MaxAdjustFactor {
			return invalid(f.name, "must be between 0 and %.0f", MaxAdjustFactor)
		}
	}
	return nil
}

func (o AdjustOptions) isIdentity() bool {
	return orOne(o.Brightness) == 1 && orOne(o.Contrast) == 1 && orOne(o.Saturation) == 1
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// Apply runs brightness, then contrast, then saturation, per pixel.
func (o AdjustOptions) Apply(r *codec.Raster) (*codec.Raster, error) {
	if err := o.Validate(r); err != nil {
		return nil, err
	}
	out := r.Clone()
	adjustPixels(out.Image, o)
	return out, nil
}

func adjustPixels(img *image.NRGBA, o AdjustOptions) {
	if o.isIdentity() {
		return
	}
	b, c, s := orOne(o.Brightness), orOne(o.Contrast), orOne(o.Saturation)

	pix := img.Pix
	for i := 0; i < len(pix); i += 4 {
		rgb := [3]float64{float64(pix[i]) / 255, float64(pix[i+1]) / 255, float64(pix[i+2]) / 255}
		for k := range rgb {
			rgb[k] = (rgb[k]*b-0.5)*c + 0.5
		}
		rr := (0.213+0.787*s)*rgb[0] + (0.715-0.715*s)*rgb[1] + (0.072-0.072*s)*rgb[2]
		gg := (0.213-0.213*s)*rgb[0] + (0.715+0.285*s)*rgb[1] + (0.072-0.072*s)*rgb[2]
		bb := (0.213-0.213*s)*rgb[0] + (0.715-0.715*s)*rgb[1] + (0.072+0.928*s)*rgb[2]
		pix[i], pix[i+1], pix[i+2] = clamp8(rr*255), clamp8(gg*255), clamp8(bb*255)
	}
}

// =============================================================================
// Text overlay
// =============================================================================

// Anchor is where overlay text is placed.
type Anchor string

// Overlay anchors.
const (
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopRight    Anchor = "top-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottomRight Anchor = "bottom-right"
	AnchorCenter      Anchor = "center"
)

// Text overlay sizing.
const (
	OverlayFontRatio   = 0.035
	MinOverlayFontSize = 8
	MaxOverlayLength   = 500
)

// TextOverlayOptions draws white text on a translucent black box.
type TextOverlayOptions struct {
	Text     string `json:"text"`
	Position Anchor `json:"position"`

	// OffsetX and OffsetY move the box inward from the anchor, in pixels.
	OffsetX int `json:"offsetX"`
	OffsetY int `json:"offsetY"`
}

// Validate requires text and a known anchor.
func (o TextOverlayOptions) Validate(*codec.Raster) error {
	text := strings.TrimSpace(o.Text)
	if text == "" {
		return invalid("text", "must not be empty")
	}
	if len([]rune(text)) > MaxOverlayLength {
		return invalid("text", "must be at most %d characters", MaxOverlayLength)
	}
	switch o.Position {
	case AnchorTopLeft, AnchorTopRight, AnchorBottomLeft, AnchorBottomRight, AnchorCenter:
		return nil
	}
	return invalid("position", "unknown anchor %q", o.Position)
}

var (
	overlayFontOnce sync.Once
	overlayFont     *opentype.Font
	overlayFontErr  error
)

func loadOverlayFont() (*opentype.Font, error) {
	overlayFontOnce.Do(func() {
		overlayFont, overlayFontErr = opentype.Parse(goregular.TTF)
	})
	return overlayFont, overlayFontErr
}

// FontSize returns the overlay font size for an image width.
func (o TextOverlayOptions) FontSize(width int) float64 {
	return math.Max(MinOverlayFontSize, math.Round(float64(width)*OverlayFontRatio))
}

// Apply renders the overlay on a copy of the image.
func (o TextOverlayOptions) Apply(r *codec.Raster) (*codec.Raster, error) {
	if err := o.Validate(r); err != nil {
		return nil, err
	}

	f, err := loadOverlayFont()
	if err != nil {
		return nil, err
	}
	size := o.FontSize(r.Width())
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, err
	}
	defer face.Close()

	text := strings.TrimSpace(o.Text)
	out := r.Clone()
	d := &font.Drawer{Dst: out.Image, Src: image.White, Face: face}

	metrics := face.Metrics()
	pad := int(math.Round(size / 2))
	textW := d.MeasureString(text).Ceil()
	textH := (metrics.Ascent + metrics.Descent).Ceil()
	boxW, boxH := textW+2*pad, textH+2*pad

	W, H := r.Width(), r.Height()
	var x, y int
	switch o.Position {
	case AnchorTopLeft:
		x, y = o.OffsetX, o.OffsetY
	case AnchorTopRight:
		x, y = W-boxW-o.OffsetX, o.OffsetY
	case AnchorBottomLeft:
		x, y = o.OffsetX, H-boxH-o.OffsetY
	case AnchorBottomRight:
		x, y = W-boxW-o.OffsetX, H-boxH-o.OffsetY
	case AnchorCenter:
		x, y = (W-boxW)/2+o.OffsetX, (H-boxH)/2+o.OffsetY
	}

	box := image.Rect(x, y, x+boxW, y+boxH)
	draw.Draw(out.Image, box, image.NewUniform(color.NRGBA{A: 128}), image.Point{}, draw.Over)

	d.Dot = fixed.P(x+pad, y+pad+metrics.Ascent.Ceil())
	d.DrawString(text)

	return out, nil
}

// =============================================================================
// Enhance
// =============================================================================

// EnhanceOptions bundles sharpen, denoise, auto-levels, the adjust
// multipliers and an optional resize to target dimensions.
type EnhanceOptions struct {
	// Sharpen and Denoise are strengths in [0, 1].
	Sharpen float64 `json:"sharpen"`
	Denoise float64 `json:"denoise"`

	AutoLevels bool          `json:"autoLevels"`
	Adjust     AdjustOptions `json:"adjust"`

	// TargetWidth and TargetHeight fit the result to the box; upscaling is
	// allowed. Zero leaves that dimension to follow the aspect ratio.
	TargetWidth  int `json:"targetWidth"`
	TargetHeight int `json:"targetHeight"`
}

// MaxTargetDimension bounds enhance resize targets.
const MaxTargetDimension = 10000

// Validate checks strengths, multipliers and targets.
func (o EnhanceOptions) Validate(r *codec.Raster) error {
	if o.Sharpen < 0 || o.Sharpen > 1 {
		return invalid("sharpen", "must be between 0 and 1")
	}
	if o.Denoise < 0 || o.Denoise > 1 {
		return invalid("denoise", "must be between 0 and 1")
	}
	if o.TargetWidth < 0 || o.TargetHeight < 0 ||
		o.TargetWidth > MaxTargetDimension || o.TargetHeight > MaxTargetDimension {
		return invalid("target", "dimensions must be between 0 and %d", MaxTargetDimension)
	}
	return o.Adjust.Validate(r)
}

// Apply runs denoise, sharpen, auto-levels, adjust and resize in that order.
func (o EnhanceOptions) Apply(r *codec.Raster) (*codec.Raster, error) {
	if err := o.Validate(r); err != nil {
		return nil, err
	}

	img := codec.ToNRGBA(r.Image)
	if o.Denoise > 0 {
		img = blend(img, boxBlur(img), o.Denoise)
	}
	if o.Sharpen > 0 {
		// Unsharp mask: push each pixel away from its blurred neighbourhood.
		img = blend(img, boxBlur(img), -o.Sharpen)
	}
	if o.AutoLevels {
		autoLevels(img)
	}
	adjustPixels(img, o.Adjust)

	if o.TargetWidth > 0 || o.TargetHeight > 0 {
		w, h := fitTarget(img.Bounds().Dx(), img.Bounds().Dy(), o.TargetWidth, o.TargetHeight)
		img = scaleTo(img, w, h)
	}
	return &codec.Raster{Image: img, Format: r.Format}, nil
}

// fitTarget scales w x h to fit the target box, up or down.
func fitTarget(w, h, tw, th int) (int, int) {
	scale := math.Inf(1)
	if tw > 0 {
		scale = float64(tw) / float64(w)
	}
	if th > 0 {
		scale = math.Min(scale, float64(th)/float64(h))
	}
	return max(1, int(math.Round(float64(w)*scale))), max(1, int(math.Round(float64(h)*scale)))
}

// boxBlur returns a 3x3 mean-filtered copy; edges clamp.
func boxBlur(src *image.NRGBA) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(src.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [4]int
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sx, sy := x+dx, y+dy
					if sx < 0 || sy < 0 || sx >= w || sy >= h {
						continue
					}
					i := src.PixOffset(sx, sy)
					for k := 0; k < 4; k++ {
						sum[k] += int(src.Pix[i+k])
					}
					n++
				}
			}
			i := dst.PixOffset(x, y)
			for k := 0; k < 4; k++ {
				dst.Pix[i+k] = uint8((sum[k] + n/2) / n)
			}
		}
	}
	return dst
}

// blend returns a + t*(b - a) per colour channel; alpha is kept from a.
func blend(a, b *image.NRGBA, t float64) *image.NRGBA {
	out := image.NewNRGBA(a.Bounds())
	for i := 0; i < len(a.Pix); i += 4 {
		for k := 0; k < 3; k++ {
			av, bv := float64(a.Pix[i+k]), float64(b.Pix[i+k])
			out.Pix[i+k] = clamp8(av + t*(bv-av))
		}
		out.Pix[i+3] = a.Pix[i+3]
	}
	return out
}

// autoLevels stretches each colour channel to the full 0-255 range.
func autoLevels(img *image.NRGBA) {
	lo := [3]uint8{255, 255, 255}
	var hi [3]uint8
	for i := 0; i < len(img.Pix); i += 4 {
		for k := 0; k < 3; k++ {
			v := img.Pix[i+k]
			lo[k] = min(lo[k], v)
			hi[k] = max(hi[k], v)
		}
	}
	for i := 0; i < len(img.Pix); i += 4 {
		for k := 0; k < 3; k++ {
			if hi[k] <= lo[k] {
				continue
			}
			v := float64(img.Pix[i+k]-lo[k]) * 255 / float64(hi[k]-lo[k])
			img.Pix[i+k] = clamp8(v)
		}
	}
}

var (
	_ ImageOperation = GrayscaleOptions{}
	_ ImageOperation = AdjustOptions{}
	_ ImageOperation = TextOverlayOptions{}
	_ ImageOperation = EnhanceOptions{}
)
