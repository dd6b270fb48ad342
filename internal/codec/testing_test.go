package codec

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

// sizedPDF returns a PDF whose page i is 100+10*i points wide, so page
// order survives a round trip and can be asserted.
func sizedPDF(t *testing.T, pages int) []byte {
	t.Helper()
	sizes := make([]PageSize, pages)
	for i := range sizes {
		sizes[i] = PageSize{Width: float64(100 + 10*i), Height: 200}
	}
	data, err := WriteBlankPDF(sizes)
	require.NoError(t, err)
	return data
}

func pageWidths(doc *Document) []float64 {
	out := make([]float64, len(doc.Pages))
	for i, p := range doc.Pages {
		out[i] = p.Width
	}
	return out
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}
