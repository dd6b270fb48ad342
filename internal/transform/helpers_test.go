package transform

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/codec"
)

// testDocument decodes a generated PDF whose page i is 100+10*i points wide.
func testDocument(t *testing.T, name string, pages int) *codec.Document {
	t.Helper()
	sizes := make([]codec.PageSize, pages)
	for i := range sizes {
		sizes[i] = codec.PageSize{Width: float64(100 + 10*i), Height: 300}
	}
	data, err := codec.WriteBlankPDF(sizes)
	require.NoError(t, err)

	doc, err := codec.DecodePDF(codec.File{Name: name, Data: data}, 0)
	require.NoError(t, err)
	return doc
}

func widths(doc *codec.Document) []float64 {
	out := make([]float64, doc.PageCount())
	for i, p := range doc.Pages {
		out[i] = p.Width
	}
	return out
}

func solid(w, h int, c color.NRGBA) *codec.Raster {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return &codec.Raster{Image: img, Format: codec.FormatPNG}
}

// marked returns a w x h raster whose pixel (x, y) encodes its own coordinates.
func marked(w, h int) *codec.Raster {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	return &codec.Raster{Image: img, Format: codec.FormatPNG}
}

type fakeRasterizer struct {
	scale float64
	err   error
}

func (f *fakeRasterizer) Render(pdf []byte, scale float64, onPage func(done, total int)) ([]image.Image, error) {
	f.scale = scale
	if f.err != nil {
		return nil, f.err
	}
	n, err := codec.PageCount(pdf)
	if err != nil {
		return nil, err
	}
	pages := make([]image.Image, n)
	for i := range pages {
		pages[i] = solid(int(50*scale), int(80*scale), color.NRGBA{R: 200, A: 255}).Image
		if onPage != nil {
			onPage(i+1, n)
		}
	}
	return pages, nil
}

type fakeExtractor struct {
	pages []string
	err   error
}

func (f fakeExtractor) ExtractText([]byte) ([]string, error) {
	return f.pages, f.err
}
