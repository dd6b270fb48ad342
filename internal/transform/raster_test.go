package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/codec"
)

func TestCompressOptions_Mapping(t *testing.T) {
	tests := []struct {
		level   int
		scale   float64
		quality float64
	}{
		{1, 2.0, 0.95},
		{5, 1.4, 0.625},
		{9, 0.8, 0.3},
	}
	for _, tt := range tests {
		o := CompressOptions{Level: tt.level}
		require.NoError(t, o.Validate())
		assert.InDelta(t, tt.scale, o.Scale(), 1e-9)
		assert.InDelta(t, tt.quality, o.Quality(), 1e-9)
	}

	assert.ErrorIs(t, CompressOptions{Level: 0}.Validate(), ErrInvalidOptions)
	assert.ErrorIs(t, CompressOptions{Level: 10}.Validate(), ErrInvalidOptions)
}

func TestCompress(t *testing.T) {
	doc := testDocument(t, "scan.pdf", 3)
	r := &fakeRasterizer{}

	res, err := Compress(doc, r, CompressOptions{Level: 9})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Empty(t, res.Warning)
	assert.Equal(t, "scan_compressed.pdf", res.Output.Name)
	assert.InDelta(t, 0.8, r.scale, 1e-9)

	out, err := codec.DecodePDF(res.Output.File(), 0)
	require.NoError(t, err)
	require.Equal(t, 3, out.PageCount())
	// Rendered 40x64 px at scale 0.8 maps back to 50x80 points.
	assert.InDelta(t, 50, out.Pages[0].Width, 0.01)
	assert.InDelta(t, 80, out.Pages[0].Height, 0.01)
}

func TestCompress_FallsBackWhenRenderingFails(t *testing.T) {
	doc := testDocument(t, "scan.pdf", 2)

	res, err := Compress(doc, &fakeRasterizer{err: errors.New("no renderer")}, CompressOptions{Level: 5})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Warning, "no renderer")

	n, err := codec.PageCount(res.Output.Data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestToImages(t *testing.T) {
	doc := testDocument(t, "slides.pdf", 2)
	r := &fakeRasterizer{}

	var pages []int
	outputs, err := ToImages(doc, r, ToImagesOptions{Format: codec.FormatJPEG, Quality: 0.8}, func(done, total int) {
		assert.Equal(t, 2, total)
		pages = append(pages, done)
	})
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, []int{1, 2}, pages)
	assert.Equal(t, ImageScale, r.scale)
	assert.Equal(t, "slides_page_1.jpg", outputs[0].Name)
	assert.Equal(t, "image/jpeg", outputs[1].MIME())

	img, err := codec.DecodeImage(outputs[0].File())
	require.NoError(t, err)
	assert.Equal(t, 100, img.Width())

	_, err = ToImages(doc, r, ToImagesOptions{Format: codec.FormatWebP}, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
