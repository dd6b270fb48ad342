package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePDF_Rejects(t *testing.T) {
	valid := sizedPDF(t, 1)

	tests := []struct {
		name    string
		data    []byte
		maxSize int64
		wantErr error
	}{
		{"empty", nil, 0, ErrEmptyFile},
		{"too large", valid, int64(len(valid) - 1), ErrFileTooLarge},
		{"missing header", []byte("hello world, definitely not a pdf"), 0, ErrNotPDF},
		{"header past window", append(bytes.Repeat([]byte(" "), 2048), valid...), 0, ErrNotPDF},
		{"truncated", valid[:40], 0, ErrCorruptFile},
		{"garbage after header", []byte("%PDF-1.7\nthis is not a document"), 0, ErrCorruptFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePDF(File{Name: "input.pdf", Data: tt.data}, tt.maxSize)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var fe *FileError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "input.pdf", fe.Name)
			assert.Contains(t, err.Error(), "input.pdf")
		})
	}
}

func TestDecodePDF_Pages(t *testing.T) {
	doc, err := DecodePDF(File{Name: "three.pdf", Data: sizedPDF(t, 3)}, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, doc.PageCount())
	assert.Equal(t, []float64{100, 110, 120}, pageWidths(doc))
	for i, p := range doc.Pages {
		assert.Equal(t, 200.0, p.Height)
		assert.Equal(t, 0, p.Rotation)
		assert.Equal(t, 0, p.Source)
		assert.Equal(t, i+1, p.SourcePage)
	}
	require.Len(t, doc.Sources, 1)
	assert.Equal(t, 3, doc.Sources[0].PageCount)
}

func TestEncodePDF_ReorderAndBlank(t *testing.T) {
	doc, err := DecodePDF(File{Name: "three.pdf", Data: sizedPDF(t, 3)}, 0)
	require.NoError(t, err)

	edited := doc.Subset("edited.pdf", 2, 0, 1)
	edited.Pages = append(edited.Pages[:1], append([]Page{NewBlankPage()}, edited.Pages[1:]...)...)

	data, err := EncodePDF(edited)
	require.NoError(t, err)

	out, err := DecodePDF(File{Name: "edited.pdf", Data: data}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{120, A4Width, 100, 110}, pageWidths(out))
}

func TestEncodePDF_MergeSources(t *testing.T) {
	a, err := DecodePDF(File{Name: "a.pdf", Data: sizedPDF(t, 2)}, 0)
	require.NoError(t, err)
	b, err := DecodePDF(File{Name: "b.pdf", Data: sizedPDF(t, 3)}, 0)
	require.NoError(t, err)

	merged := a.Clone()
	merged.Append(b)
	require.Len(t, merged.Sources, 2)

	data, err := EncodePDF(merged)
	require.NoError(t, err)

	n, err := PageCount(data)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestEncodePDF_Rotation(t *testing.T) {
	doc, err := DecodePDF(File{Name: "two.pdf", Data: sizedPDF(t, 2)}, 0)
	require.NoError(t, err)

	doc.Pages[0].Rotation = 90
	doc.Pages[1].Rotation = 270

	data, err := EncodePDF(doc)
	require.NoError(t, err)

	out, err := DecodePDF(File{Name: "rotated.pdf", Data: data}, 0)
	require.NoError(t, err)
	assert.Equal(t, 90, out.Pages[0].Rotation)
	assert.Equal(t, 270, out.Pages[1].Rotation)
	assert.Equal(t, []float64{100, 110}, pageWidths(out))
}

func TestEncodePDF_Watermark(t *testing.T) {
	doc, err := DecodePDF(File{Name: "two.pdf", Data: sizedPDF(t, 2)}, 0)
	require.NoError(t, err)

	for i := range doc.Pages {
		doc.Pages[i].Watermarks = []Watermark{{Text: "DRAFT", FontSize: 16, Opacity: 0.3}}
	}

	data, err := EncodePDF(doc)
	require.NoError(t, err)

	n, err := PageCount(data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEqual(t, doc.Sources[0].Data, data)
}

func TestEncodePDF_Empty(t *testing.T) {
	_, err := EncodePDF(&Document{})
	assert.ErrorIs(t, err, ErrEncodeFailed)
}

func TestNormalizeRotation(t *testing.T) {
	tests := map[int]int{0: 0, 90: 90, 360: 0, 450: 90, -90: 270, -270: 90, 720: 0}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeRotation(in), "angle %d", in)
	}
}

func TestDocument_CloneIsIndependent(t *testing.T) {
	doc := &Document{Pages: []Page{{Width: 10, Watermarks: []Watermark{{Text: "a"}}}}}
	clone := doc.Clone()
	clone.Pages[0].Width = 20
	clone.Pages[0].Watermarks[0].Text = "b"

	assert.Equal(t, 10.0, doc.Pages[0].Width)
	assert.Equal(t, "a", doc.Pages[0].Watermarks[0].Text)
}
