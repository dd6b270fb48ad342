package transform

import (
	"archive/zip"
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/codec"
)

func pngFile(t *testing.T, name string, w, h int) codec.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h, color.NRGBA{R: 20, G: 40, B: 60, A: 255}).Image))
	return codec.File{Name: name, Data: buf.Bytes()}
}

func zipFile(t *testing.T, entries map[string]string, dirs ...string) codec.File {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, d := range dirs {
		_, err := zw.Create(d)
		require.NoError(t, err)
	}
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return codec.File{Name: "archive.zip", Data: buf.Bytes()}
}

func TestImagesToPDF(t *testing.T) {
	out, err := ImagesToPDF("album.pdf", []codec.File{
		pngFile(t, "a.png", 30, 20),
		pngFile(t, "b.png", 10, 40),
	}, ImagesToPDFOptions{Quality: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.MIME())

	doc, err := codec.DecodePDF(out.File(), 0)
	require.NoError(t, err)
	require.Equal(t, 2, doc.PageCount())
	assert.Equal(t, 30.0, doc.Pages[0].Width)
	assert.Equal(t, 40.0, doc.Pages[1].Height)

	_, err = ImagesToPDF("x.pdf", nil, ImagesToPDFOptions{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ImagesToPDF("x.pdf", []codec.File{{Name: "bad.png", Data: []byte("bad")}}, ImagesToPDFOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.png")
}

func TestPDFToText(t *testing.T) {
	data, err := codec.WriteBlankPDF([]codec.PageSize{{Width: 100, Height: 100}, {Width: 100, Height: 100}})
	require.NoError(t, err)
	f := codec.File{Name: "notes.pdf", Data: data}

	out, err := PDFToText(f, 0, fakeExtractor{pages: []string{"first", "second"}})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", out.Name)
	assert.Equal(t, "--- Page 1 of 2 ---\nfirst\n\n--- Page 2 of 2 ---\nsecond\n", string(out.Data))

	_, err = PDFToText(f, 0, fakeExtractor{err: errors.New("boom")})
	assert.ErrorContains(t, err, "notes.pdf")

	_, err = PDFToText(codec.File{Name: "plain.txt", Data: []byte("hi")}, 0, fakeExtractor{})
	assert.ErrorIs(t, err, codec.ErrNotPDF)
}

func TestExtractZip(t *testing.T) {
	f := zipFile(t, map[string]string{
		"readme.txt":       "hello",
		"docs/./guide.pdf": "%PDF-1.7 fake",
	}, "docs/")

	entries, err := ListZip(f)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	outputs, err := ExtractZip(f, DefaultZipLimits())
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	byName := map[string]Output{}
	for _, o := range outputs {
		byName[o.Name] = o
	}
	assert.Equal(t, "hello", string(byName["readme.txt"].Data))
	assert.Equal(t, codec.FormatPDF, byName["docs/guide.pdf"].Format)
}

func TestExtractZip_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		file    codec.File
		limits  ZipLimits
		wantErr error
	}{
		{"parent traversal", zipFile(t, map[string]string{"../evil.sh": "x"}), DefaultZipLimits(), ErrUnsafeArchive},
		{"nested traversal", zipFile(t, map[string]string{"a/../../evil.sh": "x"}), DefaultZipLimits(), ErrUnsafeArchive},
		{"absolute", zipFile(t, map[string]string{"/etc/passwd": "x"}), DefaultZipLimits(), ErrUnsafeArchive},
		{"entry too large", zipFile(t, map[string]string{"big.bin": "0123456789"}), ZipLimits{MaxEntrySize: 5}, ErrUnsafeArchive},
		{"total too large", zipFile(t, map[string]string{"a": "0123", "b": "4567"}), ZipLimits{MaxTotalSize: 6}, ErrUnsafeArchive},
		{"too many entries", zipFile(t, map[string]string{"a": "1", "b": "2"}), ZipLimits{MaxEntries: 1}, ErrUnsafeArchive},
		{"not a zip", codec.File{Name: "x.zip", Data: []byte("nope")}, DefaultZipLimits(), codec.ErrCorruptFile},
		{"empty", codec.File{Name: "x.zip"}, DefaultZipLimits(), codec.ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractZip(tt.file, tt.limits)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBundleZip(t *testing.T) {
	out, err := BundleZip("results.zip", []Output{
		{Name: "page.png", Data: []byte("one")},
		{Name: "page.png", Data: []byte("two")},
		{Name: "dir/notes.txt", Data: []byte("three")},
	})
	require.NoError(t, err)
	assert.Equal(t, codec.FormatZIP, out.Format)

	back, err := ExtractZip(out.File(), DefaultZipLimits())
	require.NoError(t, err)

	names := make([]string, len(back))
	for i, o := range back {
		names[i] = o.Name
	}
	assert.Equal(t, []string{"page.png", "page_2.png", "notes.txt"}, names)

	_, err = BundleZip("empty.zip", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
