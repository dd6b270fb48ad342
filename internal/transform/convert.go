package transform

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/flexconvert/flexconvert/internal/codec"
)

// =============================================================================
// Images to PDF
// =============================================================================

// ImagesToPDFOptions controls the JPEG quality of embedded pages.
type ImagesToPDFOptions struct {
	// Quality is in [0, 1]; zero selects codec.DefaultQuality.
	Quality float64 `json:"quality"`
}

// ImagesToPDF builds one page per image, each page sized to its image
// with one point per pixel.
func ImagesToPDF(name string, files []codec.File, opts ImagesToPDFOptions) (Output, error) {
	if len(files) == 0 {
		return Output{}, fmt.Errorf("%w: at least one image is required", ErrInvalidInput)
	}
	if opts.Quality < 0 || opts.Quality > 1 {
		return Output{}, invalid("quality", "must be between 0 and 1")
	}
	quality := opts.Quality
	if quality == 0 {
		quality = codec.DefaultQuality
	}

	pages := make([]codec.ImagePage, 0, len(files))
	for _, f := range files {
		r, err := codec.DecodeImage(f)
		if err != nil {
			return Output{}, err
		}
		pages = append(pages, codec.ImagePage{Image: r.Image, Quality: int(quality * 100)})
	}

	data, err := codec.WriteImagePDF(codec.BaseName(name), pages)
	if err != nil {
		return Output{}, err
	}
	return Output{Name: name, Format: codec.FormatPDF, Data: data}, nil
}

// =============================================================================
// PDF to text
// =============================================================================

// PDFToText extracts the text of every page into one plain-text output.
func PDFToText(f codec.File, maxSize int64, extractor codec.TextExtractor) (Output, error) {
	doc, err := codec.DecodePDF(f, maxSize)
	if err != nil {
		return Output{}, err
	}

	pages, err := extractor.ExtractText(f.Data)
	if err != nil {
		return Output{}, fmt.Errorf("%s: %w", f.Name, err)
	}

	var b strings.Builder
	for i, text := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d of %d ---\n", i+1, doc.PageCount())
		b.WriteString(text)
	}
	b.WriteString("\n")

	return Output{
		Name:   OutputName(f.Name, "", codec.FormatText),
		Format: codec.FormatText,
		Data:   []byte(b.String()),
	}, nil
}

// =============================================================================
// ZIP
// =============================================================================

// ZipLimits bounds extraction.
type ZipLimits struct {
	MaxEntries   int
	MaxEntrySize int64
	MaxTotalSize int64
}

// DefaultZipLimits returns the extraction ceilings used by the CLI.
func DefaultZipLimits() ZipLimits {
	return ZipLimits{
		MaxEntries:   10000,
		MaxEntrySize: 500 * 1024 * 1024,
		MaxTotalSize: 2 * 1024 * 1024 * 1024,
	}
}

// ZipEntry describes one archive member.
type ZipEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ListZip returns the file entries of an archive, skipping directories.
func ListZip(f codec.File) ([]ZipEntry, error) {
	zr, err := openZip(f)
	if err != nil {
		return nil, err
	}

	var entries []ZipEntry
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, ZipEntry{
			Name:     zf.Name,
			Size:     int64(zf.UncompressedSize64),
			Modified: zf.Modified,
		})
	}
	return entries, nil
}

// ExtractZip returns every file entry. Entries whose names would escape the
// extraction root are rejected, as are archives exceeding limits.
func ExtractZip(f codec.File, limits ZipLimits) ([]Output, error) {
	zr, err := openZip(f)
	if err != nil {
		return nil, err
	}

	if limits.MaxEntries > 0 && len(zr.File) > limits.MaxEntries {
		return nil, fmt.Errorf("%w: %s: %d entries exceeds %d", ErrUnsafeArchive, f.Name, len(zr.File), limits.MaxEntries)
	}

	var (
		outputs []Output
		total   int64
	)
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}

		name, err := safeEntryName(zf.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnsafeArchive, f.Name, err)
		}

		data, err := readEntry(zf, limits.MaxEntrySize)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", f.Name, zf.Name, err)
		}
		total += int64(len(data))
		if limits.MaxTotalSize > 0 && total > limits.MaxTotalSize {
			return nil, fmt.Errorf("%w: %s: extracted size exceeds %d bytes", ErrUnsafeArchive, f.Name, limits.MaxTotalSize)
		}

		file := codec.File{Name: name, Data: data}
		outputs = append(outputs, Output{Name: name, Format: codec.DetectFormat(file), Data: data})
	}
	return outputs, nil
}

// BundleZip packs outputs into one archive. Duplicate names get a numeric suffix.
func BundleZip(name string, outputs []Output) (Output, error) {
	if len(outputs) == 0 {
		return Output{}, fmt.Errorf("%w: nothing to bundle", ErrInvalidInput)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]int)
	for _, o := range outputs {
		entry := uniqueName(path.Base(o.Name), used)
		w, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Deflate, Modified: time.Now()})
		if err != nil {
			return Output{}, fmt.Errorf("%w: %v", codec.ErrEncodeFailed, err)
		}
		if _, err := w.Write(o.Data); err != nil {
			return Output{}, fmt.Errorf("%w: %v", codec.ErrEncodeFailed, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Output{}, fmt.Errorf("%w: %v", codec.ErrEncodeFailed, err)
	}
	return Output{Name: name, Format: codec.FormatZIP, Data: buf.Bytes()}, nil
}

func openZip(f codec.File) (*zip.Reader, error) {
	if len(f.Data) == 0 {
		return nil, &codec.FileError{Name: f.Name, Err: codec.ErrEmptyFile}
	}
	zr, err := zip.NewReader(bytes.NewReader(f.Data), int64(len(f.Data)))
	if errors.Is(err, zip.ErrInsecurePath) {
		// Entry names are checked by safeEntryName.
		err = nil
	}
	if err != nil {
		return nil, &codec.FileError{Name: f.Name, Err: fmt.Errorf("%w: %v", codec.ErrCorruptFile, err)}
	}
	return zr, nil
}

// safeEntryName cleans an entry name and rejects absolute or parent-relative paths.
func safeEntryName(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "/") || (len(name) > 1 && name[1] == ':') {
		return "", fmt.Errorf("absolute path %q", name)
	}
	cleaned := path.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes the archive root", name)
	}
	return cleaned, nil
}

func readEntry(zf *zip.File, maxSize int64) ([]byte, error) {
	if maxSize > 0 && zf.UncompressedSize64 > uint64(maxSize) {
		return nil, fmt.Errorf("%w: entry is larger than %d bytes", ErrUnsafeArchive, maxSize)
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrCorruptFile, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if maxSize > 0 {
		// The header size can lie; never read past the limit.
		r = io.LimitReader(rc, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrCorruptFile, err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: entry is larger than %d bytes", ErrUnsafeArchive, maxSize)
	}
	return data, nil
}

func uniqueName(name string, used map[string]int) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n+1, ext)
}
