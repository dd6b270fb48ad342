// Package codec converts between raw file bytes and the in-memory models
// the transform operations edit: page lists for PDFs and pixel buffers for images.
package codec

import (
	"bytes"
	"path/filepath"
	"strings"
)

// File is one named input or output buffer.
type File struct {
	Name string
	Data []byte
}

// Size returns the file length in bytes.
func (f File) Size() int64 {
	return int64(len(f.Data))
}

// Format identifies a file type the toolkit understands.
type Format string

// Supported formats.
const (
	FormatUnknown Format = ""
	FormatPDF     Format = "pdf"
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatBMP     Format = "bmp"
	FormatWebP    Format = "webp"
	FormatZIP     Format = "zip"
	FormatText    Format = "txt"
)

// MIME returns the media type for the format.
func (f Format) MIME() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatBMP:
		return "image/bmp"
	case FormatWebP:
		return "image/webp"
	case FormatZIP:
		return "application/zip"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the conventional file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatUnknown:
		return ""
	case FormatJPEG:
		return ".jpg"
	default:
		return "." + string(f)
	}
}

// IsImage reports whether the format is a raster image.
func (f Format) IsImage() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatWebP:
		return true
	}
	return false
}

// IsEncodable reports whether EncodeImage can produce the format.
func (f Format) IsEncodable() bool {
	return f == FormatJPEG || f == FormatPNG || f == FormatWebP
}

// ParseFormat maps a user-supplied name, extension or MIME type to a Format.
func ParseFormat(s string) Format {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, ".")
	s = strings.TrimPrefix(s, "image/")
	switch s {
	case "pdf", "application/pdf":
		return FormatPDF
	case "jpg", "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "bmp":
		return FormatBMP
	case "webp":
		return FormatWebP
	case "zip", "application/zip":
		return FormatZIP
	case "txt", "text", "text/plain":
		return FormatText
	default:
		return FormatUnknown
	}
}

// DetectFormat sniffs the file's magic bytes and falls back to its extension.
func DetectFormat(f File) Format {
	data := f.Data
	switch {
	case hasPDFHeader(data):
		return FormatPDF
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF
	case bytes.HasPrefix(data, []byte("BM")) && len(data) > 14:
		return FormatBMP
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP
	case bytes.HasPrefix(data, []byte("PK\x03\x04")), bytes.HasPrefix(data, []byte("PK\x05\x06")):
		return FormatZIP
	}
	return ParseFormat(filepath.Ext(f.Name))
}

// pdfHeaderWindow is how far into the file the %PDF- marker may appear.
const pdfHeaderWindow = 1024

func hasPDFHeader(data []byte) bool {
	window := data
	if len(window) > pdfHeaderWindow {
		window = window[:pdfHeaderWindow]
	}
	return bytes.Contains(window, []byte("%PDF-"))
}

// BaseName returns the file name without directory and extension.
func BaseName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "file"
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
