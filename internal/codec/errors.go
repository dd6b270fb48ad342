package codec

import (
	"errors"
	"fmt"
)

// Decode errors. Callers receive them wrapped in a *FileError naming the input.
var (
	// ErrEmptyFile indicates a zero-length input.
	ErrEmptyFile = errors.New("file is empty")

	// ErrFileTooLarge indicates the input exceeds the decode ceiling.
	ErrFileTooLarge = errors.New("file is too large")

	// ErrNotPDF indicates the %PDF- marker is missing from the file header.
	ErrNotPDF = errors.New("file is not a PDF")

	// ErrCorruptFile indicates the input could not be parsed.
	ErrCorruptFile = errors.New("file is corrupt or unreadable")

	// ErrUnsupportedFormat indicates an image format outside the supported set.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEncodeFailed indicates serialization of a model failed.
	ErrEncodeFailed = errors.New("encode failed")

	// ErrRenderFailed indicates the rasterizer could not render a document.
	ErrRenderFailed = errors.New("render failed")
)

// FileError attaches the offending file name to a codec error.
type FileError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}

func fileError(name string, err error) error {
	return &FileError{Name: name, Err: err}
}
