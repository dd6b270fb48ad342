package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOptions indicates an options record failed validation
	// against the current document or image.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrInvalidInput indicates the wrong number or kind of inputs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsafeArchive indicates a ZIP entry that would escape the output directory
	// or exceed the extraction limits.
	ErrUnsafeArchive = errors.New("unsafe archive")
)

// invalid builds an ErrInvalidOptions error naming the offending parameter.
func invalid(param, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidOptions, param, fmt.Sprintf(format, args...))
}
