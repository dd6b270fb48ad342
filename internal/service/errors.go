// Package service provides business logic services for FlexConvert.
package service

import "errors"

// Common service errors.
var (
	// ErrIDExhausted indicates repeated identifier collisions on share insert.
	ErrIDExhausted = errors.New("could not allocate a unique share id")

	// ErrInternalError wraps unexpected infrastructure failures.
	ErrInternalError = errors.New("internal server error")
)
