package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/domain"
)

// defaultMaxBodySize bounds JSON request bodies when none is configured.
const defaultMaxBodySize = 1 << 20

// APIError is the JSON body of every error response.
type APIError struct {
	Error string `json:"error"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorMessage writes an APIError with an explicit status.
func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIError{Error: message})
}

// statusFor maps service and domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrShareNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrShareExhausted):
		return http.StatusGone
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and writes it. Internal errors are logged
// and replaced with a generic message.
func writeError(w http.ResponseWriter, logger zerolog.Logger, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeErrorMessage(w, status, "internal server error")
		return
	}
	writeErrorMessage(w, status, err.Error())
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
