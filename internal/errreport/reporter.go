// Package errreport collects operation failures for later inspection.
// A Reporter is constructed explicitly and passed to whatever needs it.
package errreport

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 100

// Entry is one recorded failure.
type Entry struct {
	ID        uuid.UUID         `json:"id"`
	Time      time.Time         `json:"time"`
	Message   string            `json:"message"`
	Operation string            `json:"operation,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Reporter keeps the most recent failures in a bounded ring.
type Reporter struct {
	logger   zerolog.Logger
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// New creates a Reporter. capacity <= 0 selects DefaultCapacity.
func New(logger zerolog.Logger, capacity int) *Reporter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Reporter{
		logger:   logger.With().Str("component", "errreport").Logger(),
		capacity: capacity,
		now:      time.Now,
		entries:  make([]Entry, capacity),
	}
}

// Report records err. A nil error is ignored and returns a zero Entry.
func (r *Reporter) Report(err error, operation string, fields map[string]string) Entry {
	if err == nil {
		return Entry{}
	}

	entry := Entry{
		ID:        uuid.New(),
		Time:      r.now().UTC(),
		Message:   err.Error(),
		Operation: operation,
	}
	if len(fields) > 0 {
		entry.Fields = make(map[string]string, len(fields))
		for k, v := range fields {
			entry.Fields[k] = v
		}
	}

	r.mu.Lock()
	r.entries[r.next] = entry
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()

	r.logger.Debug().
		Str("id", entry.ID.String()).
		Str("operation", operation).
		Err(err).
		Msg("error reported")

	return entry
}

// Entries returns the recorded failures, oldest first.
func (r *Reporter) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Reporter) snapshot() []Entry {
	if !r.full {
		return append([]Entry(nil), r.entries[:r.next]...)
	}
	out := make([]Entry, 0, r.capacity)
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// Len returns the number of recorded failures.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return r.capacity
	}
	return r.next
}

// Flush logs every entry at error level, clears the ring and returns the
// flushed entries.
func (r *Reporter) Flush() []Entry {
	r.mu.Lock()
	entries := r.snapshot()
	r.reset()
	r.mu.Unlock()

	for _, e := range entries {
		ev := r.logger.Error().
			Str("id", e.ID.String()).
			Time("reported_at", e.Time).
			Str("operation", e.Operation)
		for k, v := range e.Fields {
			ev = ev.Str(k, v)
		}
		ev.Err(errors.New(e.Message)).Msg("operation failed")
	}
	return entries
}

// Clear drops every entry without logging.
func (r *Reporter) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

func (r *Reporter) reset() {
	r.entries = make([]Entry, r.capacity)
	r.next = 0
	r.full = false
}
