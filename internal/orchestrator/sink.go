package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/flexconvert/flexconvert/internal/codec"
	"github.com/flexconvert/flexconvert/internal/transform"
)

// Sink receives finished outputs one at a time.
type Sink interface {
	Deliver(ctx context.Context, out transform.Output) error
}

// UsageRecorder records the outcome of a tool invocation.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, category, tool string, fileCount int, success bool) error
}

// ClipboardSource yields the files currently on the clipboard.
type ClipboardSource interface {
	ReadFiles(ctx context.Context) ([]codec.File, error)
}

// NopRecorder discards usage events.
type NopRecorder struct{}

// RecordUsage implements UsageRecorder.
func (NopRecorder) RecordUsage(context.Context, string, string, int, bool) error { return nil }

// DirSink writes outputs into a directory, creating it on first use.
type DirSink struct {
	Dir string
}

// Deliver implements Sink.
func (s DirSink) Deliver(ctx context.Context, out transform.Output) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.Dir, filepath.Base(out.Name))
	if err := os.WriteFile(path, out.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// MemorySink collects outputs in delivery order.
type MemorySink struct {
	mu      sync.Mutex
	outputs []transform.Output
}

// Deliver implements Sink.
func (s *MemorySink) Deliver(_ context.Context, out transform.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, out)
	return nil
}

// Outputs returns the delivered outputs.
func (s *MemorySink) Outputs() []transform.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transform.Output(nil), s.outputs...)
}

// StreamClipboard reads one pasted file from a stream such as stdin, e.g.
// `wl-paste | flexconvert image resize -`. The file is named after its
// detected format.
type StreamClipboard struct {
	Reader io.Reader
}

// ReadFiles implements ClipboardSource.
func (c StreamClipboard) ReadFiles(ctx context.Context) ([]codec.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(c.Reader)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	f := codec.File{Name: "clipboard", Data: data}
	f.Name += codec.DetectFormat(f).Extension()
	return []codec.File{f}, nil
}

var (
	_ Sink            = DirSink{}
	_ Sink            = (*MemorySink)(nil)
	_ UsageRecorder   = NopRecorder{}
	_ ClipboardSource = StreamClipboard{}
)
