// Package orchestrator drives tool invocations for one category of tools:
// it holds the file selection, validates it against the chosen tool, runs
// the operation with progress reporting and hands the outputs to a Sink.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flexconvert/flexconvert/internal/codec"
	"github.com/flexconvert/flexconvert/internal/config"
	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/errreport"
	"github.com/flexconvert/flexconvert/internal/preferences"
	"github.com/flexconvert/flexconvert/internal/transform"
)

var (
	// ErrNoFiles indicates a tool was invoked with an empty selection.
	ErrNoFiles = errors.New("no files selected")

	// ErrUnknownTool indicates the tool is not registered for the category.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrBusy indicates another operation is still running on the controller.
	ErrBusy = errors.New("an operation is already in progress")

	// ErrInvalidSelection indicates the selection does not fit the tool.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrMissingDependency indicates Deps lacks a collaborator a registered tool needs.
	ErrMissingDependency = errors.New("missing dependency")
)

// SelectionError names the file that does not fit the tool.
type SelectionError struct {
	File   string
	Reason string
}

// Error implements the error interface.
func (e *SelectionError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidSelection, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInvalidSelection, e.File, e.Reason)
}

// Unwrap returns ErrInvalidSelection.
func (e *SelectionError) Unwrap() error {
	return ErrInvalidSelection
}

// Status is the lifecycle state of a controller.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// State is a snapshot of a controller.
type State struct {
	Status   Status
	Progress int
	Tool     string
	Files    []string
	Err      error
}

// Result is the outcome of one Run.
type Result struct {
	Tool    string
	Outputs []transform.Output

	// NeedsConfiguration is set when a tool requiring options was invoked
	// without them. Documents and Images describe the selection so the
	// caller can collect parameters and run again.
	NeedsConfiguration bool
	Documents          []transform.DocumentInfo
	Images             []ImageInfo

	// Degraded and Warning report a fallback the tool took.
	Degraded bool
	Warning  string
}

// ImageInfo describes a selected image.
type ImageInfo struct {
	Name   string       `json:"name"`
	Format codec.Format `json:"format"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
}

// Deps are the collaborators a Controller uses. Rasterizer is required for
// the PDF category and Extractor for the convert category; the rest may be nil.
type Deps struct {
	Rasterizer  codec.Rasterizer
	Extractor   codec.TextExtractor
	Sink        Sink
	Recorder    UsageRecorder
	Preferences *preferences.Manager
	Reporter    *errreport.Reporter
	Logger      zerolog.Logger
	Config      config.ProcessingConfig
}

// Controller runs the tools of one category against a file selection.
type Controller struct {
	category domain.ToolCategory
	tools    map[string]Tool
	deps     Deps
	logger   zerolog.Logger

	mu       sync.Mutex
	files    []codec.File
	status   Status
	progress int
	tool     string
	lastErr  error

	after func(time.Duration) <-chan time.Time
}

// NewController creates a Controller for category.
func NewController(category domain.ToolCategory, deps Deps) (*Controller, error) {
	tools, ok := registry[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}
	for _, t := range tools {
		if t.renders && deps.Rasterizer == nil {
			return nil, fmt.Errorf("%w: %s/%s needs a rasterizer", ErrMissingDependency, category, t.Name)
		}
		if t.extracts && deps.Extractor == nil {
			return nil, fmt.Errorf("%w: %s/%s needs a text extractor", ErrMissingDependency, category, t.Name)
		}
	}
	if deps.Recorder == nil {
		deps.Recorder = NopRecorder{}
	}
	if deps.Config.Workers < 1 {
		deps.Config.Workers = 1
	}
	if deps.Config.MaxPDFSize <= 0 {
		deps.Config.MaxPDFSize = codec.DefaultMaxPDFSize
	}

	return &Controller{
		category: category,
		tools:    tools,
		deps:     deps,
		logger:   deps.Logger.With().Str("component", "orchestrator").Str("category", string(category)).Logger(),
		status:   StatusIdle,
		after:    time.After,
	}, nil
}

// Category returns the controller's tool category.
func (c *Controller) Category() domain.ToolCategory {
	return c.category
}

// Tools lists the registered tools sorted by name.
func (c *Controller) Tools() []Tool {
	return sortedTools(c.tools)
}

// ToolsFor lists the tools registered for category without building a Controller.
func ToolsFor(category domain.ToolCategory) ([]Tool, error) {
	tools, ok := registry[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}
	return sortedTools(tools), nil
}

func sortedTools(m map[string]Tool) []Tool {
	tools := make([]Tool, 0, len(m))
	for _, t := range m {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// =============================================================================
// Selection
// =============================================================================

// Select replaces the selection.
func (c *Controller) Select(files ...codec.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = append([]codec.File(nil), files...)
}

// Add appends files to the selection.
func (c *Controller) Add(files ...codec.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = append(c.files, files...)
}

// Paste appends the files currently on the clipboard and returns how many
// were added.
func (c *Controller) Paste(ctx context.Context, src ClipboardSource) (int, error) {
	files, err := src.ReadFiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read clipboard: %w", err)
	}
	c.Add(files...)
	return len(files), nil
}

// Remove drops the file at index i from the selection.
func (c *Controller) Remove(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.files) {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidSelection, i)
	}
	c.files = append(c.files[:i:i], c.files[i+1:]...)
	return nil
}

// Clear empties the selection and resets the status to idle.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = nil
	c.status = StatusIdle
	c.progress = 0
	c.tool = ""
	c.lastErr = nil
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, len(c.files))
	for i, f := range c.files {
		names[i] = f.Name
	}
	return State{
		Status:   c.status,
		Progress: c.progress,
		Tool:     c.tool,
		Files:    names,
		Err:      c.lastErr,
	}
}

// =============================================================================
// Running
// =============================================================================

// Run invokes tool on the current selection. opts is the tool's JSON
// options; nil or "null" means none were supplied.
func (c *Controller) Run(ctx context.Context, name string, opts []byte) (*Result, error) {
	tool, ok := c.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownTool, c.category, name)
	}

	files, err := c.begin(name)
	if err != nil {
		return nil, err
	}

	if err := tool.checkSelection(files); err != nil {
		return nil, c.fail(ctx, tool, files, err)
	}

	opts = bytes.TrimSpace(opts)
	if bytes.Equal(opts, []byte("null")) {
		opts = nil
	}

	if opts == nil && tool.Configurable {
		res, err := c.describe(tool, files)
		if err != nil {
			return nil, c.fail(ctx, tool, files, err)
		}
		c.mu.Lock()
		c.status = StatusIdle
		c.progress = 0
		c.mu.Unlock()
		c.logger.Debug().Str("tool", name).Msg("tool needs configuration")
		return res, nil
	}

	start := time.Now()
	res := &Result{Tool: name}
	j := &job{
		ctx:    ctx,
		files:  files,
		opts:   opts,
		c:      c,
		result: res,
	}

	outputs, err := tool.run(j)
	if err != nil {
		return nil, c.fail(ctx, tool, files, err)
	}
	res.Outputs = outputs

	if err := c.deliver(ctx, outputs); err != nil {
		return nil, c.fail(ctx, tool, files, err)
	}

	c.mu.Lock()
	c.status = StatusSuccess
	c.progress = 100
	c.mu.Unlock()

	c.logger.Info().
		Str("tool", name).
		Int("files", len(files)).
		Int("outputs", len(outputs)).
		Bool("degraded", res.Degraded).
		Dur("duration", time.Since(start)).
		Msg("operation completed")

	c.record(ctx, tool, len(files), true)
	return res, nil
}

// begin moves the controller into processing and snapshots the selection.
func (c *Controller) begin(tool string) ([]codec.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusProcessing {
		return nil, ErrBusy
	}
	if len(c.files) == 0 {
		return nil, ErrNoFiles
	}

	c.status = StatusProcessing
	c.progress = 0
	c.tool = tool
	c.lastErr = nil
	return append([]codec.File(nil), c.files...), nil
}

// fail records err and moves the controller into error. The selection is kept.
func (c *Controller) fail(ctx context.Context, tool Tool, files []codec.File, err error) error {
	c.mu.Lock()
	c.status = StatusError
	c.lastErr = err
	c.mu.Unlock()

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}

	c.logger.Warn().Err(err).Str("tool", tool.Name).Strs("files", names).Msg("operation failed")
	if c.deps.Reporter != nil {
		c.deps.Reporter.Report(err, string(c.category)+"."+tool.Name, map[string]string{
			"files": strings.Join(names, ","),
		})
	}

	c.record(ctx, tool, len(files), false)
	return err
}

// record reports the outcome to the usage recorder and the preference store.
// Failures there never change the outcome of the operation.
func (c *Controller) record(ctx context.Context, tool Tool, fileCount int, success bool) {
	if err := c.deps.Recorder.RecordUsage(ctx, string(c.category), tool.Name, fileCount, success); err != nil {
		c.logger.Warn().Err(err).Str("tool", tool.Name).Msg("failed to record usage")
	}
	if success && c.deps.Preferences != nil {
		if err := c.deps.Preferences.RecordToolUse(tool.Name); err != nil {
			c.logger.Warn().Err(err).Str("tool", tool.Name).Msg("failed to update preferences")
		}
	}
}

// setProgress raises progress to pct. Progress never moves backwards
// during a run.
func (c *Controller) setProgress(pct int) {
	if pct > 100 {
		pct = 100
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusProcessing && pct > c.progress {
		c.progress = pct
	}
}

// deliver hands outputs to the sink one at a time, pausing between them.
func (c *Controller) deliver(ctx context.Context, outputs []transform.Output) error {
	if c.deps.Sink == nil {
		return nil
	}

	for i, out := range outputs {
		if i > 0 && c.deps.Config.DownloadDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.after(c.deps.Config.DownloadDelay):
			}
		}
		if err := c.deps.Sink.Deliver(ctx, out); err != nil {
			return fmt.Errorf("failed to deliver %s: %w", out.Name, err)
		}
	}
	return nil
}

// describe builds the needs-configuration result for the selection.
func (c *Controller) describe(tool Tool, files []codec.File) (*Result, error) {
	res := &Result{Tool: tool.Name, NeedsConfiguration: true}
	for _, f := range files {
		switch codec.DetectFormat(f) {
		case codec.FormatPDF:
			doc, err := codec.DecodePDF(f, c.deps.Config.MaxPDFSize)
			if err != nil {
				return nil, err
			}
			res.Documents = append(res.Documents, transform.Info(doc))
		default:
			r, err := codec.DecodeImage(f)
			if err != nil {
				return nil, err
			}
			res.Images = append(res.Images, ImageInfo{
				Name:   f.Name,
				Format: r.Format,
				Width:  r.Width(),
				Height: r.Height(),
			})
		}
	}
	return res, nil
}
