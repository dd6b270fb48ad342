package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/codec"
	"github.com/flexconvert/flexconvert/internal/config"
	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/errreport"
	"github.com/flexconvert/flexconvert/internal/preferences"
)

func pdfFile(t *testing.T, name string, pages int) codec.File {
	t.Helper()
	sizes := make([]codec.PageSize, pages)
	for i := range sizes {
		sizes[i] = codec.PageSize{Width: 200, Height: 300}
	}
	data, err := codec.WriteBlankPDF(sizes)
	require.NoError(t, err)
	return codec.File{Name: name, Data: data}
}

func pngFile(t *testing.T, name string, w, h int) codec.File {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return codec.File{Name: name, Data: buf.Bytes()}
}

type usageCall struct {
	Category  string
	Tool      string
	FileCount int
	Success   bool
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []usageCall
	err   error
}

func (r *fakeRecorder) RecordUsage(_ context.Context, category, tool string, fileCount int, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, usageCall{category, tool, fileCount, success})
	return r.err
}

func (r *fakeRecorder) Calls() []usageCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]usageCall(nil), r.calls...)
}

type fakeRasterizer struct {
	err error
}

func (r fakeRasterizer) Render(pdf []byte, scale float64, onPage func(done, total int)) ([]image.Image, error) {
	if r.err != nil {
		return nil, r.err
	}
	n, err := codec.PageCount(pdf)
	if err != nil {
		return nil, err
	}
	pages := make([]image.Image, n)
	for i := range pages {
		pages[i] = image.NewNRGBA(image.Rect(0, 0, int(100*scale), int(150*scale)))
		if onPage != nil {
			onPage(i+1, n)
		}
	}
	return pages, nil
}

type fakeExtractor struct{}

func (fakeExtractor) ExtractText(pdf []byte) ([]string, error) {
	n, err := codec.PageCount(pdf)
	if err != nil {
		return nil, err
	}
	return make([]string, n), nil
}

var errRenderUnavailable = errors.New("renderer unavailable")

// observingRasterizer records the controller's progress after each rendered page.
type observingRasterizer struct {
	fakeRasterizer
	c    *Controller
	seen []int
}

func (r *observingRasterizer) Render(pdf []byte, scale float64, onPage func(done, total int)) ([]image.Image, error) {
	return r.fakeRasterizer.Render(pdf, scale, func(done, total int) {
		onPage(done, total)
		r.seen = append(r.seen, r.c.State().Progress)
	})
}

type fixture struct {
	c        *Controller
	sink     *MemorySink
	recorder *fakeRecorder
	reporter *errreport.Reporter
	prefs    *preferences.Manager
	waits    int
}

func newFixture(t *testing.T, category domain.ToolCategory) *fixture {
	t.Helper()
	f := &fixture{
		sink:     &MemorySink{},
		recorder: &fakeRecorder{},
		reporter: errreport.New(zerolog.Nop(), 10),
		prefs:    preferences.NewManager(preferences.NewMemoryStore()),
	}

	c, err := NewController(category, Deps{
		Rasterizer:  fakeRasterizer{},
		Extractor:   fakeExtractor{},
		Sink:        f.sink,
		Recorder:    f.recorder,
		Preferences: f.prefs,
		Reporter:    f.reporter,
		Logger:      zerolog.Nop(),
		Config: config.ProcessingConfig{
			Workers:       3,
			DownloadDelay: time.Second,
		},
	})
	require.NoError(t, err)

	c.after = func(time.Duration) <-chan time.Time {
		f.waits++
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	f.c = c
	return f
}
