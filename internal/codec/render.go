package codec

import (
	"fmt"
	"image"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Rasterizer renders every page of a PDF to an image. scale 1 renders
// one pixel per point. A non-nil onPage is called after each page with the
// number of pages done and the page count.
type Rasterizer interface {
	Render(pdf []byte, scale float64, onPage func(done, total int)) ([]image.Image, error)
}

// TextExtractor returns the plain text of every page of a PDF.
type TextExtractor interface {
	ExtractText(pdf []byte) ([]string, error)
}

// pointsPerInch converts a render scale to the DPI MuPDF expects.
const pointsPerInch = 72.0

// MuPDF implements Rasterizer and TextExtractor on top of go-fitz.
type MuPDF struct{}

// NewMuPDF creates a MuPDF renderer.
func NewMuPDF() *MuPDF {
	return &MuPDF{}
}

// Render rasterizes every page at scale.
func (m *MuPDF) Render(pdf []byte, scale float64, onPage func(done, total int)) ([]image.Image, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("%w: scale must be positive", ErrRenderFailed)
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	pages := make([]image.Image, 0, total)
	// fitz page numbers are zero-based.
	for n := 0; n < total; n++ {
		img, err := doc.ImageDPI(n, scale*pointsPerInch)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrRenderFailed, n+1, err)
		}
		pages = append(pages, img)
		if onPage != nil {
			onPage(n+1, total)
		}
	}

	return pages, nil
}

// ExtractText returns each page's text with surrounding whitespace trimmed.
func (m *MuPDF) ExtractText(pdf []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		text, err := doc.Text(n)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrRenderFailed, n+1, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	return pages, nil
}

var (
	_ Rasterizer    = (*MuPDF)(nil)
	_ TextExtractor = (*MuPDF)(nil)
)
