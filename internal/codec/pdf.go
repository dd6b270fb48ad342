package codec

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// DefaultMaxPDFSize is the decode ceiling when none is configured.
const DefaultMaxPDFSize = 100 * 1024 * 1024

var disableConfigDir sync.Once

// newConfiguration returns a pdfcpu configuration that never touches the
// user's config directory and writes compact cross-reference data.
func newConfiguration() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = true
	conf.WriteXRefStream = true
	return conf
}

// DecodePDF parses f into a Document. maxSize of 0 selects DefaultMaxPDFSize.
func DecodePDF(f File, maxSize int64) (*Document, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxPDFSize
	}

	switch {
	case len(f.Data) == 0:
		return nil, fileError(f.Name, ErrEmptyFile)
	case f.Size() > maxSize:
		return nil, fileError(f.Name, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, f.Size(), maxSize))
	case !hasPDFHeader(f.Data):
		return nil, fileError(f.Name, ErrNotPDF)
	}

	ctx, err := api.ReadContext(bytes.NewReader(f.Data), newConfiguration())
	if err != nil {
		return nil, fileError(f.Name, fmt.Errorf("%w: %v", ErrCorruptFile, err))
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fileError(f.Name, fmt.Errorf("%w: %v", ErrCorruptFile, err))
	}
	if ctx.PageCount < 1 {
		return nil, fileError(f.Name, fmt.Errorf("%w: document has no pages", ErrCorruptFile))
	}

	doc := &Document{
		Name:    f.Name,
		Title:   ctx.XRefTable.Title,
		Author:  ctx.XRefTable.Author,
		Sources: []Source{{Name: f.Name, Data: f.Data, PageCount: ctx.PageCount}},
		Pages:   make([]Page, 0, ctx.PageCount),
	}

	for nr := 1; nr <= ctx.PageCount; nr++ {
		_, _, inherited, err := ctx.XRefTable.PageDict(nr, false)
		if err != nil {
			return nil, fileError(f.Name, fmt.Errorf("%w: page %d: %v", ErrCorruptFile, nr, err))
		}

		page := Page{Width: A4Width, Height: A4Height, Source: 0, SourcePage: nr}
		if inherited != nil {
			if box := inherited.MediaBox; box != nil {
				page.Width, page.Height = box.Width(), box.Height()
			}
			page.SourceRotation = NormalizeRotation(inherited.Rotate)
			page.Rotation = page.SourceRotation
		}
		doc.Pages = append(doc.Pages, page)
	}

	return doc, nil
}

// EncodePDF materializes the page list: it merges the referenced sources
// with generated blank pages, selects the page sequence, applies rotation
// deltas and watermark stamps, and writes with object and xref streams.
func EncodePDF(doc *Document) ([]byte, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrEncodeFailed)
	}
	conf := newConfiguration()

	var (
		inputs  [][]byte
		offsets = make(map[int]int)
		blanks  []PageSize
		total   int
	)
	for _, p := range doc.Pages {
		if p.IsBlank() {
			blanks = append(blanks, PageSize{Width: p.Width, Height: p.Height})
			continue
		}
		if p.Source < 0 || p.Source >= len(doc.Sources) {
			return nil, fmt.Errorf("%w: page references unknown source %d", ErrEncodeFailed, p.Source)
		}
		if _, ok := offsets[p.Source]; !ok {
			offsets[p.Source] = total
			inputs = append(inputs, doc.Sources[p.Source].Data)
			total += doc.Sources[p.Source].PageCount
		}
	}

	blankOffset := total
	if len(blanks) > 0 {
		data, err := WriteBlankPDF(blanks)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, data)
		total += len(blanks)
	}

	sequence := make([]int, len(doc.Pages))
	blank := 0
	for i, p := range doc.Pages {
		if p.IsBlank() {
			blank++
			sequence[i] = blankOffset + blank
			continue
		}
		sequence[i] = offsets[p.Source] + p.SourcePage
	}

	data := inputs[0]
	if len(inputs) > 1 {
		readers := make([]io.ReadSeeker, len(inputs))
		for i, in := range inputs {
			readers[i] = bytes.NewReader(in)
		}
		var buf bytes.Buffer
		if err := api.MergeRaw(readers, &buf, false, conf); err != nil {
			return nil, fmt.Errorf("%w: merge: %v", ErrEncodeFailed, err)
		}
		data = buf.Bytes()
	}

	if !isIdentity(sequence, total) {
		out, err := apply(data, func(rs io.ReadSeeker, w io.Writer) error {
			return api.Collect(rs, w, pageSelection(sequence), conf)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: collect pages: %v", ErrEncodeFailed, err)
		}
		data = out
	}

	rotations := make(map[int][]int)
	for i, p := range doc.Pages {
		if delta := NormalizeRotation(p.Rotation - p.SourceRotation); delta != 0 {
			rotations[delta] = append(rotations[delta], i+1)
		}
	}
	for _, delta := range sortedKeys(rotations) {
		out, err := apply(data, func(rs io.ReadSeeker, w io.Writer) error {
			return api.Rotate(rs, w, delta, pageSelection(rotations[delta]), conf)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: rotate: %v", ErrEncodeFailed, err)
		}
		data = out
	}

	var stamps []Watermark
	stamped := make(map[Watermark][]int)
	for i, p := range doc.Pages {
		for _, wm := range p.Watermarks {
			if _, ok := stamped[wm]; !ok {
				stamps = append(stamps, wm)
			}
			stamped[wm] = append(stamped[wm], i+1)
		}
	}
	for _, stamp := range stamps {
		wm, err := api.TextWatermark(stamp.Text, watermarkDescription(stamp), true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("%w: watermark: %v", ErrEncodeFailed, err)
		}
		out, err := apply(data, func(rs io.ReadSeeker, w io.Writer) error {
			return api.AddWatermarks(rs, w, pageSelection(stamped[stamp]), wm, conf)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: watermark: %v", ErrEncodeFailed, err)
		}
		data = out
	}

	out, err := apply(data, func(rs io.ReadSeeker, w io.Writer) error {
		return api.Optimize(rs, w, conf)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: optimize: %v", ErrEncodeFailed, err)
	}
	return out, nil
}

// PageCount returns the number of pages in a PDF without building a Document.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	return n, nil
}

func apply(data []byte, fn func(rs io.ReadSeeker, w io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(bytes.NewReader(data), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isIdentity(sequence []int, total int) bool {
	if len(sequence) != total {
		return false
	}
	for i, nr := range sequence {
		if nr != i+1 {
			return false
		}
	}
	return true
}

func pageSelection(pages []int) []string {
	out := make([]string, len(pages))
	for i, nr := range pages {
		out[i] = strconv.Itoa(nr)
	}
	return out
}

func sortedKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func watermarkDescription(wm Watermark) string {
	points := int(math.Round(wm.FontSize))
	if points < 1 {
		points = 1
	}
	return fmt.Sprintf("fontname:Helvetica, points:%d, rotation:45, opacity:%.2f, fillcolor:#808080, scalefactor:1 abs",
		points, wm.Opacity)
}
