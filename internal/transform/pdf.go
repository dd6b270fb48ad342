package transform

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/flexconvert/flexconvert/internal/codec"
)

// DocumentOperation edits one document into a new one.
type DocumentOperation interface {
	Validate(doc *codec.Document) error
	Apply(doc *codec.Document) (*codec.Document, error)
}

// =============================================================================
// Merge / Split
// =============================================================================

// Merge concatenates the pages of every document in input order.
func Merge(name string, docs []*codec.Document) (*codec.Document, error) {
	if len(docs) < 2 {
		return nil, fmt.Errorf("%w: merge needs at least 2 documents, got %d", ErrInvalidInput, len(docs))
	}

	out := &codec.Document{Name: name, Title: docs[0].Title, Author: docs[0].Author}
	for _, d := range docs {
		out.Append(d)
	}
	return out, nil
}

// Split produces one single-page document per page. Names use 1-based page numbers.
func Split(doc *codec.Document) ([]*codec.Document, error) {
	if doc == nil || doc.PageCount() == 0 {
		return nil, fmt.Errorf("%w: split needs a document with pages", ErrInvalidInput)
	}

	out := make([]*codec.Document, doc.PageCount())
	for i := range doc.Pages {
		out[i] = doc.Subset(OutputName(doc.Name, fmt.Sprintf("page_%d", i+1), codec.FormatPDF), i)
	}
	return out, nil
}

// =============================================================================
// Rotate
// =============================================================================

// RotateOptions applies a relative rotation to every page.
type RotateOptions struct {
	// Degrees is one of ±90, ±180, ±270.
	Degrees int `json:"degrees"`
}

// Validate checks the rotation delta.
func (o RotateOptions) Validate(doc *codec.Document) error {
	switch o.Degrees {
	case 90, -90, 180, -180, 270, -270:
		return nil
	}
	return invalid("degrees", "must be one of ±90, ±180, ±270, got %d", o.Degrees)
}

// Apply rotates every page by the delta, normalizing into [0, 360).
func (o RotateOptions) Apply(doc *codec.Document) (*codec.Document, error) {
	if err := o.Validate(doc); err != nil {
		return nil, err
	}
	out := doc.Clone()
	for i := range out.Pages {
		out.Pages[i].Rotation = codec.NormalizeRotation(out.Pages[i].Rotation + o.Degrees)
	}
	return out, nil
}

// =============================================================================
// Reorder
// =============================================================================

// ReorderOptions is a 0-indexed permutation: page i of the result is page Order[i].
type ReorderOptions struct {
	Order []int `json:"order"`
}

// Validate requires a bijection over [0, pageCount).
func (o ReorderOptions) Validate(doc *codec.Document) error {
	n := doc.PageCount()
	if len(o.Order) != n {
		return invalid("order", "must list all %d pages, got %d entries", n, len(o.Order))
	}
	seen := make([]bool, n)
	for _, idx := range o.Order {
		if idx < 0 || idx >= n {
			return invalid("order", "page index %d is out of range [0, %d)", idx, n)
		}
		if seen[idx] {
			return invalid("order", "page index %d appears more than once", idx)
		}
		seen[idx] = true
	}
	return nil
}

// Apply returns the pages in the requested order.
func (o ReorderOptions) Apply(doc *codec.Document) (*codec.Document, error) {
	if err := o.Validate(doc); err != nil {
		return nil, err
	}
	return doc.Subset(doc.Name, o.Order...), nil
}

// =============================================================================
// Add / Remove pages
// =============================================================================

// MaxInsertCount bounds the blank pages a single insertion may add.
const MaxInsertCount = 500

// Insertion adds Count blank A4 pages before the 0-indexed Position.
// Position equal to the page count appends.
type Insertion struct {
	Position int `json:"position"`
	Count    int `json:"count"`
}

// AddPagesOptions lists insertions, all positioned against the original document.
type AddPagesOptions struct {
	Insertions []Insertion `json:"insertions"`
}

// Validate checks every insertion against the current page count.
func (o AddPagesOptions) Validate(doc *codec.Document) error {
	if len(o.Insertions) == 0 {
		return invalid("insertions", "at least one insertion is required")
	}
	n := doc.PageCount()
	for i, ins := range o.Insertions {
		if ins.Position < 0 || ins.Position > n {
			return invalid("position", "insertion %d: position %d is out of range [0, %d]", i+1, ins.Position, n)
		}
		if ins.Count < 1 || ins.Count > MaxInsertCount {
			return invalid("count", "insertion %d: count must be between 1 and %d", i+1, MaxInsertCount)
		}
	}
	return nil
}

// Apply inserts in descending position order so earlier positions stay valid.
func (o AddPagesOptions) Apply(doc *codec.Document) (*codec.Document, error) {
	if err := o.Validate(doc); err != nil {
		return nil, err
	}

	insertions := append([]Insertion(nil), o.Insertions...)
	sort.SliceStable(insertions, func(i, j int) bool {
		return insertions[i].Position > insertions[j].Position
	})

	out := doc.Clone()
	for _, ins := range insertions {
		blank := make([]codec.Page, ins.Count)
		for i := range blank {
			blank[i] = codec.NewBlankPage()
		}
		pages := make([]codec.Page, 0, len(out.Pages)+ins.Count)
		pages = append(pages, out.Pages[:ins.Position]...)
		pages = append(pages, blank...)
		pages = append(pages, out.Pages[ins.Position:]...)
		out.Pages = pages
	}
	return out, nil
}

// RemovePagesOptions deletes a set of 0-indexed pages.
type RemovePagesOptions struct {
	Pages []int `json:"pages"`
}

// Validate rejects empty sets, out-of-range or repeated indices and
// sets that would leave no page.
func (o RemovePagesOptions) Validate(doc *codec.Document) error {
	n := doc.PageCount()
	if len(o.Pages) == 0 {
		return invalid("pages", "select at least one page to remove")
	}
	if len(o.Pages) >= n {
		return invalid("pages", "cannot remove all %d pages", n)
	}
	seen := make(map[int]bool, len(o.Pages))
	for _, idx := range o.Pages {
		if idx < 0 || idx >= n {
			return invalid("pages", "page index %d is out of range [0, %d)", idx, n)
		}
		if seen[idx] {
			return invalid("pages", "page index %d appears more than once", idx)
		}
		seen[idx] = true
	}
	return nil
}

// Apply removes the pages in descending index order.
func (o RemovePagesOptions) Apply(doc *codec.Document) (*codec.Document, error) {
	if err := o.Validate(doc); err != nil {
		return nil, err
	}

	indices := append([]int(nil), o.Pages...)
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))

	out := doc.Clone()
	for _, idx := range indices {
		out.Pages = append(out.Pages[:idx], out.Pages[idx+1:]...)
	}
	return out, nil
}

// =============================================================================
// Watermark
// =============================================================================

// Watermark sizing and opacity bounds.
const (
	WatermarkFontRatio  = 0.08
	MinWatermarkOpacity = 0.1
	MaxWatermarkOpacity = 1.0
	MaxWatermarkLength  = 200
)

// WatermarkOptions stamps diagonal text on every page.
type WatermarkOptions struct {
	Text string `json:"text"`

	// Opacity is clamped to [0.1, 1.0].
	Opacity float64 `json:"opacity"`
}

// Validate requires non-empty text.
func (o WatermarkOptions) Validate(doc *codec.Document) error {
	text := strings.TrimSpace(o.Text)
	if text == "" {
		return invalid("text", "must not be empty")
	}
	if len([]rune(text)) > MaxWatermarkLength {
		return invalid("text", "must be at most %d characters", MaxWatermarkLength)
	}
	return nil
}

// Apply adds a stamp sized to 8% of each page's smaller dimension.
func (o WatermarkOptions) Apply(doc *codec.Document) (*codec.Document, error) {
	if err := o.Validate(doc); err != nil {
		return nil, err
	}

	opacity := math.Min(math.Max(o.Opacity, MinWatermarkOpacity), MaxWatermarkOpacity)
	text := strings.TrimSpace(o.Text)

	out := doc.Clone()
	for i := range out.Pages {
		p := &out.Pages[i]
		p.Watermarks = append(p.Watermarks, codec.Watermark{
			Text:     text,
			FontSize: math.Round(math.Min(p.Width, p.Height) * WatermarkFontRatio),
			Opacity:  opacity,
		})
	}
	return out, nil
}

// =============================================================================
// Extract range
// =============================================================================

// ExtractRangeOptions copies the inclusive 0-indexed range [Start, End].
type ExtractRangeOptions struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Validate rejects reversed or out-of-bounds ranges.
func (o ExtractRangeOptions) Validate(doc *codec.Document) error {
	n := doc.PageCount()
	switch {
	case o.Start < 0 || o.Start >= n:
		return invalid("start", "page index %d is out of range [0, %d)", o.Start, n)
	case o.End < 0 || o.End >= n:
		return invalid("end", "page index %d is out of range [0, %d)", o.End, n)
	case o.Start > o.End:
		return invalid("range", "start %d is after end %d", o.Start, o.End)
	}
	return nil
}

// Apply returns a new document with the selected pages.
func (o ExtractRangeOptions) Apply(doc *codec.Document) (*codec.Document, error) {
	if err := o.Validate(doc); err != nil {
		return nil, err
	}
	indices := make([]int, 0, o.End-o.Start+1)
	for i := o.Start; i <= o.End; i++ {
		indices = append(indices, i)
	}
	name := OutputName(doc.Name, fmt.Sprintf("pages_%d-%d", o.Start+1, o.End+1), codec.FormatPDF)
	return doc.Subset(name, indices...), nil
}

// =============================================================================
// Info
// =============================================================================

// PageInfo describes one page.
type PageInfo struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation"`
}

// DocumentInfo is the metadata shown when an operation needs configuration.
type DocumentInfo struct {
	Name      string     `json:"name"`
	PageCount int        `json:"pageCount"`
	Title     string     `json:"title,omitempty"`
	Author    string     `json:"author,omitempty"`
	Pages     []PageInfo `json:"pages"`
}

// Info summarizes a document.
func Info(doc *codec.Document) DocumentInfo {
	info := DocumentInfo{
		Name:      doc.Name,
		PageCount: doc.PageCount(),
		Title:     doc.Title,
		Author:    doc.Author,
		Pages:     make([]PageInfo, len(doc.Pages)),
	}
	for i, p := range doc.Pages {
		info.Pages[i] = PageInfo{Width: p.Width, Height: p.Height, Rotation: p.Rotation}
	}
	return info
}

// EncodeDocument serializes doc into an Output named name.
func EncodeDocument(doc *codec.Document, name string) (Output, error) {
	data, err := codec.EncodePDF(doc)
	if err != nil {
		return Output{}, err
	}
	return Output{Name: name, Format: codec.FormatPDF, Data: data}, nil
}

var (
	_ DocumentOperation = RotateOptions{}
	_ DocumentOperation = ReorderOptions{}
	_ DocumentOperation = AddPagesOptions{}
	_ DocumentOperation = RemovePagesOptions{}
	_ DocumentOperation = WatermarkOptions{}
	_ DocumentOperation = ExtractRangeOptions{}
)
