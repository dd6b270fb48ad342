package codec

// A4 dimensions in points, used for generated blank pages.
const (
	A4Width  = 595.0
	A4Height = 842.0
)

// BlankSource marks a page that has no source content.
const BlankSource = -1

// Source is one decoded PDF whose pages a Document references.
type Source struct {
	Name      string
	Data      []byte
	PageCount int
}

// Watermark is a text stamp applied to a page at encode time.
type Watermark struct {
	Text     string
	FontSize float64
	Opacity  float64
}

// Page is one entry in a document's page list.
type Page struct {
	// Width and Height are the intrinsic MediaBox dimensions in points.
	Width  float64
	Height float64

	// Rotation is the absolute page rotation in {0, 90, 180, 270}.
	Rotation int

	// Source indexes Document.Sources, or BlankSource.
	Source int

	// SourcePage is the 1-based page number within the source.
	SourcePage int

	// SourceRotation is the rotation the page carries in its source file.
	SourceRotation int

	Watermarks []Watermark
}

// IsBlank reports whether the page is a generated blank page.
func (p Page) IsBlank() bool {
	return p.Source == BlankSource
}

// Document is an editable, ordered page list. Page content stays in the
// source files and is only copied when the document is encoded.
type Document struct {
	Name    string
	Title   string
	Author  string
	Sources []Source
	Pages   []Page
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Clone returns a deep copy of the page list. Source bytes are shared
// since they are never modified.
func (d *Document) Clone() *Document {
	out := &Document{
		Name:    d.Name,
		Title:   d.Title,
		Author:  d.Author,
		Sources: append([]Source(nil), d.Sources...),
		Pages:   make([]Page, len(d.Pages)),
	}
	for i, p := range d.Pages {
		p.Watermarks = append([]Watermark(nil), p.Watermarks...)
		out.Pages[i] = p
	}
	return out
}

// NewBlankPage returns an A4 page without content.
func NewBlankPage() Page {
	return Page{Width: A4Width, Height: A4Height, Source: BlankSource}
}

// Append adds every page of other to d, remapping source indices.
func (d *Document) Append(other *Document) {
	offset := len(d.Sources)
	d.Sources = append(append([]Source(nil), d.Sources...), other.Sources...)
	for _, p := range other.Pages {
		p.Watermarks = append([]Watermark(nil), p.Watermarks...)
		if !p.IsBlank() {
			p.Source += offset
		}
		d.Pages = append(d.Pages, p)
	}
}

// Subset returns a new document holding copies of the pages at the given
// 0-based indices, in order. Indices must be in range.
func (d *Document) Subset(name string, indices ...int) *Document {
	out := &Document{
		Name:    name,
		Title:   d.Title,
		Author:  d.Author,
		Sources: d.Sources,
		Pages:   make([]Page, 0, len(indices)),
	}
	for _, i := range indices {
		p := d.Pages[i]
		p.Watermarks = append([]Watermark(nil), p.Watermarks...)
		out.Pages = append(out.Pages, p)
	}
	return out
}

// NormalizeRotation maps any multiple-of-90 angle into [0, 360).
func NormalizeRotation(angle int) int {
	angle %= 360
	if angle < 0 {
		angle += 360
	}
	return angle
}
