package codec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"strings"
	"unicode/utf16"
)

// pdfWriter assembles a PDF file from numbered objects.
type pdfWriter struct {
	objects [][]byte
}

// reserve allocates an object number to be filled in later.
func (w *pdfWriter) reserve() int {
	w.objects = append(w.objects, nil)
	return len(w.objects)
}

func (w *pdfWriter) set(num int, content string) {
	w.objects[num-1] = []byte(content)
}

func (w *pdfWriter) add(content string) int {
	num := w.reserve()
	w.set(num, content)
	return num
}

// addStream adds a stream object; dict holds the entries besides /Length.
func (w *pdfWriter) addStream(dict string, data []byte) int {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<<%s /Length %d>>\nstream\n", dict, len(data))
	buf.Write(data)
	buf.WriteString("\nendstream")
	num := w.reserve()
	w.objects[num-1] = buf.Bytes()
	return num
}

// bytes serializes the objects with a classic xref table and trailer.
func (w *pdfWriter) bytes(root, info int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	offsets := make([]int, len(w.objects))
	for i, obj := range w.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(obj)
		buf.WriteString("\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(w.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	fmt.Fprintf(&buf, "trailer\n<</Size %d /Root %d 0 R", len(w.objects)+1, root)
	if info > 0 {
		fmt.Fprintf(&buf, " /Info %d 0 R", info)
	}
	fmt.Fprintf(&buf, ">>\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

// pageTree writes the catalog and page tree around pre-built page objects.
// It returns the catalog object number.
func (w *pdfWriter) pageTree(pagesNum int, kids []int) int {
	refs := make([]string, len(kids))
	for i, k := range kids {
		refs[i] = fmt.Sprintf("%d 0 R", k)
	}
	w.set(pagesNum, fmt.Sprintf("<</Type /Pages /Kids [%s] /Count %d>>", strings.Join(refs, " "), len(kids)))
	return w.add(fmt.Sprintf("<</Type /Catalog /Pages %d 0 R>>", pagesNum))
}

func (w *pdfWriter) info(title string) int {
	entries := "/Producer (FlexConvert)"
	if title != "" {
		entries += " /Title " + pdfString(title)
	}
	return w.add("<<" + entries + ">>")
}

// pdfString encodes s as a literal string when it is plain ASCII and as a
// UTF-16BE hex string with a byte order mark otherwise.
func pdfString(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			units := utf16.Encode([]rune(s))
			buf := make([]byte, 2, 2+2*len(units))
			buf[0], buf[1] = 0xFE, 0xFF
			for _, u := range units {
				buf = append(buf, byte(u>>8), byte(u))
			}
			return "<" + strings.ToUpper(hex.EncodeToString(buf)) + ">"
		}
	}
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`, "\r", `\r`, "\n", `\n`)
	return "(" + r.Replace(s) + ")"
}

func formatPoints(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// PageSize is a page's dimensions in points.
type PageSize struct {
	Width  float64
	Height float64
}

// WriteBlankPDF builds a document with one empty page per entry in sizes.
func WriteBlankPDF(sizes []PageSize) ([]byte, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrEncodeFailed)
	}

	w := &pdfWriter{}
	pagesNum := w.reserve()
	content := w.addStream("", []byte("q Q"))

	kids := make([]int, 0, len(sizes))
	for _, s := range sizes {
		kids = append(kids, w.add(fmt.Sprintf(
			"<</Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] /Resources <<>> /Contents %d 0 R>>",
			pagesNum, formatPoints(s.Width), formatPoints(s.Height), content)))
	}

	root := w.pageTree(pagesNum, kids)
	return w.bytes(root, w.info("")), nil
}

// ImagePage is one full-page image for WriteImagePDF.
type ImagePage struct {
	Image image.Image

	// Width and Height are the page size in points. Zero means the pixel size.
	Width  float64
	Height float64

	// Quality is the JPEG quality, 1-100.
	Quality int
}

// WriteImagePDF builds a document whose pages each display one JPEG image
// stretched to the page.
func WriteImagePDF(title string, pages []ImagePage) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrEncodeFailed)
	}

	w := &pdfWriter{}
	pagesNum := w.reserve()

	kids := make([]int, 0, len(pages))
	for i, p := range pages {
		bounds := p.Image.Bounds()
		if bounds.Empty() {
			return nil, fmt.Errorf("%w: page %d has an empty image", ErrEncodeFailed, i+1)
		}

		quality := p.Quality
		if quality < 1 || quality > 100 {
			quality = jpeg.DefaultQuality
		}

		var jpg bytes.Buffer
		if err := jpeg.Encode(&jpg, opaqueRGBA(p.Image), &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrEncodeFailed, i+1, err)
		}

		width, height := p.Width, p.Height
		if width <= 0 || height <= 0 {
			width, height = float64(bounds.Dx()), float64(bounds.Dy())
		}

		img := w.addStream(fmt.Sprintf(
			"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode",
			bounds.Dx(), bounds.Dy()), jpg.Bytes())
		content := w.addStream("", []byte(fmt.Sprintf("q %s 0 0 %s 0 0 cm /Im0 Do Q",
			formatPoints(width), formatPoints(height))))

		kids = append(kids, w.add(fmt.Sprintf(
			"<</Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] /Resources <</XObject <</Im0 %d 0 R>>>> /Contents %d 0 R>>",
			pagesNum, formatPoints(width), formatPoints(height), img, content)))
	}

	root := w.pageTree(pagesNum, kids)
	return w.bytes(root, w.info(title)), nil
}

// opaqueRGBA flattens img onto white so the JPEG carries three components.
func opaqueRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}
