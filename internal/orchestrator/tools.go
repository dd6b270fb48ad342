package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/flexconvert/flexconvert/internal/codec"
	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/transform"
)

// Tool is one registered operation.
type Tool struct {
	Name        string
	Description string

	// Accepts restricts the input formats. Nil accepts any format.
	Accepts []codec.Format

	// MinFiles and MaxFiles bound the selection size. A zero MaxFiles is unbounded.
	MinFiles int
	MaxFiles int

	// Configurable tools report NeedsConfiguration when run without options.
	Configurable bool

	// renders and extracts mark tools that need Deps.Rasterizer or Deps.Extractor.
	renders  bool
	extracts bool

	run func(j *job) ([]transform.Output, error)
}

// checkSelection validates count and formats, naming the first offending file.
func (t Tool) checkSelection(files []codec.File) error {
	if len(files) < t.MinFiles {
		return &SelectionError{Reason: fmt.Sprintf("%s needs at least %d files, got %d", t.Name, t.MinFiles, len(files))}
	}
	if t.MaxFiles > 0 && len(files) > t.MaxFiles {
		return &SelectionError{Reason: fmt.Sprintf("%s accepts at most %d files, got %d", t.Name, t.MaxFiles, len(files))}
	}
	if t.Accepts == nil {
		return nil
	}

	for _, f := range files {
		format := codec.DetectFormat(f)
		if !t.accepts(format) {
			return &SelectionError{File: f.Name, Reason: fmt.Sprintf("%s does not accept %s files", t.Name, describeFormat(format))}
		}
	}
	return nil
}

func (t Tool) accepts(format codec.Format) bool {
	for _, a := range t.Accepts {
		if a == format {
			return true
		}
	}
	return false
}

func describeFormat(f codec.Format) string {
	if f == "" {
		return "unrecognized"
	}
	return string(f)
}

// job carries one invocation through a tool.
type job struct {
	ctx    context.Context
	files  []codec.File
	opts   []byte
	c      *Controller
	result *Result
}

func (j *job) progress(pct int) {
	j.c.setProgress(pct)
}

func (j *job) decodePDF(f codec.File) (*codec.Document, error) {
	return codec.DecodePDF(f, j.c.deps.Config.MaxPDFSize)
}

// forEach runs fn for every file on a bounded worker pool. Outputs keep the
// selection order and progress advances per finished file.
func (j *job) forEach(fn func(ctx context.Context, f codec.File) ([]transform.Output, error)) ([]transform.Output, error) {
	g, ctx := errgroup.WithContext(j.ctx)
	g.SetLimit(j.c.deps.Config.Workers)

	results := make([][]transform.Output, len(j.files))
	var done atomic.Int64
	total := int64(len(j.files))

	for i, f := range j.files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := fn(ctx, f)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			results[i] = out
			j.progress(int(done.Add(1) * 100 / total))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var outputs []transform.Output
	for _, out := range results {
		outputs = append(outputs, out...)
	}
	return outputs, nil
}

// decode unmarshals tool options. Missing options leave the zero value.
func decode[T any](raw []byte) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", transform.ErrInvalidOptions, err)
	}
	return v, nil
}

// encodeOptions reads the optional "output" object shared by image tools.
func encodeOptions(raw []byte) (codec.EncodeOptions, error) {
	enc := codec.EncodeOptions{}
	if len(raw) == 0 {
		return enc, nil
	}

	out := gjson.GetBytes(raw, "output")
	if !out.Exists() {
		return enc, nil
	}
	if format := out.Get("format"); format.Exists() {
		enc.Format = codec.ParseFormat(format.String())
		if !enc.Format.IsEncodable() {
			return enc, fmt.Errorf("%w: output.format: cannot encode %q", transform.ErrInvalidOptions, format.String())
		}
	}
	if q := out.Get("quality"); q.Exists() {
		enc.Quality = q.Float()
		if enc.Quality < 0 || enc.Quality > 1 {
			return enc, fmt.Errorf("%w: output.quality: must be between 0 and 1", transform.ErrInvalidOptions)
		}
	}
	return enc, nil
}

// =============================================================================
// Registry
// =============================================================================

var (
	pdfOnly    = []codec.Format{codec.FormatPDF}
	imagesOnly = []codec.Format{codec.FormatJPEG, codec.FormatPNG, codec.FormatGIF, codec.FormatBMP, codec.FormatWebP}
	zipOnly    = []codec.Format{codec.FormatZIP}
)

var registry = map[domain.ToolCategory]map[string]Tool{
	domain.CategoryPDF:     index(pdfTools()),
	domain.CategoryImage:   index(imageTools()),
	domain.CategoryConvert: index(convertTools()),
}

func index(tools []Tool) map[string]Tool {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	return m
}

// =============================================================================
// PDF tools
// =============================================================================

func pdfTools() []Tool {
	return []Tool{
		{
			Name:        "merge",
			Description: "combine PDFs in selection order",
			Accepts:     pdfOnly,
			MinFiles:    2,
			run:         runMerge,
		},
		{
			Name:        "split",
			Description: "one PDF per page",
			Accepts:     pdfOnly,
			MinFiles:    1,
			MaxFiles:    1,
			run:         runSplit,
		},
		documentTool("rotate", "rotate every page", "rotated", func(raw []byte) (transform.DocumentOperation, error) {
			return decode[transform.RotateOptions](raw)
		}),
		documentTool("reorder", "reorder pages", "reordered", func(raw []byte) (transform.DocumentOperation, error) {
			return decode[transform.ReorderOptions](raw)
		}),
		documentTool("add-pages", "insert blank pages", "pages_added", func(raw []byte) (transform.DocumentOperation, error) {
			return decode[transform.AddPagesOptions](raw)
		}),
		documentTool("remove-pages", "delete pages", "pages_removed", func(raw []byte) (transform.DocumentOperation, error) {
			return decode[transform.RemovePagesOptions](raw)
		}),
		documentTool("watermark", "stamp text on every page", "watermarked", func(raw []byte) (transform.DocumentOperation, error) {
			return decode[transform.WatermarkOptions](raw)
		}),
		{
			Name:         "extract-range",
			Description:  "copy a page range into a new PDF",
			Accepts:      pdfOnly,
			MinFiles:     1,
			MaxFiles:     1,
			Configurable: true,
			run:          runExtractRange,
		},
		{
			Name:         "to-images",
			Description:  "render every page as an image",
			Accepts:      pdfOnly,
			MinFiles:     1,
			MaxFiles:     1,
			Configurable: true,
			renders:      true,
			run:          runToImages,
		},
		{
			Name:        "compress",
			Description: "re-render pages at reduced resolution",
			Accepts:     pdfOnly,
			MinFiles:    1,
			MaxFiles:    1,
			renders:     true,
			run:         runCompress,
		},
		{
			Name:        "info",
			Description: "page count, title, author and page sizes",
			Accepts:     pdfOnly,
			MinFiles:    1,
			run:         runInfo,
		},
	}
}

// documentTool wraps a single-document operation that writes one PDF.
func documentTool(name, description, suffix string, build func(raw []byte) (transform.DocumentOperation, error)) Tool {
	return Tool{
		Name:         name,
		Description:  description,
		Accepts:      pdfOnly,
		MinFiles:     1,
		MaxFiles:     1,
		Configurable: true,
		run: func(j *job) ([]transform.Output, error) {
			op, err := build(j.opts)
			if err != nil {
				return nil, err
			}
			doc, err := j.decodePDF(j.files[0])
			if err != nil {
				return nil, err
			}
			j.progress(20)

			if err := op.Validate(doc); err != nil {
				return nil, err
			}
			result, err := op.Apply(doc)
			if err != nil {
				return nil, err
			}
			j.progress(60)

			out, err := transform.EncodeDocument(result, transform.OutputName(doc.Name, suffix, codec.FormatPDF))
			if err != nil {
				return nil, err
			}
			j.progress(90)
			return []transform.Output{out}, nil
		},
	}
}

func runMerge(j *job) ([]transform.Output, error) {
	docs := make([]*codec.Document, len(j.files))
	for i, f := range j.files {
		doc, err := j.decodePDF(f)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
		j.progress((i + 1) * 50 / len(j.files))
	}

	merged, err := transform.Merge("merged.pdf", docs)
	if err != nil {
		return nil, err
	}
	out, err := transform.EncodeDocument(merged, merged.Name)
	if err != nil {
		return nil, err
	}
	return []transform.Output{out}, nil
}

func runSplit(j *job) ([]transform.Output, error) {
	doc, err := j.decodePDF(j.files[0])
	if err != nil {
		return nil, err
	}
	parts, err := transform.Split(doc)
	if err != nil {
		return nil, err
	}

	outputs := make([]transform.Output, 0, len(parts))
	for i, part := range parts {
		out, err := transform.EncodeDocument(part, part.Name)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		outputs = append(outputs, out)
		j.progress((i + 1) * 100 / len(parts))
	}
	return outputs, nil
}

func runExtractRange(j *job) ([]transform.Output, error) {
	opts, err := decode[transform.ExtractRangeOptions](j.opts)
	if err != nil {
		return nil, err
	}
	doc, err := j.decodePDF(j.files[0])
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(doc); err != nil {
		return nil, err
	}
	extracted, err := opts.Apply(doc)
	if err != nil {
		return nil, err
	}
	j.progress(50)

	out, err := transform.EncodeDocument(extracted, extracted.Name)
	if err != nil {
		return nil, err
	}
	return []transform.Output{out}, nil
}

func runToImages(j *job) ([]transform.Output, error) {
	opts, err := decode[transform.ToImagesOptions](j.opts)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	doc, err := j.decodePDF(j.files[0])
	if err != nil {
		return nil, err
	}
	j.progress(20)

	return transform.ToImages(doc, j.c.deps.Rasterizer, opts, func(done, total int) {
		j.progress(20 + 70*done/total)
	})
}

func runCompress(j *job) ([]transform.Output, error) {
	opts, err := decode[transform.CompressOptions](j.opts)
	if err != nil {
		return nil, err
	}
	if opts.Level == 0 {
		opts.Level = defaultCompressLevel
	}
	doc, err := j.decodePDF(j.files[0])
	if err != nil {
		return nil, err
	}
	j.progress(20)

	res, err := transform.Compress(doc, j.c.deps.Rasterizer, opts)
	if err != nil {
		return nil, err
	}
	j.result.Degraded = res.Degraded
	j.result.Warning = res.Warning
	return []transform.Output{res.Output}, nil
}

// defaultCompressLevel is used when compress runs without options.
const defaultCompressLevel = 5

func runInfo(j *job) ([]transform.Output, error) {
	for i, f := range j.files {
		doc, err := j.decodePDF(f)
		if err != nil {
			return nil, err
		}
		j.result.Documents = append(j.result.Documents, transform.Info(doc))
		j.progress((i + 1) * 100 / len(j.files))
	}
	return nil, nil
}

// =============================================================================
// Image tools
// =============================================================================

func imageTools() []Tool {
	return []Tool{
		imageTool("resize", "fit within a bounding box", "resized", true, func(raw []byte) (transform.ImageOperation, error) {
			return decode[transform.ResizeOptions](raw)
		}),
		imageTool("crop", "cut a rectangle", "cropped", true, func(raw []byte) (transform.ImageOperation, error) {
			return decode[transform.CropOptions](raw)
		}),
		imageTool("rotate", "rotate by any angle", "rotated", true, func(raw []byte) (transform.ImageOperation, error) {
			return decode[transform.RotateImageOptions](raw)
		}),
		imageTool("flip", "mirror horizontally or vertically", "flipped", true, func(raw []byte) (transform.ImageOperation, error) {
			return decode[transform.FlipOptions](raw)
		}),
		imageTool("convert", "re-encode in another format", "", true, func(raw []byte) (transform.ImageOperation, error) {
			return transform.ConvertOptions{}, nil
		}),
		imageTool("grayscale", "remove color", "grayscale", false, func(raw []byte) (transform.ImageOperation, error) {
			return transform.GrayscaleOptions{}, nil
		}),
		imageTool("adjust", "brightness, contrast and saturation", "adjusted", true, func(raw []byte) (transform.ImageOperation, error) {
			return decode[transform.AdjustOptions](raw)
		}),
		imageTool("text-overlay", "draw a caption", "text", true, func(raw []byte) (transform.ImageOperation, error) {
			return decode[transform.TextOverlayOptions](raw)
		}),
		imageTool("enhance", "sharpen, denoise and level", "enhanced", true, func(raw []byte) (transform.ImageOperation, error) {
			return decode[transform.EnhanceOptions](raw)
		}),
	}
}

// imageTool wraps a per-image operation fanned out over the selection.
// suffix names the outputs; an empty suffix keeps the input's base name.
func imageTool(name, description, suffix string, configurable bool, build func(raw []byte) (transform.ImageOperation, error)) Tool {
	return Tool{
		Name:         name,
		Description:  description,
		Accepts:      imagesOnly,
		MinFiles:     1,
		Configurable: configurable,
		run: func(j *job) ([]transform.Output, error) {
			op, err := build(j.opts)
			if err != nil {
				return nil, err
			}
			enc, err := encodeOptions(j.opts)
			if err != nil {
				return nil, err
			}
			if _, ok := op.(transform.ConvertOptions); ok && enc.Format == "" {
				return nil, fmt.Errorf("%w: output.format: required", transform.ErrInvalidOptions)
			}

			return j.forEach(func(_ context.Context, f codec.File) ([]transform.Output, error) {
				out, err := transform.ProcessImage(f, suffix, op, enc)
				if err != nil {
					return nil, err
				}
				return []transform.Output{out}, nil
			})
		},
	}
}

// =============================================================================
// Convert tools
// =============================================================================

func convertTools() []Tool {
	return []Tool{
		{
			Name:        "images-to-pdf",
			Description: "one page per image",
			Accepts:     imagesOnly,
			MinFiles:    1,
			run:         runImagesToPDF,
		},
		{
			Name:        "pdf-to-text",
			Description: "extract plain text",
			Accepts:     pdfOnly,
			MinFiles:    1,
			extracts:    true,
			run:         runPDFToText,
		},
		{
			Name:        "zip-extract",
			Description: "unpack ZIP archives",
			Accepts:     zipOnly,
			MinFiles:    1,
			run:         runZipExtract,
		},
		{
			Name:        "zip-bundle",
			Description: "pack the selection into one ZIP",
			MinFiles:    1,
			run:         runZipBundle,
		},
		imageTool("image-convert", "re-encode every image", "", true, func(raw []byte) (transform.ImageOperation, error) {
			return transform.ConvertOptions{}, nil
		}),
	}
}

func runImagesToPDF(j *job) ([]transform.Output, error) {
	opts, err := decode[transform.ImagesToPDFOptions](j.opts)
	if err != nil {
		return nil, err
	}
	name := "images.pdf"
	if len(j.files) == 1 {
		name = transform.OutputName(j.files[0].Name, "", codec.FormatPDF)
	}

	out, err := transform.ImagesToPDF(name, j.files, opts)
	if err != nil {
		return nil, err
	}
	return []transform.Output{out}, nil
}

func runPDFToText(j *job) ([]transform.Output, error) {
	return j.forEach(func(_ context.Context, f codec.File) ([]transform.Output, error) {
		out, err := transform.PDFToText(f, j.c.deps.Config.MaxPDFSize, j.c.deps.Extractor)
		if err != nil {
			return nil, err
		}
		return []transform.Output{out}, nil
	})
}

func runZipExtract(j *job) ([]transform.Output, error) {
	limits := transform.DefaultZipLimits()
	return j.forEach(func(_ context.Context, f codec.File) ([]transform.Output, error) {
		return transform.ExtractZip(f, limits)
	})
}

func runZipBundle(j *job) ([]transform.Output, error) {
	outputs := make([]transform.Output, len(j.files))
	for i, f := range j.files {
		outputs[i] = transform.Output{Name: f.Name, Format: codec.DetectFormat(f), Data: f.Data}
	}
	name := "bundle.zip"
	if len(j.files) == 1 {
		name = transform.OutputName(j.files[0].Name, "", codec.FormatZIP)
	}

	out, err := transform.BundleZip(name, outputs)
	if err != nil {
		return nil, err
	}
	return []transform.Output{out}, nil
}
