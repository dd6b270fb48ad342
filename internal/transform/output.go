// Package transform implements the document, image and conversion
// operations. Every operation validates its options against the current
// input first and never modifies the input model.
package transform

import (
	"fmt"

	"github.com/flexconvert/flexconvert/internal/codec"
)

// Output is one produced file.
type Output struct {
	Name   string
	Format codec.Format
	Data   []byte
}

// MIME returns the output's media type.
func (o Output) MIME() string {
	return o.Format.MIME()
}

// File returns the output as a codec.File, e.g. to feed it into another operation.
func (o Output) File() codec.File {
	return codec.File{Name: o.Name, Data: o.Data}
}

// OutputName derives "<base>_<suffix><ext>" from an input name.
func OutputName(input, suffix string, format codec.Format) string {
	base := codec.BaseName(input)
	if suffix != "" {
		base = fmt.Sprintf("%s_%s", base, suffix)
	}
	return base + format.Extension()
}
