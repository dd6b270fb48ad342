package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/flexconvert/flexconvert/internal/domain"
)

// ErrInvalidPreset indicates a saved configuration that cannot be applied.
var ErrInvalidPreset = errors.New("invalid preset")

// Preset is a saved tool configuration. It is the payload of a config share:
//
//	{"category": "pdf", "tool": "compress", "options": {"level": 7}}
type Preset struct {
	Category domain.ToolCategory `json:"category"`
	Tool     string              `json:"tool"`
	Options  json.RawMessage     `json:"options,omitempty"`
}

// ParsePreset reads a preset and checks that it names a registered tool.
func ParsePreset(data []byte) (*Preset, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidPreset)
	}

	p := &Preset{
		Category: domain.ToolCategory(gjson.GetBytes(data, "category").String()),
		Tool:     gjson.GetBytes(data, "tool").String(),
	}

	tools, ok := registry[p.Category]
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidPreset, p.Category)
	}
	if _, ok := tools[p.Tool]; !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", ErrInvalidPreset, p.Tool)
	}

	if opts := gjson.GetBytes(data, "options"); opts.Exists() && opts.Type != gjson.Null {
		if !opts.IsObject() {
			return nil, fmt.Errorf("%w: options must be an object", ErrInvalidPreset)
		}
		p.Options = json.RawMessage(opts.Raw)
	}
	return p, nil
}

// Marshal encodes the preset for a config share.
func (p Preset) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
