package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/domain"
)

func TestParsePreset(t *testing.T) {
	p, err := ParsePreset([]byte(`{"category":"pdf","tool":"compress","options":{"level":7}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryPDF, p.Category)
	assert.Equal(t, "compress", p.Tool)
	assert.JSONEq(t, `{"level":7}`, string(p.Options))

	data, err := p.Marshal()
	require.NoError(t, err)
	again, err := ParsePreset(data)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestParsePreset_NoOptions(t *testing.T) {
	p, err := ParsePreset([]byte(`{"category":"image","tool":"grayscale","options":null}`))
	require.NoError(t, err)
	assert.Nil(t, p.Options)
}

func TestParsePreset_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"category":`},
		{"unknown category", `{"category":"audio","tool":"trim"}`},
		{"unknown tool", `{"category":"pdf","tool":"resize"}`},
		{"options not object", `{"category":"pdf","tool":"rotate","options":[90]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePreset([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidPreset)
		})
	}
}
