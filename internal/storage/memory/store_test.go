package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexconvert/flexconvert/internal/storage"
)

func TestStore_Lifecycle(t *testing.T) {
	s := NewStore("http://files.local")
	ctx := context.Background()
	key := storage.ShareObjectKey("abc")

	up, err := s.PresignUpload(ctx, key, "image/png", 10, time.Hour)
	require.NoError(t, err)
	assert.Contains(t, up.URL, "http://files.local/files/abc?")
	assert.Equal(t, "image/png", up.Headers.Get("Content-Type"))

	down, err := s.PresignDownload(ctx, key, "a.png", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, down.URL, "response-content-disposition")

	require.NoError(t, s.Delete(ctx, key))
	assert.True(t, storage.IsNotFound(s.Delete(ctx, key)))
	assert.Equal(t, []string{key}, s.Deleted())
}
