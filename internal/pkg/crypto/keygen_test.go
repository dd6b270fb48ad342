package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShareID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, err := GenerateShareID()
		require.NoError(t, err)
		require.Len(t, id, ShareIDLength)
		for _, c := range id {
			assert.Contains(t, shareIDChars, string(c))
		}
		seen[id] = true
	}
	assert.Len(t, seen, 200)
}

func TestAdminKeyHash(t *testing.T) {
	key, err := GenerateAdminKey()
	require.NoError(t, err)
	require.Len(t, key, AdminKeyLength)

	hash, err := HashAdminKey(key)
	require.NoError(t, err)

	assert.NoError(t, CompareAdminKey(hash, key))
	assert.ErrorIs(t, CompareAdminKey(hash, key+"x"), ErrKeyMismatch)
	assert.ErrorIs(t, CompareAdminKey("", key), ErrKeyMismatch)
	assert.ErrorIs(t, CompareAdminKey(hash, ""), ErrKeyMismatch)
}
