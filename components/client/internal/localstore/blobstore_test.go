package localstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStoreWriteReadDelete(t *testing.T) {
	store := NewBlobStore(t.TempDir())

	require.NoError(t, store.Write("images/a.webp", []byte("hello")))
	assert.True(t, store.Exists("images/a.webp"))

	data, err := store.Read("images/a.webp")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, store.Delete("images/a.webp"))
	assert.False(t, store.Exists("images/a.webp"))
}

func TestBlobStoreDeleteMissingIsNoop(t *testing.T) {
	store := NewBlobStore(t.TempDir())
	assert.NoError(t, store.Delete("nope.webp"))
}
