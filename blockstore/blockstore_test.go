package blockstore_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/dargueta/quotafs/blockstore"
	c "github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/errors"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStoreRoundTrip(t *testing.T, store *blockstore.Store) {
	written := make([]byte, store.BytesPerBlock*2)
	_, err := rand.Read(written)
	require.NoError(t, err)

	err = store.WriteBlocks(3, written)
	require.NoError(t, err, "failed to write two blocks")

	readBack := make([]byte, len(written))
	err = store.ReadBlocks(3, readBack)
	require.NoError(t, err, "failed to read two blocks")
	assert.True(t, bytes.Equal(written, readBack), "read back different data than written")

	// Neighbors must be untouched.
	neighbor := make([]byte, store.BytesPerBlock)
	err = store.ReadBlocks(2, neighbor)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, store.BytesPerBlock), neighbor, "block 2 was modified")

	err = store.ReadBlocks(5, neighbor)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, store.BytesPerBlock), neighbor, "block 5 was modified")
}

func TestStore__Memory__RoundTrip(t *testing.T) {
	store := blockstore.NewMemory(512, 16)
	assert.EqualValues(t, 512*16, store.Size())
	runStoreRoundTrip(t, store)
	assert.NoError(t, store.Close())
}

func TestStore__File__RoundTrip(t *testing.T) {
	filesystem := memfs.New()
	store, err := blockstore.NewFile(filesystem, "blocks.img", 512, 16)
	require.NoError(t, err)
	defer store.Close()

	info, err := filesystem.Stat("blocks.img")
	require.NoError(t, err)
	assert.EqualValues(t, 512*16, info.Size(), "backing file wasn't sized correctly")

	runStoreRoundTrip(t, store)
}

// The last block is addressable, one past it is not.
func TestStore__Bounds(t *testing.T) {
	store := blockstore.NewMemory(128, 8)
	buffer := make([]byte, 128)

	assert.NoError(t, store.ReadBlocks(7, buffer), "reading the last block failed")
	assert.ErrorIs(t, store.ReadBlocks(8, buffer), errors.ErrInvalidArgument)
	assert.ErrorIs(
		t, store.WriteBlocks(7, make([]byte, 256)), errors.ErrInvalidArgument,
		"write running past the end should've failed")
	assert.ErrorIs(
		t, store.WriteBlocks(0, make([]byte, 100)), errors.ErrInvalidArgument,
		"partial block write should've failed")

	_, err := store.BlockToOffset(c.PhysicalBlock(8))
	assert.Error(t, err)

	offset, err := store.BlockToOffset(c.PhysicalBlock(3))
	require.NoError(t, err)
	assert.EqualValues(t, 384, offset)
}
