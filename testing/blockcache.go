package testing

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/dargueta/quotafs/blockcache"
	c "github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CreateRandomData returns `size` random bytes, or fails the test.
func CreateRandomData(size int, t *testing.T) []byte {
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoErrorf(t, err, "failed to generate %d random bytes", size)
	return data
}

// CreateRandomBlocks returns `totalBlocks` blocks of random data.
func CreateRandomBlocks(blockSize, totalBlocks uint, t *testing.T) []byte {
	return CreateRandomData(int(blockSize*totalBlocks), t)
}

// NewSliceBackedCache returns a block cache whose blocks live in `backing`,
// the way a file's blocks live in the block store. A nil `backing` gets random
// content. If `writable` is false, any flush fails the test.
func NewSliceBackedCache(
	blockSize,
	totalBlocks uint,
	writable bool,
	backing []byte,
	t *testing.T,
) *blockcache.BlockCache {
	if backing == nil {
		backing = CreateRandomBlocks(blockSize, totalBlocks, t)
	}

	// blockSlice returns the part of `backing` holding block `index`, or fails
	// the test if the cache asked for a block it doesn't have.
	blockSlice := func(index c.LogicalBlock, action string) ([]byte, error) {
		if uint(index) >= totalBlocks {
			message := fmt.Sprintf("%s block %d, cache only has %d", action, index, totalBlocks)
			t.Error(message)
			return nil, errors.ErrIOFailed.WithMessage(message)
		}
		start := uint(index) * blockSize
		return backing[start : start+blockSize], nil
	}

	fetch := func(index c.LogicalBlock, buffer []byte) error {
		block, err := blockSlice(index, "fetched")
		if err == nil {
			copy(buffer, block)
		}
		return err
	}

	flush := func(index c.LogicalBlock, buffer []byte) error {
		if !writable {
			t.Errorf("flushed %d bytes to block %d of a read-only cache", len(buffer), index)
			return errors.ErrNotPermitted
		}
		block, err := blockSlice(index, "flushed")
		if err == nil {
			copy(block, buffer)
		}
		return err
	}

	cache := blockcache.New(blockSize, totalBlocks, fetch, flush)
	assert.EqualValues(t, blockSize*totalBlocks, cache.Size(), "cache size is wrong")
	return cache
}
