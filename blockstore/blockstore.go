// Package blockstore provides the byte storage behind files: an addressable
// array of fixed-size blocks sitting on top of any [io.ReadWriteSeeker].
//
// A Store is not safe for concurrent use.
package blockstore

import (
	"fmt"
	"io"

	"github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/errors"
	"github.com/go-git/go-billy/v5"
	"github.com/xaionaro-go/bytesextra"
)

// Store is an abstraction layer around a stream to make it look like a block
// device, i.e. something that can only be read from or written to in whole
// blocks.
//
// The exposed fields are for informational purposes only and should never be
// changed.
type Store struct {
	// BytesPerBlock gives the size of a block in this store, in bytes.
	BytesPerBlock uint
	// TotalBlocks is the total number of blocks in this store.
	TotalBlocks uint
	stream      io.ReadWriteSeeker
}

// New creates a Store over an existing stream. The stream must already be at
// least `bytesPerBlock * totalBlocks` bytes long; it's never resized.
func New(stream io.ReadWriteSeeker, bytesPerBlock, totalBlocks uint) *Store {
	return &Store{
		BytesPerBlock: bytesPerBlock,
		TotalBlocks:   totalBlocks,
		stream:        stream,
	}
}

// NewMemory creates a zero-filled Store that lives entirely in memory.
func NewMemory(bytesPerBlock, totalBlocks uint) *Store {
	backing := make([]byte, bytesPerBlock*totalBlocks)
	return New(bytesextra.NewReadWriteSeeker(backing), bytesPerBlock, totalBlocks)
}

// NewFile creates a Store backed by the file `name` on `filesystem`. The file
// is created (or truncated) and sized to hold every block.
func NewFile(
	filesystem billy.Filesystem, name string, bytesPerBlock, totalBlocks uint,
) (*Store, error) {
	file, err := filesystem.Create(name)
	if err != nil {
		return nil, errors.ErrIOFailed.Wrap(err)
	}

	err = file.Truncate(int64(bytesPerBlock) * int64(totalBlocks))
	if err != nil {
		file.Close()
		return nil, errors.ErrIOFailed.Wrap(err)
	}
	return New(file, bytesPerBlock, totalBlocks), nil
}

// Size gives the total size of the store, in bytes.
func (store *Store) Size() int64 {
	return int64(store.BytesPerBlock) * int64(store.TotalBlocks)
}

// BlockToOffset converts a block index into a byte offset into the backing
// stream.
func (store *Store) BlockToOffset(block common.PhysicalBlock) (int64, error) {
	if uint(block) >= store.TotalBlocks {
		return -1,
			errors.ErrInvalidArgument.WithMessage(
				fmt.Sprintf(
					"invalid block %d: not in range [0, %d)",
					block,
					store.TotalBlocks,
				),
			)
	}
	return int64(block) * int64(store.BytesPerBlock), nil
}

// CheckIOBounds checks to see if `dataLength` bytes can be read from or written
// to the store, starting at `block`. If the bounds check fails, it returns an
// error indicating exactly what went wrong.
func (store *Store) CheckIOBounds(block common.PhysicalBlock, dataLength uint) error {
	if uint(block) >= store.TotalBlocks {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"invalid block %d: not in range [0, %d)",
				block,
				store.TotalBlocks,
			),
		)
	}

	if dataLength%store.BytesPerBlock != 0 {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"data must be a multiple of the block size (%d B), got %d (remainder %d)",
				store.BytesPerBlock,
				dataLength,
				dataLength%store.BytesPerBlock,
			),
		)
	}

	dataSizeInBlocks := dataLength / store.BytesPerBlock
	if uint(block)+dataSizeInBlocks > store.TotalBlocks {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"block %d plus %d blocks of data extends past end of store",
				block,
				dataSizeInBlocks,
			),
		)
	}
	return nil
}

// seekToBlock positions the stream pointer at the byte offset where the given
// block starts.
func (store *Store) seekToBlock(block common.PhysicalBlock) error {
	offset, err := store.BlockToOffset(block)
	if err != nil {
		return err
	}

	_, err = store.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}

// ReadBlocks fills `buffer` with whole blocks starting from `block`. The length
// of `buffer` must be a multiple of the block size.
func (store *Store) ReadBlocks(block common.PhysicalBlock, buffer []byte) error {
	err := store.CheckIOBounds(block, uint(len(buffer)))
	if err != nil {
		return err
	}

	err = store.seekToBlock(block)
	if err != nil {
		return err
	}

	_, err = io.ReadFull(store.stream, buffer)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}

// WriteBlocks writes whole blocks to the store starting at `block`. The length
// of `data` must be a multiple of the block size.
func (store *Store) WriteBlocks(block common.PhysicalBlock, data []byte) error {
	err := store.CheckIOBounds(block, uint(len(data)))
	if err != nil {
		return err
	}

	err = store.seekToBlock(block)
	if err != nil {
		return err
	}

	_, err = store.stream.Write(data)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}

// Close releases the backing stream if it needs releasing.
func (store *Store) Close() error {
	closer, ok := store.stream.(io.Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}
