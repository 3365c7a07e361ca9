// Package filetable creates, reads, and writes regular files inside a
// directory that has already been resolved.
//
// Growth is charged against a shared block budget: every write that makes a
// file bigger allocates ceil(growth / BlockSize) blocks, and the blocks are
// never given back. If a block store is attached, file content is transferred
// through it; otherwise only sizes are tracked.
package filetable

import (
	"fmt"

	"github.com/dargueta/quotafs/blockcache"
	"github.com/dargueta/quotafs/blockstore"
	c "github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/errors"
	"github.com/dargueta/quotafs/tree"
	"github.com/facebookgo/clock"
)

// Table operates on the regular files of a file system. It is not safe for
// concurrent use.
type Table struct {
	limits    c.Limits
	allocator *c.Allocator
	store     *blockstore.Store
	clock     clock.Clock
}

// New creates a Table. `store` may be nil, in which case reads and writes only
// account for sizes and never move any bytes.
func New(
	limits c.Limits,
	allocator *c.Allocator,
	store *blockstore.Store,
	clk clock.Clock,
) *Table {
	return &Table{
		limits:    limits,
		allocator: allocator,
		store:     store,
		clock:     clk,
	}
}

// HasStore tells whether the table transfers file content.
func (table *Table) HasStore() bool {
	return table.store != nil
}

// CreateFile adds an empty regular file named `name` to `dir`.
//
// Errors:
//   - ENOSPC: `dir` is at its entry limit.
//   - EINVAL: `name` is reserved or too long.
//   - EEXIST: `dir` already has an entry named `name`, of any kind.
func (table *Table) CreateFile(dir *tree.Directory, name string, perms tree.Permissions) error {
	if dir.Len() >= table.limits.MaxEntriesPerDirectory {
		return errors.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf(
				"can't create %q: directory %q is full (%d entries)",
				name,
				dir.Name(),
				table.limits.MaxEntriesPerDirectory,
			),
		)
	}

	err := tree.ValidateName(name, table.limits.MaxFilenameLength)
	if err != nil {
		return err
	}

	if dir.Lookup(name) != nil {
		return errors.ErrExists.WithMessage(
			fmt.Sprintf("can't create %q: name already in use", name),
		)
	}

	now := table.clock.Now()
	dir.Append(&tree.Entry{
		Name:        name,
		Permissions: perms,
		CreatedAt:   now,
		ModifiedAt:  now,
		Data:        &tree.FileData{},
	})
	return nil
}

// lookupFile finds the regular file named `name` in `dir`. Directories and
// anything else that isn't a regular file don't count.
func (table *Table) lookupFile(dir *tree.Directory, name string) (*tree.Entry, error) {
	entry := dir.Lookup(name)
	if entry == nil || entry.Kind() != tree.KindRegular {
		return nil, errors.ErrNotFound.WithMessage(
			fmt.Sprintf("no file named %q in directory %q", name, dir.Name()),
		)
	}
	return entry, nil
}

func checkOffset(offset int64) error {
	if offset < 0 {
		return errors.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("offset can't be negative, got %d", offset),
		)
	}
	return nil
}

// ReadFile reads up to len(buffer) bytes of the file `name` starting at
// `offset`, and returns the number of bytes read. Reading at or past the end
// of the file returns 0 and no error.
//
// Errors:
//   - ENOENT: there's no regular file with that name.
//   - EACCES: the file isn't readable. This is checked before the offset.
//   - EDOM: `offset` is negative.
//   - EIO: the block store failed.
func (table *Table) ReadFile(
	dir *tree.Directory,
	name string,
	buffer []byte,
	offset int64,
) (int, error) {
	entry, err := table.lookupFile(dir, name)
	if err != nil {
		return 0, err
	}
	if !entry.Permissions.Read {
		return 0, errors.ErrPermissionDenied.WithMessage(
			fmt.Sprintf("file %q isn't readable", name),
		)
	}

	err = checkOffset(offset)
	if err != nil {
		return 0, err
	}

	file := entry.File()
	if offset >= file.Size {
		return 0, nil
	}

	available := file.Size - offset
	count := int64(len(buffer))
	if count > available {
		count = available
	}

	if table.store != nil && count > 0 {
		cache, relativeOffset := table.cacheFor(file, offset, count)
		_, err = cache.ReadAt(buffer[:count], relativeOffset)
		if err != nil {
			return 0, err
		}
	}
	return int(count), nil
}

// WriteFile writes `data` to the file `name` starting at `offset`, growing the
// file if needed, and returns the number of bytes written. Writing past the end
// of the file leaves a zero-filled gap.
//
// Errors:
//   - ENOENT: there's no regular file with that name.
//   - EACCES: the file isn't writable.
//   - EDOM: `offset` is negative.
//   - ENOSPC: the file would exceed the maximum file size, or there aren't
//     enough blocks left in the budget. The file's size is left unchanged.
//   - EIO: the block store failed. Blocks allocated for the write stay
//     allocated, but the file's size is left unchanged.
func (table *Table) WriteFile(
	dir *tree.Directory,
	name string,
	data []byte,
	offset int64,
) (int, error) {
	entry, err := table.lookupFile(dir, name)
	if err != nil {
		return 0, err
	}
	if !entry.Permissions.Write {
		return 0, errors.ErrPermissionDenied.WithMessage(
			fmt.Sprintf("file %q isn't writable", name),
		)
	}

	err = checkOffset(offset)
	if err != nil {
		return 0, err
	}

	// Compared this way so that `offset + len(data)` can't overflow.
	if offset > table.limits.MaxFileSize-int64(len(data)) {
		return 0, errors.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf(
				"writing %d bytes at offset %d would take %q past the limit of %d bytes",
				len(data),
				offset,
				name,
				table.limits.MaxFileSize,
			),
		)
	}

	file := entry.File()
	newSize := offset + int64(len(data))
	if newSize < file.Size {
		newSize = file.Size
	}

	if newSize > file.Size {
		err = table.grow(file, newSize-file.Size)
		if err != nil {
			return 0, err
		}
	}

	if table.store != nil && len(data) > 0 {
		cache, relativeOffset := table.cacheFor(file, offset, int64(len(data)))
		_, err = cache.WriteAt(data, relativeOffset)
		if err == nil {
			err = cache.Flush()
		}
		if err != nil {
			return 0, err
		}
	}

	file.Size = newSize
	entry.ModifiedAt = table.clock.Now()
	return len(data), nil
}

// grow charges `growth` bytes against the block budget and appends the blocks
// it gets to the file's block list. The file's size isn't touched.
func (table *Table) grow(file *tree.FileData, growth int64) error {
	blocksNeeded := c.BlocksForBytes(growth, table.limits.BlockSize)
	first, err := table.allocator.Allocate(blocksNeeded)
	if err != nil {
		return err
	}

	for i := uint(0); i < blocksNeeded; i++ {
		file.Blocks = append(file.Blocks, first+c.PhysicalBlock(i))
	}
	return nil
}

// convertLinearAddr turns a byte offset in a file into the index of the file's
// block containing it, and the offset within that block.
func (table *Table) convertLinearAddr(offset int64) (c.LogicalBlock, uint) {
	bytesPerBlock := int64(table.limits.BlockSize)
	return c.LogicalBlock(offset / bytesPerBlock), uint(offset % bytesPerBlock)
}

// cacheFor builds a block cache covering the blocks of `file` that hold the
// `length` bytes starting at `offset`. It returns the cache and the offset of
// the first byte relative to the start of the cache.
func (table *Table) cacheFor(
	file *tree.FileData,
	offset int64,
	length int64,
) (*blockcache.BlockCache, int64) {
	firstBlock, firstBlockOffset := table.convertLinearAddr(offset)
	lastBlock, _ := table.convertLinearAddr(offset + length - 1)
	totalBlocks := uint(lastBlock-firstBlock) + 1

	fetch := func(blockIndex c.LogicalBlock, buffer []byte) error {
		return table.store.ReadBlocks(file.Blocks[firstBlock+blockIndex], buffer)
	}
	flush := func(blockIndex c.LogicalBlock, buffer []byte) error {
		return table.store.WriteBlocks(file.Blocks[firstBlock+blockIndex], buffer)
	}

	cache := blockcache.New(table.limits.BlockSize, totalBlocks, fetch, flush)
	return cache, int64(firstBlockOffset)
}
