package quotafs

import (
	"os"
	"time"

	"github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/tree"
)

// DirectoryEntry describes a file or directory on the file system. It
// implements [os.FileInfo]. A DirectoryEntry is a snapshot: it doesn't change
// when the file system does.
type DirectoryEntry struct {
	entry tree.Entry
}

func newDirectoryEntry(entry tree.Entry) DirectoryEntry {
	return DirectoryEntry{entry: entry}
}

// Name returns the base name of the directory entry on the file system.
func (d DirectoryEntry) Name() string {
	return d.entry.Name
}

// Size is the size of a regular file in bytes. It's 0 for directories.
func (d DirectoryEntry) Size() int64 {
	return d.entry.Size()
}

// Kind returns what sort of object the entry is.
func (d DirectoryEntry) Kind() tree.Kind {
	return d.entry.Kind()
}

func (d DirectoryEntry) Permissions() Permissions {
	return d.entry.Permissions
}

// RawMode gives the entry's mode the way stat(2) would, type bits included.
func (d DirectoryEntry) RawMode() uint32 {
	return kindBits(d.entry.Kind()) | permissionBits(d.entry.Permissions)
}

// Mode returns the file system mode of the entry as an os.FileMode.
func (d DirectoryEntry) Mode() os.FileMode {
	mode := os.FileMode(permissionBits(d.entry.Permissions))
	switch d.entry.Kind() {
	case tree.KindDirectory:
		mode |= os.ModeDir
	case tree.KindSymlink:
		mode |= os.ModeSymlink
	}
	return mode
}

// ModTime returns the last time the entry was modified.
func (d DirectoryEntry) ModTime() time.Time {
	return d.entry.ModifiedAt
}

// CreatedAt returns the time the entry was created.
func (d DirectoryEntry) CreatedAt() time.Time {
	return d.entry.CreatedAt
}

// IsDir returns true if it's a directory.
func (d DirectoryEntry) IsDir() bool {
	return d.entry.Kind() == tree.KindDirectory
}

// Blocks lists the blocks allocated to a regular file, in order.
func (d DirectoryEntry) Blocks() []common.PhysicalBlock {
	file := d.entry.File()
	if file == nil {
		return nil
	}
	blocks := make([]common.PhysicalBlock, len(file.Blocks))
	copy(blocks, file.Blocks)
	return blocks
}

// Sys returns a copy of the [tree.Entry] backing this directory entry.
func (d DirectoryEntry) Sys() interface{} {
	return d.entry.Snapshot()
}

// FSStat is a summary of the file system's usage, loosely modeled after
// statfs(2).
type FSStat struct {
	BlockSize       uint
	TotalBlocks     uint64
	BlocksUsed      uint64
	BlocksFree      uint64
	Files           uint64
	Directories     uint64
	MaxNameLength   int64
	MaxFileSize     int64
	HasBlockStorage bool
}
