package tree

import (
	"time"

	"github.com/dargueta/quotafs/common"
)

// Kind identifies what a directory entry refers to.
type Kind int

const (
	KindRegular   Kind = 1
	KindDirectory Kind = 2
	// KindSymlink is reserved. No operation creates symbolic links.
	KindSymlink Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Permissions are the Unix-style access bits of a single entry.
type Permissions struct {
	Read    bool
	Write   bool
	Execute bool
}

// AllPermissions grants read, write, and execute. New directories get these.
var AllPermissions = Permissions{Read: true, Write: true, Execute: true}

// EntryData is the kind-specific payload of an [Entry]. It's one of
// *[FileData], [DirectoryData], or [SymlinkData].
type EntryData interface {
	entryKind() Kind
}

// FileData is the payload of a regular file.
type FileData struct {
	// Size is the size of the file in bytes.
	Size int64
	// Blocks lists the physical blocks holding the file's content, in order.
	Blocks []common.PhysicalBlock
}

func (*FileData) entryKind() Kind { return KindRegular }

// DirectoryData is the payload of a subdirectory entry. Each subdirectory
// entry owns exactly one child directory.
type DirectoryData struct {
	Child DirectoryID
}

func (DirectoryData) entryKind() Kind { return KindDirectory }

// SymlinkData is the payload of a symbolic link.
type SymlinkData struct {
	Target string
}

func (SymlinkData) entryKind() Kind { return KindSymlink }

// Entry is a named slot in a directory.
type Entry struct {
	Name        string
	Permissions Permissions
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Data        EntryData
}

// Kind returns the kind of object the entry refers to.
func (e *Entry) Kind() Kind {
	return e.Data.entryKind()
}

// File returns the entry's file payload, or nil if it's not a regular file.
func (e *Entry) File() *FileData {
	data, _ := e.Data.(*FileData)
	return data
}

// Size returns the size of a regular file, or 0 for anything else.
func (e *Entry) Size() int64 {
	file := e.File()
	if file == nil {
		return 0
	}
	return file.Size
}

// Snapshot returns a deep copy of the entry that shares no state with it.
func (e *Entry) Snapshot() Entry {
	snapshot := *e
	if file := e.File(); file != nil {
		blocks := make([]common.PhysicalBlock, len(file.Blocks))
		copy(blocks, file.Blocks)
		snapshot.Data = &FileData{Size: file.Size, Blocks: blocks}
	}
	return snapshot
}
