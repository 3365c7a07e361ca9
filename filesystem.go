// Package quotafs is an in-memory hierarchical file system with per-entry
// permissions and a global storage quota measured in fixed-size blocks.
//
// All operations are addressed by path and are safe for concurrent use.
//
// By default paths of any depth resolve, so "/docs/readme.txt" can be created
// once "/docs" exists. Pass WithResolution(tree.ResolveRootOnly) to get the
// older behavior where only the root and paths like "//docs" resolve, and
// creating "/docs/readme.txt" fails with [ErrNotFound].
package quotafs

import (
	"sync"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/quotafs/blockstore"
	"github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/errors"
	"github.com/dargueta/quotafs/filetable"
	"github.com/dargueta/quotafs/paths"
	"github.com/dargueta/quotafs/tree"
	"github.com/dustin/go-humanize"
	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FileSystem owns a directory tree, the block budget its files draw from, and
// optionally the block store holding their content. Independent instances
// share nothing.
type FileSystem struct {
	lock       sync.Mutex
	id         uuid.UUID
	log        logrus.FieldLogger
	clock      clock.Clock
	limits     common.Limits
	resolution tree.ResolutionMode
	tree       *tree.Tree
	files      *filetable.Table
	allocator  *common.Allocator
	store      *blockstore.Store
}

// New creates an empty file system containing only the root directory.
func New(options ...Option) (*FileSystem, error) {
	s := defaultSettings()
	for _, option := range options {
		err := option(&s)
		if err != nil {
			return nil, err
		}
	}

	var store *blockstore.Store
	if s.openStore != nil {
		var err error
		store, err = s.openStore(s.limits)
		if err != nil {
			return nil, err
		}
	}

	id := uuid.New()
	allocator := common.NewAllocator(s.limits.BlockBudget())
	return &FileSystem{
		id:         id,
		log:        s.logger.WithField("fs_id", id.String()),
		clock:      s.clock,
		limits:     s.limits,
		resolution: s.resolution,
		tree:       tree.New(s.limits, s.resolution, s.clock),
		files:      filetable.New(s.limits, allocator, store, s.clock),
		allocator:  allocator,
		store:      store,
	}, nil
}

// ID returns the unique identifier of this instance. It appears in every log
// message as "fs_id".
func (fs *FileSystem) ID() uuid.UUID {
	return fs.id
}

// Limits returns the capacity limits the file system was created with.
func (fs *FileSystem) Limits() common.Limits {
	return fs.limits
}

// Init reports the file system's configuration. It never fails and changes
// nothing.
func (fs *FileSystem) Init() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.log.WithFields(logrus.Fields{
		"block_size":    humanize.IBytes(uint64(fs.limits.BlockSize)),
		"max_file_size": humanize.IBytes(uint64(fs.limits.MaxFileSize)),
		"total_blocks":  fs.allocator.Total(),
		"resolution":    fs.resolution.String(),
		"byte_storage":  fs.store != nil,
	}).Info("file system initialized")
	return nil
}

// CreateFile creates an empty regular file at `path`.
//
// Errors:
//   - [ErrInvalidPath]: `path` is malformed, or its last component is reserved
//     or too long.
//   - [ErrNotFound]: the parent directory doesn't exist.
//   - [ErrAlreadyExists]: something with that name is already in the parent.
//   - [ErrDiskFull]: the parent directory is at its entry limit.
func (fs *FileSystem) CreateFile(path string, perms Permissions) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	dir, name, err := fs.tree.FindParent(path)
	if err != nil {
		return err
	}

	err = fs.files.CreateFile(dir, name, perms)
	if err != nil {
		return err
	}

	fs.log.WithFields(logrus.Fields{
		"path":    path,
		"read":    perms.Read,
		"write":   perms.Write,
		"execute": perms.Execute,
	}).Debug("created file")
	return nil
}

// Read reads up to len(buffer) bytes of the file at `path` starting at byte
// `offset`, and returns how many bytes were read. Reading at or past the end of
// the file returns 0 and no error. Without byte storage, `buffer` isn't
// touched but the count is the same.
func (fs *FileSystem) Read(path string, buffer []byte, offset int64) (int, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	dir, name, err := fs.tree.FindParent(path)
	if err != nil {
		return 0, err
	}
	return fs.files.ReadFile(dir, name, buffer, offset)
}

// Write writes `data` to the file at `path` starting at byte `offset`, and
// returns len(data). Growing the file charges ceil(growth / BlockSize) blocks
// against the block budget; if that fails, the file is left as it was.
func (fs *FileSystem) Write(path string, data []byte, offset int64) (int, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	dir, name, err := fs.tree.FindParent(path)
	if err != nil {
		return 0, err
	}

	n, err := fs.files.WriteFile(dir, name, data, offset)
	if err != nil {
		return 0, err
	}

	fs.log.WithFields(logrus.Fields{
		"path":        path,
		"offset":      offset,
		"length":      len(data),
		"blocks_free": fs.allocator.Free(),
	}).Debug("wrote file")
	return n, nil
}

// Mkdir creates an empty directory at `path` with every permission bit set.
func (fs *FileSystem) Mkdir(path string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	err := fs.tree.CreateDirectory(path)
	if err != nil {
		return err
	}

	fs.log.WithField("path", path).Debug("created directory")
	return nil
}

// List returns the entries of the directory at `path` in the order they were
// created. Paths that don't resolve to a directory fail with [ErrNotFound].
func (fs *FileSystem) List(path string) ([]DirectoryEntry, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	entries, err := fs.tree.List(path)
	if err != nil {
		return nil, err
	}

	output := make([]DirectoryEntry, len(entries))
	for i, entry := range entries {
		output[i] = newDirectoryEntry(entry)
	}
	return output, nil
}

// Stat returns information about the entry at `path`. The root directory has
// no entry of its own, so one is made up for it.
func (fs *FileSystem) Stat(path string) (DirectoryEntry, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if path == paths.Root {
		return newDirectoryEntry(tree.Entry{
			Name:        paths.Root,
			Permissions: tree.AllPermissions,
			Data:        tree.DirectoryData{Child: tree.RootID},
		}), nil
	}

	dir, name, err := fs.tree.FindParent(path)
	if err != nil {
		return DirectoryEntry{}, err
	}

	entry := dir.Lookup(name)
	if entry == nil {
		return DirectoryEntry{}, errors.ErrNotFound.WithMessage(path)
	}
	return newDirectoryEntry(entry.Snapshot()), nil
}

// Statfs summarizes how much of the file system is in use.
func (fs *FileSystem) Statfs() FSStat {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	usedBlocks := uint64(0)
	allocationMap := fs.allocator.Bitmap()
	for i := 0; i < int(fs.allocator.Total()); i++ {
		if bitmap.Get(allocationMap, i) {
			usedBlocks++
		}
	}

	files := uint64(0)
	for id := 0; id < fs.tree.NumDirectories(); id++ {
		for _, entry := range fs.tree.Directory(tree.DirectoryID(id)).Entries() {
			if entry.Kind() == tree.KindRegular {
				files++
			}
		}
	}

	return FSStat{
		BlockSize:       fs.limits.BlockSize,
		TotalBlocks:     uint64(fs.allocator.Total()),
		BlocksUsed:      usedBlocks,
		BlocksFree:      uint64(fs.allocator.Total()) - usedBlocks,
		Files:           files,
		Directories:     uint64(fs.tree.NumDirectories()),
		MaxNameLength:   int64(fs.limits.MaxFilenameLength - 1),
		MaxFileSize:     fs.limits.MaxFileSize,
		HasBlockStorage: fs.store != nil,
	}
}

// Close releases the block store. The file system must not be used afterwards.
func (fs *FileSystem) Close() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.store == nil {
		return nil
	}

	err := fs.store.Close()
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}
