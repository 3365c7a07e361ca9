// Package tree maintains the directory hierarchy: a root directory, the
// subdirectories beneath it, and the resolution of paths to directories.
//
// A Tree is not safe for concurrent use.
package tree

import (
	"fmt"

	"github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/errors"
	"github.com/dargueta/quotafs/paths"
	"github.com/facebookgo/clock"
)

// ResolutionMode selects how paths are resolved to directories.
type ResolutionMode int

const (
	// ResolveRecursive walks every component of a path from the root,
	// however deep it goes.
	ResolveRecursive ResolutionMode = iota
	// ResolveRootOnly resolves "/" and paths whose parent is literally "/",
	// such as "//docs", and nothing else. "/docs" does not resolve because
	// its parent is "", not "/". This mirrors the first versions of the file
	// system and exists for compatibility.
	ResolveRootOnly
)

func (mode ResolutionMode) String() string {
	switch mode {
	case ResolveRecursive:
		return "recursive"
	case ResolveRootOnly:
		return "root-only"
	default:
		return fmt.Sprintf("ResolutionMode(%d)", int(mode))
	}
}

// ParseResolutionMode is the inverse of [ResolutionMode.String].
func ParseResolutionMode(name string) (ResolutionMode, error) {
	switch name {
	case "recursive", "":
		return ResolveRecursive, nil
	case "root-only":
		return ResolveRootOnly, nil
	default:
		return ResolveRecursive, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("unknown resolution mode %q", name),
		)
	}
}

// Tree owns every directory of a file system. Directories are kept in an
// arena and referred to by [DirectoryID]; the root is always [RootID].
type Tree struct {
	directories []*Directory
	resolver    paths.Resolver
	limits      common.Limits
	mode        ResolutionMode
	clock       clock.Clock
}

// New creates a tree containing only an empty root directory.
func New(limits common.Limits, mode ResolutionMode, clk clock.Clock) *Tree {
	return &Tree{
		directories: []*Directory{newDirectory(RootID, RootID, paths.Root)},
		resolver:    paths.NewResolver(limits.MaxPathLength),
		limits:      limits,
		mode:        mode,
		clock:       clk,
	}
}

// Root returns the root directory.
func (t *Tree) Root() *Directory {
	return t.directories[RootID]
}

// Directory returns the directory with the given ID, or nil if there isn't one.
func (t *Tree) Directory(id DirectoryID) *Directory {
	if int(id) >= len(t.directories) {
		return nil
	}
	return t.directories[id]
}

// NumDirectories returns the number of directories in the tree, including the
// root.
func (t *Tree) NumDirectories() int {
	return len(t.directories)
}

// Find resolves `path` to a directory. Syntactically invalid paths fail with
// EINVAL; paths that don't lead to a directory fail with ENOENT.
func (t *Tree) Find(path string) (*Directory, error) {
	err := t.resolver.Validate(path)
	if err != nil {
		return nil, err
	}

	if path == paths.Root {
		return t.Root(), nil
	}

	if t.mode == ResolveRootOnly {
		return t.findInRoot(path)
	}
	return t.findRecursive(path)
}

// findInRoot implements [ResolveRootOnly].
func (t *Tree) findInRoot(path string) (*Directory, error) {
	parent, leaf := paths.Split(path)
	if parent == paths.Root {
		entry := t.Root().Lookup(leaf)
		if entry != nil && entry.Kind() == KindDirectory {
			return t.directories[entry.Data.(DirectoryData).Child], nil
		}
	}
	return nil, errors.ErrNotFound.WithMessage(
		fmt.Sprintf("directory %q does not exist", path),
	)
}

// findRecursive implements [ResolveRecursive].
func (t *Tree) findRecursive(path string) (*Directory, error) {
	current := t.Root()

	for _, component := range paths.Components(path) {
		if component == paths.ParentDirectory {
			current = t.directories[current.parent]
			continue
		}

		entry := current.Lookup(component)
		if entry == nil {
			return nil, errors.ErrNotFound.WithMessage(
				fmt.Sprintf("can't resolve %q: %q has no entry %q", path, current.name, component),
			)
		}
		if entry.Kind() != KindDirectory {
			return nil, errors.ErrNotFound.WithMessage(
				fmt.Sprintf("can't resolve %q: %q is not a directory", path, component),
			)
		}
		current = t.directories[entry.Data.(DirectoryData).Child]
	}
	return current, nil
}

// FindParent validates `path` and resolves the directory that would contain
// it. It returns that directory and the final path component. An empty parent
// (e.g. for "/docs") is the root.
func (t *Tree) FindParent(path string) (*Directory, string, error) {
	err := t.resolver.Validate(path)
	if err != nil {
		return nil, "", err
	}

	parentPath, leaf := paths.Split(path)
	if parentPath == "" {
		parentPath = paths.Root
	}

	parent, err := t.Find(parentPath)
	if err != nil {
		return nil, "", err
	}
	return parent, leaf, nil
}

// ValidateName verifies that `name` is usable for a new entry: not reserved,
// and strictly shorter than `maxLength` bytes.
func ValidateName(name string, maxLength int) error {
	if paths.IsReservedName(name) {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%q can't be used as a name", name),
		)
	}
	if len(name) >= maxLength {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("name is %d bytes long, must be less than %d", len(name), maxLength),
		)
	}
	return nil
}

// CreateDirectory creates an empty directory at `path` with full permissions.
//
// Errors:
//   - EINVAL: the path is malformed or its last component is unusable.
//   - ENOENT: the parent directory doesn't exist.
//   - EEXIST: the parent already has an entry with that name, of any kind.
//   - ENOSPC: the parent is at its entry limit.
func (t *Tree) CreateDirectory(path string) error {
	parent, name, err := t.FindParent(path)
	if err != nil {
		return err
	}

	err = ValidateName(name, t.limits.MaxFilenameLength)
	if err != nil {
		return err
	}

	if parent.Lookup(name) != nil {
		return errors.ErrExists.WithMessage(
			fmt.Sprintf("can't create directory %q: name already in use", path),
		)
	}
	if parent.Len() >= t.limits.MaxEntriesPerDirectory {
		return errors.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf(
				"can't create directory %q: parent is full (%d entries)",
				path,
				t.limits.MaxEntriesPerDirectory,
			),
		)
	}

	child := newDirectory(DirectoryID(len(t.directories)), parent.id, name)
	t.directories = append(t.directories, child)

	now := t.clock.Now()
	parent.Append(&Entry{
		Name:        name,
		Permissions: AllPermissions,
		CreatedAt:   now,
		ModifiedAt:  now,
		Data:        DirectoryData{Child: child.id},
	})
	return nil
}

// List returns a snapshot of the entries of the directory at `path`, in the
// order they were created. Any path that doesn't resolve to a directory fails
// with ENOENT, including malformed ones.
func (t *Tree) List(path string) ([]Entry, error) {
	dir, err := t.Find(path)
	if err != nil {
		if errors.ErrnoOf(err) != errors.ENOENT {
			return nil, errors.ErrNotFound.Wrap(err)
		}
		return nil, err
	}
	return dir.Entries(), nil
}
