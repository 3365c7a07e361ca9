// Package paths validates path strings and breaks them apart. It holds no
// state.
package paths

import (
	"fmt"
	"strings"

	"github.com/dargueta/quotafs/errors"
)

// Separator divides path components.
const Separator = "/"

// Root is the path of the root directory.
const Root = "/"

// CurrentDirectory is the parent reported by [Split] for a path with no
// separator in it.
const CurrentDirectory = "."

// ParentDirectory is the component that refers to a directory's parent.
const ParentDirectory = ".."

// IllegalCharacters lists the characters that may not appear anywhere in a
// path.
const IllegalCharacters = "<>|*?"

// Resolver validates paths against a maximum length.
type Resolver struct {
	// MaxPathLength is exclusive; paths must be strictly shorter.
	MaxPathLength int
}

// NewResolver creates a Resolver that rejects paths of `maxPathLength` bytes
// or more.
func NewResolver(maxPathLength int) Resolver {
	return Resolver{MaxPathLength: maxPathLength}
}

// Validate fails with EINVAL if `path` is empty, is too long, or contains any
// of [IllegalCharacters]. No other rules are applied.
func (r Resolver) Validate(path string) error {
	if path == "" {
		return errors.ErrInvalidArgument.WithMessage("path is empty")
	}
	if len(path) >= r.MaxPathLength {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"path is %d bytes long, must be less than %d",
				len(path),
				r.MaxPathLength,
			),
		)
	}

	index := strings.IndexAny(path, IllegalCharacters)
	if index >= 0 {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("illegal character %q at offset %d in %q", path[index], index, path),
		)
	}
	return nil
}

// Split divides a path at its last separator. `parent` is everything before it
// and may be empty, which denotes the root. `leaf` is everything after it. If
// there is no separator at all, `parent` is [CurrentDirectory] and `leaf` is
// the whole path.
func Split(path string) (parent, leaf string) {
	index := strings.LastIndex(path, Separator)
	if index < 0 {
		return CurrentDirectory, path
	}
	return path[:index], path[index+1:]
}

// Components breaks a path into its non-empty components, dropping "."
// components. ".." components are kept; interpreting them is up to the caller.
func Components(path string) []string {
	rawParts := strings.Split(path, Separator)
	components := make([]string, 0, len(rawParts))

	for _, part := range rawParts {
		if part == "" || part == CurrentDirectory {
			continue
		}
		components = append(components, part)
	}
	return components
}

// IsReservedName tells whether `name` can't be used for a new directory entry.
func IsReservedName(name string) bool {
	return name == "" || name == CurrentDirectory || name == ParentDirectory
}
