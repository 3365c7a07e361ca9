package tree

// DirectoryID is the index of a directory in its tree's arena.
type DirectoryID uint32

// RootID is the ID of the root directory of every tree.
const RootID DirectoryID = 0

// Directory is an ordered table of entries. Files and subdirectories share a
// single namespace: no two entries in a directory have the same name.
type Directory struct {
	id      DirectoryID
	parent  DirectoryID
	name    string
	entries []*Entry
	index   map[string]int
}

func newDirectory(id, parent DirectoryID, name string) *Directory {
	return &Directory{
		id:     id,
		parent: parent,
		name:   name,
		index:  make(map[string]int),
	}
}

// ID returns the directory's identifier in its tree.
func (dir *Directory) ID() DirectoryID {
	return dir.id
}

// Parent returns the ID of the directory containing this one. The root is its
// own parent.
func (dir *Directory) Parent() DirectoryID {
	return dir.parent
}

// Name returns the name the directory was created with. The root is named "/".
func (dir *Directory) Name() string {
	return dir.name
}

// Len returns the number of entries in the directory.
func (dir *Directory) Len() int {
	return len(dir.entries)
}

// Lookup returns the entry named `name`, or nil if there isn't one. The entry
// returned is live; modifying it modifies the directory.
func (dir *Directory) Lookup(name string) *Entry {
	i, ok := dir.index[name]
	if !ok {
		return nil
	}
	return dir.entries[i]
}

// Append adds an entry to the end of the table. The caller is responsible for
// checking capacity and that the name isn't taken.
func (dir *Directory) Append(entry *Entry) {
	dir.index[entry.Name] = len(dir.entries)
	dir.entries = append(dir.entries, entry)
}

// Entries returns a snapshot of every entry in insertion order.
func (dir *Directory) Entries() []Entry {
	output := make([]Entry, len(dir.entries))
	for i, entry := range dir.entries {
		output[i] = entry.Snapshot()
	}
	return output
}
