package quotafs

import (
	"os"

	"github.com/dargueta/quotafs/tree"
)

const (
	S_IXOTH = 1 << iota
	S_IWOTH = 1 << iota
	S_IROTH = 1 << iota
	S_IXGRP = 1 << iota
	S_IWGRP = 1 << iota
	S_IRGRP = 1 << iota
	S_IXUSR = 1 << iota
	S_IWUSR = 1 << iota
	S_IRUSR = 1 << iota
)

const S_IFDIR = 0x4000
const S_IFREG = 0x8000
const S_IFLNK = 0xa000
const S_IFMT = 0xf000

const S_IRWXO = S_IXOTH | S_IWOTH | S_IROTH
const S_IRWXG = S_IXGRP | S_IWGRP | S_IRGRP
const S_IRWXU = S_IXUSR | S_IWUSR | S_IRUSR

// Permissions are the read, write, and execute bits of a single entry. There
// are no owners or groups, so each bit applies to everyone.
type Permissions = tree.Permissions

// PermissionsFromMode builds Permissions from the owner bits of `mode`; group
// and other bits are ignored.
func PermissionsFromMode(mode os.FileMode) Permissions {
	return Permissions{
		Read:    mode&S_IRUSR != 0,
		Write:   mode&S_IWUSR != 0,
		Execute: mode&S_IXUSR != 0,
	}
}

// permissionBits expands `perms` into Unix permission bits. There's only one
// class of user, so a granted bit is set for every class.
func permissionBits(perms Permissions) uint32 {
	bits := uint32(0)
	if perms.Read {
		bits |= S_IRUSR | S_IRGRP | S_IROTH
	}
	if perms.Write {
		bits |= S_IWUSR | S_IWGRP | S_IWOTH
	}
	if perms.Execute {
		bits |= S_IXUSR | S_IXGRP | S_IXOTH
	}
	return bits
}

func kindBits(kind tree.Kind) uint32 {
	switch kind {
	case tree.KindDirectory:
		return S_IFDIR
	case tree.KindSymlink:
		return S_IFLNK
	default:
		return S_IFREG
	}
}
