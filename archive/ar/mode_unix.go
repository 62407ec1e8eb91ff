//go:build unix

package ar

import (
	"golang.org/x/sys/unix"

	"github.com/coldforge/streamcodec/archive/entry"
)

// classifyRawMode inspects raw's file-type bits (S_IFMT) for the entry
// kinds io/fs.FileMode can't distinguish on its own: ar's mode field is a
// full unix st_mode, not just the portable permission bits entry.Mode
// otherwise carries. Device nodes, FIFOs, and sockets are all reported as
// entry.TypeOther; there's no dedicated Type for them and the caller
// already has the raw mode bits if it needs to tell them apart.
func classifyRawMode(raw uint32) entry.Type {
	switch raw & unix.S_IFMT {
	case unix.S_IFBLK, unix.S_IFCHR, unix.S_IFIFO, unix.S_IFSOCK:
		return entry.TypeOther
	case unix.S_IFLNK:
		return entry.TypeSymlink
	case unix.S_IFDIR:
		return entry.TypeDir
	default:
		return entry.TypeFile
	}
}
