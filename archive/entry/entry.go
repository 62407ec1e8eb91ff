// Package entry defines the data model shared by every archive reader in
// this module (ar, dump, zipscan, tarfmt): the canonical per-entry fields
// and a format-specific extras bag, independent of any one archive's wire
// layout.
package entry

import (
	"io/fs"
	"time"
)

// Type classifies an archive entry's payload.
type Type int

const (
	TypeFile Type = iota
	TypeDir
	TypeSymlink
	TypeOther
)

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	case TypeSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Extra is one format-specific TLV record attached to an entry — e.g. a
// ZIP extra field or a pack200 attribute. Tag is the format's own 16-bit
// (or wider) identifier; Payload is carried byte-for-byte so a reader can
// round-trip it without understanding its contents.
type Extra struct {
	Tag     uint32
	Payload []byte
}

// Entry is the canonical archive entry: name, size, type, modification
// time, optional ownership/permission metadata, and a bag of format-
// specific extras.
type Entry struct {
	Name    string // path interpreted per the archive's own charset rule
	Size    int64  // bytes of uncompressed payload inside the archive stream
	Type    Type
	ModTime time.Time

	HasOwner bool
	UID, GID int

	HasMode bool
	Mode    fs.FileMode

	LinkTarget string // valid when Type == TypeSymlink

	Extras []Extra
}

// FindExtra returns the first extra with the given tag, if present.
func (e *Entry) FindExtra(tag uint32) (Extra, bool) {
	for _, x := range e.Extras {
		if x.Tag == tag {
			return x, true
		}
	}
	return Extra{}, false
}
