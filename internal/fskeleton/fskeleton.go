// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package fskeleton builds a lazily-populated [io/fs.FS] out of archive
// entries discovered while a header stream is scanned. An archive reader
// (ar, dump, tar) creates an FS with [New], calls the Create* methods as
// each entry is found, and calls [FS.NoMore] once its header stream is
// exhausted. A caller that reads the tree before NoMore blocks until more
// entries arrive or NoMore is called.
package fskeleton

import (
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// FS is safe for concurrent Create*/Open calls. Do not copy after creation.
type FS struct {
	mu   sync.Mutex
	cond sync.Cond
	root *entry
	done bool
}

type kind int

const (
	kindDir kind = iota
	kindReader
	kindReadCloser
	kindReaderAt
	kindSymlink
)

type entry struct {
	name    string
	mode    fs.FileMode
	modTime time.Time
	sys     any
	kind    kind
	size    int64 // -1 if unknown

	openReader      func() (io.Reader, error)
	openReadCloser  func() (io.ReadCloser, error)
	readerAt        io.ReaderAt
	readerAtOffset  int64
	symlinkTarget   string

	parent   *entry
	children map[string]*entry
	noMore   bool // true once this directory can take no more direct children
}

// New returns an empty FS rooted at ".". Populate it with the Create*
// methods, then call [FS.NoMore] once the archive's header stream is
// exhausted.
func New() *FS {
	fsys := &FS{root: &entry{name: ".", mode: fs.ModeDir, children: map[string]*entry{}}}
	fsys.cond.L = &fsys.mu
	return fsys
}

// CreateDir creates (or promotes an implicitly-created) directory.
func (fsys *FS) CreateDir(name string, mode fs.FileMode, mtime time.Time, sys any) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	e, err := fsys.mkdirAllLocked(name)
	if err != nil {
		return err
	}
	e.mode, e.modTime, e.sys = mode|fs.ModeDir, mtime, sys
	fsys.cond.Broadcast()
	return nil
}

// CreateReaderFile creates a regular file opened lazily via opener.
// size may be -1 if unknown in advance.
func (fsys *FS) CreateReaderFile(name string, opener func() (io.Reader, error), size int64, mode fs.FileMode, mtime time.Time, sys any) error {
	return fsys.put(name, &entry{kind: kindReader, openReader: opener, size: size, mode: mode, modTime: mtime, sys: sys})
}

// CreateReadCloserFile is like CreateReaderFile but the opener returns an
// [io.ReadCloser] that the caller's Close will propagate to.
func (fsys *FS) CreateReadCloserFile(name string, opener func() (io.ReadCloser, error), size int64, mode fs.FileMode, mtime time.Time, sys any) error {
	return fsys.put(name, &entry{kind: kindReadCloser, openReadCloser: opener, size: size, mode: mode, modTime: mtime, sys: sys})
}

// CreateReaderAtFile creates a regular file backed by a slice of r
// starting at offset, length size. The opened file also satisfies
// [io.ReaderAt] and [io.Seeker].
func (fsys *FS) CreateReaderAtFile(name string, offset int64, r io.ReaderAt, size int64, mode fs.FileMode, mtime time.Time, sys any) error {
	return fsys.put(name, &entry{kind: kindReaderAt, readerAt: r, readerAtOffset: offset, size: size, mode: mode, modTime: mtime, sys: sys})
}

// CreateSymlink creates a symlink. target must satisfy fs.ValidPath once
// resolved relative to the link's own directory.
func (fsys *FS) CreateSymlink(name, target string, mode fs.FileMode, mtime time.Time, sys any) error {
	return fsys.put(name, &entry{kind: kindSymlink, symlinkTarget: target, mode: mode | fs.ModeSymlink, modTime: mtime, sys: sys})
}

// NoMore signals that no further Create* calls will be made on the whole
// tree, unblocking any ReadDir calls waiting for more children.
func (fsys *FS) NoMore() {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.done = true
	markDoneLocked(fsys.root)
	fsys.cond.Broadcast()
}

func markDoneLocked(e *entry) {
	e.noMore = true
	for _, c := range e.children {
		if c.mode.IsDir() {
			markDoneLocked(c)
		}
	}
}

func (fsys *FS) put(name string, nu *entry) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	dir, base := path.Split(path.Clean(name))
	parent, err := fsys.mkdirAllLocked(strings.TrimSuffix(dir, "/"))
	if err != nil {
		return err
	}
	if parent.noMore {
		return fs.ErrPermission
	}
	nu.name = base
	nu.parent = parent
	parent.children[base] = nu
	fsys.cond.Broadcast()
	return nil
}

func (fsys *FS) mkdirAllLocked(name string) (*entry, error) {
	if !fs.ValidPath(name) && name != "" {
		return nil, fs.ErrInvalid
	}
	at := fsys.root
	if name == "." || name == "" {
		return at, nil
	}
	for _, c := range strings.Split(name, "/") {
		child, ok := at.children[c]
		if !ok {
			if at.noMore {
				return nil, fs.ErrPermission
			}
			child = &entry{name: c, mode: fs.ModeDir, parent: at, children: map[string]*entry{}}
			at.children[c] = child
		} else if !child.mode.IsDir() {
			return nil, fs.ErrExist
		}
		at = child
	}
	return at, nil
}

// Open implements [io/fs.FS].
func (fsys *FS) Open(name string) (fs.File, error) {
	e, err := fsys.lookup(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if e.mode.IsDir() {
		return fsys.newDirHandle(e), nil
	}
	f, err := e.open()
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return f, nil
}

// Stat implements [io/fs.StatFS].
func (fsys *FS) Stat(name string) (fs.FileInfo, error) {
	e, err := fsys.lookup(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return (*statEntry)(e), nil
}

// ReadLink returns a symlink's target.
func (fsys *FS) ReadLink(name string) (string, error) {
	e, err := fsys.lookup(name)
	if err != nil {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: err}
	}
	if e.kind != kindSymlink {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrInvalid}
	}
	return e.symlinkTarget, nil
}

func (fsys *FS) lookup(name string) (*entry, error) {
	if !fs.ValidPath(name) {
		return nil, fs.ErrInvalid
	}
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	at := fsys.root
	if name == "." {
		return at, nil
	}
	for _, c := range strings.Split(name, "/") {
		for {
			child, ok := at.children[c]
			if ok {
				at = child
				break
			}
			if at.noMore {
				return nil, fs.ErrNotExist
			}
			fsys.cond.Wait()
		}
	}
	return at, nil
}

func (e *entry) open() (fs.File, error) {
	switch e.kind {
	case kindReader:
		r, err := e.openReader()
		if err != nil {
			return nil, err
		}
		return &readerFile{statEntry: (*statEntry)(e), r: r}, nil
	case kindReadCloser:
		r, err := e.openReadCloser()
		if err != nil {
			return nil, err
		}
		return &readerFile{statEntry: (*statEntry)(e), r: r, c: r}, nil
	case kindReaderAt:
		sr := io.NewSectionReader(e.readerAt, e.readerAtOffset, e.size)
		return &randomAccessFile{statEntry: (*statEntry)(e), SectionReader: sr}, nil
	default:
		return nil, fs.ErrInvalid
	}
}

type statEntry entry

func (s *statEntry) Name() string       { return s.name }
func (s *statEntry) Size() int64        { return max(s.size, 0) }
func (s *statEntry) Mode() fs.FileMode  { return s.mode }
func (s *statEntry) ModTime() time.Time { return s.modTime }
func (s *statEntry) IsDir() bool        { return s.mode.IsDir() }
func (s *statEntry) Sys() any           { return s.sys }
func (s *statEntry) Type() fs.FileMode  { return s.mode.Type() }
func (s *statEntry) Info() (fs.FileInfo, error) { return s, nil }

type readerFile struct {
	*statEntry
	r io.Reader
	c io.Closer
}

func (f *readerFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *readerFile) Stat() (fs.FileInfo, error)  { return f.statEntry, nil }
func (f *readerFile) Close() error {
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

type randomAccessFile struct {
	*statEntry
	*io.SectionReader
}

func (f *randomAccessFile) Stat() (fs.FileInfo, error) { return f.statEntry, nil }
func (f *randomAccessFile) Close() error               { return nil }

type dirHandle struct {
	*statEntry
	fsys    *FS
	e       *entry
	entries []fs.DirEntry
	i       int
}

func (fsys *FS) newDirHandle(e *entry) *dirHandle {
	return &dirHandle{statEntry: (*statEntry)(e), fsys: fsys, e: e}
}

func (d *dirHandle) Stat() (fs.FileInfo, error) { return d.statEntry, nil }
func (d *dirHandle) Read([]byte) (int, error)   { return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid} }
func (d *dirHandle) Close() error               { return nil }

// ReadDir implements [io/fs.ReadDirFile]. It blocks for more children if
// the directory has not yet seen [FS.NoMore] and count > 0 is not yet
// satisfiable; a negative count drains everything once the directory is
// finalized.
func (d *dirHandle) ReadDir(count int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		d.fsys.mu.Lock()
		for count > 0 && len(d.e.children) < count && !d.e.noMore {
			d.fsys.cond.Wait()
		}
		if count <= 0 {
			for !d.e.noMore {
				d.fsys.cond.Wait()
			}
		}
		names := make([]string, 0, len(d.e.children))
		for n := range d.e.children {
			names = append(names, n)
		}
		sort.Strings(names)
		d.entries = make([]fs.DirEntry, len(names))
		for i, n := range names {
			d.entries[i] = (*statEntry)(d.e.children[n])
		}
		d.fsys.mu.Unlock()
	}

	if d.i >= len(d.entries) {
		if count > 0 {
			return nil, io.EOF
		}
		return nil, nil
	}
	var out []fs.DirEntry
	if count <= 0 {
		out = d.entries[d.i:]
		d.i = len(d.entries)
	} else {
		n := min(count, len(d.entries)-d.i)
		out = d.entries[d.i : d.i+n]
		d.i += n
	}
	return out, nil
}
