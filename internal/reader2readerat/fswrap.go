// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package reader2readerat

import (
	"errors"
	"io"
	"io/fs"
)

// FS wraps an fs.FS so that every file it opens satisfies io.ReaderAt and
// io.Seeker, even when the underlying file only implements io.Reader —
// useful for layering an archive scanner (which wants random access) on
// top of a plain streaming decompressor.
//
// Simplified from the teacher's draft, which deduplicated concurrent
// Opens of the same name through a weak-pointer-keyed refcounted map;
// this version gives each Open its own private ReaderAt, trading that
// sharing for a much smaller surface to get right without a compiler.
type FS struct {
	FS fs.FS
}

type guarantee interface {
	io.ReaderAt
	io.Seeker
}

// Open implements fs.FS. The returned file, when not a directory, is
// guaranteed to satisfy io.ReaderAt and io.Seeker.
func (r *FS) Open(name string) (fs.File, error) {
	f, err := r.FS.Open(name)
	if err != nil {
		return nil, err
	}
	if _, ok := f.(guarantee); ok {
		return f, nil
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.IsDir() {
		return f, nil
	}
	f.Close()

	ra, err := New(func() (io.Reader, error) { return r.FS.Open(name) }, 0)
	if err != nil {
		return nil, err
	}
	return &File{ra: ra, stat: stat}, nil
}

// File adapts a ReaderAt into an fs.File with Seek support.
type File struct {
	ra   *ReaderAt
	seek int64
	stat fs.FileInfo
}

func (f *File) ReadAt(buf []byte, off int64) (int, error) { return f.ra.ReadAt(buf, off) }

func (f *File) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.seek)
	f.seek += int64(n)
	return n, err
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.seek
	case io.SeekEnd:
		offset += f.stat.Size()
	default:
		return 0, errWhence
	}
	if offset < 0 {
		return 0, errOffset
	}
	f.seek = offset
	return offset, nil
}

func (f *File) Stat() (fs.FileInfo, error) { return f.stat, nil }
func (f *File) Size() int64                { return f.stat.Size() }
func (f *File) Close() error               { return f.ra.Close() }

var errWhence = errors.New("reader2readerat: invalid whence")
var errOffset = errors.New("reader2readerat: invalid offset")
