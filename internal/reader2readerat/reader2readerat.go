// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package reader2readerat adapts a sequential, possibly non-seekable
// io.Reader into an io.ReaderAt by caching fixed-size blocks as they are
// read, reopening the source from byte 0 whenever a read lands before the
// earliest cached block.
//
// Adapted from the teacher's reader2readerat.go, which cached blocks in a
// shared github.com/maypok86/otter/v2 instance keyed by a caller-supplied
// "uniq" string — a dependency absent from this module's go.mod. Each
// ReaderAt here instead owns a private github.com/allegro/bigcache/v3
// instance, removing the need for the uniq namespace, and takes its
// capacity as an explicit constructor parameter rather than reading a
// "BEGB" environment variable (this module configures per-instance, not
// via env vars — see SPEC_FULL.md's ambient-stack section).
package reader2readerat

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/allegro/bigcache/v3"
)

const blockSize = 4096

// ReaderAt is safe for concurrent ReadAt calls.
type ReaderAt struct {
	open  func() (io.Reader, error)
	cache *bigcache.BigCache

	mu   sync.Mutex
	r    io.Reader
	seek int64
	eof  int64 // valid once err != nil
	err  error
}

// New adapts open — called to (re)start reading the source from byte 0 —
// into a cached io.ReaderAt. capacityMiB bounds the cache's in-memory
// footprint; 0 selects bigcache's own default.
func New(open func() (io.Reader, error), capacityMiB int) (*ReaderAt, error) {
	cfg := bigcache.DefaultConfig(0) // no TTL: capacity-bounded only
	if capacityMiB > 0 {
		cfg.HardMaxCacheSize = capacityMiB
	}
	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("reader2readerat: %w", err)
	}
	return &ReaderAt{open: open, cache: cache}, nil
}

func (r *ReaderAt) closeLocked() {
	r.r, r.seek = nil, 0
}

func (r *ReaderAt) getNextBlockLocked() ([]byte, error) {
	buf := make([]byte, blockSize)
	key := cacheKey(r.seek)
	n, err := io.ReadFull(r.r, buf)
	r.seek += int64(n)
	buf = buf[:n]

	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	if err != nil {
		r.eof, r.err = r.seek, err
		r.closeLocked()
	}
	r.cache.Set(key, buf)
	return buf, err
}

// ReadAt implements io.ReaderAt.
func (r *ReaderAt) ReadAt(buf []byte, off int64) (n int, reterr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for base := off / blockSize * blockSize; base < off+int64(len(buf)); base += blockSize {
		key := cacheKey(base)
		block, err := r.cache.Get(key)
		if err != nil {
			if r.r == nil || r.seek > base {
				r.closeLocked()
				src, openErr := r.open()
				if openErr != nil {
					return n, openErr
				}
				r.r = src
			}
			for r.seek != base+blockSize && reterr == nil {
				block, reterr = r.getNextBlockLocked()
			}
		} else if base+int64(len(block)) == r.eof {
			reterr = r.err
		}

		skip := min(len(block), max(0, int(off-base)))
		src := block[skip:]
		dst := buf[n:]
		if len(src) > len(dst) {
			reterr = nil // the error belongs to the block's last byte, not this read
		}
		n += copy(dst, src)
		if reterr != nil || n == len(buf) {
			break
		}
	}
	return n, reterr
}

// Close releases the cache and, if the source reader is currently open
// and an io.Closer, closes it.
func (r *ReaderAt) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if closer, ok := r.r.(io.Closer); ok {
		closer.Close()
	}
	r.closeLocked()
	return r.cache.Close()
}

func cacheKey(offset int64) string {
	return fmt.Sprintf("%#x", offset)
}
