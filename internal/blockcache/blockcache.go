// Package blockcache memoizes decompression checkpoints so an io.ReaderAt
// built over a sequential-only decoder doesn't have to replay from byte
// zero on every seek.
//
// It is a direct descendant of the teacher's internal/decompressioncache:
// same Stepper/checkpoint/overlap machinery, generalized from a single
// bigcache tier into three: bigcache as the in-process hot tier (as
// before), a dgryski/go-tinylfu frequency sketch deciding which blocks are
// worth persisting, and a cockroachdb/pebble store holding the blocks that
// earn that admission. A block decoded only once is cheap to recompute if
// evicted; a block that has to be decoded again after an eviction is worth
// a disk write.
package blockcache

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"
)

// Stepper produces one more chunk of decompressed output each call,
// together with a continuation for the next chunk. It is guaranteed never
// to be called more times than necessary, so it never needs to return
// io.EOF preemptively for the final chunk.
type Stepper func() (Stepper, []byte, error)

// New builds a random-access reader over a Stepper chain of known total
// size. debugName distinguishes one archive member's checkpoints from
// another's in the shared cache tiers.
func New(stepper Stepper, size int64, debugName string) *ReaderAt {
	return &ReaderAt{
		uniq:        atomic.AddUint64(&monotonic, 1),
		debugName:   debugName,
		checkpoints: []checkpoint{{stepper: stepper, offset: 0}},
		size:        size,
	}
}

// ReaderAt presents a Stepper chain as an io.ReaderAt, backed by the
// package's shared cache tiers.
type ReaderAt struct {
	uniq        uint64
	debugName   string
	checkpoints []checkpoint
	size        int64
}

type checkpoint struct {
	stepper Stepper
	offset  int64
	err     error
}

// Size reports the reader's known total length.
func (r *ReaderAt) Size() int64 { return r.size }

// ReadAt implements io.ReaderAt.
func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	} else if off+int64(len(p)) > r.size {
		p = p[:r.size-off]
	}

	i := sort.Search(len(r.checkpoints), func(i int) bool {
		return r.checkpoints[i].offset > off
	}) - 1

	for { // with some care this loop could be concurrent
		key := fmt.Sprintf("%s_%d_%d", r.debugName, r.uniq, r.checkpoints[i].offset)
		blob, hit := shared.get(key)

		if !hit {
			newstepper, newblob, err := r.checkpoints[i].stepper()
			blob = newblob
			shared.set(key, blob)
			r.checkpoints[i].err = err
			if r.checkpoints[i].offset+int64(len(blob)) >= r.size {
				r.checkpoints[i].err = io.EOF
			} else if i+1 == len(r.checkpoints) {
				r.checkpoints = append(r.checkpoints, checkpoint{
					stepper: newstepper,
					offset:  r.checkpoints[i].offset + int64(len(blob)),
				})
			}
		}

		destcut, srccut, ok := overlap(off, len(p), r.checkpoints[i].offset, len(blob))
		if !ok {
			panic("obtained a chunk but it does not overlap with the request, never OK")
		}
		n := copy(p[destcut:], blob[srccut:])
		if destcut+n == len(p) || r.checkpoints[i].err != nil {
			return destcut + n, r.checkpoints[i].err
		}

		i++
	}
}

// FromSequential wraps a sequential-only io.Reader (a decompressor with no
// native seek support) into a cached io.ReaderAt, of the declared
// uncompressed size, reading chunkSize bytes at a time. Each external/*
// adapter that offers OpenReaderAt builds its decoder once and hands it
// here instead of reimplementing the Stepper chain itself.
func FromSequential(r io.Reader, size int64, chunkSize int, debugName string) *ReaderAt {
	var step Stepper
	step = func() (Stepper, []byte, error) {
		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(r, buf)
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return step, buf[:n], err
	}
	return New(step, size, debugName)
}

func overlap(aoffset int64, alen int, boffset int64, blen int) (ainner, binner int, ok bool) {
	if aoffset >= boffset+int64(blen) || boffset >= aoffset+int64(alen) {
		return 0, 0, false
	}
	if aoffset > boffset {
		binner = int(aoffset - boffset)
	} else {
		ainner = int(boffset - aoffset)
	}
	return ainner, binner, true
}

var monotonic uint64

// tieredStore is the shared cache behind every ReaderAt in the process:
// bigcache as the hot tier, tinylfu deciding admission into pebble as the
// persistent tier. pebble is optional — if it fails to open (e.g. no
// writable directory), the store degrades to bigcache only.
type tieredStore struct {
	hot *bigcache.BigCache

	mu     sync.Mutex
	admit  *tinylfu.T[string, struct{}]
	cold   *pebble.DB
}

func (s *tieredStore) get(key string) ([]byte, bool) {
	if b, err := s.hot.Get(key); err == nil {
		return b, true
	}
	if s.cold == nil {
		return nil, false
	}
	v, closer, err := s.cold.Get(coldKey(key))
	if err != nil {
		return nil, false
	}
	blob := append([]byte(nil), v...)
	closer.Close()
	s.hot.Set(key, blob)
	return blob, true
}

func (s *tieredStore) set(key string, blob []byte) {
	s.hot.Set(key, blob)
	if s.cold == nil {
		return
	}

	s.mu.Lock()
	_, seenBefore := s.admit.Get(key)
	s.admit.Add(key, struct{}{})
	s.mu.Unlock()

	// Only a block stored more than once (decoded again after bigcache
	// evicted it) earns a disk write; reads served from bigcache never
	// reach set, and a one-shot sequential scan never touches pebble.
	if seenBefore {
		s.cold.Set(coldKey(key), blob, pebble.NoSync)
	}
}

func coldKey(key string) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], xxhash.Sum64String(key))
	return b[:]
}

// blockCacheDir returns a process-local directory for pebble's on-disk
// tier, distinct per run so two processes never fight over the same LSM.
func blockCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "streamcodec-blockcache", fmt.Sprintf("%d", os.Getpid()))
}

var shared *tieredStore

func init() {
	hot, err := bigcache.New(context.Background(), bigcache.Config{
		HardMaxCacheSize: 1024, // megabytes
		Shards:           1024,
	})
	if err != nil {
		panic(err)
	}

	const admitSize = 1 << 16
	admit := tinylfu.New[string, struct{}](admitSize, admitSize*10, xxhash.Sum64String)

	cold, err := pebble.Open(blockCacheDir(), &pebble.Options{})
	if err != nil {
		// No writable store available: fall back to the hot tier alone.
		cold = nil
	}

	shared = &tieredStore{hot: hot, admit: admit, cold: cold}
}
