// Package bzip2 adapts the standard library's compress/bzip2 decoder
// behind this module's uniform codec reader contract. bzip2 has no
// memory-limit knob worth exposing (the stdlib decoder's block size is
// bounded by the stream's own header byte, at most 900KB), so this
// adapter is the thinnest of the C5 wrappers: its entire job is
// compressed-byte accounting and close discipline.
package bzip2

import (
	"compress/bzip2"
	"io"

	"github.com/coldforge/streamcodec/codecerr"
	"github.com/coldforge/streamcodec/internal/blockcache"
)

const readAtChunkSize = 256 << 10

type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}

// Decoder decompresses a bzip2 stream.
type Decoder struct {
	cr     *countingReader
	inner  io.Reader
	closer io.Closer
}

// New wraps r, which the Decoder never closes.
func New(r io.Reader) (*Decoder, error) {
	return newDecoder(r, nil)
}

// NewSoleOwner wraps rc, establishing the Decoder as its sole owner: Close
// propagates to rc.
func NewSoleOwner(rc io.ReadCloser) (*Decoder, error) {
	return newDecoder(rc, rc)
}

func newDecoder(r io.Reader, closer io.Closer) (*Decoder, error) {
	cr := &countingReader{r: r}
	return &Decoder{cr: cr, inner: bzip2.NewReader(cr), closer: closer}, nil
}

// Read implements io.Reader. bzip2 format errors surface here, since the
// stdlib decoder does not validate the stream signature until the first
// block is decoded.
func (d *Decoder) Read(p []byte) (int, error) {
	n, err := d.inner.Read(p)
	if err != nil && err != io.EOF {
		return n, codecerr.Wrap(codecerr.Format, err, "bzip2: decoding stream")
	}
	return n, err
}

// CompressedBytesRead reports bytes pulled from the underlying source.
func (d *Decoder) CompressedBytesRead() uint64 { return d.cr.n }

// Close releases internal buffers and, if this Decoder is the sole owner
// of its source (constructed via NewSoleOwner), closes it too.
func (d *Decoder) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// OpenReaderAt wraps the Decoder in a checkpointed cache so repeated
// random-access reads of size bytes of uncompressed output don't replay
// the whole stream from the start each time.
func (d *Decoder) OpenReaderAt(size int64, debugName string) io.ReaderAt {
	return blockcache.FromSequential(d, size, readAtChunkSize, debugName)
}
