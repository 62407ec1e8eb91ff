// Package snappy adapts github.com/golang/snappy behind this module's
// uniform codec reader contract. Grounded on the snappy.NewReader(r) call
// shape seen wrapping streams in the pack's rclone and go-ethereum era2
// examples (the framed format, snappy's only streaming form — raw block
// snappy has no self-delimiting length and so is always embedded behind a
// container-supplied size, handled the same way as lz4's bare block path).
package snappy

import (
	"io"

	"github.com/golang/snappy"

	"github.com/coldforge/streamcodec/codecerr"
)

type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}

// Decoder decompresses a snappy-framed stream.
type Decoder struct {
	cr     *countingReader
	inner  *snappy.Reader
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
	return &Decoder{cr: cr, inner: snappy.NewReader(cr), closer: closer}, nil
}

// Read implements io.Reader.
func (d *Decoder) Read(p []byte) (int, error) {
	n, err := d.inner.Read(p)
	if err != nil && err != io.EOF {
		return n, codecerr.Wrap(codecerr.Format, err, "snappy: decoding frame")
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

// DecodeBlock decompresses one bare snappy block into dst, allocating if
// dst is nil or too small, returning the slice actually used. Mirrors
// snappy.Decode's own contract.
func DecodeBlock(dst, src []byte) ([]byte, error) {
	out, err := snappy.Decode(dst, src)
	if err != nil {
		return nil, codecerr.Wrap(codecerr.Format, err, "snappy: decoding block")
	}
	return out, nil
}
