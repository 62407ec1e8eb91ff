// Package lz4 adapts github.com/pierrec/lz4/v4 behind this module's
// uniform codec reader contract. The dispatcher (C6) has a tag for each of
// two on-disk shapes: lz4-frame (a self-describing stream with its own magic,
// block checksums, and content size) and lz4-block (a bare compressed
// block with no framing, used inside container formats that already
// record compressed/uncompressed sizes themselves); only lz4-frame carries
// a magic number the dispatcher detects. Both are grounded on
// the pierrec/lz4 API: the frame.Reader shape traces to the vendored
// v2-era Reader found in the retrieval pack's ethereum-go-ethereum
// example; the block function wraps pierrec/lz4/v4's UncompressBlock
// directly.
package lz4

import (
	"io"

	"github.com/pierrec/lz4/v4"

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

// FrameDecoder decompresses an lz4-frame stream.
type FrameDecoder struct {
	cr     *countingReader
	inner  *lz4.Reader
	closer io.Closer
}

// NewFrameDecoder wraps r, which the FrameDecoder never closes.
func NewFrameDecoder(r io.Reader) (*FrameDecoder, error) {
	return newFrameDecoder(r, nil)
}

// NewFrameDecoderSoleOwner wraps rc, establishing the FrameDecoder as its
// sole owner: Close propagates to rc.
func NewFrameDecoderSoleOwner(rc io.ReadCloser) (*FrameDecoder, error) {
	return newFrameDecoder(rc, rc)
}

func newFrameDecoder(r io.Reader, closer io.Closer) (*FrameDecoder, error) {
	cr := &countingReader{r: r}
	return &FrameDecoder{cr: cr, inner: lz4.NewReader(cr), closer: closer}, nil
}

// Read implements io.Reader.
func (d *FrameDecoder) Read(p []byte) (int, error) {
	n, err := d.inner.Read(p)
	if err != nil && err != io.EOF {
		return n, codecerr.Wrap(codecerr.Format, err, "lz4: decoding frame")
	}
	return n, err
}

// CompressedBytesRead reports bytes pulled from the underlying source.
func (d *FrameDecoder) CompressedBytesRead() uint64 { return d.cr.n }

// Close releases internal buffers and, if this FrameDecoder is the sole
// owner of its source, closes it too.
func (d *FrameDecoder) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// DecodeBlock decompresses one bare lz4 block (no frame header, no
// checksums) into dst, which must be sized for the known uncompressed
// length. Used by container formats that already carry their own
// compressed/uncompressed size fields, so there is nothing to count on
// the compressed side beyond len(src).
func DecodeBlock(dst, src []byte) (int, error) {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return 0, codecerr.Wrap(codecerr.Format, err, "lz4: decoding block")
	}
	return n, nil
}
