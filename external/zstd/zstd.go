// Package zstd adapts github.com/klauspost/compress/zstd behind this
// module's uniform codec reader contract. Grounded on the zstd.NewReader
// call shape seen in the pack's rom-tools and df2redis examples
// (zstd.NewReader(r) / zstd.NewReader(nil) followed by Reset), both of
// which use the klauspost package.
//
// An alternate cgo-backed path over github.com/DataDog/zstd lives in
// zstd_cgo.go behind the "zstdcgo" build tag, for deployments that trade
// the pure-Go dependency for libzstd's throughput.
package zstd

import (
	"io"

	"github.com/klauspost/compress/zstd"

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

// Decoder decompresses a zstd frame stream.
type Decoder struct {
	cr     *countingReader
	inner  *zstd.Decoder
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
	inner, err := zstd.NewReader(cr)
	if err != nil {
		return nil, codecerr.Wrap(codecerr.Format, err, "zstd: opening stream")
	}
	return &Decoder{cr: cr, inner: inner, closer: closer}, nil
}

// Read implements io.Reader.
func (d *Decoder) Read(p []byte) (int, error) {
	n, err := d.inner.Read(p)
	if err != nil && err != io.EOF {
		return n, codecerr.Wrap(codecerr.Format, err, "zstd: decoding frame")
	}
	return n, err
}

// CompressedBytesRead reports bytes pulled from the underlying source.
func (d *Decoder) CompressedBytesRead() uint64 { return d.cr.n }

// Close releases the decoder's internal buffers (klauspost/compress/zstd
// runs background goroutines that must be stopped) and, if this Decoder is
// the sole owner of its source, closes it too.
func (d *Decoder) Close() error {
	d.inner.Close()
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
