//go:build zstdcgo

package zstd

import (
	"io"

	datadog "github.com/DataDog/zstd"

	"github.com/coldforge/streamcodec/codecerr"
)

// CGODecoder decompresses a zstd stream via libzstd (DataDog/zstd's cgo
// binding) instead of the pure-Go klauspost decoder. Selected with the
// zstdcgo build tag.
type CGODecoder struct {
	cr     *countingReader
	inner  io.ReadCloser
	closer io.Closer
}

// NewCGO wraps r, which the CGODecoder never closes.
func NewCGO(r io.Reader) (*CGODecoder, error) {
	return newCGODecoder(r, nil)
}

// NewCGOSoleOwner wraps rc, establishing the CGODecoder as its sole owner:
// Close propagates to rc.
func NewCGOSoleOwner(rc io.ReadCloser) (*CGODecoder, error) {
	return newCGODecoder(rc, rc)
}

func newCGODecoder(r io.Reader, closer io.Closer) (*CGODecoder, error) {
	cr := &countingReader{r: r}
	return &CGODecoder{cr: cr, inner: datadog.NewReader(cr), closer: closer}, nil
}

// Read implements io.Reader.
func (d *CGODecoder) Read(p []byte) (int, error) {
	n, err := d.inner.Read(p)
	if err != nil && err != io.EOF {
		return n, codecerr.Wrap(codecerr.Format, err, "zstd: decoding frame (cgo)")
	}
	return n, err
}

// CompressedBytesRead reports bytes pulled from the underlying source.
func (d *CGODecoder) CompressedBytesRead() uint64 { return d.cr.n }

// Close releases the decoder and, if this CGODecoder is the sole owner of
// its source, closes it too.
func (d *CGODecoder) Close() error {
	err := d.inner.Close()
	if d.closer != nil {
		if cerr := d.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
