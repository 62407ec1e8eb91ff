package lzma

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/coldforge/streamcodec/codecerr"
)

// rawHeader builds a minimal 13-byte raw .lzma header with the given
// dictionary size, followed by arbitrary trailing bytes.
func rawHeader(dictSize uint32, trailing ...byte) []byte {
	var hdr [rawHeaderSize]byte
	hdr[0] = 0x5d // a plausible properties byte
	binary.LittleEndian.PutUint32(hdr[1:5], dictSize)
	binary.LittleEndian.PutUint64(hdr[5:13], ^uint64(0)) // unknown uncompressed size
	return append(hdr[:], trailing...)
}

func kindOf(t *testing.T, err error) codecerr.Kind {
	t.Helper()
	var ce *codecerr.Error
	if !errors.As(err, &ce) {
		t.Fatalf("error %v is not a *codecerr.Error", err)
	}
	return ce.Kind
}

func TestNewRejectsOversizedRawDictionary(t *testing.T) {
	buf := bytes.NewReader(rawHeader(64<<20, 0, 0, 0, 0))
	_, err := New(buf, 1024) // 1 MiB limit, 64 MiB dictionary
	if err == nil {
		t.Fatal("expected an error for an oversized dictionary")
	}
	if got := kindOf(t, err); got != codecerr.MemoryLimit {
		t.Fatalf("got kind %v, want MemoryLimit", got)
	}
}

func TestNewTruncatedHeader(t *testing.T) {
	buf := bytes.NewReader([]byte{0x5d, 0x00, 0x00})
	_, err := New(buf, 1024)
	if err == nil {
		t.Fatal("expected an error for a truncated header")
	}
	if got := kindOf(t, err); got != codecerr.TruncatedStream {
		t.Fatalf("got kind %v, want TruncatedStream", got)
	}
}

func TestNewRejectsTruncatedXzMagic(t *testing.T) {
	// Enough bytes to match the .xz magic but nothing beyond it: xz.NewReader
	// must surface a codecerr, not a bare library error or a panic.
	buf := bytes.NewReader([]byte(xzMagic))
	_, err := New(buf, 0)
	if err == nil {
		t.Fatal("expected an error for a truncated xz stream")
	}
	kindOf(t, err)
}

func TestMemoryLimitCheckedBeforeDecoderConstruction(t *testing.T) {
	// The dictionary-size check must reject before xzlzma.NewReader ever
	// looks at the stream, so an oversized dictionary is rejected even when
	// the bytes after the header are nonsense.
	buf := bytes.NewReader(rawHeader(64<<20, 0xff, 0xff, 0xff, 0xff))
	_, err := New(buf, 1)
	if err == nil {
		t.Fatal("expected an error for an oversized dictionary")
	}
	if got := kindOf(t, err); got != codecerr.MemoryLimit {
		t.Fatalf("got kind %v, want MemoryLimit", got)
	}
}
