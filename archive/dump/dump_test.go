package dump

import (
	"bytes"
	"io"
	"testing"
)

func putBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func putBE64(b []byte, v uint64) {
	putBE32(b[0:4], uint32(v>>32))
	putBE32(b[4:8], uint32(v))
}

// writeRecord writes one full record: a headerSize header block padded to
// blockSize (carrying the name for TS_INODE records), followed by
// (reclen-1) further blockSize blocks of payload, zero-padded.
func writeRecord(buf *bytes.Buffer, typ uint32, inode uint64, size int64, name string, payload []byte) {
	payloadBlocks := (len(payload) + blockSize - 1) / blockSize
	reclen := uint32(1 + payloadBlocks)

	hdr := make([]byte, blockSize)
	putBE32(hdr[0:4], magic)
	putBE32(hdr[4:8], typ)
	putBE64(hdr[8:16], inode)
	putBE64(hdr[16:24], uint64(size))
	putBE32(hdr[24:28], reclen)
	copy(hdr[headerSize:], name)
	buf.Write(hdr)

	padded := make([]byte, payloadBlocks*blockSize)
	copy(padded, payload)
	buf.Write(padded)
}

func TestTapeHeaderAndSingleInode(t *testing.T) {
	var b bytes.Buffer
	writeRecord(&b, typeTape, 0, 0, "", nil)
	writeRecord(&b, typeInode, 7, 5, "hello.txt", []byte("world"))
	writeRecord(&b, typeEnd, 0, 0, "", nil)

	buf := b.Bytes()
	r, err := NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	entries := r.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Name != "hello.txt" || entries[0].Size != 5 {
		t.Errorf("entry = %+v", entries[0])
	}
	got, err := io.ReadAll(r.Open(0))
	if err != nil {
		t.Fatalf("Open/ReadAll: %v", err)
	}
	if string(got) != "world" {
		t.Errorf("payload = %q", got)
	}
}

func TestMissingTapeHeaderIsFormatError(t *testing.T) {
	var b bytes.Buffer
	writeRecord(&b, typeInode, 1, 1, "oops", []byte("x"))
	buf := b.Bytes()
	if _, err := NewReader(bytes.NewReader(buf), int64(len(buf))); err == nil {
		t.Fatalf("expected a format error for a stream not starting with a tape header")
	}
}

func TestZeroReclenIsRejected(t *testing.T) {
	var b bytes.Buffer
	writeRecord(&b, typeTape, 0, 0, "", nil)
	// Hand-corrupt a second record's reclen field to zero.
	hdr := make([]byte, blockSize)
	putBE32(hdr[0:4], magic)
	putBE32(hdr[4:8], typeInode)
	putBE64(hdr[8:16], 1)
	putBE64(hdr[16:24], 1)
	putBE32(hdr[24:28], 0) // corrupted: zero reclen
	b.Write(hdr)

	buf := b.Bytes()
	if _, err := NewReader(bytes.NewReader(buf), int64(len(buf))); err == nil {
		t.Fatalf("expected an error for a zero-reclen record")
	}
}

func TestRepeatedInodeIsRejectedAsCycle(t *testing.T) {
	var b bytes.Buffer
	writeRecord(&b, typeTape, 0, 0, "", nil)
	writeRecord(&b, typeInode, 3, 1, "a", []byte("x"))
	writeRecord(&b, typeInode, 3, 1, "b", []byte("y")) // same inode again
	writeRecord(&b, typeEnd, 0, 0, "", nil)

	buf := b.Bytes()
	if _, err := NewReader(bytes.NewReader(buf), int64(len(buf))); err == nil {
		t.Fatalf("expected an error for a repeated inode number")
	}
}
