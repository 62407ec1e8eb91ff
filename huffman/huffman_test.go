package huffman

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/coldforge/streamcodec/bitio"
)

// canonicalCodes builds the canonical code table from lengths independently
// of Build, so the round-trip test hand-encodes bits without relying on
// the tree walk it is meant to check.
func canonicalCodes(t *testing.T, lengths []int) map[int]struct {
	bits uint64
	n    uint
} {
	t.Helper()
	type sym struct {
		value, length int
	}
	var syms []sym
	for i, l := range lengths {
		if l > 0 {
			syms = append(syms, sym{i, l})
		}
	}
	// stable sort by (length, value) — canonical order
	for i := 1; i < len(syms); i++ {
		for j := i; j > 0 && (syms[j].length < syms[j-1].length ||
			(syms[j].length == syms[j-1].length && syms[j].value < syms[j-1].value)); j-- {
			syms[j], syms[j-1] = syms[j-1], syms[j]
		}
	}
	codes := map[int]struct {
		bits uint64
		n    uint
	}{}
	var code uint64
	prevLen := 0
	for _, s := range syms {
		code <<= uint(s.length - prevLen)
		codes[s.value] = struct {
			bits uint64
			n    uint
		}{code, uint(s.length)}
		code++
		prevLen = s.length
	}
	return codes
}

func TestBuildAndReadRoundTrip(t *testing.T) {
	lengths := []int{3, 3, 3, 3, 3, 2, 4, 4}
	tree, err := Build(lengths)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	codes := canonicalCodes(t, lengths)

	var buf bytes.Buffer
	w := newBitWriter(&buf)
	order := []int{0, 1, 2, 3, 4, 5, 6, 7, 5, 0}
	for _, sym := range order {
		c := codes[sym]
		w.writeBits(c.bits, c.n)
	}
	w.flush()

	r := bitio.New(bufio.NewReader(bytes.NewReader(buf.Bytes())), bitio.BigEndian)
	for _, want := range order {
		got, ok, err := tree.Read(r)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !ok {
			t.Fatalf("Read returned no value early")
		}
		if got != want {
			t.Fatalf("got %d want %d", got, want)
		}
	}
}

func TestSingleSymbolZeroBitTree(t *testing.T) {
	tree, err := Build([]int{5})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r := bitio.New(bufio.NewReader(bytes.NewReader(nil)), bitio.BigEndian)
	got, ok, err := tree.Read(r)
	if err != nil || !ok {
		t.Fatalf("Read: got=%d ok=%v err=%v", got, ok, err)
	}
	if got != 0 {
		t.Fatalf("got %d want 0", got)
	}
}

func TestBuildEmptyTreeIsError(t *testing.T) {
	if _, err := Build([]int{0, 0, 0}); err == nil {
		t.Fatalf("expected error for all-zero length vector")
	}
}

func TestReadLengthsEscapeAndSkipQuirk(t *testing.T) {
	var buf bytes.Buffer
	w := newBitWriter(&buf)
	// entry 0: length 2 (plain 3-bit value)
	w.writeBits(2, 3)
	// entry 1: length 3
	w.writeBits(3, 3)
	// entry 2 (the third entry): escape to 9 (7, then two 1-bits, then a 0-bit)
	w.writeBits(7, 3)
	w.writeBits(0b110, 3) // 1,1,0
	// after the third entry: 2-bit skip count = 2, skipping entries 3 and 4
	w.writeBits(2, 2)
	// entry 5: length 1
	w.writeBits(1, 3)
	w.flush()

	r := bitio.New(bufio.NewReader(bytes.NewReader(buf.Bytes())), bitio.BigEndian)
	got, err := ReadLengths(r, 6)
	if err != nil {
		t.Fatalf("ReadLengths: %v", err)
	}
	want := []int{2, 3, 9, 0, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lengths[%d] = %d, want %d (got %v)", i, got[i], want[i], got)
		}
	}
}

// --- tiny MSB-first bit writer, test-only ---

type bitWriter struct {
	buf  *bytes.Buffer
	cur  byte
	nbit uint
}

func newBitWriter(buf *bytes.Buffer) *bitWriter { return &bitWriter{buf: buf} }

func (w *bitWriter) writeBits(v uint64, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		bit := byte((v >> uint(i)) & 1)
		w.cur = w.cur<<1 | bit
		w.nbit++
		if w.nbit == 8 {
			w.buf.WriteByte(w.cur)
			w.cur, w.nbit = 0, 0
		}
	}
}

func (w *bitWriter) flush() {
	if w.nbit > 0 {
		w.cur <<= 8 - w.nbit
		w.buf.WriteByte(w.cur)
		w.cur, w.nbit = 0, 0
	}
}
