package bitio

import (
	"bufio"
	"bytes"
	"testing"
)

func TestBigEndianReadBits(t *testing.T) {
	// 0b10110010 0b01010101
	r := New(bufio.NewReader(bytes.NewReader([]byte{0xB2, 0x55})), BigEndian)
	for _, want := range []int{1, 0, 1, 1, 0, 0, 1, 0} {
		bit, ok := r.ReadBit()
		if !ok || bit != want {
			t.Fatalf("got %d,%v want %d", bit, ok, want)
		}
	}
	v, ok := r.ReadBits(8)
	if !ok || v != 0x55 {
		t.Fatalf("got %d,%v want 0x55", v, ok)
	}
	if r.BytesRead() != 2 {
		t.Fatalf("BytesRead() = %d, want 2", r.BytesRead())
	}
}

func TestLittleEndianReadBits(t *testing.T) {
	// low bit first: byte 0x03 = 0b00000011 -> bits 1,1,0,0,0,0,0,0
	r := New(bufio.NewReader(bytes.NewReader([]byte{0x03})), LittleEndian)
	v, ok := r.ReadBits(2)
	if !ok || v != 0b11 {
		t.Fatalf("got %d,%v want 3", v, ok)
	}
	v, ok = r.ReadBits(6)
	if !ok || v != 0 {
		t.Fatalf("got %d,%v want 0", v, ok)
	}
}

func TestBytesReadIndependentOfBufferedBits(t *testing.T) {
	r := New(bufio.NewReader(bytes.NewReader([]byte{0xFF, 0xFF})), LittleEndian)
	r.ReadBits(1) // pulls one whole byte into the reservoir, consumes 1 bit of it
	if r.BytesRead() != 1 {
		t.Fatalf("BytesRead() = %d, want 1", r.BytesRead())
	}
}

func TestEOFLeavesReservoirEmpty(t *testing.T) {
	r := New(bufio.NewReader(bytes.NewReader([]byte{0xFF})), BigEndian)
	if _, ok := r.ReadBits(9); ok {
		t.Fatalf("expected EOF reading past the single byte")
	}
	if _, ok := r.ReadBits(1); ok {
		t.Fatalf("reader should stay at EOF")
	}
}

func TestAlignToByte(t *testing.T) {
	r := New(bufio.NewReader(bytes.NewReader([]byte{0xFF, 0x00, 0xAA})), LittleEndian)
	r.ReadBits(3)
	r.AlignToByte()
	v, ok := r.ReadBits(8)
	if !ok || v != 0x00 {
		t.Fatalf("got %d,%v want 0x00 from second byte", v, ok)
	}
}
