// Package bitio implements the bit-stream reader primitive shared by the
// Huffman (LHA) and LZW (.Z) decoders: a byte-oriented reader wrapped with
// a reservoir of unconsumed bits, in either bit order.
//
// Grounded on the teacher's internal/sit/bitreader.go reservoir-refill
// trick, generalized into a
// single type that tracks its own fill count and byte-consumption counter
// instead of relying on a leading-one marker bit.
package bitio

import "io"

// Order selects which end of each underlying byte is consumed first.
type Order int

const (
	// BigEndian consumes the most significant bit of each byte first.
	// LHA's command/distance streams use this order.
	BigEndian Order = iota
	// LittleEndian consumes the least significant bit of each byte first,
	// assembling multi-bit reads with earlier bits at lower positions.
	// The classical .Z (compress) LZW codes use this order.
	LittleEndian
)

// Reader is a single-use, non-concurrent bit-stream reader over an
// io.ByteReader. It is not safe for concurrent use.
type Reader struct {
	src   io.ByteReader
	order Order

	reservoir uint64
	fill      uint // number of valid bits currently buffered, 0..64
	nbytes    uint64
	eof       bool
}

// New wraps r for bit-at-a-time reading in the given order.
func New(r io.ByteReader, order Order) *Reader {
	return &Reader{src: r, order: order}
}

// BytesRead returns the number of whole bytes pulled from the underlying
// reader so far, regardless of how many bits of the last byte remain
// buffered in the reservoir.
func (b *Reader) BytesRead() uint64 { return b.nbytes }

// fillTo ensures at least n bits are buffered, or that EOF has been
// observed with fewer than n available.
func (b *Reader) fillTo(n uint) {
	for b.fill < n && !b.eof {
		c, err := b.src.ReadByte()
		if err != nil {
			b.eof = true
			return
		}
		b.nbytes++
		switch b.order {
		case BigEndian:
			b.reservoir |= uint64(c) << (64 - 8 - b.fill)
		default: // LittleEndian
			b.reservoir |= uint64(c) << b.fill
		}
		b.fill += 8
	}
}

// ReadBit reads a single bit, returning ok=false at end of stream.
func (b *Reader) ReadBit() (bit int, ok bool) {
	v, ok := b.ReadBits(1)
	return int(v), ok
}

// ReadBits reads n bits (1 <= n <= 63) and assembles them into an integer
// per the reader's bit order. ok is false if the stream ended before n
// bits could be assembled; the reservoir is left empty in that case.
func (b *Reader) ReadBits(n uint) (value uint64, ok bool) {
	if n == 0 {
		return 0, true
	}
	if n > 56 {
		// A refill adds whole bytes to the 64-bit reservoir, which only has
		// room for one more byte while at most 56 bits are buffered, so a
		// wider read is assembled from two narrower ones.
		first, ok := b.ReadBits(32)
		if !ok {
			return 0, false
		}
		second, ok := b.ReadBits(n - 32)
		if !ok {
			return 0, false
		}
		if b.order == BigEndian {
			return first<<(n-32) | second, true
		}
		return first | second<<32, true
	}
	b.fillTo(n)
	if b.fill < n {
		b.reservoir, b.fill = 0, 0
		return 0, false
	}
	switch b.order {
	case BigEndian:
		value = b.reservoir >> (64 - n)
		b.reservoir <<= n
	default: // LittleEndian
		value = b.reservoir & (1<<n - 1)
		b.reservoir >>= n
	}
	b.fill -= n
	return value, true
}

// AlignToByte discards any buffered bits of the current (partially
// consumed) byte, so the next ReadBits call starts at the following byte
// boundary of the underlying source. Used by the LZW re-alignment rule
// (spec.md C3 §4.3) and equivalent constructs elsewhere.
func (b *Reader) AlignToByte() {
	b.reservoir, b.fill = 0, 0
}
