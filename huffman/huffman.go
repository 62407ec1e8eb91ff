// Package huffman implements the canonical Huffman decoder built from a
// code-length vector, plus the sparse code-length table reader used by the
// LHA family (lh4/5/6/7) to transmit those vectors compactly.
//
// The tree-build algorithm and the decode loop follow spec.md C2 directly;
// no teacher source implements canonical-Huffman-by-length-vector decoding
// (the teacher's internal/sit/huffman.go instead parses an
// already-serialized binary tree bit by bit), so this package is
// grounded on that file's *style* — a heap-indexed array of nodes read with
// a github.com/coldforge/streamcodec/bitio reader — rather than its
// algorithm. The sparse length reader mirrors the historical lharc
// pt_len/c_len routines (three-bit lengths with a 1-run escape, and the
// quirky 2-bit skip range consumed after the third entry).
package huffman

import (
	"github.com/coldforge/streamcodec/bitio"
	"github.com/coldforge/streamcodec/codecerr"
)

const (
	undefined int32 = -1
	node      int32 = -2

	// maxCodeLength is the hard cap on a single code's bit length, per
	// spec.md's L[i] ∈ [0,16] invariant and the sparse reader's escape cap.
	maxCodeLength = 16
)

// Tree is a canonical Huffman decode tree, stored as a heap-indexed array:
// the node at index k has children at 2k+1 (bit 0) and 2k+2 (bit 1).
type Tree struct {
	table []int32

	single      bool // n == 1 special case: no bits are consumed on read
	singleValue int
}

// Build constructs a Tree from a code-length vector. lengths[i] is the bit
// depth of symbol i, in [0,16]; a zero means the symbol is absent from the
// tree. If len(lengths) == 1 the sole symbol is the tree's root value and
// Read never consumes a bit.
func Build(lengths []int) (*Tree, error) {
	if len(lengths) == 1 {
		return &Tree{single: true, singleValue: 0}, nil
	}

	maxL := 0
	for _, l := range lengths {
		if l < 0 || l > maxCodeLength {
			return nil, codecerr.New(codecerr.Format, "huffman: code length %d out of range", l)
		}
		if l > maxL {
			maxL = l
		}
	}
	if maxL == 0 {
		return nil, codecerr.New(codecerr.Format, "huffman: empty tree (no symbol has a nonzero length)")
	}

	size := 1<<(uint(maxL)+1) - 1
	table := make([]int32, size)
	for i := range table {
		table[i] = undefined
	}
	table[0] = node // the root is always an interior node when n > 1

	// parents holds, for the depth about to be processed, the array
	// indices of the interior NODEs created at the previous depth (the
	// root stands in as the sole depth-0 parent). Each parent contributes
	// two children, in left-to-right order, to the next depth's slots —
	// which is exactly the "first slot that is a child of the first
	// interior NODE added at depth d" cursor jump spec.md describes.
	parents := []int{0}

	for d := 1; d <= maxL; d++ {
		childSlots := make([]int, 0, 2*len(parents))
		for _, p := range parents {
			childSlots = append(childSlots, 2*p+1, 2*p+2)
		}

		cursor := 0
		for i, l := range lengths {
			if l != d {
				continue
			}
			if cursor >= len(childSlots) {
				return nil, codecerr.New(codecerr.Format, "huffman: tree overflow at depth %d", d)
			}
			table[childSlots[cursor]] = int32(i)
			cursor++
		}

		var nextParents []int
		for ; cursor < len(childSlots); cursor++ {
			if d == maxL {
				continue // no further depth to descend into; leave UNDEFINED
			}
			slot := childSlots[cursor]
			table[slot] = node
			nextParents = append(nextParents, slot)
		}
		parents = nextParents
	}

	return &Tree{table: table}, nil
}

// Read descends the tree one bit at a time. ok is false with a nil error
// when the bit source ran out mid-descent ("no value", not a decoding
// error at this layer); err is non-nil only for a malformed tree
// (descending into an UNDEFINED slot).
func (t *Tree) Read(br *bitio.Reader) (value int, ok bool, err error) {
	if t.single {
		return t.singleValue, true, nil
	}
	idx := 0
	for {
		switch v := t.table[idx]; v {
		case undefined:
			return 0, false, codecerr.New(codecerr.Format, "huffman: decode hit an undefined tree slot")
		case node:
			bit, ok := br.ReadBit()
			if !ok {
				return 0, false, nil
			}
			if bit == 0 {
				idx = 2*idx + 1
			} else {
				idx = 2*idx + 2
			}
		default:
			return int(v), true, nil
		}
	}
}

// ReadLengths reads n raw code lengths using the LHA sparse scheme: each
// length is a 3-bit integer in [0,6], or the escape value 7 meaning "keep
// consuming 1-bits, incrementing the length by one each time, until a
// 0-bit terminates the run". Lengths may not exceed maxCodeLength.
//
// After the third length has been read, a 2-bit skip count is consumed
// and that many subsequent slots are left at length 0 before reading
// resumes — a format quirk (lharc's read_pt_len, i_special == 3) that
// must be reproduced exactly rather than simplified away.
func ReadLengths(br *bitio.Reader, n int) ([]int, error) {
	lengths := make([]int, n)
	i := 0
	for i < n {
		c, ok := br.ReadBits(3)
		if !ok {
			return nil, codecerr.New(codecerr.TruncatedStream, "huffman: truncated length table")
		}
		length := int(c)
		if length == 7 {
			for {
				bit, ok := br.ReadBit()
				if !ok {
					return nil, codecerr.New(codecerr.TruncatedStream, "huffman: truncated length escape")
				}
				if bit == 0 {
					break
				}
				length++
				if length > maxCodeLength {
					return nil, codecerr.New(codecerr.Format, "huffman: escaped code length exceeds %d", maxCodeLength)
				}
			}
		}
		lengths[i] = length
		i++

		if i == 3 {
			skip, ok := br.ReadBits(2)
			if !ok {
				return nil, codecerr.New(codecerr.TruncatedStream, "huffman: truncated skip range after third length")
			}
			for s := 0; s < int(skip) && i < n; s++ {
				lengths[i] = 0
				i++
			}
		}
	}
	return lengths, nil
}

// ReadTableLengths decodes n code lengths for a larger table (e.g. the
// LHA command/distance tree) by reading symbols from tree — itself built
// from a vector produced by ReadLengths — and interpreting three
// meta-codes: symbol 0 skips one slot, symbol 1 skips (4-bit value + 3)
// slots, symbol 2 skips (9-bit value + 20) slots; any other symbol v sets
// the current slot's length to v-2 and advances by one.
func ReadTableLengths(br *bitio.Reader, tree *Tree, n int) ([]int, error) {
	lengths := make([]int, n)
	i := 0
	for i < n {
		sym, ok, err := tree.Read(br)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, codecerr.New(codecerr.TruncatedStream, "huffman: truncated table lengths")
		}

		var skip int
		switch sym {
		case 0:
			skip = 1
		case 1:
			v, ok := br.ReadBits(4)
			if !ok {
				return nil, codecerr.New(codecerr.TruncatedStream, "huffman: truncated short skip-range bits")
			}
			skip = int(v) + 3
		case 2:
			v, ok := br.ReadBits(9)
			if !ok {
				return nil, codecerr.New(codecerr.TruncatedStream, "huffman: truncated long skip-range bits")
			}
			skip = int(v) + 20
		default:
			lengths[i] = sym - 2
			i++
			continue
		}
		for s := 0; s < skip && i < n; s++ {
			lengths[i] = 0
			i++
		}
	}
	return lengths, nil
}
