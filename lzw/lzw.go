// Package lzw implements the classical UNIX ".Z" (compress) LZW decoder:
// table growth, code-width transitions, the 8-code group re-alignment that
// follows a width bump or CLEAR, and the KwKwK special case.
//
// Grounded directly on the teacher's internal/sit/lzc.go, a real working
// decoder for this exact format, but restructured to decode one
// bitio.Reader code at a time through an
// explicit codeWidth/table/prev state machine (spec.md C3 §4.3) instead of
// the teacher's inline byte-buffer getcode closure, per the Open Question
// recorded for addEntry: an entry is appended only when size < 1<<codeWidth,
// and a width bump/re-alignment fires exactly when size reaches 1<<codeWidth
// (while codeWidth < maxWidth).
package lzw

import (
	"bufio"
	"io"

	"github.com/coldforge/streamcodec/bitio"
	"github.com/coldforge/streamcodec/codecerr"
)

const (
	magic0 = 0x1F
	magic1 = 0x9D

	initCodeWidth = 9
	clearCode     = 256

	minMaxWidth = 9
	maxMaxWidth = 16
)

type table struct {
	prefix []int32 // -1 marks a root (single-byte) entry
	suffix []byte
	size   int
}

// Decoder decodes a ".Z" byte stream into its uncompressed form. It
// implements io.Reader; the underlying source is borrowed, never closed.
type Decoder struct {
	br *bitio.Reader

	codeWidth uint
	maxWidth  uint
	blockMode bool

	tbl       table
	prev      int32
	codesRead uint64

	pending    []byte
	pendingPos int
	finished   bool
}

// NewDecoder validates the 3-byte ".Z" header and returns a ready Decoder.
func NewDecoder(r io.Reader) (*Decoder, error) {
	br := bufio.NewReader(r)
	var hdr [3]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, codecerr.Wrap(codecerr.TruncatedStream, err, "lzw: truncated .Z header")
	}
	if hdr[0] != magic0 || hdr[1] != magic1 {
		return nil, codecerr.New(codecerr.Format, "lzw: bad magic %02x %02x", hdr[0], hdr[1])
	}

	maxWidth := uint(hdr[2] & 0x1F)
	blockMode := hdr[2]&0x80 != 0
	if maxWidth < minMaxWidth || maxWidth > maxMaxWidth {
		return nil, codecerr.New(codecerr.Format, "lzw: invalid max code width %d", maxWidth)
	}

	d := &Decoder{
		br:        bitio.New(br, bitio.LittleEndian),
		maxWidth:  maxWidth,
		blockMode: blockMode,
	}
	d.tbl.prefix = make([]int32, 1<<maxWidth)
	d.tbl.suffix = make([]byte, 1<<maxWidth)
	for i := range 256 {
		d.tbl.prefix[i] = -1
		d.tbl.suffix[i] = byte(i)
	}
	d.resetAfterClear()
	return d, nil
}

// CompressedBytesRead reports how many bytes the bit reader has taken in so
// far, satisfying the codec byte-source (out) contract. The source is read
// through a bufio.Reader, so the source itself may already have been read
// further ahead than this count.
func (d *Decoder) CompressedBytesRead() uint64 { return d.br.BytesRead() }

func (d *Decoder) resetAfterClear() {
	d.codeWidth = initCodeWidth
	if d.blockMode {
		d.tbl.size = clearCode + 1
	} else {
		d.tbl.size = clearCode
	}
	d.prev = -1
}

// realign discards the remainder of the current 8-code group at the
// current code width, then flushes to the next source byte boundary — the
// re-alignment law that follows both a width bump and a CLEAR code.
func (d *Decoder) realign() {
	skip := (8 - d.codesRead%8) % 8
	for i := uint64(0); i < skip; i++ {
		if _, ok := d.br.ReadBits(d.codeWidth); !ok {
			break
		}
	}
	d.br.AlignToByte()
	d.codesRead = 0
}

func (d *Decoder) addEntry(prefix int32, suffix byte) {
	if d.tbl.size >= len(d.tbl.prefix) {
		return // table already at its maxWidth cap; classic encoders stop growing here too
	}
	d.tbl.prefix[d.tbl.size] = prefix
	d.tbl.suffix[d.tbl.size] = suffix
	d.tbl.size++
}

func (d *Decoder) firstChar(code int32) byte {
	for code >= 256 {
		code = d.tbl.prefix[code]
	}
	return d.tbl.suffix[code]
}

// expand walks the prefix chain from code down to its root, returning the
// bytes it represents in forward (left-to-right) order.
func (d *Decoder) expand(code int32) []byte {
	var rev []byte
	for code >= 256 {
		rev = append(rev, d.tbl.suffix[code])
		code = d.tbl.prefix[code]
	}
	rev = append(rev, d.tbl.suffix[code])

	out := make([]byte, len(rev))
	for i, b := range rev {
		out[len(out)-1-i] = b
	}
	return out
}

// maybeBump widens codeWidth and re-aligns the stream once the table has
// grown to fill the current width's code space, per §4.3's width-bump rule.
func (d *Decoder) maybeBump() {
	if d.tbl.size == 1<<d.codeWidth && d.codeWidth < d.maxWidth {
		d.realign()
		d.codeWidth++
	}
}

// decodeOne reads and expands exactly one input code, returning the bytes
// it decodes to. io.EOF signals a clean end of stream.
func (d *Decoder) decodeOne() ([]byte, error) {
	raw, ok := d.br.ReadBits(d.codeWidth)
	if !ok {
		return nil, io.EOF
	}
	d.codesRead++
	code := int32(raw)

	if d.blockMode && code == clearCode {
		d.realign()
		d.resetAfterClear()
		return d.decodeOne()
	}

	size := int32(d.tbl.size)
	switch {
	case code == size:
		if d.prev == -1 {
			return nil, codecerr.New(codecerr.Format, "lzw: KwKwK at the first code")
		}
		d.addEntry(d.prev, d.firstChar(d.prev))
		out := d.expand(code)
		d.prev = code
		d.maybeBump()
		return out, nil
	case code > size:
		return nil, codecerr.New(codecerr.Format, "lzw: code %d exceeds table size %d", code, size)
	default:
		out := d.expand(code)
		if d.prev != -1 {
			d.addEntry(d.prev, out[0])
		}
		d.prev = code
		d.maybeBump()
		return out, nil
	}
}

// Read implements io.Reader.
func (d *Decoder) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if d.pendingPos < len(d.pending) {
			c := copy(p[n:], d.pending[d.pendingPos:])
			n += c
			d.pendingPos += c
			continue
		}
		if d.finished {
			break
		}
		out, err := d.decodeOne()
		if err == io.EOF {
			d.finished = true
			break
		}
		if err != nil {
			return n, err
		}
		d.pending, d.pendingPos = out, 0
	}
	if n == 0 && d.finished {
		return 0, io.EOF
	}
	return n, nil
}
