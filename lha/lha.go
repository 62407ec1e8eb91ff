// Package lha implements the per-block LHA decoder (the C4 companion to
// the sliding-window copy engine): block command counts, the
// command-decoding tree, the command tree, the distance tree, and the
// literal/copy command loop that drives a window.CircularBuffer.
//
// No teacher file implements this — internal/sit/lzah.go and arsenic.go
// (since deleted; see DESIGN.md) were commented-out C pseudocode with
// no working Go logic (confirmed empty of any `func` declaration) — so the
// block-decode algorithm is written fresh from spec.md §4.4, composed
// from the huffman, window, and bitio primitives in the style those
// packages already established.
package lha

import (
	"bufio"
	"io"

	"github.com/coldforge/streamcodec/bitio"
	"github.com/coldforge/streamcodec/codecerr"
	"github.com/coldforge/streamcodec/huffman"
	"github.com/coldforge/streamcodec/window"
)

const (
	copyThreshold = 3
	maxMatch      = 256

	// decodingTreeSize is the fixed alphabet of the 19-entry
	// command-decoding tree (spec.md §4.2).
	decodingTreeSize = 19

	// commandTreeSize is the command tree's alphabet: 256 literal byte
	// values plus one symbol per match length in [copyThreshold, maxMatch].
	commandTreeSize = 256 + (maxMatch - copyThreshold + 1)
)

// Variant configures one of the lh4/lh5/lh6/lh7 dialects.
type Variant struct {
	DictSize     int
	DistanceBits uint
}

var (
	LH4 = Variant{DictSize: 4 << 10, DistanceBits: 4}
	LH5 = Variant{DictSize: 8 << 10, DistanceBits: 4}
	LH6 = Variant{DictSize: 32 << 10, DistanceBits: 5}
	LH7 = Variant{DictSize: 64 << 10, DistanceBits: 5}
)

// Decoder decodes an LHA-family byte stream into its uncompressed form. It
// implements io.Reader; the underlying source is borrowed.
type Decoder struct {
	br      *bitio.Reader
	win     *window.CircularBuffer
	variant Variant

	commandTree *huffman.Tree
	distTree    *huffman.Tree

	commandsRemaining int

	pending    []byte
	pendingPos int
	finished   bool
}

// NewDecoder returns a Decoder for the given variant, reading from r.
func NewDecoder(r io.Reader, variant Variant) *Decoder {
	return &Decoder{
		br:      bitio.New(bufio.NewReader(r), bitio.BigEndian),
		win:     window.New(variant.DictSize + maxMatch),
		variant: variant,
	}
}

// startBlock reads a new block's command count and (re)builds its three
// trees. io.EOF from the 16-bit count read is a clean end of stream.
func (d *Decoder) startBlock() error {
	count, ok := d.br.ReadBits(16)
	if !ok {
		return io.EOF
	}
	d.commandsRemaining = int(count)

	ntLengths, err := huffman.ReadLengths(d.br, decodingTreeSize)
	if err != nil {
		return err
	}
	decodingTree, err := huffman.Build(ntLengths)
	if err != nil {
		return err
	}

	commandLengths, err := huffman.ReadTableLengths(d.br, decodingTree, commandTreeSize)
	if err != nil {
		return err
	}
	d.commandTree, err = huffman.Build(commandLengths)
	if err != nil {
		return err
	}

	distLengths, err := huffman.ReadLengths(d.br, int(d.variant.DistanceBits))
	if err != nil {
		return err
	}
	d.distTree, err = huffman.Build(distLengths)
	if err != nil {
		return err
	}
	return nil
}

// decodeOne processes exactly one command, returning the bytes it
// produced. io.EOF signals a clean end of stream at a block boundary.
func (d *Decoder) decodeOne() ([]byte, error) {
	if d.commandsRemaining == 0 {
		if err := d.startBlock(); err != nil {
			return nil, err
		}
	}
	d.commandsRemaining--

	sym, ok, err := d.commandTree.Read(d.br)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, codecerr.New(codecerr.TruncatedStream, "lha: unexpected end of stream mid-command")
	}

	if sym < 256 {
		d.win.Put(byte(sym))
		return []byte{byte(sym)}, nil
	}

	class, ok, err := d.distTree.Read(d.br)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, codecerr.New(codecerr.TruncatedStream, "lha: unexpected end of stream reading distance class")
	}

	var distance int
	switch class {
	case 0, 1:
		distance = class
	default:
		extra, ok := d.br.ReadBits(uint(class - 1))
		if !ok {
			return nil, codecerr.New(codecerr.TruncatedStream, "lha: unexpected end of stream reading distance extra bits")
		}
		distance = int(extra) | (1 << uint(class-1))
	}

	length := (sym - 256) + copyThreshold
	out := make([]byte, length)
	if err := d.win.Copy(distance+1, length, out); err != nil {
		return nil, err
	}
	return out, nil
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
