package zipscan

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"time"

	"github.com/coldforge/streamcodec/archive/entry"
	"github.com/coldforge/streamcodec/codecerr"
)

// WriteStoredEntry writes one local file header plus extras and payload in
// the same wire format Scanner.Next parses: no compression (method 0),
// known sizes in the header (general-purpose bit 0x08 is never set), and
// extras serialized byte-for-byte from e.Extras in field order. This is
// enough to round-trip a JAR/ZIP's extras through read, rewrite, and
// read again, which is all a scanner-based library needs — no central
// directory or end-of-central-directory record is written, since nothing
// in this package reads one either.
func WriteStoredEntry(w io.Writer, e *entry.Entry, payload []byte) error {
	extras, err := encodeExtras(e.Extras)
	if err != nil {
		return err
	}

	var hdr [localHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], 20) // version needed to extract
	binary.LittleEndian.PutUint16(hdr[2:4], 0)  // gp flag: sizes known, no data descriptor
	binary.LittleEndian.PutUint16(hdr[4:6], 0)  // method: stored
	modDate, modTime := timeToMsDos(e.ModTime)
	binary.LittleEndian.PutUint16(hdr[6:8], modTime)
	binary.LittleEndian.PutUint16(hdr[8:10], modDate)
	binary.LittleEndian.PutUint32(hdr[10:14], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(hdr[14:18], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[18:22], uint32(len(payload)))
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(len(e.Name)))
	binary.LittleEndian.PutUint16(hdr[24:26], uint16(len(extras)))

	for _, chunk := range [][]byte{[]byte(localSig), hdr[:], []byte(e.Name), extras, payload} {
		if _, err := w.Write(chunk); err != nil {
			return codecerr.Wrap(codecerr.Io, err, "zipscan: writing entry %q", e.Name)
		}
	}
	return nil
}

func encodeExtras(extras []entry.Extra) ([]byte, error) {
	var out []byte
	for _, x := range extras {
		if x.Tag > 0xffff || len(x.Payload) > 0xffff {
			return nil, codecerr.New(codecerr.Format, "zipscan: extra field id=%#x len=%d out of range", x.Tag, len(x.Payload))
		}
		var head [4]byte
		binary.LittleEndian.PutUint16(head[0:2], uint16(x.Tag))
		binary.LittleEndian.PutUint16(head[2:4], uint16(len(x.Payload)))
		out = append(out, head[:]...)
		out = append(out, x.Payload...)
	}
	return out, nil
}

// timeToMsDos is msDosTimeToTime's inverse, at the format's native 2-second
// resolution. The DOS epoch starts at 1980; years before that clamp to it,
// the earliest date the format can express.
func timeToMsDos(t time.Time) (date, dosTime uint16) {
	t = t.UTC()
	year := t.Year()
	if year < 1980 {
		year = 1980
	}
	date = uint16(year-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	dosTime = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, dosTime
}
