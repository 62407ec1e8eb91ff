// Package ar implements the Unix ar archive reader (C7): the fixed 60-byte
// header, GNU string-table and BSD long-name variants, and the even-byte
// payload padding rule. It does not write ar archives.
//
// No teacher or pack repository implements ar directly, so this package
// is written fresh, following the archive-reader state machine style
// (header → payload window → close, lazily populating an
// internal/fskeleton tree) already established by the teacher's
// internal/tar and internal/zip. Glob-filtered entry listing is offered
// through github.com/bmatcuk/doublestar/v4, the pattern-matching library
// already present in the teacher's go.mod for exactly this purpose.
package ar

import (
	"io"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/encoding/charmap"

	"github.com/coldforge/streamcodec/archive/entry"
	"github.com/coldforge/streamcodec/codecerr"
	"github.com/coldforge/streamcodec/internal/fskeleton"
)

const (
	globalMagic = "!<arch>\n"
	headerSize  = 60
	trailer     = "`\n"
)

// Reader scans an ar archive's headers eagerly (they are fixed-size and
// cheap to walk) and exposes its entries for random-access payload reads.
type Reader struct {
	ra      io.ReaderAt
	entries []entry.Entry
	offsets []int64
}

// NewReader validates the global magic and walks every entry header.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	var magic [len(globalMagic)]byte
	if _, err := ra.ReadAt(magic[:], 0); err != nil {
		return nil, codecerr.Wrap(codecerr.Io, err, "ar: reading global magic")
	}
	if string(magic[:]) != globalMagic {
		return nil, codecerr.New(codecerr.Signature, "ar: missing !<arch>\\n magic")
	}

	r := &Reader{ra: ra}
	var stringTable []byte
	pos := int64(len(globalMagic))

	for pos < size {
		var hdr [headerSize]byte
		n, err := ra.ReadAt(hdr[:], pos)
		if n < headerSize {
			if n == 0 && err == io.EOF {
				break
			}
			return nil, codecerr.Wrap(codecerr.TruncatedStream, err, "ar: truncated header at offset %d", pos)
		}
		if string(hdr[58:60]) != trailer {
			return nil, codecerr.New(codecerr.Format, "ar: bad header trailer at offset %d", pos)
		}

		rawName := string(hdr[0:16])
		mtimeStr := strings.TrimSpace(string(hdr[16:28]))
		uidStr := strings.TrimSpace(string(hdr[28:34]))
		gidStr := strings.TrimSpace(string(hdr[34:40]))
		modeStr := strings.TrimSpace(string(hdr[40:48]))
		sizeStr := strings.TrimSpace(string(hdr[48:58]))

		rawSize, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil {
			return nil, codecerr.Wrap(codecerr.Format, err, "ar: bad size field at offset %d", pos)
		}

		payloadOff := pos + headerSize
		trimmedName := strings.TrimRight(rawName, " ")

		switch {
		case trimmedName == "//":
			buf := make([]byte, rawSize)
			if _, err := ra.ReadAt(buf, payloadOff); err != nil {
				return nil, codecerr.Wrap(codecerr.Io, err, "ar: reading GNU string table")
			}
			stringTable = buf
			pos = advance(payloadOff, rawSize)
			continue
		case trimmedName == "/":
			// GNU symbol/archive index: internal bookkeeping, not a visible entry.
			pos = advance(payloadOff, rawSize)
			continue
		}

		var e entry.Entry
		e.Type = entry.TypeFile

		switch {
		case strings.HasPrefix(trimmedName, "/") && isDigits(trimmedName[1:]):
			off, _ := strconv.Atoi(trimmedName[1:])
			e.Name = decodeArName(gnuTableName(stringTable, off))
			e.Size = rawSize
		case strings.HasPrefix(trimmedName, "#1/"):
			nameLen, err := strconv.Atoi(trimmedName[3:])
			if err != nil {
				return nil, codecerr.Wrap(codecerr.Format, err, "ar: bad BSD long-name length at offset %d", pos)
			}
			nameBuf := make([]byte, nameLen)
			if _, err := ra.ReadAt(nameBuf, payloadOff); err != nil {
				return nil, codecerr.Wrap(codecerr.Io, err, "ar: reading BSD long name")
			}
			e.Name = decodeArName(strings.TrimRight(string(nameBuf), "\x00"))
			e.Size = rawSize - int64(nameLen)
			payloadOff += int64(nameLen)
		default:
			e.Name = decodeArName(trimmedName)
		}

		if mt, err := strconv.ParseInt(mtimeStr, 10, 64); err == nil {
			e.ModTime = time.Unix(mt, 0)
		}
		if uidStr != "" {
			if v, err := strconv.Atoi(uidStr); err == nil {
				e.HasOwner = true
				e.UID = v
			}
		}
		if gidStr != "" {
			if v, err := strconv.Atoi(gidStr); err == nil {
				e.HasOwner = true
				e.GID = v
			}
		}
		if modeStr != "" {
			if v, err := strconv.ParseUint(modeStr, 8, 32); err == nil {
				e.HasMode = true
				e.Mode = fs.FileMode(v)
				e.Type = classifyRawMode(uint32(v))
			}
		}

		r.entries = append(r.entries, e)
		r.offsets = append(r.offsets, payloadOff)

		pos = advance(pos+headerSize, rawSize)
	}
	return r, nil
}

// advance returns the next header offset after a payloadOff+size region,
// consuming the single padding byte the format requires when that region
// ends on an odd byte.
func advance(payloadOff, size int64) int64 {
	end := payloadOff + size
	if end%2 != 0 {
		end++
	}
	return end
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// gnuTableName resolves a GNU long name starting at off in the string
// table, delimited by LF and stripped of its trailing '/'.
func gnuTableName(table []byte, off int) string {
	if off < 0 || off >= len(table) {
		slog.Warn("ar: GNU string-table offset out of range", "offset", off, "tableLen", len(table))
		return ""
	}
	end := off
	for end < len(table) && table[end] != '\n' {
		end++
	}
	return strings.TrimSuffix(string(table[off:end]), "/")
}

// decodeArName re-decodes a raw ar name field as Latin-1 (ISO 8859-1) when
// it contains bytes outside ASCII. Most ar archives are plain ASCII, but
// some toolchains write 8-bit name bytes straight through without
// declaring an encoding; Latin-1 is the conventional fallback other ar
// implementations use for that dialect. A name already decodes as valid
// ASCII unchanged.
func decodeArName(name string) string {
	ascii := true
	for i := 0; i < len(name); i++ {
		if name[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return name
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().String(name)
	if err != nil {
		slog.Warn("ar: non-ASCII name failed Latin-1 decode, keeping raw bytes", "name", name, "err", err)
		return name
	}
	return decoded
}

// Entries returns every entry found by NewReader, in archive order.
func (r *Reader) Entries() []entry.Entry { return r.entries }

// Open returns a reader over the i-th entry's payload.
func (r *Reader) Open(i int) io.Reader {
	return io.NewSectionReader(r.ra, r.offsets[i], r.entries[i].Size)
}

// FS builds an io/fs.FS exposing every entry as a flat-namespace regular
// file (ar has no directory concept of its own).
func (r *Reader) FS() (fs.FS, error) {
	fsys := fskeleton.New()
	for i, e := range r.entries {
		mode := e.Mode
		if !e.HasMode {
			mode = 0o644
		}
		if err := fsys.CreateReaderAtFile(e.Name, r.offsets[i], r.ra, e.Size, mode, e.ModTime, e); err != nil {
			return nil, err
		}
	}
	fsys.NoMore()
	return fsys, nil
}

// Glob returns the names of entries matching pattern, using doublestar's
// extended glob syntax (including "**").
func (r *Reader) Glob(pattern string) ([]string, error) {
	var out []string
	for _, e := range r.entries {
		ok, err := doublestar.Match(pattern, e.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e.Name)
		}
	}
	return out, nil
}
