// Package dispatch implements the format dispatcher (C6): given an initial
// buffer, identify a format by its signature bytes and length. Detection
// only names the format; the registry holds no decoder factories and
// constructs no decoder.
//
// Grounded on the signature-switch logic of the teacher's probe.go
// (see DESIGN.md), generalized from its FUSE-specific
// path/fskeleton mounting into a pure Registry of (minBytes, predicate,
// format) tuples with no hidden global state, per spec.md §9's
// "process-wide factories... explicit state owned by the library handle"
// design note.
package dispatch

import "log/slog"

// Format names a recognized stream format.
type Format string

const (
	Bzip2        Format = "bzip2"
	Gzip         Format = "gzip"
	Xz           Format = "xz"
	Lzma         Format = "lzma"
	CompressZ    Format = "compress-z"
	Zstd         Format = "zstd"
	Brotli       Format = "brotli"
	Deflate      Format = "deflate"
	Lz4Frame     Format = "lz4-frame"
	Lz4Block     Format = "lz4-block"
	SnappyFramed Format = "snappy-framed"
	Pack200      Format = "pack200"
	Ar           Format = "ar"
	Dump         Format = "dump"
	Zip          Format = "zip"
	Jar          Format = "jar"
	Tar          Format = "tar"
	Cpio         Format = "cpio"
	SevenZip     Format = "7z"
)

// Predicate reports whether buf (already known to have at least minBytes
// available) matches a format's signature.
type Predicate func(buf []byte) bool

type registration struct {
	format    Format
	minBytes  int
	predicate Predicate
}

// Registry is an ordered list of (minBytes, predicate, format)
// registrations. Order matters only among overlapping signatures; the
// first predicate matching with len(buf) >= minBytes wins. A Registry is
// explicit state owned by its caller — there is no package-level default
// instance — so tests and consumers can construct independent registries
// and append without reordering an ambient global.
type Registry struct {
	entries []registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a new recognizer. Appending never reorders earlier
// registrations, so callers may append application-specific formats after
// NewDefaultRegistry without disturbing its resolution order.
func (r *Registry) Register(format Format, minBytes int, predicate Predicate) {
	r.entries = append(r.entries, registration{format, minBytes, predicate})
}

// Detect returns the first registered format whose predicate matches buf,
// among registrations whose minBytes requirement buf satisfies.
func (r *Registry) Detect(buf []byte) (Format, bool) {
	for _, e := range r.entries {
		if len(buf) < e.minBytes {
			continue
		}
		if e.predicate(buf) {
			slog.Debug("dispatch: format detected", "format", e.format)
			return e.format, true
		}
	}
	slog.Debug("dispatch: no registered format matched", "bufLen", len(buf))
	return "", false
}

func at(buf []byte, offset int, sig string) bool {
	if offset < 0 || offset+len(sig) > len(buf) {
		return false
	}
	return string(buf[offset:offset+len(sig)]) == sig
}

// NewDefaultRegistry seeds a Registry with the byte-sniffable formats from
// spec.md §6's enumerated tag list. The zlib-wrapped form of DEFLATE
// carries its own 2-byte CMF/FLG magic (78 01 / 78 5E / 78 9C / 78 DA) and
// is registered below; raw headerless deflate and bare LZ4 block streams
// carry no magic number of their own — registering an always-false
// predicate for them would silently violate the first-match contract
// without adding real detection, so those two are left for a caller to
// select via an external hint (container format, file extension, explicit
// request) instead. JAR is deliberately not
// registered here: per spec.md §9's Open Question (ii), JAR detection is
// ZIP detection plus a post-hoc check of the first entry's extras, which
// requires parsing that entry's local header — see archive/zipscan and
// RefineZip.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Gzip, 3, func(b []byte) bool { return at(b, 0, "\x1f\x8b\x08") })

	r.Register(Bzip2, 10, func(b []byte) bool {
		return at(b, 0, "BZh") && b[3] >= '0' && b[3] <= '9' && at(b, 4, "\x31\x41\x59\x26\x53\x59")
	})

	r.Register(Xz, 6, func(b []byte) bool { return at(b, 0, "\xfd7zXZ\x00") })

	r.Register(Deflate, 2, func(b []byte) bool {
		return at(b, 0, "\x78\x01") || at(b, 0, "\x78\x5e") || at(b, 0, "\x78\x9c") || at(b, 0, "\x78\xda")
	})

	r.Register(Lzma, 13, func(b []byte) bool { return at(b, 0, "\x5d\x00\x00") })

	r.Register(CompressZ, 3, func(b []byte) bool { return at(b, 0, "\x1f\x9d") })

	r.Register(Zstd, 4, func(b []byte) bool { return at(b, 0, "\x28\xb5\x2f\xfd") })

	r.Register(Lz4Frame, 4, func(b []byte) bool { return at(b, 0, "\x04\x22\x4d\x18") })

	r.Register(SnappyFramed, 10, func(b []byte) bool { return at(b, 0, "\xff\x06\x00\x00sNaPpY") })

	r.Register(Pack200, 4, func(b []byte) bool { return at(b, 0, "\xca\xfe\xd0\x0d") })

	r.Register(SevenZip, 6, func(b []byte) bool { return at(b, 0, "7z\xbc\xaf\x27\x1c") })

	r.Register(Ar, 8, func(b []byte) bool { return at(b, 0, "!<arch>\n") })

	r.Register(Zip, 4, func(b []byte) bool { return at(b, 0, "PK\x03\x04") })

	r.Register(Cpio, 6, func(b []byte) bool {
		return at(b, 0, "070707") || at(b, 0, "070701") || at(b, 0, "070702")
	})

	r.Register(Tar, 262, func(b []byte) bool { return at(b, 257, "ustar") })

	return r
}

// RefineZip upgrades a plain Zip detection to Jar once the archive
// reader's own scan of the first entry's extras has found the JarMarker
// (id 0xCAFE, zero-length payload); otherwise it returns base unchanged.
// Kept here (rather than folded into Detect) because the check requires
// parsing entry headers, which the byte-signature layer never does.
func RefineZip(base Format, jarMarkerPresent bool) Format {
	if base == Zip && jarMarkerPresent {
		return Jar
	}
	return base
}
