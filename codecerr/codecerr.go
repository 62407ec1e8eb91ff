// Package codecerr defines the single error taxonomy shared by every codec
// and archive reader in this module. Decoders never panic for control flow
// and never use exceptions to signal end of stream; every fallible path
// returns one of these kinds, wrapped with the detail that produced it.
package codecerr

import (
	"errors"
	"fmt"
)

// Kind classifies a decode failure.
type Kind int

const (
	// Io means the underlying byte source itself failed or was closed early.
	Io Kind = iota
	// Signature means the dispatcher saw enough bytes to decide and no
	// registered predicate matched.
	Signature
	// Format means a header field was out of range for its format.
	Format
	// TruncatedStream means EOF arrived where the decoder required more
	// bits or bytes to finish a unit of work.
	TruncatedStream
	// MemoryLimit means a requested dictionary or window exceeded a
	// caller-configured cap.
	MemoryLimit
	// UnsupportedFeature means a flag combination is legal per format but
	// not implemented by this decoder.
	UnsupportedFeature
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Signature:
		return "signature"
	case Format:
		return "format"
	case TruncatedStream:
		return "truncated stream"
	case MemoryLimit:
		return "memory limit"
	case UnsupportedFeature:
		return "unsupported feature"
	default:
		return "unknown"
	}
}

// Error is the concrete error type raised by this module's codecs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional wrapped cause, e.g. an io error from the byte source
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the same Kind, so callers can write
// errors.Is(err, codecerr.ErrFormat) without caring about the message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// sentinel-style values so callers can do errors.Is(err, codecerr.ErrFormat)
// without constructing an *Error, mirroring the teacher's package-level
// Err* sentinels (zip.ErrFormat, sit.ErrAlgo, ...).
var (
	ErrIo                 = &Error{Kind: Io, Msg: "i/o error"}
	ErrSignature          = &Error{Kind: Signature, Msg: "unrecognized signature"}
	ErrFormat             = &Error{Kind: Format, Msg: "malformed stream"}
	ErrTruncatedStream    = &Error{Kind: TruncatedStream, Msg: "truncated stream"}
	ErrMemoryLimit        = &Error{Kind: MemoryLimit, Msg: "memory limit exceeded"}
	ErrUnsupportedFeature = &Error{Kind: UnsupportedFeature, Msg: "unsupported feature"}
)
