//go:build !unix

package ar

import "github.com/coldforge/streamcodec/archive/entry"

// classifyRawMode has no S_IFMT bits to inspect without golang.org/x/sys/
// unix: every entry is treated as a plain file, which matches ar's most
// common real-world use packaging regular files into static-library
// archives.
func classifyRawMode(raw uint32) entry.Type {
	return entry.TypeFile
}
