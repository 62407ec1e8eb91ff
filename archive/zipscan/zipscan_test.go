package zipscan

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/coldforge/streamcodec/archive/entry"
)

func le16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func le32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

// writeStoredEntry appends one local file header plus name/extra/payload,
// stored (method 0), no data descriptor.
func writeStoredEntry(b *bytes.Buffer, name string, extra []byte, payload []byte) {
	b.WriteString(localSig)
	b.Write(le16(20))          // version
	b.Write(le16(0))           // gp flag
	b.Write(le16(0))           // method: stored
	b.Write(le16(0))           // mod time
	b.Write(le16(0x21))        // mod date: bits give a valid (if arbitrary) date
	b.Write(le32(0))           // crc32
	b.Write(le32(uint32(len(payload)))) // compressed size
	b.Write(le32(uint32(len(payload)))) // uncompressed size
	b.Write(le16(uint16(len(name))))
	b.Write(le16(uint16(len(extra))))
	b.WriteString(name)
	b.Write(extra)
	b.Write(payload)
}

func jarMarkerExtra() []byte {
	var b bytes.Buffer
	b.Write(le16(JarMarkerTag))
	b.Write(le16(0))
	return b.Bytes()
}

func TestScanStoredEntriesWithJarMarker(t *testing.T) {
	var b bytes.Buffer
	writeStoredEntry(&b, "META-INF/MANIFEST.MF", jarMarkerExtra(), []byte("Manifest-Version: 1.0\n"))
	writeStoredEntry(&b, "App.class", nil, []byte("classfilebytes"))

	s := NewScanner(bytes.NewReader(b.Bytes()))

	e1, err := s.Next()
	if err != nil {
		t.Fatalf("Next #1: %v", err)
	}
	if e1.Name != "META-INF/MANIFEST.MF" {
		t.Errorf("name = %q", e1.Name)
	}
	payload1, err := io.ReadAll(passthroughReader{s})
	if err != nil {
		t.Fatalf("reading payload 1: %v", err)
	}
	if string(payload1) != "Manifest-Version: 1.0\n" {
		t.Errorf("payload 1 = %q", payload1)
	}
	if !s.SawJarMarker() {
		t.Errorf("expected JarMarker to be detected on the first entry")
	}

	e2, err := s.Next()
	if err != nil {
		t.Fatalf("Next #2: %v", err)
	}
	if e2.Name != "App.class" {
		t.Errorf("name = %q", e2.Name)
	}
	if _, ok := e2.FindExtra(JarMarkerTag); ok {
		t.Errorf("second entry should not carry a JarMarker extra")
	}

	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

// passthroughReader adapts Scanner.Read to io.Reader for io.ReadAll.
type passthroughReader struct{ s *Scanner }

func (p passthroughReader) Read(b []byte) (int, error) { return p.s.Read(b) }

// TestJarMarkerSurvivesRewrite reads a JAR, writes its entries back out
// with WriteStoredEntry, and reads the result again, checking that the
// first entry's JarMarker extra comes through byte-identical and the
// second entry still carries none.
func TestJarMarkerSurvivesRewrite(t *testing.T) {
	var orig bytes.Buffer
	writeStoredEntry(&orig, "META-INF/MANIFEST.MF", jarMarkerExtra(), []byte("Manifest-Version: 1.0\n"))
	writeStoredEntry(&orig, "App.class", nil, []byte("classfilebytes"))

	read := func(r io.Reader) []*entry.Entry {
		s := NewScanner(r)
		var out []*entry.Entry
		for {
			e, err := s.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			payload, err := io.ReadAll(passthroughReader{s})
			if err != nil {
				t.Fatalf("reading payload: %v", err)
			}
			e.Extras = append([]entry.Extra(nil), e.Extras...)
			out = append(out, e)
			_ = payload
		}
		return out
	}

	entries := read(bytes.NewReader(orig.Bytes()))
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	var rewritten bytes.Buffer
	if err := WriteStoredEntry(&rewritten, entries[0], []byte("Manifest-Version: 1.0\n")); err != nil {
		t.Fatalf("WriteStoredEntry 1: %v", err)
	}
	if err := WriteStoredEntry(&rewritten, entries[1], []byte("classfilebytes")); err != nil {
		t.Fatalf("WriteStoredEntry 2: %v", err)
	}

	again := read(bytes.NewReader(rewritten.Bytes()))
	if len(again) != 2 {
		t.Fatalf("got %d entries after rewrite, want 2", len(again))
	}
	marker, ok := again[0].FindExtra(JarMarkerTag)
	if !ok {
		t.Fatalf("JarMarker missing after rewrite")
	}
	if len(marker.Payload) != 0 {
		t.Errorf("JarMarker payload changed: %x", marker.Payload)
	}
	if _, ok := again[1].FindExtra(JarMarkerTag); ok {
		t.Errorf("second entry gained a JarMarker it never had")
	}
}

func TestChecksumMismatchIsRejected(t *testing.T) {
	payload := []byte("corrupted-in-transit")

	var b bytes.Buffer
	b.WriteString(localSig)
	b.Write(le16(20))
	b.Write(le16(0)) // gp flag
	b.Write(le16(0)) // method: stored
	b.Write(le16(0))
	b.Write(le16(0x21))
	b.Write(le32(crc32.ChecksumIEEE(payload) ^ 1)) // deliberately wrong crc32
	b.Write(le32(uint32(len(payload))))
	b.Write(le32(uint32(len(payload))))
	b.Write(le16(uint16(len("bad.bin"))))
	b.Write(le16(0))
	b.WriteString("bad.bin")
	b.Write(payload)

	s := NewScanner(bytes.NewReader(b.Bytes()))
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := io.ReadAll(passthroughReader{s}); err != nil {
		t.Fatalf("reading payload: %v", err)
	}
	if _, err := s.Next(); err == nil {
		t.Errorf("expected the mismatched checksum to surface on the following Next call")
	}
}

func TestScanWithoutReadingPayloadStillAdvances(t *testing.T) {
	var b bytes.Buffer
	writeStoredEntry(&b, "a.txt", nil, []byte("aaaa"))
	writeStoredEntry(&b, "b.txt", nil, []byte("bb"))

	s := NewScanner(bytes.NewReader(b.Bytes()))
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next #1: %v", err)
	}
	// Deliberately skip reading entry 1's payload.
	e2, err := s.Next()
	if err != nil {
		t.Fatalf("Next #2: %v", err)
	}
	if e2.Name != "b.txt" {
		t.Errorf("name = %q, want b.txt (closeEntry must discard unread payload)", e2.Name)
	}
	got, _ := io.ReadAll(passthroughReader{s})
	if string(got) != "bb" {
		t.Errorf("payload = %q", got)
	}
}

func TestDataDescriptorEntry(t *testing.T) {
	payload := []byte("streamed-without-known-length")

	var b bytes.Buffer
	b.WriteString(localSig)
	b.Write(le16(20))
	b.Write(le16(0x08)) // gp bit 3: sizes unknown, trailing data descriptor
	b.Write(le16(0))    // method: stored
	b.Write(le16(0))
	b.Write(le16(0x21))
	b.Write(le32(0)) // crc32 unknown in header
	b.Write(le32(0)) // compressed size unknown
	b.Write(le32(0)) // uncompressed size unknown
	b.Write(le16(uint16(len("streamed.bin"))))
	b.Write(le16(0))
	b.WriteString("streamed.bin")
	b.Write(payload)
	b.WriteString(dataDescriptorSig)
	b.Write(le32(crc32.ChecksumIEEE(payload))) // crc32
	b.Write(le32(uint32(len(payload))))        // compressed size
	b.Write(le32(uint32(len(payload))))        // uncompressed size

	// Second entry to prove the scan resumes correctly after the descriptor.
	writeStoredEntry(&b, "after.txt", nil, []byte("ok"))

	s := NewScanner(bytes.NewReader(b.Bytes()))
	e1, err := s.Next()
	if err != nil {
		t.Fatalf("Next #1: %v", err)
	}
	if e1.Name != "streamed.bin" {
		t.Errorf("name = %q", e1.Name)
	}
	got, err := io.ReadAll(passthroughReader{s})
	if err != nil {
		t.Fatalf("reading streamed payload: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}

	e2, err := s.Next()
	if err != nil {
		t.Fatalf("Next #2: %v", err)
	}
	if e2.Name != "after.txt" {
		t.Errorf("name = %q, want after.txt", e2.Name)
	}
}
