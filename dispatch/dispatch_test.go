package dispatch

import "testing"

func TestDetectKnownSignatures(t *testing.T) {
	r := NewDefaultRegistry()
	cases := []struct {
		name string
		buf  []byte
		want Format
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00}, Gzip},
		{"zip", []byte{0x50, 0x4b, 0x03, 0x04, 0x0a, 0x00, 0x00, 0x00, 0x00, 0x00}, Zip},
		{"compress-z", []byte{0x1f, 0x9d, 0x90, 0x00}, CompressZ},
		{"xz", []byte{0xfd, '7', 'z', 'X', 'Z', 0x00, 0x00}, Xz},
		{"ar", []byte("!<arch>\n" + "dummy"), Ar},
		{"7z", []byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}, SevenZip},
		{"pack200", []byte{0xca, 0xfe, 0xd0, 0x0d}, Pack200},
		{"lz4-frame", []byte{0x04, 0x22, 0x4d, 0x18}, Lz4Frame},
		{"deflate-default", []byte{0x78, 0x9c, 0x00, 0x00}, Deflate},
		{"deflate-fastest", []byte{0x78, 0x01, 0x00, 0x00}, Deflate},
		{"deflate-best", []byte{0x78, 0xda, 0x00, 0x00}, Deflate},
	}
	for _, c := range cases {
		got, ok := r.Detect(c.buf)
		if !ok || got != c.want {
			t.Errorf("%s: got %q,%v want %q", c.name, got, ok, c.want)
		}
	}
}

func TestDetectBzip2WithBlockMagic(t *testing.T) {
	r := NewDefaultRegistry()
	buf := append([]byte("BZh9"), []byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59}...)
	got, ok := r.Detect(buf)
	if !ok || got != Bzip2 {
		t.Fatalf("got %q,%v want bzip2", got, ok)
	}
}

func TestDetectTooShortBufferNoMatch(t *testing.T) {
	r := NewDefaultRegistry()
	if _, ok := r.Detect([]byte{0x1f}); ok {
		t.Fatalf("expected no match for a too-short buffer")
	}
}

func TestDetectUnknownIsNoMatch(t *testing.T) {
	r := NewDefaultRegistry()
	if _, ok := r.Detect([]byte("not a known archive format")); ok {
		t.Fatalf("expected no match for unrecognized bytes")
	}
}

func TestRegistrationOrderIndependentForNonOverlapping(t *testing.T) {
	a := NewRegistry()
	a.Register(Gzip, 3, func(b []byte) bool { return at(b, 0, "\x1f\x8b\x08") })
	a.Register(Zip, 4, func(b []byte) bool { return at(b, 0, "PK\x03\x04") })

	b := NewRegistry()
	b.Register(Zip, 4, func(b []byte) bool { return at(b, 0, "PK\x03\x04") })
	b.Register(Gzip, 3, func(b []byte) bool { return at(b, 0, "\x1f\x8b\x08") })

	buf := []byte{0x1f, 0x8b, 0x08, 0x00}
	gotA, _ := a.Detect(buf)
	gotB, _ := b.Detect(buf)
	if gotA != gotB || gotA != Gzip {
		t.Fatalf("non-overlapping signatures should resolve the same regardless of order: %q vs %q", gotA, gotB)
	}
}

func TestRefineZipToJar(t *testing.T) {
	if got := RefineZip(Zip, true); got != Jar {
		t.Fatalf("got %q, want jar", got)
	}
	if got := RefineZip(Zip, false); got != Zip {
		t.Fatalf("got %q, want zip", got)
	}
	if got := RefineZip(Gzip, true); got != Gzip {
		t.Fatalf("got %q, want gzip unchanged", got)
	}
}
