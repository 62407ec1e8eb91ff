package window

import "testing"

func TestPutAndGet(t *testing.T) {
	w := New(16)
	w.PutSlice([]byte("abcdef"))
	if w.Get(1) != 'f' {
		t.Fatalf("Get(1) = %q, want 'f'", w.Get(1))
	}
	if w.Get(6) != 'a' {
		t.Fatalf("Get(6) = %q, want 'a'", w.Get(6))
	}
}

func TestCopyOverlapProducesRLE(t *testing.T) {
	w := New(16)
	w.PutSlice([]byte("ab"))
	dst := make([]byte, 5)
	// distance 1 (repeat the last byte 'b'), length 5: classic RLE run.
	if err := w.Copy(1, 5, dst); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if string(dst) != "bbbbb" {
		t.Fatalf("got %q want %q", dst, "bbbbb")
	}
}

func TestCopyNonOverlapping(t *testing.T) {
	w := New(16)
	w.PutSlice([]byte("abcd"))
	dst := make([]byte, 4)
	if err := w.Copy(4, 4, dst); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if string(dst) != "abcd" {
		t.Fatalf("got %q want %q", dst, "abcd")
	}
}

func TestCopyDistanceBeyondHistoryIsError(t *testing.T) {
	w := New(16)
	w.PutSlice([]byte("ab"))
	if err := w.Copy(5, 1, nil); err == nil {
		t.Fatalf("expected error for distance beyond history")
	}
}

func TestWrapAround(t *testing.T) {
	w := New(4)
	w.PutSlice([]byte("abcdefgh")) // wraps: buffer now holds "efgh"
	if w.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", w.Len())
	}
	if w.Get(1) != 'h' || w.Get(4) != 'e' {
		t.Fatalf("unexpected contents after wrap: Get(1)=%q Get(4)=%q", w.Get(1), w.Get(4))
	}
}
