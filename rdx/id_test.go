package rdx

import "testing"

func TestIDOrdering(t *testing.T) {
	a := ID{1}
	b := ID{2}
	if !a.Less(b) {
		t.Fatal("expected a < b")
	}
	if b.Less(a) {
		t.Fatal("expected !(b < a)")
	}
	if a.Less(a) {
		t.Fatal("expected !(a < a)")
	}
}

func TestIDFromBytesRoundTrip(t *testing.T) {
	raw := make([]byte, IDSize)
	raw[0] = 0xab
	raw[IDSize-1] = 0xcd
	id := IDFromBytes(raw)
	if !bytesEqual(id.Bytes(), raw) {
		t.Fatal("round trip mismatch")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIDFromBytesPanicsOnBadLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on short id")
		}
	}()
	IDFromBytes(make([]byte, 3))
}
