package mt7927

import "testing"

func TestMMIORegionRoundTrip(t *testing.T) {
	r, err := NewMMIORegion("test", make([]byte, 64))
	if err != nil {
		t.Fatal(err)
	}
	if r.Size() != 64 {
		t.Fatal("size", r.Size())
	}
	r.Write32(0, 0xdeadbeef)
	r.Write32(60, 0x792714c3)
	if got := r.Read32(0); got != 0xdeadbeef {
		t.Errorf("word 0 = 0x%08x", got)
	}
	if got := r.Read32(60); got != 0x792714c3 {
		t.Errorf("word 60 = 0x%08x", got)
	}
	if got := r.Read32(4); got != 0 {
		t.Errorf("untouched word = 0x%08x", got)
	}
}

func TestNewMMIORegionBadSize(t *testing.T) {
	for _, n := range []int{0, 3, 63} {
		if _, err := NewMMIORegion("bad", make([]byte, n)); err == nil {
			t.Errorf("size %d accepted", n)
		}
	}
}

func TestMMIORegionPanics(t *testing.T) {
	r, _ := NewMMIORegion("test", make([]byte, 16))
	expectPanic(t, "misaligned read", func() { r.Read32(2) })
	expectPanic(t, "misaligned write", func() { r.Write32(5, 0) })
	expectPanic(t, "read past end", func() { r.Read32(16) })
	expectPanic(t, "write past end", func() { r.Write32(64, 0) })
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

func TestScratchRoundTrip(t *testing.T) {
	r := newMockRegion(Bar2Size)
	r.words[RegScratch1] = 0x13572468
	if err := ScratchRoundTrip(r, RegScratch1); err != nil {
		t.Fatal(err)
	}
	if got := r.words[RegScratch1]; got != 0x13572468 {
		t.Errorf("original value not restored, got 0x%08x", got)
	}
	if len(r.writes) != len(scratchPatterns)+1 {
		t.Errorf("write count %d", len(r.writes))
	}
}

// stuckRegion models a dead lane: reads always come back all ones.
type stuckRegion struct{ *mockRegion }

func (s stuckRegion) Read32(uint32) uint32 { return SentinelOnes }

func TestScratchRoundTripDetectsStuckLane(t *testing.T) {
	if err := ScratchRoundTrip(stuckRegion{newMockRegion(64)}, 0); err == nil {
		t.Fatal("stuck lane passed round trip")
	}
}

func TestAlignup(t *testing.T) {
	cases := [][3]uint32{{0, 4, 0}, {1, 4, 4}, {4, 4, 4}, {0xffd, 4, 0x1000}}
	for _, c := range cases {
		if got := alignup(c[0], c[1]); got != c[2] {
			t.Errorf("alignup(%#x,%d) = %#x, want %#x", c[0], c[1], got, c[2])
		}
	}
	if !isaligned(uint32(0x80), 4) || isaligned(uint32(0x81), 4) {
		t.Error("isaligned wrong")
	}
}
