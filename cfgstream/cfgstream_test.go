package cfgstream

import "testing"

func TestClassifyCommand(t *testing.T) {
	w := Classify(0x16849502)
	if w.Kind != KindCommand {
		t.Fatal("want command, got", w.Kind)
	}
	if w.Op != 0x84 {
		t.Error("bad op", w.Op)
	}
	if w.Reg != 0x95 {
		t.Error("bad reg", w.Reg)
	}
	if w.Val != 0x02 {
		t.Error("bad val", w.Val)
	}
}

func TestClassifyDelimiter(t *testing.T) {
	w := Classify(0x31000100)
	if w.Kind != KindDelimiter {
		t.Error("want delimiter, got", w.Kind)
	}
}

func TestClassifyAddressRef(t *testing.T) {
	for _, raw := range []uint32{0x80123456, 0x82abcdef, 0x89000004} {
		w := Classify(raw)
		if w.Kind != KindAddressRef {
			t.Fatal("want addrref for", raw, "got", w.Kind)
		}
		if w.Target != raw&0x00ffffff {
			t.Error("bad target", w.Target)
		}
	}
}

func TestClassifySentinelsArePadding(t *testing.T) {
	if Classify(0x00000000).Kind != KindPadding {
		t.Error("all-zero must be padding")
	}
	if Classify(0xffffffff).Kind != KindPadding {
		t.Error("all-ones must be padding")
	}
}

func TestClassifyOpaque(t *testing.T) {
	// Looks close to a command but the top byte is wrong.
	if Classify(0x17000100).Kind != KindOpaque {
		t.Error("want opaque")
	}
}

// Classification must be total and deterministic over representative
// words of every kind.
func TestClassifyDeterministic(t *testing.T) {
	words := []uint32{0, 0xffffffff, 0x16006004, 0x31000100, 0x80000010, 0x12345678}
	for _, raw := range words {
		a, b := Classify(raw), Classify(raw)
		if a != b {
			t.Fatal("unstable classification of", raw)
		}
	}
}

func TestApplyTable(t *testing.T) {
	cases := []struct {
		op      uint8
		cur     uint32
		operand uint8
		want    uint32
	}{
		{OpReplace, 0xffffffff, 0x12, 0x12},
		{OpOr, 0x0f0, 0x0f, 0x0ff},
		{OpAnd, 0x0ff, 0xf0, 0x0f0},
		{OpXor, 0x0ff, 0xff, 0x000},
		{OpSetBit, 0, 31, 1 << 31},
		{OpSetBit, 0, 0x25, 1 << 5}, // operand masked to 0x1F
		{OpClearBit, 1 << 31, 31, 0},
	}
	for _, c := range cases {
		got, ok := Apply(c.op, c.cur, c.operand)
		if !ok {
			t.Fatalf("op 0x%02x not recognized", c.op)
		}
		if got != c.want {
			t.Errorf("op 0x%02x: got 0x%08x want 0x%08x", c.op, got, c.want)
		}
	}
	if _, ok := Apply(0x7f, 0, 0); ok {
		t.Error("opcode 0x7f must be unrecognized")
	}
}

type sliceReader []uint32

func (s sliceReader) Read32(off uint32) uint32 { return s[off/4] }

func TestScanSkipsPaddingAndKeepsOrder(t *testing.T) {
	r := sliceReader{
		0x16006004, // command
		0x00000000, // padding, skipped
		0x31000100, // delimiter
		0xffffffff, // padding, skipped
		0x16010102, // command
		0x80001000, // address ref
	}
	var got []Entry
	Scan(r, 0, uint32(len(r)*4), func(e Entry) bool {
		got = append(got, e)
		return true
	})
	if len(got) != 4 {
		t.Fatal("want 4 entries, got", len(got))
	}
	wantKinds := []Kind{KindCommand, KindDelimiter, KindCommand, KindAddressRef}
	wantOffs := []uint32{0, 8, 16, 20}
	for i := range got {
		if got[i].Word.Kind != wantKinds[i] || got[i].Offset != wantOffs[i] {
			t.Errorf("entry %d: kind %v off %d", i, got[i].Word.Kind, got[i].Offset)
		}
	}
}

func TestScanEarlyStop(t *testing.T) {
	r := sliceReader{0x16006004, 0x16010102, 0x16020203}
	n := 0
	Scan(r, 0, 12, func(Entry) bool {
		n++
		return n < 2
	})
	if n != 2 {
		t.Error("scan did not stop early, saw", n)
	}
}

func TestCollectStats(t *testing.T) {
	r := sliceReader{
		0x16006004,
		0x31000100,
		0x16008101, // replace on reg 0x81
		0x16018102, // or on reg 0x81
		0x82000020,
		0xdeadbeef,
		0x00000000,
	}
	s := CollectStats(r, 0, uint32(len(r)*4))
	if s.Commands != 3 || s.Delimiters != 1 || s.AddressRefs != 1 || s.Opaque != 1 {
		t.Errorf("bad totals: %+v", s)
	}
	if s.RegCount[0x81] != 2 {
		t.Error("reg histogram wrong", s.RegCount[0x81])
	}
	if s.OpCount[OpReplace] != 2 || s.OpCount[OpOr] != 1 {
		t.Error("op histogram wrong")
	}
}
