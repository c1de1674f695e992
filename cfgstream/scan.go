package cfgstream

// Reader32 is the read access Scan needs. Hardware regions and in-memory
// dumps both satisfy it.
type Reader32 interface {
	Read32(off uint32) uint32
}

// Entry is one emitted stream element with its region offset.
type Entry struct {
	Offset uint32
	Word   Word
}

// Scan classifies every aligned word in [start, start+length) and calls
// fn for each, in offset order, skipping padding. fn returning false
// stops the scan. Scanning is a pure read; restarting it is always
// valid. start and length must be multiples of 4.
func Scan(r Reader32, start, length uint32, fn func(Entry) bool) {
	if start%4 != 0 || length%4 != 0 {
		panic("cfgstream: misaligned scan window")
	}
	for off := start; off < start+length; off += 4 {
		w := Classify(r.Read32(off))
		if w.Kind == KindPadding {
			continue
		}
		if !fn(Entry{Offset: off, Word: w}) {
			return
		}
	}
}

// Stats aggregates a scan the way the discovery probes summarized the
// stream: totals per kind plus per-opcode and per-register histograms.
type Stats struct {
	Commands    int
	Delimiters  int
	AddressRefs int
	Opaque      int

	OpCount  [256]int
	RegCount [256]int
}

// CollectStats scans the window and tallies every emitted word.
func CollectStats(r Reader32, start, length uint32) Stats {
	var s Stats
	Scan(r, start, length, func(e Entry) bool {
		switch e.Word.Kind {
		case KindCommand:
			s.Commands++
			s.OpCount[e.Word.Op]++
			s.RegCount[e.Word.Reg]++
		case KindDelimiter:
			s.Delimiters++
		case KindAddressRef:
			s.AddressRefs++
		case KindOpaque:
			s.Opaque++
		}
		return true
	})
	return s
}
