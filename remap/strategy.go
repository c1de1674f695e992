package remap

// The three strategies below reproduce the mapping hypotheses the
// probing campaign cycled through, made explicit and side-by-side
// instead of rotating hidden state between module loads.

// KnownTable resolves only the registers whose BAR2 offsets were
// externally verified: the two scratch registers and the two mode
// registers. Confidence is always 100.
type KnownTable struct {
	entries map[uint8]Mapping
}

// NewKnownTable returns the verified table.
func NewKnownTable() *KnownTable {
	t := &KnownTable{entries: make(map[uint8]Mapping)}
	t.Add(0x20, 0x0020, "scratch register 1")
	t.Add(0x24, 0x0024, "scratch register 2")
	t.Add(0x70, 0x0070, "mode register 1")
	t.Add(0x74, 0x0074, "mode register 2")
	return t
}

// Add records a verified register mapping.
func (t *KnownTable) Add(reg uint8, off uint32, note string) {
	t.entries[reg] = Mapping{
		Reg: reg, Offset: off, Confidence: 100,
		Strategy: t.Name(), Note: note,
	}
}

func (t *KnownTable) Name() string { return "known-safe" }

func (t *KnownTable) Resolve(reg uint8) (Mapping, bool) {
	m, ok := t.entries[reg]
	return m, ok
}

// Arithmetic derives an offset from the register byte itself and
// accepts the hypothesis when the derived offset reads as something
// other than a sentinel. Three transforms are tried: identity, the x4
// word stride, and the firmware-status anchor used for high registers.
type Arithmetic struct {
	r     Reader32
	limit uint32
}

// NewArithmetic builds the strategy over the control region. limit caps
// derived offsets, normally the region size.
func NewArithmetic(r Reader32, limit uint32) *Arithmetic {
	return &Arithmetic{r: r, limit: limit}
}

func (a *Arithmetic) Name() string { return "arithmetic" }

func (a *Arithmetic) Resolve(reg uint8) (Mapping, bool) {
	candidates := []struct {
		off        uint32
		confidence int
		note       string
	}{
		{0x0200 + uint32(reg&0x7f)*4, 40, "firmware-status anchor"},
		{uint32(reg) * 4, 35, "x4 word stride"},
		{uint32(reg), 30, "identity"},
	}
	var best Mapping
	found := false
	for _, c := range candidates {
		if c.off%4 != 0 || c.off >= a.limit {
			continue
		}
		v := a.r.Read32(c.off)
		if v == 0x00000000 || v == 0xffffffff {
			continue
		}
		if !found || c.confidence > best.Confidence {
			best = Mapping{
				Reg: reg, Offset: c.off, Confidence: c.confidence,
				Strategy: a.Name(), Note: c.note,
			}
			found = true
		}
	}
	return best, found
}

// Range is one candidate window for the probing strategy.
type Range struct {
	Start, End, Step uint32
	Name             string
}

// DefaultRanges returns the BAR2 windows the probing campaign searched.
func DefaultRanges() []Range {
	return []Range{
		{0x0000, 0x0100, 4, "control"},
		{0x0400, 0x0600, 4, "extended control"},
		{0x0800, 0x0a00, 4, "dma control"},
		{0x2000, 0x2100, 4, "mcu"},
		{0x7000, 0x7100, 4, "wifi control"},
	}
}

// RangeProbe scores candidate offsets across configured ranges:
// proximity heuristics per register class plus a read/write round-trip
// bonus that is attempted only on the scratch offsets. It never writes
// anywhere else, and never proposes an offset currently reading
// all-ones.
type RangeProbe struct {
	rw      ReadWriter32
	ranges  []Range
	scratch map[uint32]struct{}
	skip    map[uint32]struct{}
}

// NewRangeProbe builds the strategy. scratch lists the offsets safe for
// round-trip testing; skip lists offsets the probe must not even score
// (the danger zones — the resolver rejects them anyway, but the probe
// avoids reading patterns into them at all).
func NewRangeProbe(rw ReadWriter32, ranges []Range, scratch, skip []uint32) *RangeProbe {
	p := &RangeProbe{
		rw:      rw,
		ranges:  ranges,
		scratch: make(map[uint32]struct{}, len(scratch)),
		skip:    make(map[uint32]struct{}, len(skip)),
	}
	for _, off := range scratch {
		p.scratch[off] = struct{}{}
	}
	for _, off := range skip {
		p.skip[off] = struct{}{}
	}
	return p
}

func (p *RangeProbe) Name() string { return "range-probe" }

func (p *RangeProbe) Resolve(reg uint8) (Mapping, bool) {
	var best Mapping
	found := false
	for _, rg := range p.ranges {
		for off := rg.Start; off <= rg.End; off += rg.Step {
			score := p.score(off, reg)
			if score <= 0 {
				continue
			}
			if !found || score > best.Confidence {
				best = Mapping{
					Reg: reg, Offset: off, Confidence: score,
					Strategy: p.Name(), Note: rg.Name,
				}
				found = true
			}
		}
	}
	return best, found
}

func (p *RangeProbe) score(off uint32, reg uint8) int {
	if _, danger := p.skip[off]; danger {
		return -1
	}
	original := p.rw.Read32(off)
	if original == 0xffffffff {
		return -1
	}
	score := 0
	// Firmware control registers show saturated byte lanes and cluster
	// near the firmware status word.
	if reg == 0x81 {
		if original&0xff000000 == 0xff000000 || original&0x0000ff00 == 0x0000ff00 {
			score += 30
		}
		if off >= 0x0200 && off <= 0x0300 {
			score += 20
		}
	}
	// Core control sits at the base of the register file.
	if reg == 0x00 && off < 0x0100 {
		score += 30
	}
	if _, ok := p.scratch[off]; ok {
		const pattern = 0x5a5a5a5a
		p.rw.Write32(off, pattern)
		if p.rw.Read32(off) == pattern {
			score += 50
		}
		p.rw.Write32(off, original)
	}
	return score
}
