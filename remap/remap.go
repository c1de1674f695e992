// Package remap resolves abstract configuration-register targets
// (0x00-0xFF, as carried in command-stream words) to concrete BAR2
// offsets. No mapping has been externally confirmed for most registers,
// so resolution is hypothesis-driven: several strategies propose
// candidates with a confidence score and the best positive candidate
// wins. Mappings are rebuilt for every bring-up attempt; hardware state
// is not assumed stable between attempts.
package remap

// Reader32 is read access to the control region.
type Reader32 interface {
	Read32(off uint32) uint32
}

// ReadWriter32 adds write access, needed only by the probing strategy
// and only on the scratch registers.
type ReadWriter32 interface {
	Reader32
	Write32(off, val uint32)
}

// Mapping associates a config register with a BAR2 offset. Confidence
// runs 0-100; 100 is reserved for externally verified entries.
type Mapping struct {
	Reg        uint8
	Offset     uint32
	Confidence int
	Strategy   string
	Note       string
}

// Strategy proposes a mapping for a register, or reports it cannot.
type Strategy interface {
	Name() string
	Resolve(reg uint8) (Mapping, bool)
}

// Resolver runs an explicit, caller-chosen strategy list over a
// register and enforces the danger-zone exclusion set. Strategy choice
// is a parameter, never process-wide state, so two resolvers with the
// same strategies always agree.
type Resolver struct {
	strategies []Strategy
	exclude    map[uint32]struct{}
}

// NewResolver builds a resolver. Offsets in exclusions are never
// returned as resolved, regardless of which strategy proposed them or
// at what confidence.
func NewResolver(exclusions []uint32, strategies ...Strategy) *Resolver {
	rv := &Resolver{
		strategies: strategies,
		exclude:    make(map[uint32]struct{}, len(exclusions)),
	}
	for _, off := range exclusions {
		rv.exclude[off] = struct{}{}
	}
	return rv
}

// Excluded reports whether off is in the danger zone. Callers that
// write resolved offsets must consult this before every write, not only
// at resolution time.
func (rv *Resolver) Excluded(off uint32) bool {
	_, ok := rv.exclude[off]
	return ok
}

// Resolve returns the highest-confidence mapping for reg. The first
// strategy in order wins ties. ok is false when no strategy yields a
// positive-confidence candidate, or when the winning candidate lands in
// the danger zone.
func (rv *Resolver) Resolve(reg uint8) (Mapping, bool) {
	var best Mapping
	found := false
	for _, st := range rv.strategies {
		m, ok := st.Resolve(reg)
		if !ok || m.Confidence <= 0 {
			continue
		}
		if !found || m.Confidence > best.Confidence {
			best = m
			found = true
		}
	}
	if !found || rv.Excluded(best.Offset) {
		return Mapping{}, false
	}
	return best, true
}
