package mt7927

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// regio.go contains the typed access layer over a mapped BAR. Everything
// that touches chip memory goes through Read32/Write32; there is no byte
// access and no caching.

// Region is a 4-byte addressable little-endian view of one mapped memory
// window. Offsets must be word aligned and inside the region; violating
// either is a caller bug and panics rather than returning an error.
type Region interface {
	Read32(off uint32) uint32
	Write32(off, val uint32)
	Size() uint32
}

// MMIORegion is a Region over an mmapped PCI resource. Accesses go
// through sync/atomic so each store completes before any dependent load
// crossing the PCIe link; plain loads and stores give the compiler
// license to reorder, which is not acceptable for MMIO.
type MMIORegion struct {
	name string
	mem  []byte
}

// NewMMIORegion wraps a mapped byte slice. The slice length must be a
// positive multiple of 4.
func NewMMIORegion(name string, mem []byte) (*MMIORegion, error) {
	if len(mem) == 0 || !isaligned(uint32(len(mem)), 4) {
		return nil, fmt.Errorf("%w: region %q has bad size %d", ErrMappingFailed, name, len(mem))
	}
	return &MMIORegion{name: name, mem: mem}, nil
}

func (r *MMIORegion) Size() uint32 { return uint32(len(r.mem)) }

func (r *MMIORegion) Read32(off uint32) uint32 {
	r.check(off)
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&r.mem[off])))
}

func (r *MMIORegion) Write32(off, val uint32) {
	r.check(off)
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&r.mem[off])), val)
}

func (r *MMIORegion) check(off uint32) {
	if !isaligned(off, 4) {
		panic("mt7927: misaligned access to region " + r.name)
	}
	if off >= uint32(len(r.mem)) {
		panic("mt7927: out of range access to region " + r.name)
	}
}

// scratchPatterns is the round-trip test set. Both sentinels are part of
// it on purpose: a healthy scratch register holds them like any value.
var scratchPatterns = [...]uint32{
	0x00000000,
	0xffffffff,
	0x5a5a5a5a,
	0xa5a5a5a5,
	0xdeadbeef,
}

// ScratchRoundTrip writes each test pattern to off, reads it back, and
// restores the original value. Point it only at the scratch registers;
// anywhere else the writes have unknown consequences.
func ScratchRoundTrip(r Region, off uint32) error {
	orig := r.Read32(off)
	for _, p := range scratchPatterns {
		r.Write32(off, p)
		if got := r.Read32(off); got != p {
			r.Write32(off, orig)
			return fmt.Errorf("scratch 0x%04x: wrote 0x%08x read 0x%08x", off, p, got)
		}
	}
	r.Write32(off, orig)
	return nil
}

// alignup rounds `val` up to nearest multiple of `align`. `align` must be a power of 2.
func alignup[T constraints.Unsigned](val, align T) T {
	return (val + align - 1) &^ (align - 1)
}

// isaligned checks if `val` is wholly divisible by `align`. `align` must be a power of 2.
func isaligned[T constraints.Unsigned](val, align T) bool {
	return val&(align-1) == 0
}
