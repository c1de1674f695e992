// Package cfgstream decodes the MT7927's proprietary configuration
// command stream: the sequence of tagged 32-bit little-endian words
// found at BAR0+0x080000 that encodes the chip's initialization program.
package cfgstream

// Wire constants, bit-exact as observed on hardware.
const (
	// CommandPrefix tags a command word in byte 3.
	CommandPrefix = 0x16
	// DelimiterWord separates initialization phases.
	DelimiterWord = 0x31000100
)

// addressTags are the byte-3 values marking a word as a 24-bit BAR0
// address reference.
var addressTags = [...]uint8{0x80, 0x82, 0x89}

// Kind classifies one word of the stream.
type Kind uint8

const (
	// KindOpaque is data we cannot classify. It is expected, not an
	// error; most of the stream's origin is undocumented.
	KindOpaque Kind = iota
	// KindPadding covers the all-zero and all-ones sentinels. Padding is
	// never significant data and Scan does not emit it.
	KindPadding
	// KindCommand is a prefix-tagged operation on a config register.
	KindCommand
	// KindDelimiter marks a phase boundary.
	KindDelimiter
	// KindAddressRef points into BAR0 via its low 24 bits.
	KindAddressRef
)

func (k Kind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindPadding:
		return "padding"
	case KindCommand:
		return "command"
	case KindDelimiter:
		return "delimiter"
	case KindAddressRef:
		return "addrref"
	}
	return "invalid"
}

// Word is one classified stream word. Op, Reg and Val are meaningful
// only for KindCommand; Target only for KindAddressRef.
type Word struct {
	Raw    uint32
	Kind   Kind
	Op     uint8
	Reg    uint8
	Val    uint8
	Target uint32
}

// Classify decodes a single raw word. It is total and deterministic:
// every possible word maps to exactly one Kind, in this priority order:
// command prefix, exact delimiter, address tag, sentinel padding,
// opaque. Misclassifying a delimiter as a command would corrupt phase
// tracking, so the prefix test comes first and is exact on byte 3.
func Classify(raw uint32) Word {
	w := Word{Raw: raw}
	top := uint8(raw >> 24)
	switch {
	case top == CommandPrefix:
		w.Kind = KindCommand
		w.Op = uint8(raw >> 16)
		w.Reg = uint8(raw >> 8)
		w.Val = uint8(raw)
	case raw == DelimiterWord:
		w.Kind = KindDelimiter
	case isAddressTag(top):
		w.Kind = KindAddressRef
		w.Target = raw & 0x00ffffff
	case raw == 0x00000000 || raw == 0xffffffff:
		w.Kind = KindPadding
	default:
		w.Kind = KindOpaque
	}
	return w
}

func isAddressTag(top uint8) bool {
	for _, t := range addressTags {
		if top == t {
			return true
		}
	}
	return false
}

// Operation codes carried in command words. Semantics reconstructed
// from executing the stream against scratch registers.
const (
	OpReplace  = 0x00 // replace register with operand
	OpOr       = 0x01 // bitwise OR operand
	OpAnd      = 0x10 // bitwise AND operand
	OpXor      = 0x11 // bitwise XOR operand
	OpSetBit   = 0x20 // set bit operand&0x1F
	OpClearBit = 0x21 // clear bit operand&0x1F
)

// Apply computes the read-modify-write result of op over the register's
// current value. ok is false for opcodes outside the known table; the
// caller must skip the write in that case.
func Apply(op uint8, cur uint32, operand uint8) (next uint32, ok bool) {
	switch op {
	case OpReplace:
		return uint32(operand), true
	case OpOr:
		return cur | uint32(operand), true
	case OpAnd:
		return cur & uint32(operand), true
	case OpXor:
		return cur ^ uint32(operand), true
	case OpSetBit:
		return cur | 1<<(operand&0x1f), true
	case OpClearBit:
		return cur &^ (1 << (operand & 0x1f)), true
	}
	return cur, false
}

// OpName names an opcode for logs and analysis output.
func OpName(op uint8) string {
	switch op {
	case OpReplace:
		return "replace"
	case OpOr:
		return "or"
	case OpAnd:
		return "and"
	case OpXor:
		return "xor"
	case OpSetBit:
		return "setbit"
	case OpClearBit:
		return "clearbit"
	}
	return "unknown"
}
