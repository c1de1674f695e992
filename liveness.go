package mt7927

// Liveness is the level of bring-up progress the chip shows.
type Liveness uint8

const (
	// LivenessInactive: every indicator reads as a sentinel or the idle
	// firmware pattern. Probing may continue.
	LivenessInactive Liveness = iota
	// LivenessPartial: a secondary indicator moved but the main memory
	// window has not. Probing may continue.
	LivenessPartial
	// LivenessActive: the main memory window reads a non-sentinel value.
	// This is the only terminal success state.
	LivenessActive
)

func (l Liveness) String() string {
	switch l {
	case LivenessInactive:
		return "inactive"
	case LivenessPartial:
		return "partial"
	case LivenessActive:
		return "active"
	}
	return "invalid"
}

// LivenessSnapshot is one read-only observation of the indicators. The
// raw words are always retained so a failed attempt still reports what
// the chip looked like at the end.
type LivenessSnapshot struct {
	Primary    uint32 // BAR0 main memory word
	Secondary  uint32 // BAR0 DMA window word
	FWStatus   uint32 // BAR2 firmware status
	ChipStatus uint32 // BAR2 chip status
	Level      Liveness
	Wedged     bool
}

// CheckLiveness reads the progress indicators and classifies them. It
// performs only reads, so it may be called arbitrarily often without
// altering outcomes.
func CheckLiveness(mem, ctl Region) LivenessSnapshot {
	s := LivenessSnapshot{
		Primary:    mem.Read32(PrimaryIndicatorOffset),
		Secondary:  mem.Read32(DMAWindowOffset),
		FWStatus:   ctl.Read32(RegFWStatus),
		ChipStatus: ctl.Read32(RegChipStatus),
	}
	s.Wedged = s.ChipStatus == SentinelOnes
	switch {
	case !IsSentinel(s.Primary):
		s.Level = LivenessActive
	case !IsSentinel(s.Secondary),
		s.FWStatus != FWStatusIdle && !IsSentinel(s.FWStatus):
		s.Level = LivenessPartial
	default:
		s.Level = LivenessInactive
	}
	return s
}
