package mt7927

import (
	"log/slog"
	"time"

	"github.com/openmt/mt7927/remap"
)

// prelude.go carries the scripted MT7925-style wakeup sequence: a fixed
// WPDMA reset/enable dance followed by an MCU kick and a bounded poll of
// the firmware status word. It predates the command-stream approach and
// has never produced activation, but it remains the only scripted
// hypothesis for how the chip expects to be woken, so it stays available
// as an explicit, opt-in step.

// PreludeConfig tunes the scripted sequence.
type PreludeConfig struct {
	// Settle is the pause after each write. Zero means 10ms.
	Settle time.Duration
	// PollInterval/PollAttempts bound the firmware-status wait loop.
	// Zeroes mean 100ms x 10.
	PollInterval time.Duration
	PollAttempts int
	Logger       *slog.Logger
}

// RunPrelude executes the scripted sequence against the control region.
// Every target offset is checked against the resolver's exclusion set
// before the write, and the chip status is re-read after each write; a
// wedge aborts immediately with ErrChipWedged. The returned snapshot is
// the last observation taken.
func RunPrelude(mem, ctl Region, rv *remap.Resolver, cfg PreludeConfig) (LivenessSnapshot, error) {
	if cfg.Settle == 0 {
		cfg.Settle = 10 * time.Millisecond
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.PollAttempts == 0 {
		cfg.PollAttempts = 10
	}

	steps := []struct {
		off  uint32
		val  uint32
		what string
	}{
		{RegWPDMARstIdx, 0x1, "wpdma reset assert"},
		{RegWPDMARstIdx, 0x0, "wpdma reset release"},
		{RegDMAEnable, 0xff, "enable all dma channels"},
		{RegWPDMAGloCfg, 0x1, "wpdma global enable"},
		{RegFWStatus, 0x1, "firmware status kick"},
		{RegMCUCmd, 0x1, "mcu start"},
	}

	snap := CheckLiveness(mem, ctl)
	if snap.Wedged {
		return snap, ErrChipWedged
	}
	for _, st := range steps {
		if rv != nil && rv.Excluded(st.off) {
			logattrs(cfg.Logger, slog.LevelWarn, "prelude skip danger zone",
				slog.String("offset", hex32(st.off)))
			continue
		}
		logattrs(cfg.Logger, slog.LevelDebug, "prelude write",
			slog.String("step", st.what),
			slog.String("offset", hex32(st.off)),
			slog.String("value", hex32(st.val)),
		)
		ctl.Write32(st.off, st.val)
		time.Sleep(cfg.Settle)
		snap = CheckLiveness(mem, ctl)
		if snap.Wedged {
			return snap, ErrChipWedged
		}
		if snap.Level == LivenessActive {
			return snap, nil
		}
	}

	// The MCU answers in hundreds of milliseconds when it answers at all.
	for i := 0; i < cfg.PollAttempts; i++ {
		time.Sleep(cfg.PollInterval)
		snap = CheckLiveness(mem, ctl)
		logattrs(cfg.Logger, slog.LevelDebug, "prelude poll",
			slog.Int("attempt", i+1),
			slog.String("fw_status", hex32(snap.FWStatus)),
		)
		if snap.Wedged {
			return snap, ErrChipWedged
		}
		if snap.Level != LivenessInactive {
			break
		}
	}
	return snap, nil
}
