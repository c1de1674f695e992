package mt7927

import (
	"log/slog"
	"time"

	"github.com/openmt/mt7927/cfgstream"
	"github.com/openmt/mt7927/remap"
)

// State of a bring-up attempt.
type State uint8

const (
	StateIdle State = iota
	StateAttached
	StateProbed
	StateActive    // terminal: the main memory window came up
	StateAborted   // terminal: chip wedged, bus rescan required
	StateExhausted // terminal: stream ended without activation
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttached:
		return "attached"
	case StateProbed:
		return "probed"
	case StateActive:
		return "active"
	case StateAborted:
		return "aborted"
	case StateExhausted:
		return "exhausted"
	}
	return "invalid"
}

// WriteRecord describes one applied command, for observers that persist
// probe history.
type WriteRecord struct {
	Phase        int
	StreamOffset uint32
	Op           uint8
	Reg          uint8
	Operand      uint8
	Target       uint32
	Strategy     string
	Confidence   int
	Old          uint32
	New          uint32
}

// SequencerConfig tunes one bring-up attempt.
type SequencerConfig struct {
	// StreamStart/StreamLength select the command stream window in the
	// memory region. Zero values select the known stream location with a
	// 4 KiB window.
	StreamStart  uint32
	StreamLength uint32
	// Settle is the delay between a write and the next liveness check,
	// modeling hardware settling time. Zero means 10ms.
	Settle   time.Duration
	Logger   *slog.Logger
	Observer func(WriteRecord)
}

// Sequencer executes the decoded command stream against the control
// region in phases, re-checking liveness after every single write. The
// per-write check is deliberate: register semantics are uncertain, so
// the attempt must pinpoint exactly which write activates the chip, and
// must notice a wedge before issuing further corrupting writes.
//
// One pass, no retry. Repeated blind writes to an already-confused chip
// are the main cause of wedging it.
type Sequencer struct {
	mem    Region
	ctl    Region
	rv     *remap.Resolver
	cfg    SequencerConfig
	logger *slog.Logger
	sleep  func(time.Duration)

	state  State
	phase  int
	report Report
}

// Report is the outcome of one attempt. The final liveness snapshot is
// always populated, success or not, so a human can decide whether to
// retry with different strategies.
type Report struct {
	Final            State
	Phases           int
	Commands         int
	Writes           int
	SkippedUnmapped  int
	SkippedUnknownOp int
	// LastOffset is the stream offset of the last command examined.
	LastOffset uint32
	Liveness   LivenessSnapshot
}

// NewSequencer builds a sequencer over the two mapped regions. mem is
// the bulk memory window holding the command stream, ctl the control
// register window written by resolved commands.
func NewSequencer(mem, ctl Region, rv *remap.Resolver, cfg SequencerConfig) *Sequencer {
	if cfg.StreamLength == 0 {
		cfg.StreamStart = ConfigStreamOffset
		cfg.StreamLength = 0x1000
	}
	cfg.StreamLength = alignup(cfg.StreamLength, 4)
	if cfg.Settle == 0 {
		cfg.Settle = 10 * time.Millisecond
	}
	return &Sequencer{
		mem:    mem,
		ctl:    ctl,
		rv:     rv,
		cfg:    cfg,
		logger: cfg.Logger,
		sleep:  time.Sleep,
		state:  StateIdle,
	}
}

// State returns the current attempt state.
func (s *Sequencer) State() State { return s.state }

// Run executes one deterministic pass over the command stream. It
// returns ErrChipWedged when the chip enters the terminal error state;
// the report is valid either way.
func (s *Sequencer) Run() (*Report, error) {
	snap := CheckLiveness(s.mem, s.ctl)
	if snap.Wedged {
		// Already wedged on entry; the chip must not be touched.
		s.finish(StateAborted, snap)
		return &s.report, ErrChipWedged
	}
	s.state = StateAttached
	s.info("attach",
		slog.String("chip_status", hex32(snap.ChipStatus)),
		slog.String("fw_status", hex32(snap.FWStatus)),
	)

	s.state = StateProbed
	s.phase = 0
	cfgstream.Scan(s.mem, s.cfg.StreamStart, s.cfg.StreamLength, func(e cfgstream.Entry) bool {
		switch e.Word.Kind {
		case cfgstream.KindDelimiter:
			s.phase++
			s.debug("phase boundary", slog.Int("phase", s.phase))
		case cfgstream.KindCommand:
			s.report.Commands++
			s.report.LastOffset = e.Offset
			s.step(e)
		case cfgstream.KindAddressRef:
			s.trace("addrref",
				slog.String("offset", hex32(e.Offset)),
				slog.String("target", hex32(e.Word.Target)),
			)
		}
		return s.state == StateProbed
	})

	if s.state == StateProbed {
		s.finish(StateExhausted, CheckLiveness(s.mem, s.ctl))
		return &s.report, nil
	}
	s.report.Final = s.state
	s.report.Phases = s.phase
	if s.state == StateAborted {
		return &s.report, ErrChipWedged
	}
	return &s.report, nil
}

// step applies one command: resolve, read-modify-write, settle, check.
// Unresolved registers and unknown opcodes are local events; the phase
// loop continues.
func (s *Sequencer) step(e cfgstream.Entry) {
	cmd := e.Word
	m, ok := s.rv.Resolve(cmd.Reg)
	if !ok {
		s.report.SkippedUnmapped++
		s.debug("skip unmapped register",
			slog.Int("phase", s.phase),
			slog.String("reg", hex32(uint32(cmd.Reg))),
		)
		return
	}
	// The exclusion check also runs here, immediately before the write.
	// Resolution already rejects danger offsets, but no write path may
	// depend on that alone.
	if s.rv.Excluded(m.Offset) {
		s.report.SkippedUnmapped++
		s.warn("skip danger zone", slog.String("offset", hex32(m.Offset)))
		return
	}
	old := s.ctl.Read32(m.Offset)
	next, ok := cfgstream.Apply(cmd.Op, old, cmd.Val)
	if !ok {
		s.report.SkippedUnknownOp++
		s.debug("skip unknown opcode", slog.String("op", hex32(uint32(cmd.Op))))
		return
	}
	s.ctl.Write32(m.Offset, next)
	s.report.Writes++
	s.debug("write",
		slog.Int("phase", s.phase),
		slog.String("op", cfgstream.OpName(cmd.Op)),
		slog.String("target", hex32(m.Offset)),
		slog.String("old", hex32(old)),
		slog.String("new", hex32(next)),
		slog.String("strategy", m.Strategy),
	)
	if s.cfg.Observer != nil {
		s.cfg.Observer(WriteRecord{
			Phase:        s.phase,
			StreamOffset: e.Offset,
			Op:           cmd.Op,
			Reg:          cmd.Reg,
			Operand:      cmd.Val,
			Target:       m.Offset,
			Strategy:     m.Strategy,
			Confidence:   m.Confidence,
			Old:          old,
			New:          next,
		})
	}
	s.sleep(s.cfg.Settle)

	snap := CheckLiveness(s.mem, s.ctl)
	switch {
	case snap.Wedged:
		s.warn("chip wedged", slog.String("offset", hex32(e.Offset)))
		s.finish(StateAborted, snap)
	case snap.Level == LivenessActive:
		s.info("memory activated",
			slog.String("offset", hex32(e.Offset)),
			slog.String("primary", hex32(snap.Primary)),
		)
		s.finish(StateActive, snap)
	}
}

func (s *Sequencer) finish(final State, snap LivenessSnapshot) {
	s.state = final
	s.report.Final = final
	s.report.Phases = s.phase
	s.report.Liveness = snap
	s.info("attempt finished",
		slog.String("state", final.String()),
		slog.Int("writes", s.report.Writes),
		slog.String("primary", hex32(snap.Primary)),
		slog.String("secondary", hex32(snap.Secondary)),
		slog.String("fw_status", hex32(snap.FWStatus)),
	)
}
