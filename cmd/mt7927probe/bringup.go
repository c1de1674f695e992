package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmt/mt7927"
	"github.com/openmt/mt7927/internal/proberec"
	"github.com/openmt/mt7927/remap"
)

var (
	flagStrategies []string
	flagTraceDB    string
	flagSettle     time.Duration
	flagPrelude    bool
)

var bringupCmd = &cobra.Command{
	Use:   "bringup",
	Short: "Run one sequencer pass over the command stream.",
	Long: `bringup decodes the tagged command stream in BAR0 and replays it
against BAR2 through the selected mapping strategies, one deterministic
pass with a liveness check after every write. The attempt stops at the
first write that activates the memory window, aborts the moment the
chip wedges, and otherwise runs the stream to exhaustion. All writes go
to a SQLite trace.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}
		defer d.Close()

		rv, err := buildResolver(d)
		if err != nil {
			return err
		}

		dbPath := flagTraceDB
		if dbPath == "" {
			dbPath = os.Getenv("MT7927_TRACE_DB")
		}
		if dbPath == "" {
			dbPath = "mt7927_trace"
		}
		rec, err := proberec.New(dbPath)
		if err != nil {
			return err
		}
		defer rec.Close()
		logger.Info("recording to", "path", rec.Path(), "attempt", rec.AttemptID())

		if flagPrelude {
			snap, err := d.Prelude(rv, mt7927.PreludeConfig{Logger: logger})
			if err != nil {
				return err
			}
			fmt.Printf("prelude finished: liveness %s, fw status 0x%08x\n", snap.Level, snap.FWStatus)
			if snap.Level == mt7927.LivenessActive {
				return nil
			}
		}

		start := time.Now()
		rep, runErr := d.BringUp(rv, mt7927.SequencerConfig{
			Settle: flagSettle,
			Logger: logger,
			Observer: func(w mt7927.WriteRecord) {
				err := rec.RecordWrite(proberec.WriteRow{
					Phase:        w.Phase,
					StreamOffset: int64(w.StreamOffset),
					Op:           int64(w.Op),
					Reg:          int64(w.Reg),
					Operand:      int64(w.Operand),
					Target:       int64(w.Target),
					Strategy:     w.Strategy,
					Confidence:   w.Confidence,
					OldValue:     int64(w.Old),
					NewValue:     int64(w.New),
				})
				if err != nil {
					logger.Warn("trace write dropped", "err", err)
				}
			},
		})
		if rep != nil {
			if err := rec.RecordAttempt(proberec.AttemptRow{
				FinalState:       rep.Final.String(),
				Phases:           rep.Phases,
				Writes:           rep.Writes,
				SkippedUnmapped:  rep.SkippedUnmapped,
				SkippedUnknownOp: rep.SkippedUnknownOp,
				Primary:          int64(rep.Liveness.Primary),
				Secondary:        int64(rep.Liveness.Secondary),
				FWStatus:         int64(rep.Liveness.FWStatus),
				DurationMS:       time.Since(start).Milliseconds(),
			}); err != nil {
				logger.Warn("attempt row dropped", "err", err)
			}
			printReport(rep)
		}
		return runErr
	},
}

func buildResolver(d *mt7927.Device) (*remap.Resolver, error) {
	var strategies []remap.Strategy
	for _, name := range flagStrategies {
		switch name {
		case "known":
			strategies = append(strategies, remap.NewKnownTable())
		case "arith":
			strategies = append(strategies, remap.NewArithmetic(d.Ctl(), d.Ctl().Size()))
		case "range":
			strategies = append(strategies, remap.NewRangeProbe(
				d.Ctl(),
				remap.DefaultRanges(),
				[]uint32{mt7927.RegScratch1, mt7927.RegScratch2},
				mt7927.DangerZones(),
			))
		default:
			return nil, fmt.Errorf("unknown strategy %q (known, arith, range)", name)
		}
	}
	return remap.NewResolver(mt7927.DangerZones(), strategies...), nil
}

func printReport(rep *mt7927.Report) {
	fmt.Printf("final state:   %s\n", rep.Final)
	fmt.Printf("phases:        %d\n", rep.Phases)
	fmt.Printf("commands:      %d\n", rep.Commands)
	fmt.Printf("writes:        %d\n", rep.Writes)
	fmt.Printf("skipped:       %d unmapped, %d unknown opcode\n",
		rep.SkippedUnmapped, rep.SkippedUnknownOp)
	fmt.Printf("last offset:   0x%06x\n", rep.LastOffset)
	fmt.Printf("primary:       0x%08x\n", rep.Liveness.Primary)
	fmt.Printf("fw status:     0x%08x\n", rep.Liveness.FWStatus)
}

func init() {
	bringupCmd.Flags().StringSliceVar(&flagStrategies, "strategies", []string{"known"},
		"Mapping strategies to consult, in order: known, arith, range.")
	bringupCmd.Flags().StringVar(&flagTraceDB, "trace-db", "", "SQLite trace path (default mt7927_trace.sqlite3).")
	bringupCmd.Flags().DurationVar(&flagSettle, "settle", 10*time.Millisecond, "Delay between a write and its liveness check.")
	bringupCmd.Flags().BoolVar(&flagPrelude, "prelude", false, "Run the scripted WPDMA/MCU wakeup before the stream pass.")
	rootCmd.AddCommand(bringupCmd)
}
