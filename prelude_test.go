package mt7927

import (
	"errors"
	"testing"
	"time"

	"github.com/openmt/mt7927/remap"
)

func fastPrelude() PreludeConfig {
	return PreludeConfig{
		Settle:       time.Microsecond,
		PollInterval: time.Microsecond,
		PollAttempts: 1,
	}
}

func TestPreludeWritesScriptInOrder(t *testing.T) {
	mem, ctl := mockRegions()
	snap, err := RunPrelude(mem, ctl, knownOnlyResolver(), fastPrelude())
	if err != nil {
		t.Fatal(err)
	}
	want := []mockWrite{
		{RegWPDMARstIdx, 0x1},
		{RegWPDMARstIdx, 0x0},
		{RegDMAEnable, 0xff},
		{RegWPDMAGloCfg, 0x1},
		{RegFWStatus, 0x1},
		{RegMCUCmd, 0x1},
	}
	if len(ctl.writes) != len(want) {
		t.Fatalf("got %d writes, want %d", len(ctl.writes), len(want))
	}
	for i, w := range want {
		if ctl.writes[i] != w {
			t.Errorf("write %d = %+v, want %+v", i, ctl.writes[i], w)
		}
	}
	// The script alone never activates anything on this chip.
	if snap.Level == LivenessActive {
		t.Error("unexpected activation")
	}
}

func TestPreludeSkipsExcludedOffsets(t *testing.T) {
	mem, ctl := mockRegions()
	rv := remap.NewResolver([]uint32{RegMCUCmd}, remap.NewKnownTable())
	if _, err := RunPrelude(mem, ctl, rv, fastPrelude()); err != nil {
		t.Fatal(err)
	}
	for _, w := range ctl.writes {
		if w.off == RegMCUCmd {
			t.Fatal("wrote excluded offset")
		}
	}
}

func TestPreludeAbortsOnEntryWedge(t *testing.T) {
	mem, ctl := mockRegions()
	ctl.words[RegChipStatus] = SentinelOnes
	_, err := RunPrelude(mem, ctl, knownOnlyResolver(), fastPrelude())
	if !errors.Is(err, ErrChipWedged) {
		t.Fatal("want ErrChipWedged, got", err)
	}
	if len(ctl.writes) != 0 {
		t.Fatal("wrote to a wedged chip")
	}
}

func TestPreludeStopsAfterWedgingWrite(t *testing.T) {
	mem, ctl := mockRegions()
	ctl.onWrite = func(off, val uint32) {
		if len(ctl.writes) == 2 {
			ctl.words[RegChipStatus] = SentinelOnes
		}
	}
	_, err := RunPrelude(mem, ctl, knownOnlyResolver(), fastPrelude())
	if !errors.Is(err, ErrChipWedged) {
		t.Fatal("want ErrChipWedged, got", err)
	}
	if len(ctl.writes) != 2 {
		t.Fatal("kept writing after wedge, writes =", len(ctl.writes))
	}
}

func TestPreludeStopsOnActivation(t *testing.T) {
	mem, ctl := mockRegions()
	ctl.onWrite = func(off, val uint32) {
		if len(ctl.writes) == 3 {
			mem.words[PrimaryIndicatorOffset] = 0x1000beef
		}
	}
	snap, err := RunPrelude(mem, ctl, knownOnlyResolver(), fastPrelude())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Level != LivenessActive || len(ctl.writes) != 3 {
		t.Fatalf("level=%v writes=%d", snap.Level, len(ctl.writes))
	}
}
