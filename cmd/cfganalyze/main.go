// Command cfganalyze decodes MT7927 memory dumps offline. Feed it a
// binary file produced by `mt7927probe dump` and it classifies every
// word of the tagged command stream, prints the phase structure and
// summarizes which registers and opcodes the stream touches. It never
// needs the hardware.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/openmt/mt7927/cfgstream"
)

type DumpCtl struct {
	Order       binary.ByteOrder
	BaseOffset  uint32
	OmitOpaque  bool
	OmitPadding bool
	SummaryOnly bool
	PhaseFilter int // -1 means all phases
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "cfganalyze - Decode MT7927 command-stream dumps.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	input := flag.String("f", "dump.bin", "Input filename: raw dump of the stream window.")
	output := flag.String("o", "", "Output filename. Empty writes to stdout.")
	base := flag.Uint("base", 0x080000, "BAR0 offset the dump starts at, for printed addresses.")
	order := flag.String("order", "le", "Word byte order in the dump. Accepts 'be' or 'le'.")
	omitOpaque := flag.Bool("omit-opaque", false, "Omit unclassified words from the listing.")
	omitPadding := flag.Bool("omit-padding", false, "Omit sentinel padding words from the listing.")
	summary := flag.Bool("summary", false, "Print only the stream summary.")
	phase := flag.Int("phase", -1, "Print only words of the given phase.")
	flag.Parse()

	getOrder := func(s string) binary.ByteOrder {
		switch s {
		case "be":
			return binary.BigEndian
		case "le":
			return binary.LittleEndian
		}
		log.Fatal("invalid ordering ", s)
		return nil
	}
	ctl := DumpCtl{
		Order:       getOrder(*order),
		BaseOffset:  uint32(*base),
		OmitOpaque:  *omitOpaque,
		OmitPadding: *omitPadding,
		SummaryOnly: *summary,
		PhaseFilter: *phase,
	}
	start := time.Now()
	if err := ctl.run(*input, *output); err != nil {
		log.Fatal(err.Error())
	}
	log.Println("finished in", time.Since(start))
}

func (ctl *DumpCtl) run(input, output string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return fmt.Errorf("dump size %d is not a positive multiple of 4", len(data))
	}

	var out io.Writer = os.Stdout
	if output != "" {
		fp, err := os.Create(output)
		if err != nil {
			return err
		}
		defer fp.Close()
		bw := bufio.NewWriter(fp)
		defer bw.Flush()
		out = bw
	}
	return ctl.analyze(data, out)
}

func (ctl *DumpCtl) analyze(data []byte, out io.Writer) error {
	var stats cfgstream.Stats
	phase := 0
	for i := 0; i+4 <= len(data); i += 4 {
		w := cfgstream.Classify(ctl.Order.Uint32(data[i:]))
		off := ctl.BaseOffset + uint32(i)
		switch w.Kind {
		case cfgstream.KindCommand:
			stats.Commands++
			stats.OpCount[w.Op]++
			stats.RegCount[w.Reg]++
		case cfgstream.KindDelimiter:
			stats.Delimiters++
		case cfgstream.KindAddressRef:
			stats.AddressRefs++
		case cfgstream.KindOpaque:
			stats.Opaque++
		}
		if !ctl.SummaryOnly && ctl.admit(w.Kind, phase) {
			if err := printWord(out, off, phase, w); err != nil {
				return err
			}
		}
		if w.Kind == cfgstream.KindDelimiter {
			phase++
		}
	}
	return printSummary(out, stats, phase)
}

func (ctl *DumpCtl) admit(k cfgstream.Kind, phase int) bool {
	if ctl.PhaseFilter >= 0 && phase != ctl.PhaseFilter {
		return false
	}
	switch k {
	case cfgstream.KindOpaque:
		return !ctl.OmitOpaque
	case cfgstream.KindPadding:
		return !ctl.OmitPadding
	}
	return true
}

func printWord(out io.Writer, off uint32, phase int, w cfgstream.Word) error {
	var err error
	switch w.Kind {
	case cfgstream.KindCommand:
		_, err = fmt.Fprintf(out, "%06x p%d %08x  %-9s reg=0x%02x operand=0x%02x\n",
			off, phase, w.Raw, cfgstream.OpName(w.Op), w.Reg, w.Val)
	case cfgstream.KindDelimiter:
		_, err = fmt.Fprintf(out, "%06x p%d %08x  ======== end of phase %d ========\n",
			off, phase, w.Raw, phase)
	case cfgstream.KindAddressRef:
		_, err = fmt.Fprintf(out, "%06x p%d %08x  addrref tag=0x%02x -> bar0+0x%06x\n",
			off, phase, w.Raw, w.Raw>>24, w.Target)
	case cfgstream.KindPadding:
		_, err = fmt.Fprintf(out, "%06x p%d %08x  padding\n", off, phase, w.Raw)
	default:
		_, err = fmt.Fprintf(out, "%06x p%d %08x  opaque\n", off, phase, w.Raw)
	}
	return err
}

func printSummary(out io.Writer, s cfgstream.Stats, phases int) error {
	if _, err := fmt.Fprintf(out,
		"summary: %d phases, %d commands, %d addrrefs, %d opaque\n",
		phases, s.Commands, s.AddressRefs, s.Opaque); err != nil {
		return err
	}
	for op, n := range s.OpCount {
		if n > 0 {
			if _, err := fmt.Fprintf(out, "  op 0x%02x %-9s x%d\n", op, cfgstream.OpName(uint8(op)), n); err != nil {
				return err
			}
		}
	}
	for reg, n := range s.RegCount {
		if n > 0 {
			if _, err := fmt.Fprintf(out, "  reg 0x%02x x%d\n", reg, n); err != nil {
				return err
			}
		}
	}
	return nil
}
