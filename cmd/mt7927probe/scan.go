package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openmt/mt7927"
	"github.com/openmt/mt7927/cfgstream"
)

var (
	flagScanStart  uint32
	flagScanLength uint32
	flagScanWords  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Decode the tagged command stream in the memory window (read-only).",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}
		defer d.Close()

		if flagScanWords {
			cfgstream.Scan(d.Mem(), flagScanStart, flagScanLength, func(e cfgstream.Entry) bool {
				printEntry(e)
				return true
			})
			return nil
		}
		printStats(cfgstream.CollectStats(d.Mem(), flagScanStart, flagScanLength))
		return nil
	},
}

func printEntry(e cfgstream.Entry) {
	w := e.Word
	switch w.Kind {
	case cfgstream.KindCommand:
		fmt.Printf("%08x: %08x  %s reg=0x%02x operand=0x%02x\n",
			e.Offset, w.Raw, cfgstream.OpName(w.Op), w.Reg, w.Val)
	case cfgstream.KindDelimiter:
		fmt.Printf("%08x: %08x  ---- phase boundary ----\n", e.Offset, w.Raw)
	case cfgstream.KindAddressRef:
		fmt.Printf("%08x: %08x  addr-ref -> bar0+0x%06x\n", e.Offset, w.Raw, w.Target)
	default:
		fmt.Printf("%08x: %08x  opaque\n", e.Offset, w.Raw)
	}
}

func printStats(s cfgstream.Stats) {
	fmt.Printf("commands:     %d\n", s.Commands)
	fmt.Printf("delimiters:   %d\n", s.Delimiters)
	fmt.Printf("address refs: %d\n", s.AddressRefs)
	fmt.Printf("opaque words: %d\n", s.Opaque)
	fmt.Println("opcodes:")
	for op, n := range s.OpCount {
		if n > 0 {
			fmt.Printf("  0x%02x %-10s %d\n", op, cfgstream.OpName(uint8(op)), n)
		}
	}
	fmt.Println("registers:")
	for reg, n := range s.RegCount {
		if n > 0 {
			fmt.Printf("  0x%02x %d\n", reg, n)
		}
	}
}

var (
	flagDumpOut    string
	flagDumpStart  uint32
	flagDumpLength uint32
	flagDumpBar    int
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump a window of a mapped region to a file for offline analysis.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}
		defer d.Close()

		var r mt7927.Region
		switch flagDumpBar {
		case 0:
			r = d.Mem()
		case 2:
			r = d.Ctl()
		default:
			return fmt.Errorf("no mapped region for BAR %d", flagDumpBar)
		}
		if flagDumpLength == 0 || flagDumpStart+flagDumpLength > r.Size() {
			return fmt.Errorf("window 0x%x+0x%x outside region of size 0x%x",
				flagDumpStart, flagDumpLength, r.Size())
		}

		f, err := os.Create(flagDumpOut)
		if err != nil {
			return err
		}
		defer f.Close()
		buf := make([]byte, 4)
		for off := flagDumpStart; off < flagDumpStart+flagDumpLength; off += 4 {
			v := r.Read32(off)
			buf[0] = byte(v)
			buf[1] = byte(v >> 8)
			buf[2] = byte(v >> 16)
			buf[3] = byte(v >> 24)
			if _, err := f.Write(buf); err != nil {
				return err
			}
		}
		fmt.Printf("wrote 0x%x bytes from bar%d+0x%06x to %s\n",
			flagDumpLength, flagDumpBar, flagDumpStart, flagDumpOut)
		return nil
	},
}

func init() {
	scanCmd.Flags().Uint32Var(&flagScanStart, "start", mt7927.ConfigStreamOffset, "Stream window start offset in BAR0.")
	scanCmd.Flags().Uint32Var(&flagScanLength, "length", 0x1000, "Stream window length in bytes.")
	scanCmd.Flags().BoolVar(&flagScanWords, "words", false, "Print every decoded word instead of the summary.")
	rootCmd.AddCommand(scanCmd)

	dumpCmd.Flags().StringVarP(&flagDumpOut, "out", "o", "dump.bin", "Output file.")
	dumpCmd.Flags().IntVar(&flagDumpBar, "bar", 0, "Which BAR to read (0 or 2).")
	dumpCmd.Flags().Uint32Var(&flagDumpStart, "start", mt7927.ConfigStreamOffset, "Window start offset.")
	dumpCmd.Flags().Uint32Var(&flagDumpLength, "length", 0x1000, "Window length in bytes.")
	rootCmd.AddCommand(dumpCmd)
}
