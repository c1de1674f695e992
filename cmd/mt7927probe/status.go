package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmt/mt7927"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print chip identity and liveness indicators without writing anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}
		defer d.Close()

		snap := d.Liveness()
		fmt.Printf("chip id:     0x%08x", d.ChipID())
		if d.ChipID() == mt7927.ChipID {
			fmt.Printf(" (MT7927)")
		}
		fmt.Println()
		fmt.Printf("primary:     0x%08x\n", snap.Primary)
		fmt.Printf("secondary:   0x%08x\n", snap.Secondary)
		fmt.Printf("fw status:   0x%08x", snap.FWStatus)
		if snap.FWStatus == mt7927.FWStatusIdle {
			fmt.Printf(" (idle)")
		}
		fmt.Println()
		fmt.Printf("chip status: 0x%08x\n", snap.ChipStatus)
		fmt.Printf("liveness:    %s\n", snap.Level)
		if snap.Wedged {
			fmt.Println("chip is WEDGED: remove and rescan the PCI function before probing")
		}
		return nil
	},
}

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Round-trip the verified scratch registers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.SelfTest(); err != nil {
			return err
		}
		fmt.Println("scratch self-test passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(selftestCmd)
}
