package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/openmt/mt7927"
)

var (
	flagAddr    string
	flagSysfs   string
	flagEnvFile string
	flagVerbose int

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mt7927probe",
	Short: "Probe driver for the undocumented MT7927 PCIe WiFi function.",
	Long: `mt7927probe claims an MT7927 PCIe function via sysfs, maps both of
its memory windows and runs bring-up experiments against it: liveness
inspection, scratch self-tests, command-stream scans, scripted wakeup
and full sequencer attempts. Every register write of an attempt is
recorded to a SQLite trace so a wedged chip can be diagnosed after the
fact.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A .env profile may carry MT7927_ADDR, MT7927_SYSFS_ROOT and
		// MT7927_TRACE_DB; flags win over the environment.
		if flagEnvFile != "" {
			if err := godotenv.Load(flagEnvFile); err != nil {
				slog.Warn("env profile not loaded", slog.String("file", flagEnvFile), slog.Any("err", err))
			}
		} else {
			godotenv.Load()
		}
		if flagAddr == "" {
			flagAddr = os.Getenv("MT7927_ADDR")
		}
		if flagSysfs == "" {
			flagSysfs = os.Getenv("MT7927_SYSFS_ROOT")
		}
		level := slog.LevelInfo
		switch {
		case flagVerbose == 1:
			level = slog.LevelDebug
		case flagVerbose >= 2:
			level = slog.LevelDebug - 1
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", `PCI address of the function, e.g. "0000:01:00.0". Empty scans the bus.`)
	rootCmd.PersistentFlags().StringVar(&flagSysfs, "sysfs", "", "Override the sysfs PCI device root (testing).")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Load a .env profile before reading flags.")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "Increase log detail. Repeat for register-level tracing.")
}

// Execute runs the CLI. Exits through atexit so registered trace
// flushes run on the error path too.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func openDevice() (*mt7927.Device, error) {
	return mt7927.Open(mt7927.Config{
		Addr:      flagAddr,
		SysfsRoot: flagSysfs,
		Logger:    logger,
	})
}
