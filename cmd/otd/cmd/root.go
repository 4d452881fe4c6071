package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose   bool
	probeKind string
	chipName  string
	chipDir   string
)

var rootCmd = &cobra.Command{
	Use:   "otd",
	Short: "On-chip debug session tool",
	Long: `OpenTraceDebug opens debug sessions on microcontroller targets through
CMSIS-DAP probes: target identification, memory access and SWO tracing.

Examples:
  otd list                                   # Show connected probes
  otd info --probe sim --chip generic-cortex-m4
  otd trace --probe cmsisdap --chip stm32f407vg
  otd info --probe sim --auto                # Autodetect the chip`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&probeKind, "probe", "p", "sim",
		"probe to use (sim, cmsisdap)")
	rootCmd.PersistentFlags().StringVarP(&chipName, "chip", "c", "generic-cortex-m4",
		"target chip name from the registry")
	rootCmd.PersistentFlags().StringVar(&chipDir, "chip-dir", "",
		"directory with additional chip description YAML files")

	cobra.OnInitialize(func() {
		if verbose {
			// glog reads its verbosity from the standard flag set.
			flag.Set("v", "2")
			flag.Set("logtostderr", "true")
		}
		// Keep glog from complaining that flags were never parsed; cobra
		// owns the real command line.
		flag.CommandLine.Parse(nil)
	})
}
