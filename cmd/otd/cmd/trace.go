package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var (
	tracePoll   time.Duration
	traceOutput string
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Configure SWO tracing and stream captured data",
	Long: `Attach to core 0, discover the on-chip trace components and wire the
trace pipeline, then poll the probe's capture buffer until interrupted.

Examples:
  otd trace --probe cmsisdap --chip stm32f407vg
  otd trace --probe sim --chip generic-cortex-m4 -o trace.bin`,
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().DurationVar(&tracePoll, "poll", 10*time.Millisecond,
		"trace buffer polling interval")
	traceCmd.Flags().StringVarP(&traceOutput, "output", "o", "",
		"write raw trace bytes to a file instead of stdout hex")
}

func runTrace(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	core, err := s.AttachToCore(0)
	if err != nil {
		return fmt.Errorf("attaching core: %w", err)
	}
	if err := s.SetupTracing(core); err != nil {
		return fmt.Errorf("configuring trace pipeline: %w", err)
	}
	fmt.Fprintln(os.Stderr, "trace pipeline configured, capturing (Ctrl-C to stop)")

	var out *os.File
	if traceOutput != "" {
		out, err = os.Create(traceOutput)
		if err != nil {
			return err
		}
		defer out.Close()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	ticker := time.NewTicker(tracePoll)
	defer ticker.Stop()

	var total int
	for {
		select {
		case <-interrupt:
			fmt.Fprintf(os.Stderr, "\ncaptured %d bytes\n", total)
			return nil
		case <-ticker.C:
			data, err := s.ReadSWV()
			if err != nil {
				return fmt.Errorf("reading trace buffer: %w", err)
			}
			if len(data) == 0 {
				continue
			}
			total += len(data)
			if out != nil {
				if _, err := out.Write(data); err != nil {
					return err
				}
			} else {
				fmt.Printf("% X\n", data)
			}
		}
	}
}
