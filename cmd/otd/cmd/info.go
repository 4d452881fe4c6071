package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/session"
	"github.com/OpenTraceLab/OpenTraceDebug/pkg/target"
)

var autoDetect bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Open a session and show the resolved target",
	Long: `Open a debug session on the selected probe, resolve the target (by name
or by chip autodetection) and print its core type, memory map and flash
algorithms.

Examples:
  otd info --probe sim --chip generic-cortex-m4
  otd info --probe cmsisdap --auto`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&autoDetect, "auto", false,
		"autodetect the chip instead of using --chip")
}

// openSession wires the shared probe/chip flags into a live session.
func openSession() (session.Session, error) {
	if chipDir != "" {
		if err := target.DefaultRegistry.LoadDir(chipDir); err != nil {
			return session.Session{}, fmt.Errorf("loading chip descriptions: %w", err)
		}
	}

	p, err := openProbe()
	if err != nil {
		return session.Session{}, err
	}

	selector := target.SelectByName(chipName)
	if autoDetect {
		selector = target.SelectAuto()
	}
	return session.New(p, selector)
}

func openProbe() (probe.Probe, error) {
	switch probeKind {
	case "sim":
		return probe.NewSimCortexM(), nil
	case "cmsisdap":
		probes, err := probe.Discover(context.Background())
		if err != nil {
			return nil, fmt.Errorf("probe discovery failed: %w", err)
		}
		for _, info := range probes {
			if info.Kind == probe.KindCMSISDAP {
				return probe.Open(info)
			}
		}
		return nil, fmt.Errorf("no CMSIS-DAP probe connected")
	default:
		return nil, fmt.Errorf("unknown probe kind %q", probeKind)
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Target: %s\n", s.TargetName())
	fmt.Printf("Cores:\n")
	for i, core := range s.ListCores() {
		fmt.Printf("  [%d] %s\n", i, core)
	}
	fmt.Printf("Memory map:\n")
	for _, region := range s.MemoryMap() {
		fmt.Printf("  %s\n", region)
	}
	if algos := s.FlashAlgorithms(); len(algos) > 0 {
		fmt.Printf("Flash algorithms:\n")
		for _, a := range algos {
			marker := " "
			if a.Default {
				marker = "*"
			}
			fmt.Printf("  %s %s (load 0x%08X, %d bytes)\n", marker, a.Name, a.LoadAddress, len(a.Instructions))
		}
	}
	return nil
}
