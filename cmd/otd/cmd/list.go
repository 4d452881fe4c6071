package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceDebug/pkg/probe"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected debug probes",
	Long: `Enumerate USB debug probes with known VID/PID pairs. The simulator entry
is always present so the other commands can be exercised without hardware.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	probes, err := probe.Discover(context.Background())
	if err != nil {
		return fmt.Errorf("probe discovery failed: %w", err)
	}

	fmt.Printf("Found %d probe(s):\n", len(probes))
	for i, info := range probes {
		fmt.Printf("  [%d] %s\n", i, info.Label())
		if info.Serial != "" {
			fmt.Printf("      serial: %s\n", info.Serial)
		}
	}
	return nil
}
