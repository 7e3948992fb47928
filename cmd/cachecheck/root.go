package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// errNotPassed is returned when a run completes but some case did not pass.
// The per-case report has already been printed.
var errNotPassed = errors.New("not every case passed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use: "cachecheck",
		Short: "cachecheck verifies cache simulators against a reference " +
			"simulator.",
		Long: `cachecheck runs a reference cache simulator and a candidate ` +
			`over the same traces and geometries, and checks that both ` +
			`report the same outcome for every access and the same final ` +
			`counters.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newCaseCmd(),
		newDecodeCmd(),
		newHistoryCmd(),
	)

	return root
}
