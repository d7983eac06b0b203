package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gantryctl",
		Short: "Inspect and clean up gantry-managed engine resources",
		Long: `Gantryctl operates on the containers, networks and volumes that carry
gantry's managed label. Runs killed mid-teardown or executed with
GANTRY_PRUNE=never leave such resources behind on the daemon.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newPruneCmd())

	return cmd
}
