package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/schmitthub/gantry/pkg/harbor"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List gantry-managed containers, networks and volumes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			engine, err := harbor.New(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			return listResources(ctx, engine, cmd.OutOrStdout())
		},
	}
}

func listResources(ctx context.Context, engine *harbor.Engine, out io.Writer) error {
	containers, err := engine.ContainerListByLabels(ctx, nil, true)
	if err != nil {
		return err
	}
	networks, err := engine.NetworkList(ctx, nil)
	if err != nil {
		return err
	}
	volumes, err := engine.VolumeList(ctx, nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tRUN\tSTATE")
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		fmt.Fprintf(w, "container\t%s\t%s\t%s\n", name, c.Labels[harbor.LabelRun], c.State)
	}
	for _, n := range networks {
		fmt.Fprintf(w, "network\t%s\t%s\t\n", n.Name, n.Labels[harbor.LabelRun])
	}
	for _, v := range volumes.Volumes {
		fmt.Fprintf(w, "volume\t%s\t%s\t\n", v.Name, v.Labels[harbor.LabelRun])
	}
	return w.Flush()
}
