package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/schmitthub/gantry/pkg/harbor"
)

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Force-remove all gantry-managed containers, networks and volumes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			engine, err := harbor.New(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			return pruneResources(ctx, engine, cmd.OutOrStdout())
		},
	}
}

// pruneResources removes in container, network, volume order so networks are
// free of endpoints before removal and volumes free of consumers. Each
// removal is attempted even when earlier ones fail.
func pruneResources(ctx context.Context, engine *harbor.Engine, out io.Writer) error {
	var errs error

	containers, err := engine.ContainerListByLabels(ctx, nil, true)
	if err != nil {
		return err
	}
	for _, c := range containers {
		name := c.ID
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		if err := engine.ContainerRemove(ctx, c.ID, true); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fmt.Fprintf(out, "removed container %s\n", name)
	}

	networks, err := engine.NetworkList(ctx, nil)
	if err != nil {
		return multierr.Append(errs, err)
	}
	for _, n := range networks {
		if err := engine.NetworkRemove(ctx, n.ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fmt.Fprintf(out, "removed network %s\n", n.Name)
	}

	volumes, err := engine.VolumeList(ctx, nil)
	if err != nil {
		return multierr.Append(errs, err)
	}
	for _, v := range volumes.Volumes {
		if err := engine.VolumeRemove(ctx, v.Name, true); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fmt.Fprintf(out, "removed volume %s\n", v.Name)
	}

	return errs
}
