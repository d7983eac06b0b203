package gantry

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	"github.com/schmitthub/gantry/internal/logger"
	"github.com/schmitthub/gantry/pkg/harbor"
)

// PruneStrategy selects what teardown does with the run's resources,
// conditioned on whether the test body passed.
type PruneStrategy int

const (
	// RemoveRegardless removes containers, network and volumes whatever the
	// outcome. Default.
	RemoveRegardless PruneStrategy = iota

	// RunningRegardless leaves everything running whatever the outcome.
	RunningRegardless

	// RunningOnFailure leaves everything running after a failure, removes
	// everything after a pass.
	RunningOnFailure

	// StopOnFailure stops containers after a failure, leaving them and the
	// volumes inspectable; removes everything after a pass.
	StopOnFailure
)

// parsePruneStrategy maps the GANTRY_PRUNE value to a strategy. Unset or
// unrecognized values fall back to removing everything, recognized values
// are: always, never, running_on_failure, stop_on_failure.
func parsePruneStrategy(raw string) PruneStrategy {
	switch raw {
	case "", "always":
		return RemoveRegardless
	case "never":
		return RunningRegardless
	case "running_on_failure":
		return RunningOnFailure
	case "stop_on_failure":
		return StopOnFailure
	default:
		logger.Log.Warn().Str("value", raw).Msg("unrecognized prune strategy, containers will be removed")
		return RemoveRegardless
	}
}

// teardown applies the prune strategy to everything the run created, in
// container, network, volume order. Every removal is attempted even when an
// earlier one fails; failures are logged and aggregated, never fatal to
// teardown itself. Static containers sit outside the strategy: their
// references are dropped on every teardown and the pool decides removal.
func (r *runner) teardown(ctx context.Context, cleanup []*CleanupContainer, failed bool) {
	err := r.releaseStatics(ctx, cleanup)

	var remove, stop bool
	switch r.prune {
	case RemoveRegardless:
		remove = true
	case RunningRegardless:
	case RunningOnFailure:
		remove = !failed
	case StopOnFailure:
		remove = !failed
		stop = failed
	}

	switch {
	case remove:
		err = multierr.Append(err, r.removeContainers(ctx, cleanup))
		err = multierr.Append(err, r.removeNetwork(ctx))
		err = multierr.Append(err, r.removeVolumes(ctx))
	case stop:
		err = multierr.Append(err, r.stopContainers(ctx, cleanup))
		err = multierr.Append(err, r.removeNetwork(ctx))
	}

	if err != nil {
		logger.Log.Error().Err(err).Msg("teardown completed with failures")
	}
}

// classifyRemoval downgrades the already-gone case to a recoverable error,
// which teardown logs quietly and does not count as a failure.
func classifyRemoval(err error) error {
	if harbor.IsNotFound(err) {
		return &RecoverableError{Err: err}
	}
	return err
}

// releaseStatics drops this run's references on the shared containers and
// detaches them from the run's network so the network can be removed. The
// pool removes a container only when its last reference drops.
func (r *runner) releaseStatics(ctx context.Context, cleanup []*CleanupContainer) error {
	var errs error
	for _, c := range cleanup {
		if !c.Static {
			continue
		}
		if err := r.engine.NetworkDisconnect(ctx, r.network, c.ID, true); err != nil {
			logger.Log.Warn().Err(err).Str("container", c.Name).Msg("failed to detach static container from network")
		}
		if err := statics.release(ctx, r.engine, c.Name); err != nil {
			var rec *RecoverableError
			if err = classifyRemoval(err); errors.As(err, &rec) {
				logger.Log.Debug().Err(err).Str("container", c.Name).Msg("static container already removed")
				continue
			}
			logger.Log.Error().Err(err).Str("container", c.Name).Msg("failed to release static container")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// removeContainers force-removes every non-static container.
func (r *runner) removeContainers(ctx context.Context, cleanup []*CleanupContainer) error {
	var errs error
	for _, c := range cleanup {
		if c.Static {
			continue
		}
		err := r.engine.ContainerRemove(ctx, c.ID, true)
		if err != nil {
			var rec *RecoverableError
			if err = classifyRemoval(err); errors.As(err, &rec) {
				logger.Log.Debug().Err(err).Str("container", c.Name).Msg("container already removed")
				continue
			}
			logger.Log.Error().Err(err).Str("container", c.Name).Msg("failed to remove container")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// stopContainers stops every non-static container. Static containers keep
// running for the other runs holding them.
func (r *runner) stopContainers(ctx context.Context, cleanup []*CleanupContainer) error {
	var errs error
	for _, c := range cleanup {
		if c.Static {
			continue
		}
		if err := r.engine.ContainerStop(ctx, c.ID, nil); err != nil {
			logger.Log.Error().Err(err).Str("container", c.Name).Msg("failed to stop container")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// removeNetwork detaches the host container, when attached, then removes the
// network. External networks are not gantry's to remove.
func (r *runner) removeNetwork(ctx context.Context) error {
	if r.selfContainerID != "" {
		if err := r.engine.NetworkDisconnect(ctx, r.network, r.selfContainerID, true); err != nil {
			logger.Log.Warn().Err(err).Str("container", r.selfContainerID).Msg("failed to detach host container from network")
		}
	}

	if r.externalNetwork {
		return nil
	}
	if err := r.engine.NetworkRemove(ctx, r.network); err != nil {
		logger.Log.Error().Err(err).Str("network", r.network).Msg("failed to remove network")
		return err
	}
	return nil
}

// removeVolumes force-removes the run's named volumes.
func (r *runner) removeVolumes(ctx context.Context) error {
	var errs error
	for _, name := range r.volumeNames {
		if err := r.engine.VolumeRemove(ctx, name, true); err != nil {
			var rec *RecoverableError
			if err = classifyRemoval(err); errors.As(err, &rec) {
				logger.Log.Debug().Err(err).Str("volume", name).Msg("volume already removed")
				continue
			}
			logger.Log.Error().Err(err).Str("volume", name).Msg("failed to remove volume")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
