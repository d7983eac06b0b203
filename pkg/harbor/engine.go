// Package harbor wraps the Docker SDK client with label-based resource
// isolation and typed operation errors.
//
// Every resource the engine creates carries a managed label, and every list
// operation injects a filter on that label, so an Engine only ever sees the
// containers, networks and volumes it created. This is what makes it safe to
// force-remove resources during teardown while unrelated workloads share the
// same daemon.
package harbor

import (
	"context"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Options configures the behavior of the Engine.
type Options struct {
	// LabelPrefix is the prefix for all managed labels (e.g. "dev.gantry").
	LabelPrefix string

	// ManagedLabel is the label key suffix marking resources as managed.
	// Defaults to "managed"; combined with LabelPrefix to form the full key.
	ManagedLabel string

	// Labels are additional labels stamped on every created resource,
	// typically the per-run id label.
	Labels map[string]string
}

// DefaultManagedLabel is the default label suffix for managed resources.
const DefaultManagedLabel = "managed"

// Engine wraps a Docker API client with automatic label-based isolation.
type Engine struct {
	api  APIClient
	opts Options

	managedLabelKey   string
	managedLabelValue string
}

// New connects to the Docker daemon using environment defaults and verifies
// the connection. Uses gantry's standard label prefix.
func New(ctx context.Context) (*Engine, error) {
	return NewWithOptions(ctx, Options{LabelPrefix: LabelPrefix})
}

// NewWithOptions connects to the Docker daemon with the given options.
func NewWithOptions(ctx context.Context, opts Options) (*Engine, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, ErrDaemonUnreachable(err)
	}

	engine := NewFromExisting(cli, opts)
	if err := engine.HealthCheck(ctx); err != nil {
		cli.Close()
		return nil, err
	}
	return engine, nil
}

// NewFromExisting wraps an existing API client. Used by tests to inject a
// fake client; no connection check is performed.
func NewFromExisting(api APIClient, opts Options) *Engine {
	if opts.ManagedLabel == "" {
		opts.ManagedLabel = DefaultManagedLabel
	}
	return &Engine{
		api:               api,
		opts:              opts,
		managedLabelKey:   opts.LabelPrefix + "." + opts.ManagedLabel,
		managedLabelValue: "true",
	}
}

// HealthCheck verifies the Docker daemon is reachable.
func (e *Engine) HealthCheck(ctx context.Context) error {
	if _, err := e.api.Ping(ctx); err != nil {
		return ErrDaemonUnreachable(err)
	}
	return nil
}

// Close releases the underlying client resources.
func (e *Engine) Close() error {
	return e.api.Close()
}

// Options returns the engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// ManagedLabelKey returns the full managed label key (e.g. "dev.gantry.managed").
func (e *Engine) ManagedLabelKey() string {
	return e.managedLabelKey
}

// newManagedFilter creates a filter matching only managed resources.
func (e *Engine) newManagedFilter() filters.Args {
	return filters.NewArgs(
		filters.Arg("label", e.managedLabelKey+"="+e.managedLabelValue),
	)
}

// injectManagedFilter adds the managed label filter to existing filters.
func (e *Engine) injectManagedFilter(existing filters.Args) filters.Args {
	if existing.Len() == 0 {
		existing = filters.NewArgs()
	}
	existing.Add("label", e.managedLabelKey+"="+e.managedLabelValue)
	return existing
}

// resourceLabels returns the labels stamped on every created resource.
func (e *Engine) resourceLabels(extra ...map[string]string) map[string]string {
	base := map[string]string{e.managedLabelKey: e.managedLabelValue}
	all := append([]map[string]string{base, e.opts.Labels}, extra...)
	return MergeLabels(all...)
}
