package gantry

import (
	"context"
	"net"
	"time"

	"github.com/docker/go-connections/nat"

	"github.com/schmitthub/gantry/pkg/harbor"
)

// WaitFor decides when a started container counts as ready. The wait package
// provides the standard strategies; any user type implementing this
// interface works too.
//
// Implementations receive the pending container after its start call
// succeeded and return the running form once satisfied, typically via
// PendingContainer.RunningContainer.
type WaitFor interface {
	WaitForReady(ctx context.Context, c *PendingContainer) (*RunningContainer, error)
}

// PendingContainer is a created but not yet started container. Owned by the
// start scheduler until started.
type PendingContainer struct {
	// ID is the engine-assigned container id.
	ID string

	// Name is the finalized container name.
	Name string

	// Handle is the user-facing lookup key.
	Handle string

	// StartPolicy controls scheduling relative to other containers.
	StartPolicy StartPolicy

	waitFor      WaitFor
	readyTimeout time.Duration
	static       bool
	staticEntry  *staticEntry
	logOpts      *LogOptions
	engine       *harbor.Engine
	network      string
}

// Engine exposes the engine wrapper, for wait strategies that poll state.
func (p *PendingContainer) Engine() *harbor.Engine {
	return p.engine
}

// start issues the engine start call and hands off to the readiness
// strategy. Without a strategy the container is ready as soon as the start
// call returns. Shared static containers are physically started only by the
// first run to reach this point; everyone still runs their own readiness
// strategy.
func (p *PendingContainer) start(ctx context.Context) (*RunningContainer, error) {
	doStart := func() error {
		return p.engine.ContainerStart(ctx, p.ID)
	}

	var err error
	if p.staticEntry != nil {
		err = p.staticEntry.start(doStart)
	} else {
		err = doStart()
	}
	if err != nil {
		return nil, &StartupError{Err: err}
	}
	if p.waitFor == nil {
		return p.RunningContainer(ctx)
	}

	// The run-level readiness bound backstops strategies that carry no
	// timeout of their own.
	if p.readyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.readyTimeout)
		defer cancel()
	}
	return p.waitFor.WaitForReady(ctx, p)
}

// RunningContainer inspects the container and builds its running form, with
// the address it holds on the run network. Wait strategies call this once
// their readiness condition is met.
func (p *PendingContainer) RunningContainer(ctx context.Context) (*RunningContainer, error) {
	info, err := p.engine.ContainerInspect(ctx, p.ID)
	if err != nil {
		return nil, &InspectError{Container: p.Name, Err: err}
	}

	var ip net.IP
	var ports nat.PortMap
	if info.NetworkSettings != nil {
		if ep, ok := info.NetworkSettings.Networks[p.network]; ok {
			ip = net.ParseIP(ep.IPAddress)
		}
		ports = info.NetworkSettings.Ports
	}

	return &RunningContainer{
		ID:      p.ID,
		Name:    p.Name,
		Handle:  p.Handle,
		IP:      ip,
		Ports:   ports,
		static:  p.static,
		logOpts: p.logOpts,
		engine:  p.engine,
	}, nil
}

// cleanup derives the teardown form.
func (p *PendingContainer) cleanup() *CleanupContainer {
	return &CleanupContainer{
		ID:      p.ID,
		Name:    p.Name,
		Static:  p.static,
		logOpts: p.logOpts,
		engine:  p.engine,
	}
}

// RunningContainer is a started, ready container. Read-only to the test
// body.
type RunningContainer struct {
	// ID is the engine-assigned container id.
	ID string

	// Name is the finalized container name, which also resolves over DNS on
	// the run network.
	Name string

	// Handle is the user-facing lookup key.
	Handle string

	// IP is the container's address on the run network.
	IP net.IP

	// Ports maps exposed container ports to their host bindings.
	Ports nat.PortMap

	static  bool
	logOpts *LogOptions
	engine  *harbor.Engine
}

// HostPort returns the first host binding for the given container port, e.g.
// "5432/tcp". Empty when the port is not published.
func (r *RunningContainer) HostPort(port nat.Port) string {
	bindings := r.Ports[port]
	if len(bindings) == 0 {
		return ""
	}
	return bindings[0].HostPort
}

// CleanupContainer is the teardown-stage form of a container. Everything
// issued to the engine during a run ends up as one of these, whether or not
// it started.
type CleanupContainer struct {
	ID     string
	Name   string
	Static bool

	logOpts *LogOptions
	engine  *harbor.Engine
}

func (r *RunningContainer) cleanup() *CleanupContainer {
	return &CleanupContainer{
		ID:      r.ID,
		Name:    r.Name,
		Static:  r.static,
		logOpts: r.logOpts,
		engine:  r.engine,
	}
}
