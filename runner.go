package gantry

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"

	"github.com/schmitthub/gantry/internal/logger"
	"github.com/schmitthub/gantry/internal/names"
	"github.com/schmitthub/gantry/pkg/harbor"
)

// suffixLength is the length of the random name suffix distinguishing
// concurrent runs of the same composition.
const suffixLength = 20

// runner owns one run: the resolution stages, the orchestration pipeline and
// the teardown bookkeeping.
type runner struct {
	engine     *harbor.Engine
	ownsEngine bool

	namespace       string
	runID           string
	network         string
	networkID       string
	externalNetwork bool
	selfContainerID string
	defaultSource   Source
	readyTimeout    time.Duration
	prune           PruneStrategy

	compositions []*Composition

	// volumeMemo maps bare volume names to their run-suffixed names so equal
	// bare names within the run share one volume.
	volumeMemo  map[string]string
	volumeNames []string
}

type bodyOutcome struct {
	failed   bool
	abort    *TestBodyError
	panicVal any
}

// run drives the whole pipeline: resolution, creation, scheduling, the test
// body, log capture and teardown. Teardown runs whenever anything was issued
// to the engine, whatever else happened.
func (r *runner) run(ctx context.Context, body func(context.Context, *Operations)) error {
	if r.ownsEngine {
		defer func() {
			if err := r.engine.Close(); err != nil {
				logger.Log.Warn().Err(err).Msg("failed to close engine client")
			}
		}()
	}

	comps := r.validateHandles()
	r.resolveNamedVolumes()
	r.finalizeNames()
	if err := r.injectEnv(comps); err != nil {
		return err
	}
	if err := r.pullImages(ctx); err != nil {
		return err
	}

	if err := r.createNetwork(ctx); err != nil {
		return err
	}

	pending, cleanup, err := r.createContainers(ctx, comps)
	if err != nil {
		r.teardown(ctx, cleanup, true)
		return err
	}

	running, err := startAll(ctx, pending)
	if err != nil {
		r.captureLogs(ctx, cleanup, true)
		r.teardown(ctx, cleanup, true)
		return err
	}

	outcome := r.runBody(ctx, &Operations{containers: running}, body)

	r.captureLogs(ctx, cleanup, outcome.failed)
	r.teardown(ctx, cleanup, outcome.failed)

	if outcome.panicVal != nil {
		panic(outcome.panicVal)
	}
	if outcome.abort != nil {
		return outcome.abort
	}
	return nil
}

// runBody executes the test body, absorbing its two panic shapes: the
// Operations abort becomes a typed error, anything else is kept to re-raise
// once logs and teardown have completed.
func (r *runner) runBody(ctx context.Context, ops *Operations, body func(context.Context, *Operations)) (outcome bodyOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome.failed = true
			if ab, ok := rec.(abortError); ok {
				outcome.abort = &TestBodyError{Msg: ab.msg}
			} else {
				outcome.panicVal = rec
			}
		}
	}()
	body(ctx, ops)
	return
}

// resolveNamedVolumes rewrites every declared named volume into its
// run-suffixed bind form. Equal bare names resolve to the identical suffixed
// name; each distinct suffixed name is recorded once for teardown.
func (r *runner) resolveNamedVolumes() {
	for _, c := range r.compositions {
		for _, v := range c.namedVolumes {
			suffixed, ok := r.volumeMemo[v.Name]
			if !ok {
				suffixed = names.Volume(v.Name, r.runID)
				r.volumeMemo[v.Name] = suffixed
				r.volumeNames = append(r.volumeNames, suffixed)
			}
			c.binds = append(c.binds, suffixed+":"+v.ContainerPath)
		}
	}
}

// validateHandles builds the composition keeper in declaration order. The
// first composition claims each handle; duplicates collide and only fail
// when something later tries to resolve them.
func (r *runner) validateHandles() keeper[*Composition] {
	k := newKeeper[*Composition]()
	for _, c := range r.compositions {
		k.insert(c.Handle(), c)
	}
	return k
}

// finalizeNames assigns every composition its engine-facing container name.
// Static containers get a stable name with no suffix; the name is the
// identity concurrent runs rendezvous on.
func (r *runner) finalizeNames() {
	for _, c := range r.compositions {
		if c.static {
			c.finalName = names.StaticContainer(r.namespace, c.Handle())
		} else {
			c.finalName = names.Container(r.namespace, c.Handle(), names.RandomSuffix(suffixLength))
		}
	}
}

// injectEnv resolves every cross-container name injection now that final
// names exist. Failures name the requesting composition. Overwriting a value
// the user set explicitly is allowed but loud.
func (r *runner) injectEnv(comps keeper[*Composition]) error {
	for _, c := range r.compositions {
		for _, inj := range c.injections {
			target, err := comps.resolve(inj.handle)
			if err != nil {
				return startupErrorf("injecting container name into %q: %w", c.Handle(), err)
			}
			if prev, ok := c.env[inj.envKey]; ok {
				logger.Log.Warn().
					Str("container", c.Handle()).
					Str("key", inj.envKey).
					Str("previous", prev).
					Msg("container name injection overwrites an existing env value")
			}
			c.env[inj.envKey] = target.finalName
		}
	}
	return nil
}

// pullImages makes every image available before anything is created. Images
// without an explicit source inherit the run's default.
func (r *runner) pullImages(ctx context.Context) error {
	for _, c := range r.compositions {
		if !c.img.sourceSet {
			c.img.source = r.defaultSource
		}
		if err := c.img.pull(ctx, r.engine); err != nil {
			return err
		}
	}
	return nil
}

// createNetwork creates the per-run network, or adopts the external one.
// When gantry itself runs inside a container, that container is attached so
// the test body can reach the containers it starts.
func (r *runner) createNetwork(ctx context.Context) error {
	if r.externalNetwork {
		logger.Log.Debug().Str("network", r.network).Msg("using external network")
	} else {
		id, err := r.engine.NetworkCreate(ctx, r.network, r.runLabels())
		if err != nil {
			return &StartupError{Err: err}
		}
		r.networkID = id
	}

	if r.selfContainerID != "" {
		if err := r.engine.NetworkConnect(ctx, r.network, r.selfContainerID); err != nil {
			logger.Log.Warn().Err(err).Str("container", r.selfContainerID).Msg("failed to attach host container to network")
		}
	}
	return nil
}

// createContainers creates every container in declaration order and rebuilds
// the keeper around the pending forms. On failure the partial cleanup set
// covers everything issued to the engine so far.
func (r *runner) createContainers(ctx context.Context, comps keeper[*Composition]) (keeper[*PendingContainer], []*CleanupContainer, error) {
	pending := make([]*PendingContainer, 0, len(r.compositions))
	cleanup := make([]*CleanupContainer, 0, len(r.compositions))

	for _, c := range r.compositions {
		p, err := r.createContainer(ctx, c)
		if err != nil {
			return keeper[*PendingContainer]{}, cleanup, err
		}
		pending = append(pending, p)
		cleanup = append(cleanup, p.cleanup())
	}

	k, err := rekey(comps, pending)
	if err != nil {
		return keeper[*PendingContainer]{}, cleanup, err
	}
	return k, cleanup, nil
}

func (r *runner) createContainer(ctx context.Context, c *Composition) (*PendingContainer, error) {
	if c.static {
		return r.createStaticContainer(ctx, c)
	}

	// A previous run that was never torn down may have left a container
	// with this name; absence is the expected case.
	if _, err := r.engine.RemoveContainerIfExists(ctx, c.finalName); err != nil {
		return nil, &DaemonError{Err: err}
	}

	id, err := r.engine.ContainerCreate(ctx,
		r.containerConfig(c),
		r.hostConfig(c),
		&network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				r.network: {Aliases: []string{c.finalName}},
			},
		},
		c.finalName,
		r.runLabels(),
		map[string]string{harbor.LabelHandle: c.Handle()},
	)
	if err != nil {
		return nil, &StartupError{Err: err}
	}

	return r.pendingContainer(c, id, nil), nil
}

// createStaticContainer acquires the shared container through the pool. The
// first acquirer creates it; every run attaches it to its own network.
func (r *runner) createStaticContainer(ctx context.Context, c *Composition) (*PendingContainer, error) {
	entry := statics.acquire(c.finalName)

	id, err := entry.create(func() (string, error) {
		if _, err := r.engine.RemoveContainerIfExists(ctx, c.finalName); err != nil {
			return "", &DaemonError{Err: err}
		}
		id, err := r.engine.ContainerCreate(ctx,
			r.containerConfig(c),
			r.hostConfig(c),
			nil,
			c.finalName,
			map[string]string{
				harbor.LabelHandle: c.Handle(),
				harbor.LabelStatic: "true",
			},
		)
		if err != nil {
			return "", &StartupError{Err: err}
		}
		return id, nil
	})
	if err != nil {
		r.releaseStatic(ctx, c.finalName)
		return nil, err
	}

	if err := r.engine.NetworkConnect(ctx, r.network, id); err != nil {
		r.releaseStatic(ctx, c.finalName)
		return nil, &StartupError{Err: err}
	}

	return r.pendingContainer(c, id, entry), nil
}

// releaseStatic drops the reference taken for a static composition whose
// setup did not complete. At zero references the pool removes whatever was
// created, so a half-built shared container is never stranded on the engine.
func (r *runner) releaseStatic(ctx context.Context, name string) {
	if err := statics.release(ctx, r.engine, name); err != nil {
		logger.Log.Warn().Err(err).Str("container", name).Msg("failed to release static container")
	}
}

func (r *runner) pendingContainer(c *Composition, id string, entry *staticEntry) *PendingContainer {
	return &PendingContainer{
		ID:           id,
		Name:         c.finalName,
		Handle:       c.Handle(),
		StartPolicy:  c.policy,
		waitFor:      c.waitFor,
		readyTimeout: r.readyTimeout,
		static:       c.static,
		staticEntry:  entry,
		logOpts:      c.logOpts,
		engine:       r.engine,
		network:      r.network,
	}
}

func (r *runner) containerConfig(c *Composition) *container.Config {
	cfg := &container.Config{
		Image: c.img.Ref(),
		Env:   c.envSlice(),
		Cmd:   c.cmd,
	}
	if len(c.portBindings) > 0 {
		cfg.ExposedPorts = make(nat.PortSet, len(c.portBindings))
		for port := range c.portBindings {
			cfg.ExposedPorts[port] = struct{}{}
		}
	}
	return cfg
}

func (r *runner) hostConfig(c *Composition) *container.HostConfig {
	return &container.HostConfig{
		Binds:           c.binds,
		PortBindings:    c.portBindings,
		PublishAllPorts: c.publishAll,
	}
}

func (r *runner) runLabels() map[string]string {
	return map[string]string{harbor.LabelRun: r.runID}
}

// captureLogs fetches each container's logs per its options. Capture
// failures are reported and otherwise ignored; teardown always follows.
func (r *runner) captureLogs(ctx context.Context, cleanup []*CleanupContainer, failed bool) {
	for _, c := range cleanup {
		if err := c.capture(ctx, failed); err != nil {
			logger.Log.Error().Err(err).Str("container", c.Name).Msg("failed to capture container logs")
		}
	}
}
