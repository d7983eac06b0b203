// Package gantry stands up ephemeral multi-container environments for test
// runs. A Gantry collects container compositions, resolves their names and
// cross-references, starts them against a dedicated network per the declared
// scheduling policies, hands the running environment to a test body, and
// tears everything down afterwards whatever the outcome.
//
//	g := gantry.New()
//	g.Provide(gantry.NewComposition("postgres").
//	    WithAlias("db").
//	    WithStartPolicy(gantry.PolicyStrict).
//	    WithWaitFor(&wait.MessageWait{Message: "ready to accept connections"}))
//	g.Provide(gantry.NewComposition("myapp").
//	    InjectContainerName("db", "DB_HOST"))
//
//	err := g.Run(ctx, func(ctx context.Context, ops *gantry.Operations) {
//	    db := ops.Handle("db")
//	    // exercise the system under test against db.IP ...
//	})
package gantry

import (
	"context"

	"github.com/google/uuid"

	"github.com/schmitthub/gantry/internal/config"
	"github.com/schmitthub/gantry/internal/logger"
	"github.com/schmitthub/gantry/internal/names"
	"github.com/schmitthub/gantry/pkg/harbor"
)

// Gantry accumulates the compositions and run options for one environment.
// Zero value is not usable; construct with New.
type Gantry struct {
	namespace       string
	externalNetwork string
	defaultSource   Source
	engine          *harbor.Engine
	compositions    []*Composition
}

// New returns an empty Gantry with the default namespace.
func New() *Gantry {
	return &Gantry{namespace: names.DefaultNamespace}
}

// WithNamespace overrides the prefix on every resource name the run
// creates.
func (g *Gantry) WithNamespace(namespace string) *Gantry {
	g.namespace = namespace
	return g
}

// WithExternalNetwork makes the run join an existing network instead of
// creating and later removing its own.
func (g *Gantry) WithExternalNetwork(name string) *Gantry {
	g.externalNetwork = name
	return g
}

// WithDefaultSource sets the image source for every composition that does
// not pick one explicitly.
func (g *Gantry) WithDefaultSource(source Source) *Gantry {
	g.defaultSource = source
	return g
}

// WithEngine injects a pre-built engine wrapper. Tests use this to supply a
// fake client; the caller keeps ownership and gantry will not close it.
func (g *Gantry) WithEngine(engine *harbor.Engine) *Gantry {
	g.engine = engine
	return g
}

// Provide adds a composition to the run, in declaration order.
func (g *Gantry) Provide(c *Composition) *Gantry {
	g.compositions = append(g.compositions, c)
	return g
}

// Run stands the environment up, executes body against it, and tears the
// environment down. The returned error is the first failure of the run:
// startup errors before the body ran, or the body's own fatal abort. A panic
// out of the body that is not an Operations abort is re-raised after logs
// and teardown complete.
func (g *Gantry) Run(ctx context.Context, body func(context.Context, *Operations)) error {
	env := config.FromEnv()

	engine := g.engine
	ownsEngine := false
	if engine == nil {
		var err error
		engine, err = harbor.New(ctx)
		if err != nil {
			return &DaemonError{Err: err}
		}
		ownsEngine = true
	}

	runID := uuid.NewString()

	r := &runner{
		engine:          engine,
		ownsEngine:      ownsEngine,
		namespace:       g.namespace,
		runID:           runID,
		externalNetwork: g.externalNetwork != "",
		selfContainerID: env.ContainerID,
		defaultSource:   g.defaultSource,
		readyTimeout:    env.ReadyTimeout,
		prune:           parsePruneStrategy(env.Prune),
		compositions:    g.compositions,
		volumeMemo:      make(map[string]string),
	}
	if g.externalNetwork != "" {
		r.network = g.externalNetwork
	} else {
		r.network = names.Network(g.namespace, runID)
	}

	logger.Log.Debug().
		Str("run", runID).
		Str("network", r.network).
		Int("containers", len(g.compositions)).
		Msg("starting run")

	return r.run(ctx, body)
}
