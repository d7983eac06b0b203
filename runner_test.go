package gantry

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/gantry/pkg/harbor"
	"github.com/schmitthub/gantry/pkg/harbor/harbortest"
)

// stubInspect makes inspect by created id succeed and inspect by name report
// not found, so the stale-name pre-create check finds nothing to remove.
func stubInspect(fake *harbortest.FakeAPIClient) {
	fake.ContainerInspectFn = func(_ context.Context, ref string) (types.ContainerJSON, error) {
		if strings.HasPrefix(ref, "ctr-") {
			return harbortest.RunningInspectFixture(ref, "", "172.18.0.2"), nil
		}
		return types.ContainerJSON{}, harbortest.ErrNotFound(ref)
	}
}

func newTestRunner(fake *harbortest.FakeAPIClient, comps ...*Composition) *runner {
	return &runner{
		engine:       harbortest.NewEngine(fake),
		namespace:    "gantry",
		runID:        "testrun",
		network:      "gantry-testrun",
		prune:        RemoveRegardless,
		compositions: comps,
		volumeMemo:   make(map[string]string),
	}
}

func TestResolveNamedVolumes(t *testing.T) {
	t.Run("suffixes with run id", func(t *testing.T) {
		c := NewComposition("postgres").WithNamedVolume("pgdata", "/data")
		r := newTestRunner(harbortest.NewFakeAPIClient(), c)

		r.resolveNamedVolumes()

		assert.Equal(t, []string{"pgdata-testrun:/data"}, c.binds)
		assert.Equal(t, []string{"pgdata-testrun"}, r.volumeNames)
	})

	t.Run("equal bare names share one volume", func(t *testing.T) {
		a := NewComposition("writer").WithNamedVolume("shared", "/out")
		b := NewComposition("reader").WithNamedVolume("shared", "/in")
		r := newTestRunner(harbortest.NewFakeAPIClient(), a, b)

		r.resolveNamedVolumes()

		assert.Equal(t, []string{"shared-testrun:/out"}, a.binds)
		assert.Equal(t, []string{"shared-testrun:/in"}, b.binds)
		assert.Equal(t, []string{"shared-testrun"}, r.volumeNames, "one teardown entry per distinct volume")
	})
}

func TestFinalizeNames(t *testing.T) {
	t.Run("random suffix per run", func(t *testing.T) {
		c := NewComposition("postgres")
		r := newTestRunner(harbortest.NewFakeAPIClient(), c)

		r.finalizeNames()

		assert.Regexp(t, regexp.MustCompile(`^gantry-postgres-[a-z]{20}$`), c.finalName)
	})

	t.Run("path separators sanitized", func(t *testing.T) {
		c := NewComposition("library/postgres")
		r := newTestRunner(harbortest.NewFakeAPIClient(), c)

		r.finalizeNames()

		assert.Regexp(t, regexp.MustCompile(`^gantry-library_postgres-[a-z]{20}$`), c.finalName)
	})

	t.Run("static names are stable", func(t *testing.T) {
		c := NewComposition("postgres").WithStaticContainer()
		r := newTestRunner(harbortest.NewFakeAPIClient(), c)

		r.finalizeNames()

		assert.Equal(t, "gantry-postgres", c.finalName)
	})

	t.Run("alias preferred over repository", func(t *testing.T) {
		c := NewComposition("postgres").WithAlias("db")
		r := newTestRunner(harbortest.NewFakeAPIClient(), c)

		r.finalizeNames()

		assert.Regexp(t, regexp.MustCompile(`^gantry-db-[a-z]{20}$`), c.finalName)
	})

	t.Run("static aliases keep identities apart", func(t *testing.T) {
		primary := NewComposition("postgres").WithAlias("primary").WithStaticContainer()
		replica := NewComposition("postgres").WithAlias("replica").WithStaticContainer()
		r := newTestRunner(harbortest.NewFakeAPIClient(), primary, replica)

		r.finalizeNames()

		assert.Equal(t, "gantry-primary", primary.finalName)
		assert.Equal(t, "gantry-replica", replica.finalName)
	})
}

func TestInjectEnv(t *testing.T) {
	t.Run("injects finalized name", func(t *testing.T) {
		db := NewComposition("postgres").WithAlias("db")
		app := NewComposition("myapp").InjectContainerName("db", "DB_HOST")
		r := newTestRunner(harbortest.NewFakeAPIClient(), db, app)

		comps := r.validateHandles()
		r.finalizeNames()
		require.NoError(t, r.injectEnv(comps))

		assert.Equal(t, db.finalName, app.env["DB_HOST"])
	})

	t.Run("overwrites an explicit value", func(t *testing.T) {
		db := NewComposition("postgres").WithAlias("db")
		app := NewComposition("myapp").
			WithEnv("DB_HOST", "localhost").
			InjectContainerName("db", "DB_HOST")
		r := newTestRunner(harbortest.NewFakeAPIClient(), db, app)

		comps := r.validateHandles()
		r.finalizeNames()
		require.NoError(t, r.injectEnv(comps))

		assert.Equal(t, db.finalName, app.env["DB_HOST"])
	})

	t.Run("unknown handle names the requester", func(t *testing.T) {
		app := NewComposition("myapp").InjectContainerName("db", "DB_HOST")
		r := newTestRunner(harbortest.NewFakeAPIClient(), app)

		comps := r.validateHandles()
		r.finalizeNames()
		err := r.injectEnv(comps)

		require.Error(t, err)
		assert.Contains(t, err.Error(), `"myapp"`)
		var startupErr *StartupError
		assert.ErrorAs(t, err, &startupErr)
	})

	t.Run("collided handle fails", func(t *testing.T) {
		one := NewComposition("postgres")
		two := NewComposition("postgres")
		app := NewComposition("myapp").InjectContainerName("postgres", "DB_HOST")
		r := newTestRunner(harbortest.NewFakeAPIClient(), one, two, app)

		comps := r.validateHandles()
		r.finalizeNames()
		require.Error(t, r.injectEnv(comps))
	})
}

func TestRunEndToEnd(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	stubInspect(fake)

	createdEnv := make(map[string][]string)
	createdNames := make(map[string]string)
	created := 0
	fake.ContainerCreateFn = func(_ context.Context, cfg *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
		created++
		id := "ctr-" + name
		createdEnv[name] = cfg.Env
		createdNames[cfg.Labels[harbor.LabelHandle]] = name
		return container.CreateResponse{ID: id}, nil
	}

	g := New().WithEngine(harbortest.NewEngine(fake))
	g.Provide(NewComposition("postgres").
		WithAlias("db").
		WithStartPolicy(PolicyStrict))
	g.Provide(NewComposition("redis").
		WithAlias("cache"))
	g.Provide(NewComposition("myapp").
		WithAlias("app").
		WithStartPolicy(PolicyStrict).
		InjectContainerName("db", "DB_HOST"))

	var handles []string
	err := g.Run(context.Background(), func(_ context.Context, ops *Operations) {
		for _, h := range []string{"db", "cache", "app"} {
			handles = append(handles, ops.Handle(h).Handle)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"db", "cache", "app"}, handles)
	assert.Equal(t, 3, created)

	// The app container's env carries the db container's finalized name.
	dbName := createdNames["db"]
	require.NotEmpty(t, dbName)
	assert.Contains(t, createdEnv[createdNames["app"]], "DB_HOST="+dbName)

	// Everything created was removed, then the network.
	assert.Equal(t, 3, fake.CallCount("ContainerRemove"))
	assert.Equal(t, 1, fake.CallCount("NetworkRemove"))
}

func TestRunBodyAbort(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	stubInspect(fake)
	g := New().WithEngine(harbortest.NewEngine(fake))
	g.Provide(NewComposition("postgres").WithLogOptions(nil))

	err := g.Run(context.Background(), func(_ context.Context, ops *Operations) {
		ops.Handle("nope")
	})

	var bodyErr *TestBodyError
	require.ErrorAs(t, err, &bodyErr)
	assert.Contains(t, bodyErr.Msg, "nope")

	// A failed body still tears the environment down.
	assert.Equal(t, 1, fake.CallCount("ContainerRemove"))
	assert.Equal(t, 1, fake.CallCount("NetworkRemove"))
}

func TestRunBodyPanicReraised(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	stubInspect(fake)
	g := New().WithEngine(harbortest.NewEngine(fake))
	g.Provide(NewComposition("postgres").WithLogOptions(nil))

	require.PanicsWithValue(t, "boom", func() {
		_ = g.Run(context.Background(), func(_ context.Context, _ *Operations) {
			panic("boom")
		})
	})

	// Teardown completed before the panic resumed.
	assert.Equal(t, 1, fake.CallCount("ContainerRemove"))
	assert.Equal(t, 1, fake.CallCount("NetworkRemove"))
}

func TestRunClosesOwnedEngineOnError(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	c := NewComposition("myapp").InjectContainerName("db", "DB_HOST")
	r := newTestRunner(fake, c)
	r.ownsEngine = true

	err := r.run(context.Background(), func(_ context.Context, _ *Operations) {})

	// The unresolvable injection fails the run before anything is created,
	// and the client the run opened is still closed.
	require.Error(t, err)
	assert.Equal(t, 1, fake.CallCount("Close"))
}

func TestRunStaticCreateFailureReleasesReference(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	stubInspect(fake)
	fake.ContainerCreateFn = func(_ context.Context, _ *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
		return container.CreateResponse{}, errors.New("no space left on device")
	}
	g := New().WithEngine(harbortest.NewEngine(fake))
	g.Provide(NewComposition("postgres").
		WithAlias("shared-pg").
		WithStaticContainer().
		WithLogOptions(nil))

	err := g.Run(context.Background(), func(_ context.Context, _ *Operations) {})
	require.Error(t, err)

	statics.mu.Lock()
	_, held := statics.entries["gantry-shared-pg"]
	statics.mu.Unlock()
	assert.False(t, held, "failed setup leaves no pool reference")
	assert.Zero(t, fake.CallCount("ContainerRemove"), "nothing was created")
}

func TestRunStaticConnectFailureRemovesContainer(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	stubInspect(fake)
	fake.NetworkConnectFn = func(_ context.Context, _, _ string, _ *network.EndpointSettings) error {
		return errors.New("network gone")
	}
	g := New().WithEngine(harbortest.NewEngine(fake))
	g.Provide(NewComposition("postgres").
		WithAlias("shared-pg").
		WithStaticContainer().
		WithLogOptions(nil))

	err := g.Run(context.Background(), func(_ context.Context, _ *Operations) {})
	require.Error(t, err)

	// The container reached the engine before the failure. Dropping the last
	// pool reference removes it rather than stranding it.
	assert.Equal(t, 1, fake.CallCount("ContainerRemove"))

	statics.mu.Lock()
	_, held := statics.entries["gantry-shared-pg"]
	statics.mu.Unlock()
	assert.False(t, held, "failed setup leaves no pool reference")
}

func TestRunExternalNetwork(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	stubInspect(fake)
	g := New().
		WithEngine(harbortest.NewEngine(fake)).
		WithExternalNetwork("shared-net")
	g.Provide(NewComposition("postgres").WithLogOptions(nil))

	err := g.Run(context.Background(), func(_ context.Context, _ *Operations) {})
	require.NoError(t, err)

	assert.Zero(t, fake.CallCount("NetworkCreate"))
	assert.Zero(t, fake.CallCount("NetworkRemove"))
}
