package gantry

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/gantry/pkg/harbor/harbortest"
)

func TestParsePruneStrategy(t *testing.T) {
	tests := []struct {
		raw  string
		want PruneStrategy
	}{
		{"", RemoveRegardless},
		{"always", RemoveRegardless},
		{"never", RunningRegardless},
		{"running_on_failure", RunningOnFailure},
		{"stop_on_failure", StopOnFailure},
		{"bogus", RemoveRegardless},
	}

	for _, tt := range tests {
		t.Run("value "+tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePruneStrategy(tt.raw))
		})
	}
}

func teardownCleanup() []*CleanupContainer {
	return []*CleanupContainer{
		{ID: "ctr-db", Name: "gantry-db"},
		{ID: "ctr-app", Name: "gantry-app"},
	}
}

func TestTeardownMatrix(t *testing.T) {
	tests := []struct {
		name        string
		prune       PruneStrategy
		failed      bool
		wantStops   int
		wantRemoves int
		wantNetRm   int
	}{
		{"remove regardless passed", RemoveRegardless, false, 0, 2, 1},
		{"remove regardless failed", RemoveRegardless, true, 0, 2, 1},
		{"running regardless passed", RunningRegardless, false, 0, 0, 0},
		{"running regardless failed", RunningRegardless, true, 0, 0, 0},
		{"running on failure passed", RunningOnFailure, false, 0, 2, 1},
		{"running on failure failed", RunningOnFailure, true, 0, 0, 0},
		{"stop on failure passed", StopOnFailure, false, 0, 2, 1},
		{"stop on failure failed", StopOnFailure, true, 2, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := harbortest.NewFakeAPIClient()
			r := newTestRunner(fake)
			r.prune = tt.prune

			r.teardown(context.Background(), teardownCleanup(), tt.failed)

			assert.Equal(t, tt.wantStops, fake.CallCount("ContainerStop"), "stops")
			assert.Equal(t, tt.wantRemoves, fake.CallCount("ContainerRemove"), "removes")
			assert.Equal(t, tt.wantNetRm, fake.CallCount("NetworkRemove"), "network removes")
		})
	}
}

func TestTeardownOrdering(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	r := newTestRunner(fake)
	r.volumeNames = []string{"pgdata-testrun"}

	r.teardown(context.Background(), teardownCleanup(), false)

	calls := fake.Calls()
	lastContainerRemove, firstNetworkRemove, firstVolumeRemove := -1, -1, -1
	for i, call := range calls {
		switch call {
		case "ContainerRemove":
			lastContainerRemove = i
		case "NetworkRemove":
			if firstNetworkRemove == -1 {
				firstNetworkRemove = i
			}
		case "VolumeRemove":
			if firstVolumeRemove == -1 {
				firstVolumeRemove = i
			}
		}
	}

	require.GreaterOrEqual(t, lastContainerRemove, 0)
	require.GreaterOrEqual(t, firstNetworkRemove, 0)
	require.GreaterOrEqual(t, firstVolumeRemove, 0)
	assert.Less(t, lastContainerRemove, firstNetworkRemove, "network removal waits for container removal")
	assert.Less(t, firstNetworkRemove, firstVolumeRemove, "volume removal comes last")
}

func TestTeardownStopPathRemovesNetworkOnly(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	r := newTestRunner(fake)
	r.prune = StopOnFailure
	r.volumeNames = []string{"pgdata-testrun"}

	r.teardown(context.Background(), teardownCleanup(), true)

	assert.Equal(t, 2, fake.CallCount("ContainerStop"))
	assert.Equal(t, 1, fake.CallCount("NetworkRemove"))
	assert.Zero(t, fake.CallCount("ContainerRemove"), "stopped containers stay inspectable")
	assert.Zero(t, fake.CallCount("VolumeRemove"), "volumes stay inspectable")
}

func TestTeardownStaticContainers(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	r := newTestRunner(fake)

	cleanup := []*CleanupContainer{
		{ID: "ctr-db", Name: "gantry-db"},
		{ID: "ctr-shared", Name: "gantry-shared", Static: true},
	}

	r.teardown(context.Background(), cleanup, false)

	// The static container is detached from the run network, and with no
	// pool reference held here it is never removed through the engine.
	assert.Equal(t, 1, fake.CallCount("NetworkDisconnect"))
	assert.Equal(t, 1, fake.CallCount("ContainerRemove"))
	assert.Equal(t, 1, fake.CallCount("NetworkRemove"))
}

func TestTeardownReleasesStaticsUnderRunningRegardless(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	r := newTestRunner(fake)
	r.prune = RunningRegardless

	entry := statics.acquire("gantry-shared")
	_, err := entry.create(func() (string, error) { return "ctr-shared", nil })
	require.NoError(t, err)

	cleanup := []*CleanupContainer{
		{ID: "ctr-db", Name: "gantry-db"},
		{ID: "ctr-shared", Name: "gantry-shared", Static: true},
	}

	r.teardown(context.Background(), cleanup, true)

	// The shared container's reference drops whatever the strategy says.
	// Holding the last one, this run removes it through the pool while the
	// run-scoped container and network are left alone.
	assert.Equal(t, 1, fake.CallCount("NetworkDisconnect"))
	assert.Equal(t, 1, fake.CallCount("ContainerRemove"))
	assert.Zero(t, fake.CallCount("NetworkRemove"))

	statics.mu.Lock()
	_, held := statics.entries["gantry-shared"]
	statics.mu.Unlock()
	assert.False(t, held, "pool entry forgotten after release")
}

func TestTeardownExternalNetworkKept(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	r := newTestRunner(fake)
	r.externalNetwork = true

	r.teardown(context.Background(), teardownCleanup(), false)

	assert.Zero(t, fake.CallCount("NetworkRemove"))
}

func TestTeardownErrorIsolation(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	fake.ContainerRemoveFn = func(_ context.Context, id string, _ container.RemoveOptions) error {
		if id == "ctr-db" {
			return errors.New("device busy")
		}
		return nil
	}
	r := newTestRunner(fake)
	r.volumeNames = []string{"pgdata-testrun"}

	// One failing removal never stops the rest of teardown.
	r.teardown(context.Background(), teardownCleanup(), false)

	assert.Equal(t, 2, fake.CallCount("ContainerRemove"))
	assert.Equal(t, 1, fake.CallCount("NetworkRemove"))
	assert.Equal(t, 1, fake.CallCount("VolumeRemove"))
}

func TestTeardownAlreadyRemovedIsRecoverable(t *testing.T) {
	fake := harbortest.NewFakeAPIClient()
	fake.ContainerRemoveFn = func(_ context.Context, id string, _ container.RemoveOptions) error {
		return harbortest.ErrNotFound(id)
	}
	r := newTestRunner(fake)

	// Already-gone containers are the expected case after a parallel
	// cleanup; the rest of teardown proceeds as on success.
	r.teardown(context.Background(), teardownCleanup(), false)

	assert.Equal(t, 2, fake.CallCount("ContainerRemove"))
	assert.Equal(t, 1, fake.CallCount("NetworkRemove"))
}
