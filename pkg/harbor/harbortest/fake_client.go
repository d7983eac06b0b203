// Package harbortest provides a test double for harbor.APIClient using the
// function-field pattern. Each method harbor calls has a corresponding Fn
// field; when set, the fake delegates to it. Unset fields fall back to a
// benign success default so orchestration tests only configure the calls
// they care about. Every invocation is recorded in Calls.
package harbortest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/schmitthub/gantry/pkg/harbor"
)

// ErrNotFound returns a daemon-style not-found error for the resource,
// recognized by harbor.IsNotFound.
func ErrNotFound(resource string) error {
	return cerrdefs.ErrNotFound.WithMessage("no such resource: " + resource)
}

// FakeAPIClient is a function-field test double for harbor.APIClient.
type FakeAPIClient struct {
	mu    sync.Mutex
	calls []string

	// created counts ContainerCreate invocations, used for default ids.
	created int

	PingFn  func(ctx context.Context) (types.Ping, error)
	CloseFn func() error

	ContainerCreateFn  func(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStartFn   func(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStopFn    func(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemoveFn  func(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspectFn func(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerListFn    func(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerLogsFn    func(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)

	NetworkCreateFn     func(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	NetworkListFn       func(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
	NetworkRemoveFn     func(ctx context.Context, networkID string) error
	NetworkConnectFn    func(ctx context.Context, networkID, containerID string, config *network.EndpointSettings) error
	NetworkDisconnectFn func(ctx context.Context, networkID, containerID string, force bool) error

	VolumeRemoveFn func(ctx context.Context, volumeID string, force bool) error
	VolumeListFn   func(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)

	ImagePullFn           func(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ImageInspectWithRawFn func(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImageListFn           func(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
}

// NewFakeAPIClient returns a fake whose unset function fields succeed with
// plausible defaults: created containers get sequential ids, inspect reports
// a running container with an address on every network, pulls succeed.
func NewFakeAPIClient() *FakeAPIClient {
	return &FakeAPIClient{}
}

// NewEngine wraps the fake in a harbor.Engine configured with gantry's
// production label prefix.
func NewEngine(fake *FakeAPIClient) *harbor.Engine {
	return harbor.NewFromExisting(fake, harbor.Options{LabelPrefix: harbor.LabelPrefix})
}

func (f *FakeAPIClient) record(method string) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()
}

// Calls returns a copy of the recorded method names, in invocation order.
func (f *FakeAPIClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times method was invoked.
func (f *FakeAPIClient) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Reset clears the call log.
func (f *FakeAPIClient) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func (f *FakeAPIClient) Ping(ctx context.Context) (types.Ping, error) {
	f.record("Ping")
	if f.PingFn != nil {
		return f.PingFn(ctx)
	}
	return types.Ping{APIVersion: "1.47"}, nil
}

func (f *FakeAPIClient) Close() error {
	f.record("Close")
	if f.CloseFn != nil {
		return f.CloseFn()
	}
	return nil
}

func (f *FakeAPIClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.record("ContainerCreate")
	if f.ContainerCreateFn != nil {
		return f.ContainerCreateFn(ctx, config, hostConfig, networkingConfig, platform, containerName)
	}
	f.mu.Lock()
	f.created++
	id := fmt.Sprintf("ctr-%03d", f.created)
	f.mu.Unlock()
	return container.CreateResponse{ID: id}, nil
}

func (f *FakeAPIClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.record("ContainerStart")
	if f.ContainerStartFn != nil {
		return f.ContainerStartFn(ctx, containerID, options)
	}
	return nil
}

func (f *FakeAPIClient) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	f.record("ContainerStop")
	if f.ContainerStopFn != nil {
		return f.ContainerStopFn(ctx, containerID, options)
	}
	return nil
}

func (f *FakeAPIClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.record("ContainerRemove")
	if f.ContainerRemoveFn != nil {
		return f.ContainerRemoveFn(ctx, containerID, options)
	}
	return nil
}

func (f *FakeAPIClient) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	f.record("ContainerInspect")
	if f.ContainerInspectFn != nil {
		return f.ContainerInspectFn(ctx, containerID)
	}
	// Default: the container exists, runs, and answers on a fixed address.
	return RunningInspectFixture(containerID, "", "172.18.0.2"), nil
}

func (f *FakeAPIClient) ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error) {
	f.record("ContainerList")
	if f.ContainerListFn != nil {
		return f.ContainerListFn(ctx, options)
	}
	return nil, nil
}

func (f *FakeAPIClient) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	f.record("ContainerLogs")
	if f.ContainerLogsFn != nil {
		return f.ContainerLogsFn(ctx, containerID, options)
	}
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *FakeAPIClient) NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
	f.record("NetworkCreate")
	if f.NetworkCreateFn != nil {
		return f.NetworkCreateFn(ctx, name, options)
	}
	return network.CreateResponse{ID: "net-" + name}, nil
}

func (f *FakeAPIClient) NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error) {
	f.record("NetworkList")
	if f.NetworkListFn != nil {
		return f.NetworkListFn(ctx, options)
	}
	return nil, nil
}

func (f *FakeAPIClient) NetworkRemove(ctx context.Context, networkID string) error {
	f.record("NetworkRemove")
	if f.NetworkRemoveFn != nil {
		return f.NetworkRemoveFn(ctx, networkID)
	}
	return nil
}

func (f *FakeAPIClient) NetworkConnect(ctx context.Context, networkID, containerID string, config *network.EndpointSettings) error {
	f.record("NetworkConnect")
	if f.NetworkConnectFn != nil {
		return f.NetworkConnectFn(ctx, networkID, containerID, config)
	}
	return nil
}

func (f *FakeAPIClient) NetworkDisconnect(ctx context.Context, networkID, containerID string, force bool) error {
	f.record("NetworkDisconnect")
	if f.NetworkDisconnectFn != nil {
		return f.NetworkDisconnectFn(ctx, networkID, containerID, force)
	}
	return nil
}

func (f *FakeAPIClient) VolumeRemove(ctx context.Context, volumeID string, force bool) error {
	f.record("VolumeRemove")
	if f.VolumeRemoveFn != nil {
		return f.VolumeRemoveFn(ctx, volumeID, force)
	}
	return nil
}

func (f *FakeAPIClient) VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error) {
	f.record("VolumeList")
	if f.VolumeListFn != nil {
		return f.VolumeListFn(ctx, options)
	}
	return volume.ListResponse{}, nil
}

func (f *FakeAPIClient) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	f.record("ImagePull")
	if f.ImagePullFn != nil {
		return f.ImagePullFn(ctx, refStr, options)
	}
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *FakeAPIClient) ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error) {
	f.record("ImageInspectWithRaw")
	if f.ImageInspectWithRawFn != nil {
		return f.ImageInspectWithRawFn(ctx, imageID)
	}
	return types.ImageInspect{ID: "sha256:" + imageID}, nil, nil
}

func (f *FakeAPIClient) ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error) {
	f.record("ImageList")
	if f.ImageListFn != nil {
		return f.ImageListFn(ctx, options)
	}
	return nil, nil
}

var _ harbor.APIClient = (*FakeAPIClient)(nil)

// RunningInspectFixture builds an inspect response for a running container
// with the given id, attached to networkName (or a default bridge when
// empty) at the given address.
func RunningInspectFixture(id, networkName, ip string) types.ContainerJSON {
	if networkName == "" {
		networkName = "bridge"
	}
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:   id,
			Name: "/" + id,
			State: &types.ContainerState{
				Status:  "running",
				Running: true,
			},
		},
		Config: &container.Config{
			Labels: map[string]string{
				harbor.LabelManaged: harbor.ManagedLabelValue,
			},
		},
		NetworkSettings: &types.NetworkSettings{
			NetworkSettingsBase: types.NetworkSettingsBase{
				Ports: nat.PortMap{},
			},
			Networks: map[string]*network.EndpointSettings{
				networkName: {IPAddress: ip},
			},
		},
	}
}

// ExitedInspectFixture builds an inspect response for an exited container.
func ExitedInspectFixture(id string, exitCode int) types.ContainerJSON {
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:   id,
			Name: "/" + id,
			State: &types.ContainerState{
				Status:   "exited",
				ExitCode: exitCode,
			},
		},
		Config: &container.Config{
			Labels: map[string]string{
				harbor.LabelManaged: harbor.ManagedLabelValue,
			},
		},
		NetworkSettings: &types.NetworkSettings{
			Networks: map[string]*network.EndpointSettings{},
		},
	}
}
