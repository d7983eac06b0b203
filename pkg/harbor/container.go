package harbor

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
)

// ContainerCreate creates a container with the managed labels applied.
// Labels already present in config win over the engine's labels.
func (e *Engine) ContainerCreate(
	ctx context.Context,
	config *container.Config,
	hostConfig *container.HostConfig,
	networkingConfig *network.NetworkingConfig,
	name string,
	extraLabels ...map[string]string,
) (string, error) {
	config.Labels = MergeLabels(
		e.resourceLabels(extraLabels...),
		config.Labels,
	)

	resp, err := e.api.ContainerCreate(ctx, config, hostConfig, networkingConfig, nil, name)
	if err != nil {
		return "", ErrContainerCreateFailed(name, err)
	}
	return resp.ID, nil
}

// ContainerStart starts a created container.
func (e *Engine) ContainerStart(ctx context.Context, containerID string) error {
	if err := e.api.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return ErrContainerStartFailed(containerID, err)
	}
	return nil
}

// ContainerStop stops a container. A nil timeout uses the daemon default.
func (e *Engine) ContainerStop(ctx context.Context, containerID string, timeout *int) error {
	if err := e.api.ContainerStop(ctx, containerID, container.StopOptions{Timeout: timeout}); err != nil {
		return ErrContainerStopFailed(containerID, err)
	}
	return nil
}

// ContainerRemove removes a container. With force true a running container
// is killed first; anonymous volumes are removed alongside.
func (e *Engine) ContainerRemove(ctx context.Context, containerID string, force bool) error {
	err := e.api.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: true,
	})
	if err != nil {
		return ErrContainerRemoveFailed(containerID, err)
	}
	return nil
}

// ContainerInspect returns the daemon's view of a container.
func (e *Engine) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	info, err := e.api.ContainerInspect(ctx, containerID)
	if err != nil {
		if IsNotFound(err) {
			return types.ContainerJSON{}, err
		}
		return types.ContainerJSON{}, ErrContainerInspectFailed(containerID, err)
	}
	return info, nil
}

// ContainerList lists containers; the managed label filter is injected.
func (e *Engine) ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error) {
	options.Filters = e.injectManagedFilter(options.Filters)
	list, err := e.api.ContainerList(ctx, options)
	if err != nil {
		return nil, ErrContainerListFailed(err)
	}
	return list, nil
}

// ContainerListByLabels lists managed containers matching additional labels.
func (e *Engine) ContainerListByLabels(ctx context.Context, labels map[string]string, all bool) ([]types.Container, error) {
	f := e.newManagedFilter()
	for k, v := range labels {
		f.Add("label", k+"="+v)
	}
	list, err := e.api.ContainerList(ctx, container.ListOptions{All: all, Filters: f})
	if err != nil {
		return nil, ErrContainerListFailed(err)
	}
	return list, nil
}

// ContainerLogs streams container logs.
func (e *Engine) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	rc, err := e.api.ContainerLogs(ctx, containerID, options)
	if err != nil {
		return nil, ErrContainerLogsFailed(containerID, err)
	}
	return rc, nil
}

// RemoveContainerIfExists force-removes the named container when present.
// Returns (false, nil) when no such container exists.
func (e *Engine) RemoveContainerIfExists(ctx context.Context, name string) (bool, error) {
	_, err := e.api.ContainerInspect(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, ErrContainerInspectFailed(name, err)
	}
	if err := e.ContainerRemove(ctx, name, true); err != nil {
		return false, err
	}
	return true, nil
}
