package harbor

import (
	"context"

	"github.com/docker/docker/api/types/network"
)

// NetworkCreate creates a bridge network with the managed labels applied.
// Returns the network id.
func (e *Engine) NetworkCreate(ctx context.Context, name string, extraLabels ...map[string]string) (string, error) {
	resp, err := e.api.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Labels: e.resourceLabels(extraLabels...),
	})
	if err != nil {
		return "", ErrNetworkCreateFailed(name, err)
	}
	return resp.ID, nil
}

// NetworkList lists managed networks matching the given labels.
func (e *Engine) NetworkList(ctx context.Context, labels map[string]string) ([]network.Summary, error) {
	f := e.newManagedFilter()
	for k, v := range labels {
		f.Add("label", k+"="+v)
	}
	list, err := e.api.NetworkList(ctx, network.ListOptions{Filters: f})
	if err != nil {
		return nil, ErrNetworkListFailed(err)
	}
	return list, nil
}

// NetworkRemove removes a network by name or id.
func (e *Engine) NetworkRemove(ctx context.Context, networkID string) error {
	if err := e.api.NetworkRemove(ctx, networkID); err != nil {
		return ErrNetworkRemoveFailed(networkID, err)
	}
	return nil
}

// NetworkConnect attaches a container to a network.
func (e *Engine) NetworkConnect(ctx context.Context, networkID, containerID string) error {
	if err := e.api.NetworkConnect(ctx, networkID, containerID, &network.EndpointSettings{}); err != nil {
		return ErrNetworkConnectFailed(networkID, err)
	}
	return nil
}

// NetworkDisconnect detaches a container from a network.
func (e *Engine) NetworkDisconnect(ctx context.Context, networkID, containerID string, force bool) error {
	return e.api.NetworkDisconnect(ctx, networkID, containerID, force)
}
