package harbor

import (
	"context"

	"github.com/docker/docker/api/types/volume"
)

// VolumeRemove removes a volume.
func (e *Engine) VolumeRemove(ctx context.Context, name string, force bool) error {
	if err := e.api.VolumeRemove(ctx, name, force); err != nil {
		return ErrVolumeRemoveFailed(name, err)
	}
	return nil
}

// VolumeList lists managed volumes matching the given labels.
func (e *Engine) VolumeList(ctx context.Context, labels map[string]string) (volume.ListResponse, error) {
	f := e.newManagedFilter()
	for k, v := range labels {
		f.Add("label", k+"="+v)
	}
	resp, err := e.api.VolumeList(ctx, volume.ListOptions{Filters: f})
	if err != nil {
		return volume.ListResponse{}, ErrVolumeListFailed(err)
	}
	return resp, nil
}
