package harbor

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/image"
)

// ImagePull pulls an image and drains the progress stream. The pull is not
// complete until the stream reports EOF, so the drain is not optional.
func (e *Engine) ImagePull(ctx context.Context, ref string) error {
	rc, err := e.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return ErrImagePullFailed(ref, err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return ErrImagePullFailed(ref, err)
	}
	return nil
}

// ImageID resolves an image reference to its local id.
func (e *Engine) ImageID(ctx context.Context, ref string) (string, error) {
	info, _, err := e.api.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return "", ErrImageNotFound(ref, err)
	}
	return info.ID, nil
}

// ImageExists reports whether an image is present on the local daemon.
func (e *Engine) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := e.api.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, ErrImageNotFound(ref, err)
	}
	return true, nil
}
