package gantry

import (
	"context"
	"sync"

	"github.com/schmitthub/gantry/internal/logger"
	"github.com/schmitthub/gantry/pkg/harbor"
)

// Source describes where a container image comes from.
type Source int

const (
	// SourceRegistry images are pulled from a registry according to the
	// image's pull policy. Default.
	SourceRegistry Source = iota

	// SourceLocal images are never pulled; they must already exist on the
	// daemon.
	SourceLocal
)

// PullPolicy controls when a registry image is pulled.
type PullPolicy int

const (
	// PullIfNotPresent pulls only when the image is missing locally.
	PullIfNotPresent PullPolicy = iota

	// PullAlways pulls on every run.
	PullAlways
)

// Image identifies a container image and how to obtain it.
type Image struct {
	repository string
	tag        string
	source     Source
	sourceSet  bool
	pullPolicy PullPolicy

	mu sync.Mutex
	id string
}

// NewImage returns an image with tag "latest", registry source, and the
// if-not-present pull policy.
func NewImage(repository string) *Image {
	return &Image{
		repository: repository,
		tag:        "latest",
		source:     SourceRegistry,
	}
}

// WithTag sets the image tag.
func (i *Image) WithTag(tag string) *Image {
	i.tag = tag
	return i
}

// WithSource sets where the image comes from, overriding the run's default.
func (i *Image) WithSource(source Source) *Image {
	i.source = source
	i.sourceSet = true
	return i
}

// WithPullPolicy sets when a registry image is pulled.
func (i *Image) WithPullPolicy(policy PullPolicy) *Image {
	i.pullPolicy = policy
	return i
}

// Repository returns the image repository.
func (i *Image) Repository() string {
	return i.repository
}

// Ref returns the full image reference, repository:tag.
func (i *Image) Ref() string {
	return i.repository + ":" + i.tag
}

// ID returns the resolved local image id. Empty until pull has run.
func (i *Image) ID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.id
}

// pull makes the image available on the daemon and resolves its local id.
// Local images are only verified to exist.
func (i *Image) pull(ctx context.Context, engine *harbor.Engine) error {
	ref := i.Ref()

	switch i.source {
	case SourceLocal:
		exists, err := engine.ImageExists(ctx, ref)
		if err != nil {
			return &DaemonError{Err: err}
		}
		if !exists {
			return startupErrorf("local image %q not present on the daemon", ref)
		}
	case SourceRegistry:
		need := i.pullPolicy == PullAlways
		if !need {
			exists, err := engine.ImageExists(ctx, ref)
			if err != nil {
				return &DaemonError{Err: err}
			}
			need = !exists
		}
		if need {
			logger.Log.Debug().Str("image", ref).Msg("pulling image")
			if err := engine.ImagePull(ctx, ref); err != nil {
				return &StartupError{Err: err}
			}
		}
	}

	id, err := engine.ImageID(ctx, ref)
	if err != nil {
		return &StartupError{Err: err}
	}

	i.mu.Lock()
	i.id = id
	i.mu.Unlock()
	return nil
}
