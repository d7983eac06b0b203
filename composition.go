package gantry

import (
	"sort"

	"github.com/docker/go-connections/nat"
)

// StartPolicy controls how a container's start is scheduled relative to the
// other containers of the run.
type StartPolicy int

const (
	// PolicyRelaxed containers start concurrently with each other. Default.
	PolicyRelaxed StartPolicy = iota

	// PolicyStrict containers start sequentially in declaration order;
	// later strict containers never start after a strict failure.
	PolicyStrict
)

// NamedVolume declares an engine-managed volume mounted into the container.
// The bare name is suffixed with the run id during resolution, so equal bare
// names within one run share the same volume.
type NamedVolume struct {
	// Name is the user-declared bare volume name.
	Name string

	// ContainerPath is the mount point inside the container.
	ContainerPath string
}

type envInjection struct {
	handle string
	envKey string
}

// Composition declares one container of a run: its image, configuration,
// scheduling policy and readiness strategy. Build one with NewComposition
// and hand it to Gantry.Provide.
type Composition struct {
	img       *Image
	userAlias string

	finalName string

	env          map[string]string
	cmd          []string
	binds        []string
	namedVolumes []NamedVolume
	policy       StartPolicy
	waitFor      WaitFor
	logOpts      *LogOptions
	static       bool
	injections   []envInjection

	publishAll   bool
	portBindings nat.PortMap
}

// NewComposition declares a container from the image repository, pulled from
// a registry with tag "latest". The handle defaults to the repository.
func NewComposition(repository string) *Composition {
	return &Composition{
		img:     NewImage(repository),
		env:     make(map[string]string),
		logOpts: DefaultLogOptions(),
	}
}

// NewCompositionFromImage declares a container from a fully configured
// image.
func NewCompositionFromImage(img *Image) *Composition {
	return &Composition{
		img:     img,
		env:     make(map[string]string),
		logOpts: DefaultLogOptions(),
	}
}

// WithAlias overrides the handle used to look the container up. Required
// when two compositions share a repository.
func (c *Composition) WithAlias(alias string) *Composition {
	c.userAlias = alias
	return c
}

// WithTag sets the image tag.
func (c *Composition) WithTag(tag string) *Composition {
	c.img.WithTag(tag)
	return c
}

// WithEnv sets one environment variable.
func (c *Composition) WithEnv(key, value string) *Composition {
	c.env[key] = value
	return c
}

// WithCmd overrides the container command.
func (c *Composition) WithCmd(cmd ...string) *Composition {
	c.cmd = cmd
	return c
}

// WithStartPolicy sets the scheduling policy.
func (c *Composition) WithStartPolicy(policy StartPolicy) *Composition {
	c.policy = policy
	return c
}

// WithWaitFor sets the readiness strategy.
func (c *Composition) WithWaitFor(w WaitFor) *Composition {
	c.waitFor = w
	return c
}

// WithLogOptions overrides log capture for this container. Nil disables
// capture entirely.
func (c *Composition) WithLogOptions(opts *LogOptions) *Composition {
	c.logOpts = opts
	return c
}

// WithBindMount mounts a host path into the container.
func (c *Composition) WithBindMount(hostPath, containerPath string) *Composition {
	c.binds = append(c.binds, hostPath+":"+containerPath)
	return c
}

// WithNamedVolume mounts an engine-managed volume. The name is suffixed with
// the run id during resolution.
func (c *Composition) WithNamedVolume(name, containerPath string) *Composition {
	c.namedVolumes = append(c.namedVolumes, NamedVolume{Name: name, ContainerPath: containerPath})
	return c
}

// WithStaticContainer marks the container as shared across concurrent runs.
// Its name gets no random suffix; runs rendezvous on the stable name and the
// container is removed once the last run releases it.
func (c *Composition) WithStaticContainer() *Composition {
	c.static = true
	return c
}

// WithPublishedPorts publishes all exposed ports to random host ports.
func (c *Composition) WithPublishedPorts() *Composition {
	c.publishAll = true
	return c
}

// WithPortMapping publishes one container port to a fixed host port. Both in
// nat syntax, e.g. ("5432/tcp", "15432").
func (c *Composition) WithPortMapping(containerPort nat.Port, hostPort string) *Composition {
	if c.portBindings == nil {
		c.portBindings = nat.PortMap{}
	}
	c.portBindings[containerPort] = append(c.portBindings[containerPort], nat.PortBinding{HostPort: hostPort})
	return c
}

// InjectContainerName arranges for the finalized name of the container
// behind handle to be set as envKey in this container's environment, after
// name resolution. This is how containers address each other before names
// are known.
func (c *Composition) InjectContainerName(handle, envKey string) *Composition {
	c.injections = append(c.injections, envInjection{handle: handle, envKey: envKey})
	return c
}

// Handle returns the lookup key: the alias when set, the image repository
// otherwise.
func (c *Composition) Handle() string {
	if c.userAlias != "" {
		return c.userAlias
	}
	return c.img.Repository()
}

// envSlice renders the env map as the engine's KEY=value list, sorted for
// deterministic creation.
func (c *Composition) envSlice() []string {
	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+c.env[k])
	}
	return out
}
