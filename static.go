package gantry

import (
	"context"
	"sync"

	"github.com/schmitthub/gantry/internal/logger"
	"github.com/schmitthub/gantry/pkg/harbor"
)

// staticPool tracks containers shared across concurrent runs within this
// process. Entries are keyed by the stable container name; the first
// acquirer physically creates (and later starts) the container, subsequent
// acquirers reuse it and bump the reference count. The container is removed
// only when the count returns to zero.
type staticPool struct {
	mu      sync.Mutex
	entries map[string]*staticEntry
}

type staticEntry struct {
	// mu serializes the create and start decisions per identity.
	mu sync.Mutex

	refs    int
	id      string
	started bool
}

// statics is the process-wide pool, mirroring the cross-run lifetime of the
// containers it tracks.
var statics = &staticPool{entries: make(map[string]*staticEntry)}

// acquire takes a reference on name, creating the entry if needed.
func (p *staticPool) acquire(name string) *staticEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[name]
	if !ok {
		e = &staticEntry{}
		p.entries[name] = e
	}
	e.refs++
	return e
}

// create returns the shared container id, invoking createFn exactly once per
// identity. A failed create leaves the entry unclaimed for the next caller.
func (e *staticEntry) create(createFn func() (string, error)) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id != "" {
		return e.id, nil
	}
	id, err := createFn()
	if err != nil {
		return "", err
	}
	e.id = id
	return id, nil
}

// start invokes startFn exactly once per identity. Concurrent runs block
// until the first start decision resolves.
func (e *staticEntry) start(startFn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	if err := startFn(); err != nil {
		return err
	}
	e.started = true
	return nil
}

// release drops a reference on name. When the count reaches zero the
// container is force-removed and the entry forgotten. Removal failures are
// reported to the caller; the entry is forgotten regardless so a broken
// container cannot be reused.
func (p *staticPool) release(ctx context.Context, engine *harbor.Engine, name string) error {
	p.mu.Lock()
	e, ok := p.entries[name]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	e.refs--
	if e.refs > 0 {
		p.mu.Unlock()
		logger.Log.Debug().Str("container", name).Int("refs", e.refs).Msg("static container still referenced")
		return nil
	}
	delete(p.entries, name)
	id := e.id
	p.mu.Unlock()

	if id == "" {
		return nil
	}
	return engine.ContainerRemove(ctx, id, true)
}
