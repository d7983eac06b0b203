// Package wait provides the standard readiness strategies for gantry
// containers. A strategy decides when a started container counts as ready
// and the run may proceed; compositions select one with WithWaitFor. Any
// type implementing gantry.WaitFor works as a custom strategy.
package wait

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sethvargo/go-retry"

	"github.com/schmitthub/gantry"
)

// DefaultTimeout bounds a strategy when its Timeout field is zero.
const DefaultTimeout = 60 * time.Second

// DefaultInterval is the polling interval when a strategy's Interval field
// is zero.
const DefaultInterval = 500 * time.Millisecond

// NoWait considers the container ready as soon as its start call returned.
// This is the behavior compositions get without an explicit strategy.
type NoWait struct{}

func (NoWait) WaitForReady(ctx context.Context, c *gantry.PendingContainer) (*gantry.RunningContainer, error) {
	return c.RunningContainer(ctx)
}

// RunningWait polls the engine until the container reports a running state.
type RunningWait struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (w *RunningWait) WaitForReady(ctx context.Context, c *gantry.PendingContainer) (*gantry.RunningContainer, error) {
	err := pollState(ctx, c, w.Timeout, w.Interval, func(state *types.ContainerState) bool {
		return state.Running
	})
	if err != nil {
		return nil, err
	}
	return c.RunningContainer(ctx)
}

// ExitedWait polls the engine until the container has exited. Used for
// one-shot containers such as schema loaders, typically combined with a
// strict start policy.
type ExitedWait struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (w *ExitedWait) WaitForReady(ctx context.Context, c *gantry.PendingContainer) (*gantry.RunningContainer, error) {
	err := pollState(ctx, c, w.Timeout, w.Interval, func(state *types.ContainerState) bool {
		return !state.Running && state.Status == "exited"
	})
	if err != nil {
		return nil, err
	}
	return c.RunningContainer(ctx)
}

func pollState(ctx context.Context, c *gantry.PendingContainer, timeout, interval time.Duration, ready func(*types.ContainerState) bool) error {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if interval == 0 {
		interval = DefaultInterval
	}

	backoff := retry.WithMaxDuration(timeout, retry.NewConstant(interval))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		info, err := c.Engine().ContainerInspect(ctx, c.ID)
		if err != nil {
			return err
		}
		if info.State == nil || !ready(info.State) {
			return retry.RetryableError(errors.New("container not ready"))
		}
		return nil
	})
}

// MessageWait follows the container's output until a message appears.
type MessageWait struct {
	// Message is the substring to look for.
	Message string

	// Stdout selects the stdout stream; by default stderr is followed,
	// where most images write their startup banner.
	Stdout bool

	Timeout time.Duration
}

func (w *MessageWait) WaitForReady(ctx context.Context, c *gantry.PendingContainer) (*gantry.RunningContainer, error) {
	timeout := w.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rc, err := c.Engine().ContainerLogs(ctx, c.ID, container.LogsOptions{
		ShowStdout: w.Stdout,
		ShowStderr: !w.Stdout,
		Follow:     true,
	})
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	scanner := &messageScanner{message: []byte(w.Message), found: make(chan struct{})}
	copyDone := make(chan error, 1)
	go func() {
		// The engine multiplexes both streams over one connection even
		// when only one was requested.
		_, err := stdcopy.StdCopy(scanner, scanner, rc)
		copyDone <- err
	}()

	select {
	case <-scanner.found:
		return c.RunningContainer(ctx)
	case err := <-copyDone:
		if err != nil {
			return nil, err
		}
		return nil, errors.New("log stream ended before message appeared: " + w.Message)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// messageScanner watches a write stream for a substring, buffering only the
// tail needed to match across write boundaries.
type messageScanner struct {
	mu      sync.Mutex
	message []byte
	tail    []byte
	done    bool
	found   chan struct{}
}

var _ io.Writer = (*messageScanner)(nil)

func (s *messageScanner) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return len(p), nil
	}

	s.tail = append(s.tail, p...)
	if bytes.Contains(s.tail, s.message) {
		s.done = true
		close(s.found)
		return len(p), nil
	}
	if keep := len(s.message) - 1; len(s.tail) > keep {
		s.tail = s.tail[len(s.tail)-keep:]
	}
	return len(p), nil
}
