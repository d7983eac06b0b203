package gantry

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// LogSource selects which container streams to capture.
type LogSource int

const (
	// LogSourceStderr captures only the container's stderr.
	LogSourceStderr LogSource = iota

	// LogSourceStdout captures only the container's stdout.
	LogSourceStdout

	// LogSourceBoth captures both streams.
	LogSourceBoth
)

// LogAction selects where captured logs go.
type LogAction int

const (
	// LogActionForward writes each captured stream to the matching stream
	// of the test process.
	LogActionForward LogAction = iota

	// LogActionForwardToStdout writes everything captured to stdout.
	LogActionForwardToStdout

	// LogActionForwardToStderr writes everything captured to stderr.
	LogActionForwardToStderr

	// LogActionForwardToFile writes everything captured to a file named
	// after the container inside LogOptions.Directory.
	LogActionForwardToFile
)

// LogPolicy selects when logs are captured.
type LogPolicy int

const (
	// LogPolicyOnError captures logs only when the run failed.
	LogPolicyOnError LogPolicy = iota

	// LogPolicyAlways captures logs on every run.
	LogPolicyAlways
)

// LogOptions configures per-container log capture, performed after the test
// body and before teardown.
type LogOptions struct {
	Source LogSource
	Action LogAction
	Policy LogPolicy

	// Directory receives the log file for LogActionForwardToFile.
	Directory string
}

// DefaultLogOptions captures stderr to the test process's stderr when the
// run failed.
func DefaultLogOptions() *LogOptions {
	return &LogOptions{
		Source: LogSourceStderr,
		Action: LogActionForward,
		Policy: LogPolicyOnError,
	}
}

// capture fetches the container's logs and writes them per options. The
// engine multiplexes both streams over one connection; stdcopy splits them
// back apart.
func (c *CleanupContainer) capture(ctx context.Context, failed bool) error {
	opts := c.logOpts
	if opts == nil {
		return nil
	}
	if opts.Policy == LogPolicyOnError && !failed {
		return nil
	}

	rc, err := c.engine.ContainerLogs(ctx, c.ID, container.LogsOptions{
		ShowStdout: opts.Source == LogSourceStdout || opts.Source == LogSourceBoth,
		ShowStderr: opts.Source == LogSourceStderr || opts.Source == LogSourceBoth,
	})
	if err != nil {
		return &LogWriteError{Container: c.Name, Err: err}
	}
	defer rc.Close()

	stdout, stderr, cleanup, err := opts.destinations(c.Name)
	if err != nil {
		return &LogWriteError{Container: c.Name, Err: err}
	}
	defer cleanup()

	if _, err := stdcopy.StdCopy(stdout, stderr, rc); err != nil {
		return &LogWriteError{Container: c.Name, Err: err}
	}
	return nil
}

// destinations maps the action to a (stdout, stderr) writer pair plus a
// cleanup func for any file opened.
func (o *LogOptions) destinations(containerName string) (io.Writer, io.Writer, func(), error) {
	noop := func() {}
	switch o.Action {
	case LogActionForwardToStdout:
		return os.Stdout, os.Stdout, noop, nil
	case LogActionForwardToStderr:
		return os.Stderr, os.Stderr, noop, nil
	case LogActionForwardToFile:
		path := filepath.Join(o.Directory, containerName+".log")
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, noop, err
		}
		return f, f, func() { f.Close() }, nil
	default:
		return os.Stdout, os.Stderr, noop, nil
	}
}
