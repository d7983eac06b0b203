package harbor

import "fmt"

// OpError wraps an underlying Docker SDK error with the operation and the
// resource it concerned.
type OpError struct {
	Op       string // operation that failed (e.g. "create", "network_remove")
	Resource string // resource name or id, if known
	Err      error  // underlying error
}

func (e *OpError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Resource, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// ErrDaemonUnreachable returns an error for a failed daemon connection.
func ErrDaemonUnreachable(err error) *OpError {
	return &OpError{Op: "connect", Err: err}
}

// ErrContainerCreateFailed returns an error for a failed container creation.
func ErrContainerCreateFailed(name string, err error) *OpError {
	return &OpError{Op: "create", Resource: name, Err: err}
}

// ErrContainerStartFailed returns an error for a failed container start.
func ErrContainerStartFailed(id string, err error) *OpError {
	return &OpError{Op: "start", Resource: id, Err: err}
}

// ErrContainerStopFailed returns an error for a failed container stop.
func ErrContainerStopFailed(id string, err error) *OpError {
	return &OpError{Op: "stop", Resource: id, Err: err}
}

// ErrContainerRemoveFailed returns an error for a failed container removal.
func ErrContainerRemoveFailed(id string, err error) *OpError {
	return &OpError{Op: "remove", Resource: id, Err: err}
}

// ErrContainerInspectFailed returns an error for a failed container inspect.
func ErrContainerInspectFailed(id string, err error) *OpError {
	return &OpError{Op: "inspect", Resource: id, Err: err}
}

// ErrContainerLogsFailed returns an error for a failed log fetch.
func ErrContainerLogsFailed(id string, err error) *OpError {
	return &OpError{Op: "logs", Resource: id, Err: err}
}

// ErrContainerListFailed returns an error for a failed container list.
func ErrContainerListFailed(err error) *OpError {
	return &OpError{Op: "list", Err: err}
}

// ErrNetworkCreateFailed returns an error for a failed network creation.
func ErrNetworkCreateFailed(name string, err error) *OpError {
	return &OpError{Op: "network_create", Resource: name, Err: err}
}

// ErrNetworkListFailed returns an error for a failed network list.
func ErrNetworkListFailed(err error) *OpError {
	return &OpError{Op: "network_list", Err: err}
}

// ErrNetworkRemoveFailed returns an error for a failed network removal.
func ErrNetworkRemoveFailed(name string, err error) *OpError {
	return &OpError{Op: "network_remove", Resource: name, Err: err}
}

// ErrNetworkConnectFailed returns an error for a failed network attach.
func ErrNetworkConnectFailed(name string, err error) *OpError {
	return &OpError{Op: "network_connect", Resource: name, Err: err}
}

// ErrVolumeRemoveFailed returns an error for a failed volume removal.
func ErrVolumeRemoveFailed(name string, err error) *OpError {
	return &OpError{Op: "volume_remove", Resource: name, Err: err}
}

// ErrVolumeListFailed returns an error for a failed volume list.
func ErrVolumeListFailed(err error) *OpError {
	return &OpError{Op: "volume_list", Err: err}
}

// ErrImagePullFailed returns an error for a failed image pull.
func ErrImagePullFailed(ref string, err error) *OpError {
	return &OpError{Op: "pull", Resource: ref, Err: err}
}

// ErrImageNotFound returns an error for a missing image.
func ErrImageNotFound(ref string, err error) *OpError {
	return &OpError{Op: "image_inspect", Resource: ref, Err: err}
}
