package gantry

// Operations is the test body's window into the running environment. It
// resolves handles to running containers and offers a fatal-abort escape
// hatch.
type Operations struct {
	containers keeper[*RunningContainer]
}

// abortError carries a fatal test-body condition up to the runner, which
// recovers it, tears the run down, and reports it as a TestBodyError.
type abortError struct {
	msg string
}

// Handle resolves a container handle. Unknown or ambiguous handles are fatal
// to the test body: the run is marked failed and torn down.
func (o *Operations) Handle(handle string) *RunningContainer {
	rc, err := o.containers.resolve(handle)
	if err != nil {
		panic(abortError{msg: err.Error()})
	}
	return rc
}

// TryHandle resolves a container handle, returning the lookup error instead
// of aborting.
func (o *Operations) TryHandle(handle string) (*RunningContainer, error) {
	return o.containers.resolve(handle)
}

// Failure aborts the test body with the given message. The run is marked
// failed and torn down.
func (o *Operations) Failure(msg string) {
	panic(abortError{msg: msg})
}
