package context

import "fmt"

// ContextUnavailableError reports that the static context asset could not be
// read. The asset ships with every deployment, so this is fatal to backend
// construction.
type ContextUnavailableError struct {
	Path string
	Err  error
}

func (e *ContextUnavailableError) Error() string {
	return fmt.Sprintf("context asset %s unavailable: %v", e.Path, e.Err)
}

func (e *ContextUnavailableError) Unwrap() error {
	return e.Err
}
