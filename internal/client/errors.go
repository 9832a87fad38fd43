package client

import (
	"errors"
	"fmt"
)

var (
	// ErrReleased is returned by every operation on a released backend.
	ErrReleased = errors.New("backend used after release")

	// ErrNotAvailable is returned by Dispatch before EnsureAvailable has
	// succeeded for the current model.
	ErrNotAvailable = errors.New("model is not available yet, call EnsureAvailable first")

	// ErrModelUnavailable means the backend cannot make the model ready,
	// for example a remote server that does not serve it.
	ErrModelUnavailable = errors.New("model unavailable")
)

// UnsupportedBackendError names an identifier missing from the registry.
type UnsupportedBackendError struct {
	Identifier string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("unsupported model %q: no backend is registered for it", e.Identifier)
}

// TransportError describes a failed exchange with the generation service.
// Backends log it and report a missing reply instead of returning it.
type TransportError struct {
	Backend string
	Model   string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport failure (model %s): %v", e.Backend, e.Model, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedReplyError carries reply text that held no valid instruction set.
type MalformedReplyError struct {
	Raw string
	Err error
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("malformed reply: %v", e.Err)
}

func (e *MalformedReplyError) Unwrap() error {
	return e.Err
}
