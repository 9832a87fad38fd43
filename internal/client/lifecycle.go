package client

import (
	"fmt"
	"sync"
)

// State is a backend's lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateAvailable
	StateActive
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAvailable:
		return "available"
	case StateActive:
		return "active"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type lifecycle struct {
	mu        sync.Mutex
	model     string
	state     State
	available map[string]bool
}

func (l *lifecycle) init(model string) {
	l.model = model
	l.available = make(map[string]bool)
}

func (l *lifecycle) Model() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.model
}

func (l *lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *lifecycle) checkUsable() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateReleased {
		return ErrReleased
	}
	return nil
}

// ensure runs fetch unless model is already known to be available.
func (l *lifecycle) ensure(model string, fetch func() error) error {
	l.mu.Lock()
	if l.state == StateReleased {
		l.mu.Unlock()
		return ErrReleased
	}
	if l.available[model] {
		l.markAvailableLocked(model)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := fetch(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateReleased {
		return ErrReleased
	}
	l.available[model] = true
	l.markAvailableLocked(model)
	return nil
}

func (l *lifecycle) markAvailableLocked(model string) {
	if model == l.model && l.state == StateUninitialized {
		l.state = StateAvailable
	}
}

// activate marks the start of a dispatch.
func (l *lifecycle) activate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateReleased:
		return ErrReleased
	case StateUninitialized:
		return ErrNotAvailable
	}
	l.state = StateActive
	return nil
}

// switchModel retargets the lifecycle. The backend lands in Available when
// the new model is already known to be ready, Uninitialized otherwise.
func (l *lifecycle) switchModel(model string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateReleased {
		return ErrReleased
	}
	l.model = model
	if l.available[model] {
		l.state = StateAvailable
	} else {
		l.state = StateUninitialized
	}
	return nil
}

// release moves to Released and runs teardown the first time only.
func (l *lifecycle) release(teardown func() error) error {
	l.mu.Lock()
	if l.state == StateReleased {
		l.mu.Unlock()
		return nil
	}
	l.state = StateReleased
	l.mu.Unlock()

	if teardown == nil {
		return nil
	}
	return teardown()
}
