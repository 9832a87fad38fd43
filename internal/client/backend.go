package client

import (
	"context"
	"fmt"
	"time"
)

// Backend turns an objective into a request for a text-generation service and
// the service's reply into an InstructionSet.
//
// A backend moves through Uninitialized -> Available -> Active -> Released.
// Released is terminal: every method except Release returns ErrReleased.
type Backend interface {
	// Family is the registry family this backend belongs to.
	Family() string

	// Model is the upstream model subsequent requests target.
	Model() string

	State() State

	// EnsureAvailable makes model ready for use, fetching it if needed. It
	// does the underlying work at most once per model.
	EnsureAvailable(ctx context.Context, model string) error

	// FormatRequest is deterministic for its inputs.
	FormatRequest(objective string, step int, screenshot string) (Request, error)

	// Dispatch sends req with the backend's context as system input. A
	// transport failure is logged and reported as a nil reply, not an error.
	Dispatch(ctx context.Context, req Request) (*RawReply, error)

	// ParseReply never fails on bad model output; it returns Empty instead.
	ParseReply(reply *RawReply) (InstructionSet, error)

	// SwitchModel retargets the backend without rebuilding its context.
	SwitchModel(model string) error

	// Release frees held resources. Safe to call more than once.
	Release() error
}

// BackendConfig is everything a backend needs at construction.
type BackendConfig struct {
	Model   string
	BaseURL string
	APIKey  string
	Context string

	// HTTPTimeout bounds each HTTP request. Zero uses the default and a
	// negative value disables it.
	HTTPTimeout time.Duration

	// PullProgress, when set, receives download progress for backends that
	// fetch models.
	PullProgress func(PullProgress)
}

// PullProgress reports one step of a model download.
type PullProgress struct {
	Model     string
	Status    string
	Total     int64
	Completed int64
	Percent   float64
}

// Request is one objective formatted for a backend.
type Request struct {
	Model      string
	Objective  string
	Step       int
	Screenshot string

	// Body is the JSON user message sent to the model.
	Body string
}

// RawReply is the text a service returned. A nil *RawReply means no reply.
type RawReply struct {
	Model string
	Text  string
}

// NewRequest builds a Request for model.
func NewRequest(model, objective string, step int, screenshot string) (Request, error) {
	if step < 0 {
		return Request{}, fmt.Errorf("step index must be non-negative, got %d", step)
	}
	body, err := encodeRequestBody(objective, step, screenshot)
	if err != nil {
		return Request{}, fmt.Errorf("encode request: %w", err)
	}
	return Request{
		Model:      model,
		Objective:  objective,
		Step:       step,
		Screenshot: screenshot,
		Body:       body,
	}, nil
}

// base holds what every backend family shares: lifecycle, context text and
// the request/reply codec.
type base struct {
	lifecycle
	family  string
	context string
}

func (b *base) init(family, model, preamble string) {
	b.lifecycle.init(model)
	b.family = family
	b.context = preamble
}

func (b *base) Family() string {
	return b.family
}

// Context returns the preamble sent with every request.
func (b *base) Context() string {
	return b.context
}

func (b *base) FormatRequest(objective string, step int, screenshot string) (Request, error) {
	if err := b.checkUsable(); err != nil {
		return Request{}, err
	}
	return NewRequest(b.Model(), objective, step, screenshot)
}

func (b *base) ParseReply(reply *RawReply) (InstructionSet, error) {
	if err := b.checkUsable(); err != nil {
		return Empty(), err
	}
	return parseReply(reply), nil
}

func (b *base) SwitchModel(model string) error {
	return b.switchModel(model)
}
