// Package llm turns objectives into instruction sets through whichever backend
// the user has selected.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"openinterface/internal/client"
	"openinterface/internal/config"
	appcontext "openinterface/internal/context"
	"openinterface/internal/logging"

	"github.com/google/uuid"
)

// ErrNoActiveBackend is returned when the coordinator is used after Cleanup.
var ErrNoActiveBackend = errors.New("no active backend: coordinator was cleaned up")

// Options configures a Coordinator. Zero fields fall back to the defaults.
type Options struct {
	Store    *config.Store
	Registry *client.Registry
	Builder  *appcontext.Builder

	// HTTPTimeout bounds each backend HTTP request. Zero uses
	// config.DefaultHTTPTimeout and a negative value disables it.
	HTTPTimeout time.Duration

	// PullProgress receives model download progress.
	PullProgress func(client.PullProgress)

	// Model overrides the saved model for this process without persisting it.
	Model string
}

// Coordinator holds the single active backend and exposes the
// objective-to-instructions pipeline.
//
// A Coordinator is not safe for concurrent use; callers serialize.
type Coordinator struct {
	store    *config.Store
	registry *client.Registry
	builder  *appcontext.Builder
	timeout  time.Duration
	progress func(client.PullProgress)

	backend client.Backend
	info    client.ModelInfo
}

// New loads settings, resolves the model and builds its backend.
// Misconfiguration (unknown model, missing context asset, bad endpoint) is
// returned here rather than on the first request.
func New(ctx context.Context, opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		store, err := config.DefaultStore()
		if err != nil {
			return nil, err
		}
		opts.Store = store
	}
	if opts.Registry == nil {
		opts.Registry = client.DefaultRegistry()
	}
	if opts.Builder == nil {
		opts.Builder = appcontext.NewBuilder("")
	}
	if opts.HTTPTimeout == 0 {
		opts.HTTPTimeout = config.DefaultHTTPTimeout
	}

	c := &Coordinator{
		store:    opts.Store,
		registry: opts.Registry,
		builder:  opts.Builder,
		timeout:  opts.HTTPTimeout,
		progress: opts.PullProgress,
	}

	settings := c.store.Load()
	id := opts.Model
	if id == "" {
		id = settings.String(config.KeyModel)
	}
	if id == "" {
		id = config.DefaultModel
	}

	backend, info, err := c.open(ctx, id, settings)
	if err != nil {
		return nil, err
	}
	c.backend, c.info = backend, info

	logging.Info("coordinator ready", "model", info.ID, "family", info.Family)
	return c, nil
}

// open resolves id and constructs its backend with a freshly built context.
func (c *Coordinator) open(ctx context.Context, id string, settings config.Settings) (client.Backend, client.ModelInfo, error) {
	info, factory, err := c.registry.Resolve(id)
	if err != nil {
		return nil, client.ModelInfo{}, err
	}

	preamble, err := c.builder.Build(settings)
	if err != nil {
		return nil, client.ModelInfo{}, err
	}

	backend, err := factory(ctx, client.BackendConfig{
		Model:        info.Model,
		BaseURL:      NormalizeBaseURL(settings.String(config.KeyBaseURL)),
		APIKey:       settings.String(config.KeyAPIKey),
		Context:      preamble,
		HTTPTimeout:  c.timeout,
		PullProgress: c.progress,
	})
	if err != nil {
		return nil, client.ModelInfo{}, fmt.Errorf("create %s backend for %q: %w", info.Family, id, err)
	}
	return backend, info, nil
}

// NormalizeBaseURL applies the default endpoint and leaves exactly one
// trailing slash.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = config.DefaultBaseURL
	}
	return strings.TrimRight(raw, "/") + "/"
}

type requestOptions struct {
	screenshot string
}

// RequestOption adjusts a single GetInstructions call.
type RequestOption func(*requestOptions)

// WithScreenshot attaches a screenshot reference to the request.
func WithScreenshot(ref string) RequestOption {
	return func(o *requestOptions) {
		o.screenshot = ref
	}
}

// GetInstructions asks the active backend for the next steps toward
// objective. Model, network and parse failures are logged and reported as the
// empty set; the error is reserved for a coordinator or backend that can no
// longer be used, and for a negative step.
func (c *Coordinator) GetInstructions(ctx context.Context, objective string, step int, opts ...RequestOption) (client.InstructionSet, error) {
	if c.backend == nil {
		return client.Empty(), ErrNoActiveBackend
	}
	if step < 0 {
		return client.Empty(), fmt.Errorf("step index must be non-negative, got %d", step)
	}

	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	backend := c.backend
	log := logging.With(
		"request_id", uuid.NewString(),
		"model", backend.Model(),
		"family", backend.Family(),
		"step", step,
	)
	start := time.Now()

	if err := backend.EnsureAvailable(ctx, backend.Model()); err != nil {
		if errors.Is(err, client.ErrReleased) {
			return client.Empty(), err
		}
		log.Warn("model not available", "error", err)
		return client.Empty(), nil
	}

	req, err := backend.FormatRequest(objective, step, o.screenshot)
	if err != nil {
		if errors.Is(err, client.ErrReleased) {
			return client.Empty(), err
		}
		log.Warn("failed to format request", "error", err)
		return client.Empty(), nil
	}

	reply, err := backend.Dispatch(ctx, req)
	if err != nil {
		if errors.Is(err, client.ErrReleased) {
			return client.Empty(), err
		}
		log.Warn("dispatch failed", "error", err)
		return client.Empty(), nil
	}
	if reply == nil {
		log.Warn("no reply from backend", "elapsed", time.Since(start))
	}

	set, err := backend.ParseReply(reply)
	if err != nil {
		return client.Empty(), err
	}

	log.Info("instructions received",
		"steps", len(set.Steps),
		"done", set.Done,
		"elapsed", time.Since(start))
	return set, nil
}

type switchOptions struct {
	rebuild bool
}

// SwitchOption adjusts SwitchModel.
type SwitchOption func(*switchOptions)

// RebuildContext makes SwitchModel construct a new backend, with a context
// built from the current settings, even when the family does not change.
func RebuildContext() SwitchOption {
	return func(o *switchOptions) {
		o.rebuild = true
	}
}

// SwitchModel makes id the target of subsequent requests and saves it as the
// preferred model. Within a family the backend is retargeted and keeps its
// context. Across families a new backend is built first; only once that
// succeeds is the old one released. A failed switch leaves the old backend
// in place.
func (c *Coordinator) SwitchModel(ctx context.Context, id string, opts ...SwitchOption) error {
	if c.backend == nil {
		return ErrNoActiveBackend
	}
	var o switchOptions
	for _, opt := range opts {
		opt(&o)
	}

	info, _, err := c.registry.Resolve(id)
	if err != nil {
		return err
	}

	if info.Family == c.info.Family && !o.rebuild {
		if err := c.backend.SwitchModel(info.Model); err != nil {
			return err
		}
		logging.Info("switched model", "from", c.info.ID, "to", info.ID, "family", info.Family)
		c.info = info
	} else {
		next, _, err := c.open(ctx, id, c.store.Load())
		if err != nil {
			return err
		}
		if err := c.backend.Release(); err != nil {
			logging.Warn("failed to release previous backend", "family", c.info.Family, "error", err)
		}
		logging.Info("switched backend",
			"from", c.info.ID, "from_family", c.info.Family,
			"to", info.ID, "to_family", info.Family)
		c.backend, c.info = next, info
	}

	if err := c.store.Save(config.Settings{config.KeyModel: id}); err != nil {
		return fmt.Errorf("switched to %q but could not save it: %w", id, err)
	}
	return nil
}

// DownloadModel makes id available on the active backend, downloading it
// when the family supports that. id must belong to the active family.
func (c *Coordinator) DownloadModel(ctx context.Context, id string) error {
	if c.backend == nil {
		return ErrNoActiveBackend
	}
	info, _, err := c.registry.Resolve(id)
	if err != nil {
		return err
	}
	if info.Family != c.info.Family {
		return fmt.Errorf("model %q is served by %s, active backend is %s: switch to it instead", id, info.Family, c.info.Family)
	}
	logging.Info("ensuring model is available", "model", info.ID)
	return c.backend.EnsureAvailable(ctx, info.Model)
}

// Model returns the active model identifier.
func (c *Coordinator) Model() string {
	return c.info.ID
}

// Family returns the active backend family.
func (c *Coordinator) Family() string {
	return c.info.Family
}

// Cleanup releases the active backend. Later calls do nothing.
func (c *Coordinator) Cleanup() error {
	if c.backend == nil {
		return nil
	}
	err := c.backend.Release()
	c.backend = nil
	logging.Debug("coordinator cleaned up", "model", c.info.ID)
	return err
}
