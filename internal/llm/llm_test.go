package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"openinterface/internal/client"
	"openinterface/internal/config"
	appcontext "openinterface/internal/context"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	family  string
	model   string
	context string
	reply   string
	fail    bool

	state    client.State
	ensured  []string
	requests []client.Request
	releases int
}

func (f *fakeBackend) Family() string { return f.family }
func (f *fakeBackend) Model() string { return f.model }
func (f *fakeBackend) State() client.State { return f.state }
func (f *fakeBackend) released() bool { return f.state == client.StateReleased }
func (f *fakeBackend) dispatches() int { return len(f.requests) }

func (f *fakeBackend) EnsureAvailable(_ context.Context, model string) error {
	if f.released() {
		return client.ErrReleased
	}
	f.ensured = append(f.ensured, model)
	if f.state == client.StateUninitialized {
		f.state = client.StateAvailable
	}
	return nil
}

func (f *fakeBackend) FormatRequest(objective string, step int, screenshot string) (client.Request, error) {
	if f.released() {
		return client.Request{}, client.ErrReleased
	}
	return client.NewRequest(f.model, objective, step, screenshot)
}

func (f *fakeBackend) Dispatch(_ context.Context, req client.Request) (*client.RawReply, error) {
	if f.released() {
		return nil, client.ErrReleased
	}
	f.state = client.StateActive
	f.requests = append(f.requests, req)
	if f.fail {
		return nil, nil
	}
	return &client.RawReply{Model: req.Model, Text: f.reply}, nil
}

func (f *fakeBackend) ParseReply(reply *client.RawReply) (client.InstructionSet, error) {
	if f.released() {
		return client.Empty(), client.ErrReleased
	}
	if reply == nil {
		return client.Empty(), nil
	}
	set, err := client.ParseInstructions(reply.Text)
	if err != nil {
		return client.Empty(), nil
	}
	return set, nil
}

func (f *fakeBackend) SwitchModel(model string) error {
	if f.released() {
		return client.ErrReleased
	}
	f.model = model
	f.state = client.StateUninitialized
	return nil
}

func (f *fakeBackend) Release() error {
	f.releases++
	f.state = client.StateReleased
	return nil
}

type harness struct {
	store    *config.Store
	registry *client.Registry
	builder  *appcontext.Builder

	reply        string
	failDispatch bool
	backends     []*fakeBackend
	configs      []client.BackendConfig
}

const staticContext = "You translate objectives into desktop automation steps."

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("GEMINI_API_KEY", "")

	dir := t.TempDir()
	contextPath := filepath.Join(dir, "context.txt")
	require.NoError(t, os.WriteFile(contextPath, []byte(staticContext+"\n"), 0600))

	h := &harness{
		store:    config.NewStore(filepath.Join(dir, "settings.json")),
		registry: client.NewRegistry(),
		builder:  &appcontext.Builder{ContextPath: contextPath},
		reply:    `{"steps": [], "done": true}`,
	}
	h.registry.RegisterFamily("alpha", h.factory("alpha"))
	h.registry.RegisterFamily("beta", h.factory("beta"))
	h.registry.RegisterFamily("broken", func(context.Context, client.BackendConfig) (client.Backend, error) {
		return nil, errors.New("cannot reach server")
	})
	for id, family := range map[string]string{
		"a":      "alpha",
		"a2":     "alpha",
		"x":      "alpha",
		"gemma2": "alpha",
		"b":      "beta",
		"z":      "broken",
	} {
		h.registry.RegisterModel(client.ModelInfo{ID: id, Family: family})
	}
	return h
}

func (h *harness) factory(family string) client.Factory {
	return func(_ context.Context, cfg client.BackendConfig) (client.Backend, error) {
		b := &fakeBackend{
			family:  family,
			model:   cfg.Model,
			context: cfg.Context,
			reply:   h.reply,
			fail:    h.failDispatch,
		}
		h.backends = append(h.backends, b)
		h.configs = append(h.configs, cfg)
		return b, nil
	}
}

func (h *harness) coordinator(t *testing.T, model string) *Coordinator {
	t.Helper()
	c, err := New(context.Background(), Options{
		Store:    h.store,
		Registry: h.registry,
		Builder:  h.builder,
		Model:    model,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Cleanup() })
	return c
}

func TestGetInstructionsEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.reply = `Sure, here is what to do:
{"steps": [{"function": "open_app", "parameters": {"name": "Settings"}, "human_readable_justification": "user asked to open settings"}], "done": false}
Hope that helps!`
	require.NoError(t, h.store.Save(config.Settings{
		config.KeyModel:   "x",
		config.KeyBaseURL: "http://host/",
	}))

	c := h.coordinator(t, "")
	assert.Equal(t, "x", c.Model())
	assert.Equal(t, "alpha", c.Family())

	require.Len(t, h.configs, 1)
	assert.Equal(t, "x", h.configs[0].Model)
	assert.Equal(t, "http://host/", h.configs[0].BaseURL)
	assert.Contains(t, h.configs[0].Context, staticContext)
	assert.Equal(t, config.DefaultHTTPTimeout, h.configs[0].HTTPTimeout)

	set, err := c.GetInstructions(context.Background(), "open the settings app", 0)
	require.NoError(t, err)
	assert.Equal(t, client.InstructionSet{
		Steps: []client.Step{{
			Function:      "open_app",
			Parameters:    map[string]any{"name": "Settings"},
			Justification: "user asked to open settings",
		}},
		Done: false,
	}, set)

	backend := h.backends[0]
	assert.Equal(t, []string{"x"}, backend.ensured)
	require.Len(t, backend.requests, 1)
	assert.Equal(t, `{"original_user_request":"open the settings app","step_num":0}`, backend.requests[0].Body)
}

func TestNewUsesDefaultModel(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, "")

	assert.Equal(t, config.DefaultModel, c.Model())
	require.Len(t, h.configs, 1)
	assert.Equal(t, config.DefaultBaseURL, h.configs[0].BaseURL)
}

func TestNewPassesTransportOptions(t *testing.T) {
	h := newHarness(t)
	var reported []client.PullProgress

	c, err := New(context.Background(), Options{
		Store:        h.store,
		Registry:     h.registry,
		Builder:      h.builder,
		Model:        "a",
		HTTPTimeout:  -1,
		PullProgress: func(p client.PullProgress) { reported = append(reported, p) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Cleanup() })

	require.Len(t, h.configs, 1)
	assert.Negative(t, h.configs[0].HTTPTimeout)
	require.NotNil(t, h.configs[0].PullProgress)
	h.configs[0].PullProgress(client.PullProgress{Model: "a", Status: "success"})
	assert.Equal(t, []client.PullProgress{{Model: "a", Status: "success"}}, reported)
}

func TestNewRejectsUnknownModel(t *testing.T) {
	h := newHarness(t)

	_, err := New(context.Background(), Options{Store: h.store, Registry: h.registry, Builder: h.builder, Model: "not-a-real-model"})
	var unsupported *client.UnsupportedBackendError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "not-a-real-model", unsupported.Identifier)
	assert.Empty(t, h.backends)
}

func TestNewRequiresContextAsset(t *testing.T) {
	h := newHarness(t)
	h.builder.ContextPath = filepath.Join(t.TempDir(), "missing.txt")

	_, err := New(context.Background(), Options{Store: h.store, Registry: h.registry, Builder: h.builder, Model: "a"})
	var unavailable *appcontext.ContextUnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.Empty(t, h.backends)
}

func TestNewReportsFactoryFailure(t *testing.T) {
	h := newHarness(t)

	_, err := New(context.Background(), Options{Store: h.store, Registry: h.registry, Builder: h.builder, Model: "z"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach server")
}

func TestGetInstructionsFailuresAreEmpty(t *testing.T) {
	h := newHarness(t)
	h.failDispatch = true
	c := h.coordinator(t, "a")

	set, err := c.GetInstructions(context.Background(), "open the terminal", 0)
	require.NoError(t, err)
	assert.True(t, set.IsEmpty())

	h.backends[0].fail = false
	h.backends[0].reply = "I am not sure what you mean."
	set, err = c.GetInstructions(context.Background(), "open the terminal", 1)
	require.NoError(t, err)
	assert.True(t, set.IsEmpty())
}

func TestGetInstructionsWithScreenshot(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, "a")

	_, err := c.GetInstructions(context.Background(), "click OK", 3, WithScreenshot("/tmp/screen.png"))
	require.NoError(t, err)

	req := h.backends[0].requests[0]
	assert.Equal(t, "/tmp/screen.png", req.Screenshot)
	assert.Equal(t, 3, req.Step)
}

func TestGetInstructionsRejectsNegativeStep(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, "a")

	_, err := c.GetInstructions(context.Background(), "anything", -1)
	assert.Error(t, err)
	assert.Zero(t, h.backends[0].dispatches())
}

func TestSwitchModelAcrossFamilies(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, "a")
	ctx := context.Background()

	_, err := c.GetInstructions(ctx, "first", 0)
	require.NoError(t, err)

	require.NoError(t, c.SwitchModel(ctx, "b"))
	require.Len(t, h.backends, 2)
	a, b := h.backends[0], h.backends[1]
	assert.Equal(t, 1, a.releases)
	assert.Equal(t, "beta", c.Family())
	assert.Equal(t, "b", c.Model())

	_, err = c.GetInstructions(ctx, "second", 1)
	require.NoError(t, err)
	_, err = c.GetInstructions(ctx, "third", 2)
	require.NoError(t, err)

	assert.Equal(t, 1, a.dispatches())
	assert.Equal(t, 2, b.dispatches())
	assert.Equal(t, 1, a.releases)
	assert.Equal(t, "b", h.store.Load().String(config.KeyModel))
}

func TestSwitchModelWithinFamilyKeepsBackend(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, "a")
	ctx := context.Background()

	require.NoError(t, c.SwitchModel(ctx, "a2"))

	require.Len(t, h.backends, 1)
	backend := h.backends[0]
	assert.Zero(t, backend.releases)
	assert.Equal(t, "a2", backend.model)
	assert.Equal(t, "a2", c.Model())

	_, err := c.GetInstructions(ctx, "go", 0)
	require.NoError(t, err)
	assert.Equal(t, "a2", backend.requests[0].Model)
	assert.Equal(t, "a2", h.store.Load().String(config.KeyModel))
}

func TestSwitchModelRebuildContext(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, "a")
	ctx := context.Background()

	require.NoError(t, h.store.Save(config.Settings{config.KeyDefaultBrowser: "Firefox"}))
	require.NoError(t, c.SwitchModel(ctx, "a", RebuildContext()))

	require.Len(t, h.backends, 2)
	assert.Equal(t, 1, h.backends[0].releases)
	assert.NotContains(t, h.backends[0].context, "Firefox")
	assert.Contains(t, h.backends[1].context, "Use Firefox as the browser.")
}

func TestSwitchModelFailureKeepsOldBackend(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, "a")
	ctx := context.Background()

	require.Error(t, c.SwitchModel(ctx, "z"))
	var unsupported *client.UnsupportedBackendError
	require.True(t, errors.As(c.SwitchModel(ctx, "nope"), &unsupported))

	assert.Equal(t, "a", c.Model())
	assert.Zero(t, h.backends[0].releases)
	_, err := c.GetInstructions(ctx, "still works", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, h.backends[0].dispatches())
}

func TestDownloadModel(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, "a")
	ctx := context.Background()

	require.NoError(t, c.DownloadModel(ctx, "a2"))
	assert.Equal(t, []string{"a2"}, h.backends[0].ensured)

	assert.Error(t, c.DownloadModel(ctx, "b"))
	assert.Error(t, c.DownloadModel(ctx, "nope"))
}

func TestCleanupIsIdempotent(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, "a")

	require.NoError(t, c.Cleanup())
	require.NoError(t, c.Cleanup())
	assert.Equal(t, 1, h.backends[0].releases)

	_, err := c.GetInstructions(context.Background(), "anything", 0)
	assert.ErrorIs(t, err, ErrNoActiveBackend)
	assert.ErrorIs(t, c.SwitchModel(context.Background(), "b"), ErrNoActiveBackend)
	assert.ErrorIs(t, c.DownloadModel(context.Background(), "a"), ErrNoActiveBackend)
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", config.DefaultBaseURL},
		{"   ", config.DefaultBaseURL},
		{"http://host", "http://host/"},
		{"http://host/", "http://host/"},
		{"http://host///", "http://host/"},
		{" http://gpu-box:11434 ", "http://gpu-box:11434/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeBaseURL(tt.in), tt.in)
	}
}
