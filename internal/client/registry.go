package client

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// ModelInfo describes a selectable model identifier.
type ModelInfo struct {
	ID          string
	Name        string
	Family      string
	Model       string // upstream model name; defaults to ID
	Description string
}

// Factory constructs a backend of one family.
type Factory func(ctx context.Context, cfg BackendConfig) (Backend, error)

// Registry maps model identifiers to backend families.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	models    map[string]ModelInfo
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		models:    make(map[string]ModelInfo),
	}
}

// RegisterFamily installs the factory for family, replacing any previous one.
func (r *Registry) RegisterFamily(family string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[family] = factory
}

// RegisterModel adds or replaces a model identifier.
func (r *Registry) RegisterModel(info ModelInfo) {
	if info.Model == "" {
		info.Model = info.ID
	}
	if info.Name == "" {
		info.Name = info.ID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[info.ID] = info
}

// Resolve looks up identifier exactly. Unknown identifiers, and identifiers
// whose family has no factory, are an *UnsupportedBackendError.
func (r *Registry) Resolve(identifier string) (ModelInfo, Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.models[identifier]
	if !ok {
		return ModelInfo{}, nil, &UnsupportedBackendError{Identifier: identifier}
	}
	factory, ok := r.factories[info.Family]
	if !ok {
		return ModelInfo{}, nil, &UnsupportedBackendError{Identifier: identifier}
	}
	return info, factory, nil
}

// Models returns every registered model, sorted by family then id.
func (r *Registry) Models() []ModelInfo {
	r.mu.RLock()
	out := make([]ModelInfo, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b ModelInfo) int {
		return cmp.Or(cmp.Compare(a.Family, b.Family), cmp.Compare(a.ID, b.ID))
	})
	return out
}

var builtinModels = []ModelInfo{
	{ID: "gemma2", Name: "Gemma 2", Family: FamilyOllama, Description: "Google Gemma 2 on a local Ollama server"},
	{ID: "llama3.1", Name: "Llama 3.1", Family: FamilyOllama, Description: "Meta Llama 3.1 8B"},
	{ID: "llama3.2", Name: "Llama 3.2", Family: FamilyOllama, Description: "Meta Llama 3.2 3B, fast"},
	{ID: "llava", Name: "LLaVA", Family: FamilyOllama, Description: "Multimodal, reads screenshots"},
	{ID: "mistral", Name: "Mistral", Family: FamilyOllama, Description: "Mistral 7B"},
	{ID: "qwen2.5", Name: "Qwen 2.5", Family: FamilyOllama, Description: "Alibaba Qwen 2.5 7B"},
	{ID: "phi3", Name: "Phi-3", Family: FamilyOllama, Description: "Microsoft Phi-3 mini"},

	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Family: FamilyGemini, Description: "Fast hosted model with vision"},
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Family: FamilyGemini, Description: "Most capable hosted Gemini model"},

	{ID: "gpt-4o", Name: "GPT-4o", Family: FamilyOpenAI, Description: "OpenAI-compatible server"},
	{ID: "gpt-4o-mini", Name: "GPT-4o mini", Family: FamilyOpenAI, Description: "OpenAI-compatible server, smaller"},
	{ID: "local-model", Name: "Local model", Family: FamilyOpenAI, Description: "Whatever model an LM Studio or vLLM server has loaded"},
}

// DefaultRegistry returns the shared registry holding the built-in families
// and catalog.
var DefaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
})

// RegisterBuiltins installs the built-in families and catalog into r.
func RegisterBuiltins(r *Registry) {
	r.RegisterFamily(FamilyOllama, func(_ context.Context, cfg BackendConfig) (Backend, error) {
		b, err := NewOllamaBackend(cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	})
	r.RegisterFamily(FamilyGemini, func(ctx context.Context, cfg BackendConfig) (Backend, error) {
		b, err := NewGeminiBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	})
	r.RegisterFamily(FamilyOpenAI, func(_ context.Context, cfg BackendConfig) (Backend, error) {
		b, err := NewOpenAIBackend(cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	})
	for _, m := range builtinModels {
		r.RegisterModel(m)
	}
}

// Describe formats a model for listings.
func (m ModelInfo) Describe() string {
	if m.Model != m.ID {
		return fmt.Sprintf("%s (%s, upstream %s)", m.Name, m.Family, m.Model)
	}
	return fmt.Sprintf("%s (%s)", m.Name, m.Family)
}
