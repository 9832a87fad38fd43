package client

import (
	"context"
	"fmt"
	"net/http"

	"openinterface/internal/logging"
	"openinterface/internal/security"

	"google.golang.org/genai"
)

// FamilyGemini serves models through the Gemini API.
const FamilyGemini = "gemini"

// geminiAPI is the part of genai's Models service the backend uses.
type geminiAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// GeminiBackend generates instructions with the Gemini API. The base URL
// setting does not apply; requests always go to Google's endpoint.
type GeminiBackend struct {
	base
	models     geminiAPI
	httpClient *http.Client
}

// NewGeminiBackend creates a Gemini client. The API key comes from the
// environment or, failing that, cfg.APIKey.
func NewGeminiBackend(ctx context.Context, cfg BackendConfig) (*GeminiBackend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	key := security.GetGeminiKey(cfg.APIKey)
	if !key.IsSet() {
		return nil, fmt.Errorf("gemini API key required: set GEMINI_API_KEY or save api_key in settings")
	}
	logging.Debug("loaded gemini API key", "source", key.Source, "model", cfg.Model)

	httpClient := newHTTPClient(cfg.HTTPTimeout, "")
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key.Value,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return newGeminiBackend(cfg, client.Models, httpClient), nil
}

func newGeminiBackend(cfg BackendConfig, models geminiAPI, httpClient *http.Client) *GeminiBackend {
	b := &GeminiBackend{models: models, httpClient: httpClient}
	b.init(FamilyGemini, cfg.Model, cfg.Context)
	return b
}

// EnsureAvailable checks the model exists. Hosted models need no download.
func (b *GeminiBackend) EnsureAvailable(ctx context.Context, model string) error {
	return b.ensure(model, func() error {
		if _, err := b.models.Get(ctx, model, nil); err != nil {
			return fmt.Errorf("%w: gemini model %q: %v", ErrModelUnavailable, model, err)
		}
		return nil
	})
}

// Dispatch sends the request body, plus a screenshot image when the
// reference names a readable file, with the context as system instruction.
func (b *GeminiBackend) Dispatch(ctx context.Context, req Request) (*RawReply, error) {
	if err := b.activate(); err != nil {
		return nil, err
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Body)}
	if img, mime, ok := readScreenshot(req.Screenshot); ok {
		parts = append(parts, genai.NewPartFromBytes(img, mime))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	genConfig := &genai.GenerateContentConfig{}
	if b.context != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(b.context, genai.RoleUser)
	}

	resp, err := b.models.GenerateContent(ctx, req.Model, contents, genConfig)
	if err != nil {
		logging.Warn("gemini dispatch failed",
			"error", &TransportError{Backend: FamilyGemini, Model: req.Model, Err: err})
		return nil, nil
	}
	if resp == nil {
		return &RawReply{Model: req.Model}, nil
	}
	return &RawReply{Model: req.Model, Text: resp.Text()}, nil
}

// Release closes idle connections held by the client.
func (b *GeminiBackend) Release() error {
	return b.release(func() error {
		if b.httpClient != nil {
			b.httpClient.CloseIdleConnections()
		}
		return nil
	})
}
