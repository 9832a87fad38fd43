package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"openinterface/internal/config"
	"openinterface/internal/logging"
	"openinterface/internal/security"

	"github.com/ollama/ollama/api"
)

// FamilyOllama serves models from a local or remote Ollama server.
const FamilyOllama = "ollama"

// ollamaAPI is the part of *api.Client the backend uses.
type ollamaAPI interface {
	Generate(ctx context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error
	Pull(ctx context.Context, req *api.PullRequest, fn api.PullProgressFunc) error
	List(ctx context.Context) (*api.ListResponse, error)
}

// OllamaBackend generates instructions with the Ollama generate API.
type OllamaBackend struct {
	base
	api        ollamaAPI
	httpClient *http.Client
	onProgress func(PullProgress)
}

// NewOllamaBackend connects to the server at cfg.BaseURL.
func NewOllamaBackend(cfg BackendConfig) (*OllamaBackend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = config.DefaultBaseURL
	}
	endpoint, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid ollama base URL %q: scheme and host are required", security.RedactURL(raw))
	}
	warnIfPlaintextRemote(endpoint)

	key := security.GetOllamaKey("")
	if key.IsSet() {
		logging.Debug("using ollama bearer token", "source", key.Source)
	}
	httpClient := newHTTPClient(cfg.HTTPTimeout, key.Value)

	return newOllamaBackend(cfg, api.NewClient(endpoint, httpClient), httpClient), nil
}

func newOllamaBackend(cfg BackendConfig, client ollamaAPI, httpClient *http.Client) *OllamaBackend {
	b := &OllamaBackend{api: client, httpClient: httpClient, onProgress: cfg.PullProgress}
	b.init(FamilyOllama, cfg.Model, cfg.Context)
	return b
}

// EnsureAvailable pulls model unless the server already has it.
func (b *OllamaBackend) EnsureAvailable(ctx context.Context, model string) error {
	return b.ensure(model, func() error {
		installed, err := b.isInstalled(ctx, model)
		if err != nil {
			return wrapOllamaError(err, model)
		}
		if installed {
			logging.Debug("ollama model already installed", "model", model)
			return nil
		}

		logging.Info("pulling ollama model", "model", model)
		lastStatus := ""
		err = b.api.Pull(ctx, &api.PullRequest{Model: model}, func(p api.ProgressResponse) error {
			var percent float64
			if p.Total > 0 {
				percent = float64(p.Completed) / float64(p.Total) * 100
			}
			if p.Status != lastStatus {
				lastStatus = p.Status
				logging.Info("pull progress", "model", model, "status", p.Status, "percent", int(percent))
			}
			if b.onProgress != nil {
				b.onProgress(PullProgress{
					Model:     model,
					Status:    p.Status,
					Total:     p.Total,
					Completed: p.Completed,
					Percent:   percent,
				})
			}
			return nil
		})
		if err != nil {
			return wrapOllamaError(err, model)
		}
		return nil
	})
}

func (b *OllamaBackend) isInstalled(ctx context.Context, model string) (bool, error) {
	resp, err := b.api.List(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range resp.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if sameOllamaModel(name, model) {
			return true, nil
		}
	}
	return false, nil
}

// sameOllamaModel reports whether an installed name is the requested model.
// Ollama reads an untagged name as ":latest", so "llama3.1" matches
// "llama3.1:latest" but not "llama3.1:70b".
func sameOllamaModel(installed, requested string) bool {
	if !strings.Contains(requested, ":") {
		requested += ":latest"
	}
	if !strings.Contains(installed, ":") {
		installed += ":latest"
	}
	return installed == requested
}

// Dispatch runs a non-streaming generate call with the context as the system
// prompt. A readable screenshot file is attached for multimodal models.
func (b *OllamaBackend) Dispatch(ctx context.Context, req Request) (*RawReply, error) {
	if err := b.activate(); err != nil {
		return nil, err
	}

	stream := false
	genReq := &api.GenerateRequest{
		Model:  req.Model,
		Prompt: req.Body,
		System: b.context,
		Stream: &stream,
	}
	if img, _, ok := readScreenshot(req.Screenshot); ok {
		genReq.Images = []api.ImageData{img}
	}

	var text strings.Builder
	err := b.api.Generate(ctx, genReq, func(resp api.GenerateResponse) error {
		text.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		logging.Warn("ollama dispatch failed",
			"error", &TransportError{Backend: FamilyOllama, Model: req.Model, Err: wrapOllamaError(err, req.Model)})
		return nil, nil
	}

	return &RawReply{Model: req.Model, Text: text.String()}, nil
}

// Release closes idle connections to the server.
func (b *OllamaBackend) Release() error {
	return b.release(func() error {
		if b.httpClient != nil {
			b.httpClient.CloseIdleConnections()
		}
		return nil
	})
}

// wrapOllamaError adds a remedy to the errors users hit most often.
func wrapOllamaError(err error, model string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()

	if strings.Contains(msg, "connection refused") {
		return fmt.Errorf("ollama server is not running (start it with `ollama serve`): %w", err)
	}

	var statusErr *api.StatusError
	notFound := errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
	if notFound || (strings.Contains(msg, "model") && strings.Contains(msg, "not found")) {
		return fmt.Errorf("model %q is not installed (run `ollama pull %s`): %w", model, model, err)
	}

	return err
}
