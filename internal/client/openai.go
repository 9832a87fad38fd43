package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"openinterface/internal/config"
	"openinterface/internal/logging"
	"openinterface/internal/security"
)

// FamilyOpenAI serves models from any OpenAI-compatible HTTP server
// (LM Studio, vLLM, llama.cpp server, Ollama's /v1 endpoint, OpenAI).
const FamilyOpenAI = "openai"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatResponse also accepts completions-style servers that put the text
// directly on the choice.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Text    string      `json:"text"`
	} `json:"choices"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// OpenAIBackend talks to the chat completions endpoint.
type OpenAIBackend struct {
	base
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIBackend creates a backend for the server at cfg.BaseURL.
func NewOpenAIBackend(cfg BackendConfig) (*OpenAIBackend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	raw := cfg.BaseURL
	if strings.TrimSpace(raw) == "" {
		raw = config.DefaultBaseURL
	}
	baseURL := normalizeOpenAIBaseURL(raw)
	endpoint, err := url.Parse(baseURL)
	if err != nil || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid OpenAI-compatible base URL %q", security.RedactURL(raw))
	}
	warnIfPlaintextRemote(endpoint)

	key := security.GetOpenAIKey(cfg.APIKey)
	b := &OpenAIBackend{
		baseURL:    baseURL,
		httpClient: newHTTPClient(cfg.HTTPTimeout, key.Value),
	}
	b.init(FamilyOpenAI, cfg.Model, cfg.Context)
	return b, nil
}

// normalizeOpenAIBaseURL adds a scheme when missing and ensures exactly one
// trailing /v1.
func normalizeOpenAIBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}

// EnsureAvailable checks the server lists model. Remote servers cannot be
// asked to download, so an unlisted model is ErrModelUnavailable. Servers
// without a /models route are trusted.
func (b *OpenAIBackend) EnsureAvailable(ctx context.Context, model string) error {
	return b.ensure(model, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/models", nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		resp, err := b.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			logging.Warn("server has no model listing, assuming model is served", "model", model)
			return nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("list models: status %s", resp.Status)
		}

		var list modelList
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return fmt.Errorf("decode model list: %w", err)
		}
		for _, m := range list.Data {
			if m.ID == model {
				return nil
			}
		}
		return fmt.Errorf("%w: server does not serve %q", ErrModelUnavailable, model)
	})
}

// Dispatch posts the context as the system message and the request body as
// the user message.
func (b *OpenAIBackend) Dispatch(ctx context.Context, req Request) (*RawReply, error) {
	if err := b.activate(); err != nil {
		return nil, err
	}

	text, err := b.chat(ctx, chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: b.context},
			{Role: "user", Content: req.Body},
		},
	})
	if err != nil {
		logging.Warn("openai dispatch failed",
			"error", &TransportError{Backend: FamilyOpenAI, Model: req.Model, Err: err})
		return nil, nil
	}
	return &RawReply{Model: req.Model, Text: text}, nil
}

func (b *OpenAIBackend) chat(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("response missing choices")
	}
	choice := decoded.Choices[0]
	if choice.Message.Content != "" {
		return choice.Message.Content, nil
	}
	return choice.Text, nil
}

// Release closes idle connections to the server.
func (b *OpenAIBackend) Release() error {
	return b.release(func() error {
		b.httpClient.CloseIdleConnections()
		return nil
	})
}
