package client

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"openinterface/internal/logging"
	"openinterface/internal/security"
)

const defaultHTTPTimeout = 120 * time.Second

// authTransport adds a bearer token to every request.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(clone)
}

// newHTTPClient returns a client with its own transport so Release can close
// idle connections without touching other users of http.DefaultTransport.
// A zero timeout uses the default; a negative one means none.
func newHTTPClient(timeout time.Duration, apiKey string) *http.Client {
	switch {
	case timeout == 0:
		timeout = defaultHTTPTimeout
	case timeout < 0:
		timeout = 0
	}
	var rt http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	if apiKey != "" {
		rt = &authTransport{base: rt, apiKey: apiKey}
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

// warnIfPlaintextRemote logs when an endpoint sends prompts over plain HTTP to
// a non-loopback host.
func warnIfPlaintextRemote(endpoint *url.URL) {
	if endpoint.Scheme != "http" {
		return
	}
	switch endpoint.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return
	}
	logging.Warn("backend uses unencrypted HTTP to a remote host",
		"endpoint", security.RedactURL(endpoint.String()))
}

// readScreenshot returns the bytes and MIME type of a screenshot reference
// when it names a readable image file. Other references (upload ids, URLs)
// only travel in the request body.
func readScreenshot(ref string) ([]byte, string, bool) {
	if ref == "" {
		return nil, "", false
	}
	var mime string
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".png":
		mime = "image/png"
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".webp":
		mime = "image/webp"
	default:
		return nil, "", false
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		logging.Debug("screenshot reference is not a readable file", "ref", ref, "error", err)
		return nil, "", false
	}
	return data, mime, true
}
