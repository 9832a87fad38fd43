package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClientTimeout(t *testing.T) {
	assert.Equal(t, defaultHTTPTimeout, newHTTPClient(0, "").Timeout)
	assert.Equal(t, 5*time.Second, newHTTPClient(5*time.Second, "").Timeout)
	assert.Zero(t, newHTTPClient(-1, "").Timeout)
}

func TestNewHTTPClientAddsBearerToken(t *testing.T) {
	c := newHTTPClient(0, "sk-test")
	rt, ok := c.Transport.(*authTransport)
	require.True(t, ok)
	assert.Equal(t, "sk-test", rt.apiKey)

	_, ok = newHTTPClient(0, "").Transport.(*http.Transport)
	assert.True(t, ok)
}
