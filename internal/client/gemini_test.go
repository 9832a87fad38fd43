package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGemini struct {
	known   map[string]bool
	reply   string
	genErr  error
	getCall int

	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (f *fakeGemini) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastModel = model
	f.lastContents = contents
	f.lastConfig = config
	if f.genErr != nil {
		return nil, f.genErr
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.reply, genai.RoleModel)}},
	}, nil
}

func (f *fakeGemini) Get(_ context.Context, model string, _ *genai.GetModelConfig) (*genai.Model, error) {
	f.getCall++
	if !f.known[model] {
		return nil, errors.New("404 model not found")
	}
	return &genai.Model{Name: "models/" + model}, nil
}

func newTestGemini(fake *fakeGemini) *GeminiBackend {
	return newGeminiBackend(BackendConfig{Model: "gemini-2.5-flash", Context: "context text"}, fake, nil)
}

func TestGeminiEnsureAvailable(t *testing.T) {
	fake := &fakeGemini{known: map[string]bool{"gemini-2.5-flash": true}}
	b := newTestGemini(fake)
	ctx := context.Background()

	require.NoError(t, b.EnsureAvailable(ctx, "gemini-2.5-flash"))
	require.NoError(t, b.EnsureAvailable(ctx, "gemini-2.5-flash"))
	assert.Equal(t, 1, fake.getCall)
	assert.Equal(t, StateAvailable, b.State())

	err := b.EnsureAvailable(ctx, "gemini-0.1-imaginary")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestGeminiDispatch(t *testing.T) {
	fake := &fakeGemini{
		known: map[string]bool{"gemini-2.5-flash": true},
		reply: "```json\n{\"steps\": [{\"function\": \"open_app\", \"parameters\": {\"name\": \"Firefox\"}}], \"done\": false}\n```",
	}
	b := newTestGemini(fake)
	ctx := context.Background()
	require.NoError(t, b.EnsureAvailable(ctx, "gemini-2.5-flash"))

	req, err := b.FormatRequest("open firefox", 0, "")
	require.NoError(t, err)
	reply, err := b.Dispatch(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, reply)

	assert.Equal(t, "gemini-2.5-flash", fake.lastModel)
	require.Len(t, fake.lastContents, 1)
	require.Len(t, fake.lastContents[0].Parts, 1)
	assert.Equal(t, req.Body, fake.lastContents[0].Parts[0].Text)
	require.NotNil(t, fake.lastConfig.SystemInstruction)
	assert.Equal(t, "context text", fake.lastConfig.SystemInstruction.Parts[0].Text)

	set, err := b.ParseReply(reply)
	require.NoError(t, err)
	require.Len(t, set.Steps, 1)
	assert.Equal(t, "Firefox", set.Steps[0].Parameters["name"])
}

func TestGeminiDispatchAttachesScreenshot(t *testing.T) {
	shot := filepath.Join(t.TempDir(), "screen.jpg")
	require.NoError(t, os.WriteFile(shot, []byte("jpeg bytes"), 0600))

	fake := &fakeGemini{known: map[string]bool{"gemini-2.5-flash": true}, reply: `{"steps": [], "done": true}`}
	b := newTestGemini(fake)
	ctx := context.Background()
	require.NoError(t, b.EnsureAvailable(ctx, "gemini-2.5-flash"))

	req, err := b.FormatRequest("describe", 2, shot)
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, req)
	require.NoError(t, err)

	parts := fake.lastContents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("jpeg bytes"), parts[1].InlineData.Data)
}

func TestGeminiDispatchTransportFailure(t *testing.T) {
	fake := &fakeGemini{known: map[string]bool{"gemini-2.5-flash": true}, genErr: errors.New("503 overloaded")}
	b := newTestGemini(fake)
	ctx := context.Background()
	require.NoError(t, b.EnsureAvailable(ctx, "gemini-2.5-flash"))

	reply, err := b.Dispatch(ctx, Request{Model: "gemini-2.5-flash", Body: "{}"})
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestGeminiRelease(t *testing.T) {
	b := newTestGemini(&fakeGemini{})
	require.NoError(t, b.Release())
	require.NoError(t, b.Release())
	assert.ErrorIs(t, b.EnsureAvailable(context.Background(), "gemini-2.5-flash"), ErrReleased)
}

func TestNewGeminiBackendRequiresKey(t *testing.T) {
	t.Setenv("OPENINTERFACE_GEMINI_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := NewGeminiBackend(context.Background(), BackendConfig{Model: "gemini-2.5-flash"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	_, err = NewGeminiBackend(context.Background(), BackendConfig{})
	assert.Error(t, err)
}
