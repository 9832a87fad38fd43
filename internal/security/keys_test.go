package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAPIKeyPrefersEnvironment(t *testing.T) {
	t.Setenv("OPENINTERFACE_GEMINI_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "from-env-0123456789")

	key := GetGeminiKey("from-settings-0123456789")
	assert.Equal(t, "from-env-0123456789", key.Value)
	assert.Equal(t, KeySourceEnvironment, key.Source)
}

func TestGetAPIKeyFallsBackToSettings(t *testing.T) {
	t.Setenv("OPENINTERFACE_OPENAI_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	key := GetOpenAIKey("sk-settings")
	assert.Equal(t, "sk-settings", key.Value)
	assert.Equal(t, KeySourceSettings, key.Source)

	none := GetOpenAIKey("")
	assert.False(t, none.IsSet())
	assert.Equal(t, KeySourceNotSet, none.Source)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "(not set)", MaskKey(""))
	assert.Equal(t, "*****", MaskKey("short"))
	assert.Equal(t, "sk-1***********cdef", MaskKey("sk-1234567890abcdef"))
}

func TestLoadedKeyStringHidesValue(t *testing.T) {
	key := &LoadedKey{Value: "sk-1234567890abcdef", Source: KeySourceSettings}
	assert.NotContains(t, key.String(), "567890")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "http://host:11434", RedactURL("http://user:pw@host:11434/api/?token=x"))
	assert.Equal(t, "", RedactURL(""))
	assert.Equal(t, "(redacted)", RedactURL("not a url"))
}
