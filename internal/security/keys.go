package security

import (
	"fmt"
	"os"
	"strings"
)

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnvironment KeySource = "environment"
	KeySourceSettings    KeySource = "settings"
	KeySourceNotSet      KeySource = "not_set"
)

// LoadedKey is an API key together with the place it came from.
type LoadedKey struct {
	Value  string
	Source KeySource
}

// String hides the key value.
func (k *LoadedKey) String() string {
	if !k.IsSet() {
		return "LoadedKey{Source: not_set}"
	}
	return fmt.Sprintf("LoadedKey{Source: %s, Value: %s}", k.Source, MaskKey(k.Value))
}

// IsSet returns true if the key has a value.
func (k *LoadedKey) IsSet() bool {
	return k != nil && k.Value != ""
}

// GetAPIKey returns the first non-empty environment variable from envVarNames,
// falling back to settingsValue. Environment always wins so deployments can
// keep keys out of the settings file.
func GetAPIKey(envVarNames []string, settingsValue string) *LoadedKey {
	for _, name := range envVarNames {
		if value := os.Getenv(name); value != "" {
			return &LoadedKey{Value: value, Source: KeySourceEnvironment}
		}
	}
	if settingsValue != "" {
		return &LoadedKey{Value: settingsValue, Source: KeySourceSettings}
	}
	return &LoadedKey{Source: KeySourceNotSet}
}

// GetGeminiKey checks OPENINTERFACE_GEMINI_KEY, GEMINI_API_KEY and
// GOOGLE_API_KEY before the api_key setting.
func GetGeminiKey(settingsValue string) *LoadedKey {
	return GetAPIKey([]string{
		"OPENINTERFACE_GEMINI_KEY",
		"GEMINI_API_KEY",
		"GOOGLE_API_KEY",
	}, settingsValue)
}

// GetOpenAIKey checks OPENINTERFACE_OPENAI_KEY and OPENAI_API_KEY before the
// api_key setting. Local OpenAI-compatible servers usually need no key.
func GetOpenAIKey(settingsValue string) *LoadedKey {
	return GetAPIKey([]string{
		"OPENINTERFACE_OPENAI_KEY",
		"OPENAI_API_KEY",
	}, settingsValue)
}

// GetOllamaKey loads the optional bearer token for remote Ollama servers.
func GetOllamaKey(settingsValue string) *LoadedKey {
	return GetAPIKey([]string{
		"OPENINTERFACE_OLLAMA_KEY",
		"OLLAMA_API_KEY",
	}, settingsValue)
}

// MaskKey shows the first and last four characters of key.
//
// Example: "sk-1234567890abcdef" -> "sk-1***********cdef"
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
