package config

import "time"

const (
	// DefaultModel is used when no model has been chosen yet.
	DefaultModel = "gemma2"

	// DefaultBaseURL points at a local Ollama server.
	DefaultBaseURL = "http://localhost:11434/"

	// DefaultContextPath is resolved against the working directory.
	DefaultContextPath = "resources/context.txt"

	DefaultHTTPTimeout = 120 * time.Second

	// DefaultWatchDebounce coalesces editor save bursts into one reload.
	DefaultWatchDebounce = 250 * time.Millisecond

	settingsFileName = "settings.json"
	appDirName       = "openinterface"
)

// SensitiveFields maps each obfuscated settings key to the environment
// variable it is exported under when saved.
var SensitiveFields = map[string]string{
	KeyBaseURL: "OLLAMA_HOST",
	KeyAPIKey:  "GEMINI_API_KEY",
}
