package config

import "maps"

// Well-known settings keys.
const (
	KeyModel                = "model"
	KeyBaseURL              = "base_url"
	KeyAPIKey               = "api_key"
	KeyCustomInstructions   = "custom_llm_instructions"
	KeyDefaultBrowser       = "default_browser"
	KeyPlayDingOnCompletion = "play_ding_on_completion"
	KeyLogLevel             = "log_level"
)

// Settings is the flat configuration map persisted by Store. Values are
// strings or booleans; a nil value in a partial update means "leave as is".
type Settings map[string]any

// String returns the string value for key, or "" when the key is missing or
// holds a non-string.
func (s Settings) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Bool returns the boolean value for key. The strings "true" and "1" count
// as true so hand-edited files behave.
func (s Settings) Bool(key string) bool {
	switch v := s[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	return false
}

// Clone returns a shallow copy.
func (s Settings) Clone() Settings {
	if s == nil {
		return Settings{}
	}
	return maps.Clone(s)
}
