package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"openinterface/internal/fileutil"
	"openinterface/internal/logging"
)

// Store persists Settings as a single JSON object at a fixed path.
//
// Reads never fail: a missing or corrupt file is treated as empty settings.
// Writes merge into the current file and replace it atomically, so an
// interrupted save leaves the previous settings intact.
type Store struct {
	path      string
	sensitive map[string]string
}

// NewStore returns a store backed by path, obfuscating SensitiveFields.
func NewStore(path string) *Store {
	return &Store{
		path:      path,
		sensitive: SensitiveFields,
	}
}

// DefaultStore returns a store at the per-user SettingsPath.
func DefaultStore() (*Store, error) {
	path, err := SettingsPath()
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}
	return NewStore(path), nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted settings with sensitive fields decoded. A
// sensitive field that does not decode to printable text is taken as a
// hand-edited plain value and returned unchanged.
func (s *Store) Load() Settings {
	settings := s.readRaw()
	for key := range s.sensitive {
		stored, ok := settings[key].(string)
		if !ok || stored == "" {
			continue
		}
		plain, err := Deobfuscate(stored)
		if err != nil {
			// Hand-edited files may hold the plain value.
			logging.Warn("settings field is not obfuscated, using stored value", "key", key)
			continue
		}
		settings[key] = plain
	}
	return settings
}

// Save merges partial into the persisted settings. Keys with nil values are
// ignored. Sensitive fields present in partial are obfuscated on disk and
// exported to the process environment for same-run consumers.
func (s *Store) Save(partial Settings) error {
	merged := s.readRaw()

	exports := make(map[string]string)
	for key, value := range partial {
		if value == nil {
			continue
		}
		envVar, sensitive := s.sensitive[key]
		if plain, isString := value.(string); sensitive && isString {
			merged[key] = Obfuscate(plain)
			if envVar != "" {
				exports[envVar] = plain
			}
			continue
		}
		merged[key] = value
	}

	data, err := json.MarshalIndent(merged, "", "    ")
	if err != nil {
		return &StorageError{Op: "encode", Path: s.path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return &StorageError{Op: "mkdir", Path: s.path, Err: err}
	}
	if err := fileutil.AtomicWrite(s.path, data, 0600); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}

	// Only persisted values reach the environment.
	exported := make([]string, 0, len(exports))
	for envVar, plain := range exports {
		if err := os.Setenv(envVar, plain); err != nil {
			return fmt.Errorf("export %s: %w", envVar, err)
		}
		exported = append(exported, envVar)
	}

	logging.Debug("settings saved", "path", s.path, "keys", len(partial), "exported_env", exported)
	return nil
}

// readRaw returns the on-disk map without decoding sensitive fields.
func (s *Store) readRaw() Settings {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("failed to read settings, using empty settings", "path", s.path, "error", err)
		}
		return Settings{}
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		logging.Warn("settings file is malformed, using empty settings", "path", s.path, "error", err)
		return Settings{}
	}
	if settings == nil {
		// The file held a JSON null.
		return Settings{}
	}
	return settings
}
