package config

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// errNotObfuscated marks stored text that decodes as base64 but not to
// printable text, such as a hand-edited plain value like "abcd1234".
var errNotObfuscated = errors.New("value does not decode to printable text")

// Obfuscate hides a value from casual inspection of the settings file. It is
// plain base64: anyone holding the file can reverse it, so it must never be
// presented as protection. The on-disk format depends on it staying base64.
func Obfuscate(value string) string {
	return base64.StdEncoding.EncodeToString([]byte(value))
}

// Deobfuscate reverses Obfuscate. Decoded bytes must be valid UTF-8 with no
// control characters.
func Deobfuscate(stored string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errNotObfuscated
	}
	plain := string(b)
	if strings.IndexFunc(plain, unicode.IsControl) >= 0 {
		return "", errNotObfuscated
	}
	return plain, nil
}
