// internal/util/util.go
package util

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TruncateRunes truncates a string to a maximum number of runes,
// appending an ellipsis if truncated.
func TruncateRunes(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + "…"
}

// SingleLine collapses all whitespace runs, newlines included, to one space.
func SingleLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ClipStrings returns a copy of item in which every string value longer than
// maxRunes is truncated. Non-string values are kept as they are.
func ClipStrings(item map[string]any, maxRunes int) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		if s, ok := v.(string); ok {
			out[k] = TruncateRunes(s, maxRunes)
			continue
		}
		out[k] = v
	}
	return out
}

// IntOption reads an integer option. Values decoded from JSON or viper arrive
// as float64, int, json.Number or string.
func IntOption(opts map[string]any, key string, def int) int {
	switch v := Lookup(opts, key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// StringOption reads a non-blank string option, trimmed.
func StringOption(opts map[string]any, key, def string) string {
	if v, ok := Lookup(opts, key).(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Lookup matches keys case-insensitively; viper lowercases map keys.
func Lookup(opts map[string]any, key string) any {
	if v, ok := opts[key]; ok {
		return v
	}
	for k, v := range opts {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}
