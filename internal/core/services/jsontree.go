package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Model output is decoded in two phases: first into a generic tree, then
// through field-by-field accessors that substitute typed defaults. Values of
// an unexpected shape are dropped, never coerced from arbitrary structures.

var (
	fenceOpen  = regexp.MustCompile("^```\\w*\\n?")
	fenceClose = regexp.MustCompile("\\n?```\\s*$")
)

// stripCodeFence removes a surrounding markdown code fence, if any.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = fenceOpen.ReplaceAllString(s, "")
		s = fenceClose.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// decodeTree parses model output into a generic JSON tree.
func decodeTree(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return v, nil
}

// asObject returns v as an object, or nil if it is anything else.
func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asArray returns v as an array, or nil if it is anything else.
func asArray(v any) []any {
	a, _ := v.([]any)
	return a
}

// objects returns the object elements of the array at v, skipping other shapes.
func objects(v any) []map[string]any {
	var out []map[string]any
	for _, item := range asArray(v) {
		if m := asObject(item); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// scalarString renders a JSON scalar as text. Objects, arrays and null yield ok=false.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// str returns m[key] as text, or "" when missing or not a scalar.
func str(m map[string]any, key string) string {
	s, _ := scalarString(m[key])
	return s
}

// strOr returns m[key] as text, or def when the key is missing or null.
func strOr(m map[string]any, key, def string) string {
	if s, ok := scalarString(m[key]); ok {
		return s
	}
	return def
}

// boolOr returns m[key] as a bool, or def when missing or not a bool.
func boolOr(m map[string]any, key string, def bool) bool {
	switch t := m[key].(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	return def
}

// strList returns the non-blank scalar elements of the array at m[key] as text.
func strList(m map[string]any, key string) []string {
	out := []string{}
	for _, item := range asArray(m[key]) {
		if s, ok := scalarString(item); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
