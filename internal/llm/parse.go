package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Object is a decoded JSON object returned by a model. Accessors never fail:
// a missing or mistyped field reads as its zero value.
type Object map[string]any

// ParseObject extracts a JSON object from model output. It strips markdown
// code fences, tries a direct parse, then falls back to the substring between
// the first '{' and the last '}'. Anything else yields an empty Object.
func ParseObject(text string) Object {
	s := stripFences(text)
	if obj, ok := decodeObject(s); ok {
		return obj
	}
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first >= 0 && last > first {
		if obj, ok := decodeObject(s[first : last+1]); ok {
			return obj
		}
	}
	return Object{}
}

func decodeObject(s string) (Object, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return Object(obj), true
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line, which may carry a language tag.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Has reports whether key is present.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// String returns the trimmed string value of key.
func (o Object) String(key string) string {
	s, _ := o[key].(string)
	return strings.TrimSpace(s)
}

// Bool returns the boolean value of key, or def when absent or mistyped.
func (o Object) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Number returns the numeric value of key. Numeric strings are accepted.
func (o Object) Number(key string) (float64, bool) {
	switch v := o[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Strings returns the non-empty string elements of an array value.
// A lone string is treated as a one-element list.
func (o Object) Strings(key string) []string {
	out := []string{}
	switch v := o[key].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the length of an array value, or 0.
func (o Object) Len(key string) int {
	v, _ := o[key].([]any)
	return len(v)
}
