package util

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DefaultNormalizeRounds bounds how many layers of JSON string encoding
// NormalizeJSONValue peels off.
const DefaultNormalizeRounds = 20

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?(.*?)```")

// ExtractJsonFromText tries to find the largest JSON object/array in the text
func ExtractJsonFromText(text string) string {
	// 1. Try to find markdown code block first
	matches := codeBlockRe.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	// 2. Fallback: widest span from the first opening bracket to the last closing one
	start := firstIndex(text, "{", "[")
	if start == -1 {
		return text
	}
	end := lastIndex(text, "}", "]")
	if end != -1 && end > start {
		return text[start : end+1]
	}
	return text
}

func firstIndex(text string, subs ...string) int {
	best := -1
	for _, sub := range subs {
		if i := strings.Index(text, sub); i != -1 && (best == -1 || i < best) {
			best = i
		}
	}
	return best
}

func lastIndex(text string, subs ...string) int {
	best := -1
	for _, sub := range subs {
		if i := strings.LastIndex(text, sub); i > best {
			best = i
		}
	}
	return best
}

// NormalizeJSONValue collapses a value that may have been JSON-encoded into a
// string one or more times. Strings are decoded repeatedly while they decode
// to another string; decoding stops at an object or array (returned decoded),
// at a scalar or a string that is not JSON (the last string is returned), or
// after maxRounds layers. Non-string inputs are returned as is.
//
// The result is a fixed point for any input nested fewer than maxRounds
// times, so applying it again returns the same value. It never panics.
func NormalizeJSONValue(value any, maxRounds int) any {
	current, ok := value.(string)
	if !ok {
		return value
	}
	if maxRounds <= 0 {
		maxRounds = DefaultNormalizeRounds
	}

	for round := 0; round < maxRounds; round++ {
		decoded, ok := decodeLayer(current)
		if !ok {
			return current
		}
		switch next := decoded.(type) {
		case string:
			current = next
		case map[string]any, []any:
			return next
		default:
			return current
		}
	}
	return current
}

// decodeLayer removes one layer of JSON encoding. Text that only fails
// because of a leftover layer of backslash escaping gets one unescape retry.
func decodeLayer(text string) (any, bool) {
	trimmed := strings.TrimSpace(text)
	if !looksLikeJSON(trimmed) {
		return nil, false
	}

	var out any
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out, true
	}

	if !strings.Contains(trimmed, `\"`) {
		return nil, false
	}
	unescaped := strings.ReplaceAll(trimmed, `\\`, `\`)
	unescaped = strings.ReplaceAll(unescaped, `\"`, `"`)
	if err := json.Unmarshal([]byte(unescaped), &out); err == nil {
		return out, true
	}
	return nil, false
}

func looksLikeJSON(text string) bool {
	if text == "" {
		return false
	}
	switch text[0] {
	case '{', '[', '"':
		return true
	}
	return false
}
