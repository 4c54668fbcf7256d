package parser

import (
	"encoding/json"
	"strings"

	"github.com/bilbot/bilbot/internal/llm"
)

// RecoverJSON digs a JSON document out of model output. Vision models wrap
// their answer in code fences or chat around it; this strips the fence, then
// falls back to the outermost {...} and finally the outermost [...] span.
// The second return is false when no parseable JSON exists in the text.
func RecoverJSON(content string) ([]byte, bool) {
	s := llm.StripCodeFences(content)

	if js, ok := tryJSON(s); ok {
		return js, true
	}
	if js, ok := trySpan(s, '{', '}'); ok {
		return js, true
	}
	if js, ok := trySpan(s, '[', ']'); ok {
		return js, true
	}
	return nil, false
}

func tryJSON(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if !json.Valid([]byte(s)) {
		return nil, false
	}
	// Only objects and arrays are useful; a bare string or number is not a
	// receipt.
	if s[0] != '{' && s[0] != '[' {
		return nil, false
	}
	return []byte(s), true
}

func trySpan(s string, open, close byte) ([]byte, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return nil, false
	}
	return tryJSON(s[start : end+1])
}
