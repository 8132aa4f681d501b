// internal/llmutil/parser.go
package llmutil

import (
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fenceOpenRegex matches an opening markdown fence with an optional language
// tag. Uses \x60 for backticks because Go raw strings cannot contain them.
var fenceOpenRegex = regexp.MustCompile("^\x60\x60\x60+[a-zA-Z]*[ \t]*\r?\n?")

// SafeString drops bytes that are not valid UTF-8 so the text can be embedded
// into prompts and JSON payloads without corrupting them.
func SafeString(s string) string {
	return strings.ToValidUTF8(s, "")
}

// ExtractFirstJSON finds the first syntactically valid JSON object or array
// in free text, scanning left to right. The text may contain prose, markdown
// fences, or several JSON-looking fragments. Returns the decoded
// map[string]any or []any, or nil when nothing parses. Absence of a value is
// a normal outcome, never an error.
func ExtractFirstJSON(raw string) any {
	if raw == "" {
		return nil
	}

	t := strings.TrimSpace(raw)
	if strings.HasPrefix(t, "```") {
		t = fenceOpenRegex.ReplaceAllString(t, "")
		if idx := strings.LastIndex(t, "```"); idx >= 0 {
			t = t[:idx]
		}
		t = strings.TrimSpace(t)
	}

	// Whole-string parse first, fenced then raw.
	for _, candidate := range []string{t, raw} {
		if v := decodeContainer(candidate); v != nil {
			return v
		}
	}

	// Fall back to scanning for balanced bracket runs.
	for pos := 0; pos < len(t); pos++ {
		if t[pos] != '{' && t[pos] != '[' {
			continue
		}
		end := balancedEnd(t[pos:])
		if end <= 0 {
			continue
		}
		if v := decodeContainer(t[pos : pos+end]); v != nil {
			return v
		}
	}
	return nil
}

// decodeContainer parses candidate and returns it only when it decodes to a
// JSON object or array; scalar values are not useful to any caller here.
func decodeContainer(candidate string) any {
	var v any
	if err := json.UnmarshalFromString(candidate, &v); err != nil {
		return nil
	}
	switch v.(type) {
	case map[string]any, []any:
		return v
	default:
		return nil
	}
}

// balancedEnd returns the length of the shortest balanced bracket run at the
// start of chunk, or 0 when the brackets never balance. Quote-unaware by
// design: a false positive simply fails to decode and scanning continues.
func balancedEnd(chunk string) int {
	var stack []byte
	for i := 0; i < len(chunk); i++ {
		switch ch := chunk[i]; ch {
		case '[', '{':
			stack = append(stack, ch)
		case ']', '}':
			if len(stack) == 0 {
				return 0
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (top == '[' && ch != ']') || (top == '{' && ch != '}') {
				return 0
			}
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return 0
}
