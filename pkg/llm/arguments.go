package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// DecodeArguments parses a serialized tool-call payload. An empty payload is an
// empty object; anything that is not a well-formed JSON object is rejected.
func DecodeArguments(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, nil
	}
	if !gjson.Valid(trimmed) {
		return nil, fmt.Errorf("tool arguments are not valid JSON: %q", raw)
	}
	if parsed := gjson.Parse(trimmed); !parsed.IsObject() {
		return nil, fmt.Errorf("tool arguments must be a JSON object, got %s", parsed.Type)
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	return out, nil
}
