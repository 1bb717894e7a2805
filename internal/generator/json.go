package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// unmarshalStrict parses raw model output into the typed result. Models
// occasionally wrap the JSON object in a code fence or leading prose, so the
// object is located before decoding.
func unmarshalStrict(raw json.RawMessage, out interface{}) error {
	text := strings.TrimSpace(string(raw))

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")

		if start < 0 || end <= start {
			return fmt.Errorf("no JSON object in model output")
		}

		text = text[start : end+1]
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to decode structured output: %w", err)
	}

	return nil
}
