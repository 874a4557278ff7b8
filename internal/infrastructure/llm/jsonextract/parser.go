// Package jsonextract recovers structured JSON from free-form model text.
// Providers without native structured-output decoding run their replies
// through Extract before schema validation.
package jsonextract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// \x60 is a backtick; raw strings cannot contain them.
	fencedObject = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	fencedArray  = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// Extract pulls the first plausible JSON document out of text, tolerating
// markdown fences and surrounding prose. It returns the compacted raw JSON
// or an error when nothing parseable is present.
func Extract(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	candidate := text

	if strings.HasPrefix(text, "```") {
		if m := fencedObject.FindStringSubmatch(text); len(m) > 1 {
			candidate = m[1]
		} else if m := fencedArray.FindStringSubmatch(text); len(m) > 1 {
			candidate = m[1]
		}
	} else if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		// Conversational wrapping: take the outermost brace pair.
		candidate = widestSpan(text)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(candidate)); err != nil {
		return nil, fmt.Errorf("no parseable JSON in response: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

// SchemaHint renders the instruction block appended to system prompts for
// providers without native structured output: ask for bare JSON matching the
// schema, which Extract can then recover.
func SchemaHint(name string, schema map[string]interface{}) string {
	raw, err := json.Marshal(schema)
	if err != nil {
		raw = []byte("{}")
	}
	return fmt.Sprintf(
		"\n\nRespond with a single JSON document named %q conforming to this JSON schema, and nothing else:\n%s",
		name, raw)
}

// Unmarshal extracts and decodes in one step.
func Unmarshal(text string, v interface{}) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func widestSpan(text string) string {
	first, last := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if first != -1 && last > first {
		return text[first : last+1]
	}
	first, last = strings.Index(text, "["), strings.LastIndex(text, "]")
	if first != -1 && last > first {
		return text[first : last+1]
	}
	return text
}
