package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeJSON decodes the first JSON value in content into target. Models
// sometimes wrap the payload in a markdown fence or a sentence of prose;
// both are skipped, and anything after the value is ignored.
func DecodeJSON(content string, target any) error {
	text := unfence(strings.TrimSpace(content))
	if text == "" {
		return errors.New("decode llm json: empty payload")
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		start = strings.IndexByte(text, '[')
	}
	if start < 0 {
		return fmt.Errorf("decode llm json: no object in %s", snippet(text))
	}
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(target); err != nil {
		return fmt.Errorf("decode llm json: %w (payload: %s)", err, snippet(text[start:]))
	}
	return nil
}

func unfence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := text[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// Drop the language tag line (```json).
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func snippet(text string) string {
	const limit = 160
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
