package llm

import (
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	cases := map[string]string{
		"plain":         `{"quote":"Q","author":"A"}`,
		"fenced":        "```json\n{\"quote\":\"Q\",\"author\":\"A\"}\n```",
		"bare fence":    "```\n{\"quote\":\"Q\",\"author\":\"A\"}\n```",
		"leading prose": "Here is your quote: {\"quote\":\"Q\",\"author\":\"A\"}",
		"trailing text": "{\"quote\":\"Q\",\"author\":\"A\"}\nHope this helps!",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			var got quotePayload
			if err := DecodeJSON(input, &got); err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if got.Quote != "Q" || got.Author != "A" {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestDecodeJSONErrors(t *testing.T) {
	var target quotePayload
	if err := DecodeJSON("   ", &target); err == nil {
		t.Fatal("expected error for empty payload")
	}
	err := DecodeJSON("no json here", &target)
	if err == nil || !strings.Contains(err.Error(), "no object") {
		t.Fatalf("expected missing object error, got %v", err)
	}
	if err := DecodeJSON(`{"quote": "unterminated`, &target); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
