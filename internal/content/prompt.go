package content

import (
	"fmt"
	"strings"
)

const systemPrompt = `You write short philosophical content for vertical video posts.

Your voice is cold, observational and precise. You reveal a hidden dynamic the reader
senses but has never put into words, then give them one concrete thing to do about it.
Avoid motivational-poster cliches, empty encouragement and anything preachy.

Always respond with a single valid JSON object and nothing else.`

// BuildPrompt renders the user prompt for philosopher and an optional theme.
func BuildPrompt(philosopher, theme string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel %s and write content that makes people stop scrolling.\n", philosopher)
	if theme = strings.TrimSpace(theme); theme != "" {
		fmt.Fprintf(&b, "Weave in this theme: %s\n", theme)
	}
	fmt.Fprintf(&b, `
Return JSON with exactly these fields:
{
  "quote": "an uncomfortable truth about power, human nature or success, under 18 words",
  "author": %q,
  "motivation": "the actionable conclusion that follows from the quote, 8-12 words",
  "interpretation": "two sentences that extend the quote rather than explain it",
  "technical_insight": "two sentences tying the idea to specific modern leverage such as automation, data or systems",
  "practical_applications": ["a specific tactic", "a mental model", "a compounding habit"],
  "mood": "one word such as cold, calculated, surgical or dark",
  "image_category": "one of statues, warriors, nature, temples, sonder"
}`, philosopher)
	return b.String()
}
