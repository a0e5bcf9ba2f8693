package content

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelsmith/internal/config"
	"reelsmith/internal/textutil"
)

const (
	maxApplications  = 3
	hashtagSeparator = "\n\n.\n.\n.\n"
	ellipsis         = "..."
)

// BuildCaption assembles the post caption: quote and author, interpretation,
// technical insight, up to three applications, the closer line and
// hashtags. The body is shortened on a rune boundary so the whole caption
// fits content.max_caption_length.
func BuildCaption(c Content, cfg *config.Config) string {
	limit := cfg.Content.MaxCaptionLength
	if limit <= 0 || limit > 2200 {
		limit = 2200
	}

	sections := []string{`"` + c.Quote + `"` + "\n- " + c.Author}
	if c.Interpretation != "" {
		sections = append(sections, c.Interpretation)
	}
	if c.TechnicalInsight != "" {
		sections = append(sections, c.TechnicalInsight)
	}
	if len(c.Applications) > 0 {
		var b strings.Builder
		b.WriteString("The play:")
		for i, app := range c.Applications {
			if i == maxApplications {
				break
			}
			b.WriteString("\n→ ")
			b.WriteString(app)
		}
		sections = append(sections, b.String())
	}
	if closer := strings.TrimSpace(cfg.Content.CloserLine); closer != "" {
		sections = append(sections, closer)
	}
	body := strings.Join(sections, "\n\n")

	tags := strings.Join(Hashtags(c, cfg.Content.Hashtags), " ")
	if tags == "" {
		return textutil.TruncateRunes(body, limit)
	}
	suffix := hashtagSeparator + tags
	if utf8.RuneCountInString(body)+utf8.RuneCountInString(suffix) <= limit {
		return body + suffix
	}
	room := limit - utf8.RuneCountInString(suffix) - len(ellipsis)
	if room <= 0 {
		return textutil.TruncateRunes(body, limit)
	}
	return strings.TrimRightFunc(textutil.TruncateRunes(body, room), unicode.IsSpace) + ellipsis + suffix
}

// Hashtags merges the configured tags with tags derived from the author,
// mood and image category. Duplicates are dropped case-insensitively.
func Hashtags(c Content, configured []string) []string {
	candidates := append([]string{}, configured...)
	for _, word := range []string{c.Author, c.Mood, c.ImageCategory} {
		if tag := hashtag(word); tag != "" {
			candidates = append(candidates, tag)
		}
	}
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, tag := range candidates {
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok || tag == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// hashtag title-cases words and joins them: "marcus aurelius" becomes
// "#MarcusAurelius".
func hashtag(text string) string {
	titled := cases.Title(language.English).String(strings.TrimSpace(text))
	var b strings.Builder
	for _, r := range titled {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "#" + b.String()
}
