package content

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelsmith/internal/config"
	"reelsmith/internal/services"
	"reelsmith/internal/timing"
)

const validDocument = `{
  "quote": "Loyalty is a leash the powerful put on the useful.",
  "author": "Seneca",
  "motivation": "So build leverage before you are asked for loyalty.",
  "interpretation": "Rewards flow to those who cannot leave.",
  "technical_insight": "Automation turns one skill into many incomes.",
  "practical_applications": ["Map who benefits from your staying", "Keep an exit ready", "Compound quietly"],
  "mood": "Cold",
  "image_category": "Statues"
}`

type stubCompleter struct {
	responses []string
	err       error
	prompts   []string
}

func (s *stubCompleter) CompleteJSON(_ context.Context, _, user string) (string, error) {
	s.prompts = append(s.prompts, user)
	if s.err != nil {
		return "", s.err
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func (s *stubCompleter) GenerateJSON(ctx context.Context, system, user string) (string, error) {
	return s.CompleteJSON(ctx, system, user)
}

type stubHistory []string

func (h stubHistory) RecentQuotes(context.Context, int) ([]string, error) { return h, nil }

func testOptions(history QuoteHistory) Options {
	return Options{
		Philosophers:       []string{"Seneca"},
		RecentWindow:       30,
		DuplicateThreshold: 0.85,
		History:            history,
		Rand:               rand.New(rand.NewPCG(1, 2)),
	}
}

func TestGenerateParsesValidDocument(t *testing.T) {
	stub := &stubCompleter{responses: []string{"```json\n" + validDocument + "\n```"}}
	gen := NewLLMGenerator(stub, testOptions(nil))

	got, err := gen.Generate(context.Background(), "discipline")
	require.NoError(t, err)
	assert.Equal(t, "Seneca", got.Author)
	assert.Equal(t, "cold", got.Mood)
	assert.Equal(t, "statues", got.ImageCategory)
	assert.Len(t, got.Applications, 3)
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "Channel Seneca")
	assert.Contains(t, stub.prompts[0], "Weave in this theme: discipline")
}

func TestGeminiGeneratorSharesParsing(t *testing.T) {
	stub := &stubCompleter{responses: []string{validDocument}}
	got, err := NewGeminiGenerator(stub, testOptions(nil)).Generate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Loyalty is a leash the powerful put on the useful.", got.Quote)
	assert.NotContains(t, stub.prompts[0], "Weave in this theme")
}

func TestParseRejectsSchemaViolationAsTransient(t *testing.T) {
	_, err := Parse(`{"quote": "Only a quote", "author": "Seneca"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrTransient)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.NotEmpty(t, schemaErr.Errors)
}

func TestParseRejectsWrongTypes(t *testing.T) {
	_, err := Parse(`{"quote": "q", "author": "a", "motivation": "m", "practical_applications": "not a list"}`)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestParseRejectsBlankRequiredFields(t *testing.T) {
	_, err := Parse(`{"quote": "   ", "author": "Seneca", "motivation": "m"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrTransient)
}

func TestParseRejectsNonJSON(t *testing.T) {
	_, err := Parse("I cannot help with that.")
	assert.ErrorIs(t, err, services.ErrTransient)
}

func TestDuplicateQuoteIsTransient(t *testing.T) {
	history := stubHistory{"Loyalty is a leash the powerful put on the useful."}
	stub := &stubCompleter{responses: []string{validDocument}}
	_, err := NewLLMGenerator(stub, testOptions(history)).Generate(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrTransient)
	assert.Contains(t, err.Error(), "too similar")
}

func TestDistinctQuotePassesDuplicateGuard(t *testing.T) {
	history := stubHistory{"The obstacle is the way forward for those who look."}
	stub := &stubCompleter{responses: []string{validDocument}}
	_, err := NewLLMGenerator(stub, testOptions(history)).Generate(context.Background(), "")
	require.NoError(t, err)
}

func TestProviderErrorsPassThrough(t *testing.T) {
	cause := services.Wrap(services.ErrConfiguration, "", "llm", "missing key", nil)
	_, err := NewLLMGenerator(&stubCompleter{err: cause}, testOptions(nil)).Generate(context.Background(), "")
	assert.True(t, errors.Is(err, services.ErrConfiguration))
}

func TestTranscriptSegments(t *testing.T) {
	cfg := config.Default()
	c := Content{Quote: "Loyalty is a leash.", Author: "Seneca", Motivation: "Build leverage now."}

	tr := c.Transcript(&cfg)
	require.Len(t, tr.Segments, 4)
	assert.Equal(t, timing.SegmentIntro, tr.Segments[0].Kind)
	assert.Equal(t, "As Seneca once said...", tr.Segments[0].Text())
	assert.True(t, tr.Segments[0].Kind.AudioOnly())
	assert.Equal(t, timing.SegmentEnding, tr.Segments[3].Kind)

	cfg.FlashReel.IntroTemplate = ""
	cfg.FlashReel.EndingPhrase = ""
	tr = c.Transcript(&cfg)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, timing.SegmentQuote, tr.Segments[0].Kind)
}

func TestEmptyContentHasNoWords(t *testing.T) {
	cfg := config.Default()
	cfg.FlashReel.IntroTemplate = ""
	cfg.FlashReel.EndingPhrase = ""
	assert.Zero(t, Content{}.Transcript(&cfg).WordCount())
}

func TestBuildCaptionLayout(t *testing.T) {
	cfg := config.Default()
	c, err := Parse(validDocument)
	require.NoError(t, err)
	c.Applications = append(c.Applications, "A fourth idea")

	caption := BuildCaption(c, &cfg)
	assert.True(t, strings.HasPrefix(caption, `"Loyalty is a leash the powerful put on the useful."`+"\n- Seneca"))
	assert.Contains(t, caption, "The play:\n→ Map who benefits from your staying")
	assert.NotContains(t, caption, "A fourth idea")
	assert.Contains(t, caption, cfg.Content.CloserLine)
	assert.Contains(t, caption, "#stoicism")
	assert.Contains(t, caption, "#Seneca")
	assert.Contains(t, caption, "#Cold")
	assert.Contains(t, caption, "#Statues")
}

func TestBuildCaptionTruncatesOnRuneBoundary(t *testing.T) {
	cfg := config.Default()
	c := Content{
		Quote:          "Short quote.",
		Author:         "Epictetus",
		Motivation:     "Act.",
		Interpretation: strings.Repeat("ünïcödé ", 400),
	}
	caption := BuildCaption(c, &cfg)
	assert.LessOrEqual(t, utf8.RuneCountInString(caption), 2200)
	assert.True(t, utf8.ValidString(caption))
	assert.Contains(t, caption, "...\n\n.\n.\n.\n#stoicism")
}

func TestHashtagsDedupeCaseInsensitive(t *testing.T) {
	tags := Hashtags(Content{Author: "marcus aurelius", Mood: "stoicism"}, []string{"#Stoicism", "#philosophy"})
	assert.Equal(t, []string{"#Stoicism", "#philosophy", "#MarcusAurelius"}, tags)
}
