package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/services/gemini"
	"reelsmith/internal/services/llm"
	"reelsmith/internal/textutil"
)

// Generator produces one content package per call.
type Generator interface {
	Generate(ctx context.Context, theme string) (Content, error)
}

// QuoteHistory supplies recently published quotes for the duplicate guard.
type QuoteHistory interface {
	RecentQuotes(ctx context.Context, limit int) ([]string, error)
}

// Completer is the OpenRouter surface the LLM generator needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// JSONGenerator is the Gemini surface the Gemini generator needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options tune prompting and the duplicate guard.
type Options struct {
	Philosophers       []string
	RecentWindow       int
	DuplicateThreshold float64
	History            QuoteHistory
	Rand               *rand.Rand
	Logger             *slog.Logger
}

// OptionsFromConfig fills Options from the content section.
func OptionsFromConfig(cfg *config.Config, history QuoteHistory, logger *slog.Logger) Options {
	return Options{
		Philosophers:       cfg.Content.Philosophers,
		RecentWindow:       cfg.Content.RecentWindow,
		DuplicateThreshold: cfg.Content.DuplicateThreshold,
		History:            history,
		Logger:             logger,
	}
}

type base struct {
	provider string
	opts     Options
	rng      *rand.Rand
	logger   *slog.Logger
}

func newBase(provider string, opts Options) base {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return base{
		provider: provider,
		opts:     opts,
		rng:      rng,
		logger:   logging.NewComponentLogger(logger, "content"),
	}
}

func (b base) philosopher() string {
	if len(b.opts.Philosophers) == 0 {
		return "Marcus Aurelius"
	}
	return b.opts.Philosophers[b.rng.IntN(len(b.opts.Philosophers))]
}

type completeFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (b base) generate(ctx context.Context, theme string, complete completeFunc) (Content, error) {
	philosopher := b.philosopher()
	raw, err := complete(ctx, systemPrompt, BuildPrompt(philosopher, theme))
	if err != nil {
		return Content{}, err
	}
	content, err := Parse(raw)
	if err != nil {
		return Content{}, err
	}
	if content.Author == "" {
		content.Author = philosopher
	}
	if err := b.checkDuplicate(ctx, content); err != nil {
		return Content{}, err
	}
	b.logger.Info("content generated",
		logging.String("provider", b.provider),
		logging.String("author", content.Author),
		logging.String("mood", content.Mood),
		logging.String("image_category", content.ImageCategory),
		logging.Int("quote_words", len(strings.Fields(content.Quote))),
	)
	return content, nil
}

func (b base) checkDuplicate(ctx context.Context, c Content) error {
	if b.opts.History == nil || b.opts.RecentWindow <= 0 || b.opts.DuplicateThreshold <= 0 {
		return nil
	}
	recent, err := b.opts.History.RecentQuotes(ctx, b.opts.RecentWindow)
	if err != nil {
		return fmt.Errorf("load recent quotes: %w", err)
	}
	score, idx := textutil.MostSimilar(c.Quote, recent)
	if idx >= 0 && score >= b.opts.DuplicateThreshold {
		b.logger.Info("generated quote rejected as duplicate",
			logging.Float64("similarity", score),
			logging.String("previous_quote", recent[idx]),
		)
		return services.Wrap(services.ErrTransient, "content", "duplicate guard",
			fmt.Sprintf("quote too similar to a recent post (%.2f)", score), nil)
	}
	return nil
}

// Parse decodes, schema-checks and validates a model response. Any failure
// is transient because a fresh generation is likely to succeed.
func Parse(raw string) (Content, error) {
	var document json.RawMessage
	if err := llm.DecodeJSON(raw, &document); err != nil {
		return Content{}, services.Wrap(services.ErrTransient, "content", "decode", "response is not JSON", err)
	}
	if err := ValidateSchema(document); err != nil {
		return Content{}, services.Wrap(services.ErrTransient, "content", "schema", "response violates content schema", err)
	}
	var content Content
	if err := json.Unmarshal(document, &content); err != nil {
		return Content{}, services.Wrap(services.ErrTransient, "content", "decode", "unmarshal content", err)
	}
	content.normalize()
	if err := content.Validate(); err != nil {
		return Content{}, services.Wrap(services.ErrTransient, "content", "validate", "content failed validation", err)
	}
	return content, nil
}

// LLMGenerator generates content through OpenRouter.
type LLMGenerator struct {
	base
	client Completer
}

// NewLLMGenerator builds an OpenRouter-backed generator.
func NewLLMGenerator(client Completer, opts Options) *LLMGenerator {
	return &LLMGenerator{base: newBase(config.ProviderOpenRouter, opts), client: client}
}

// Generate implements Generator.
func (g *LLMGenerator) Generate(ctx context.Context, theme string) (Content, error) {
	return g.generate(ctx, theme, g.client.CompleteJSON)
}

// GeminiGenerator generates content through Google Gemini.
type GeminiGenerator struct {
	base
	client JSONGenerator
}

// NewGeminiGenerator builds a Gemini-backed generator.
func NewGeminiGenerator(client JSONGenerator, opts Options) *GeminiGenerator {
	return &GeminiGenerator{base: newBase(config.ProviderGemini, opts), client: client}
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, theme string) (Content, error) {
	return g.generate(ctx, theme, g.client.GenerateJSON)
}

// New builds the generator selected by content.provider. The returned close
// function releases provider connections.
func New(ctx context.Context, cfg *config.Config, history QuoteHistory, logger *slog.Logger) (Generator, func() error, error) {
	opts := OptionsFromConfig(cfg, history, logger)
	switch cfg.Content.Provider {
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: cfg.Gemini.Temperature,
			Timeout:     secondsDuration(cfg.Gemini.TimeoutSeconds),
		})
		if err != nil {
			return nil, nil, err
		}
		return NewGeminiGenerator(client, opts), client.Close, nil
	default:
		llmCfg := cfg.GetLLM()
		client := llm.NewClient(llm.Config{
			APIKey:         llmCfg.APIKey,
			BaseURL:        llmCfg.BaseURL,
			Model:          llmCfg.Model,
			Referer:        llmCfg.Referer,
			Title:          llmCfg.Title,
			TimeoutSeconds: llmCfg.TimeoutSeconds,
			Temperature:    0.9,
		}, llm.WithLogger(logger))
		return NewLLMGenerator(client, opts), func() error { return nil }, nil
	}
}

func secondsDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
