package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/guardrails"
	"ShortsPublisher/internal/ports"
)

// Generator turns a transcript into the next post draft revision.
type Generator struct {
	llm    ports.TextGenerator
	store  ports.ItemStore
	cfg    config.GeneratorConfig
	prompt PromptTemplate
	logger *slog.Logger
}

// NewGenerator constructs the drafting component with a pre-loaded prompt.
func NewGenerator(llm ports.TextGenerator, store ports.ItemStore, cfg config.GeneratorConfig,
	prompt PromptTemplate, logger *slog.Logger) *Generator {
	return &Generator{
		llm:    llm,
		store:  store,
		cfg:    cfg,
		prompt: prompt,
		logger: logger.With("component", "generator"),
	}
}

// Generate produces and persists one new draft revision. The first draft for
// an item is revision 1; regeneration after edits appends the next number.
func (g *Generator) Generate(ctx context.Context, item domain.Item, transcript domain.Transcript) (domain.PostDraft, error) {
	maxTokens := g.prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxTokens
	}
	temperature := g.prompt.Temperature
	if temperature <= 0 {
		temperature = g.cfg.Temperature
	}

	body, err := g.llm.Complete(ctx, ports.CompletionRequest{
		System:      g.prompt.System,
		Prompt:      g.prompt.Render(transcript.Text, item.Title, item.URL),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return domain.PostDraft{}, fmt.Errorf("complete draft %s: %w", item.ExternalID, err)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return domain.PostDraft{}, domain.Errorf(domain.KindValidation,
			"empty completion for item %s", item.ExternalID)
	}

	draft := domain.PostDraft{
		ItemID:     item.ExternalID,
		Platform:   g.cfg.Platform,
		Revision:   1,
		Body:       body,
		Hashtags:   guardrails.ExtractHashtags(body),
		EmojiCount: guardrails.CountEmojis(body),
		Model:      g.cfg.Model,
		PromptName: g.prompt.Name,
		Current:    true,
		CreatedAt:  time.Now().UTC(),
	}

	if prev, err := g.store.CurrentDraft(ctx, item.ExternalID); err == nil {
		draft.Revision = prev.Revision + 1
	}

	if err := g.store.SaveDraft(ctx, draft); err != nil {
		return domain.PostDraft{}, fmt.Errorf("save draft %s: %w", item.ExternalID, err)
	}

	g.logger.Info("generated draft",
		"item_id", item.ExternalID, "revision", draft.Revision, "chars", len([]rune(body)))
	return draft, nil
}
