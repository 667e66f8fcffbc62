package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/guardrails"
	"ShortsPublisher/internal/ports"
)

// Transcriber obtains a flat transcript for an item, preferring the
// platform's caption track and falling back to speech-to-text when no track
// exists.
type Transcriber struct {
	captions ports.CaptionSource
	stt      ports.SpeechToText
	store    ports.ItemStore
	cfg      config.CaptionsConfig
	sttOn    bool
	logger   *slog.Logger
}

// NewTranscriber constructs the transcription component. A nil stt disables
// the fallback.
func NewTranscriber(captions ports.CaptionSource, stt ports.SpeechToText, store ports.ItemStore,
	cfg config.CaptionsConfig, sttEnabled bool, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		captions: captions,
		stt:      stt,
		store:    store,
		cfg:      cfg,
		sttOn:    sttEnabled && stt != nil,
		logger:   logger.With("component", "transcriber"),
	}
}

// Transcribe produces and persists the transcript for one item. One call is
// one attempt; retry budgets live with the caller.
func (t *Transcriber) Transcribe(ctx context.Context, item domain.Item) (domain.Transcript, error) {
	segments, language, source, err := t.fetch(ctx, item)
	if err != nil {
		return domain.Transcript{}, err
	}

	text := flattenSegments(segments)
	if strings.TrimSpace(text) == "" {
		return domain.Transcript{}, domain.Errorf(domain.KindValidation,
			"empty transcript for item %s", item.ExternalID)
	}
	if language == "" {
		language = guardrails.DetectLanguage(text)
	}

	transcript := domain.Transcript{
		ItemID:    item.ExternalID,
		Text:      text,
		Language:  language,
		Source:    source,
		CharCount: len([]rune(text)),
		WordCount: guardrails.WordCount(text),
		CreatedAt: time.Now().UTC(),
	}
	if err := t.store.SaveTranscript(ctx, transcript); err != nil {
		return domain.Transcript{}, fmt.Errorf("save transcript %s: %w", item.ExternalID, err)
	}

	t.logger.Info("transcribed item",
		"item_id", item.ExternalID, "source", source, "language", language, "chars", transcript.CharCount)
	return transcript, nil
}

func (t *Transcriber) fetch(ctx context.Context, item domain.Item) ([]domain.Segment, string, domain.TranscriptSource, error) {
	segments, language, err := t.captions.Captions(ctx, item.ExternalID, t.cfg.Languages)
	if err == nil {
		return segments, language, domain.SourceCaptions, nil
	}

	var stageErr *domain.StageError
	noTrack := errors.As(err, &stageErr) && stageErr.Kind == domain.KindNotAvailable
	if !noTrack {
		return nil, "", "", fmt.Errorf("fetch captions %s: %w", item.ExternalID, err)
	}
	if !t.sttOn {
		return nil, "", "", domain.Errorf(domain.KindNotAvailable,
			"no caption track for item %s and speech-to-text disabled", item.ExternalID)
	}

	t.logger.Info("no caption track, using speech-to-text", "item_id", item.ExternalID)
	segments, language, err = t.stt.Transcribe(ctx, item.URL)
	if err != nil {
		return nil, "", "", fmt.Errorf("speech-to-text %s: %w", item.ExternalID, err)
	}
	return segments, language, domain.SourceSpeechToText, nil
}

func flattenSegments(segments []domain.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if trimmed := strings.TrimSpace(segment.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}
