package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/ports"
)

// PostPublisher pushes an approved draft to the social platform, recording
// every attempt and never publishing the same item twice.
type PostPublisher struct {
	publisher ports.Publisher
	store     ports.ItemStore
	logger    *slog.Logger
}

// NewPostPublisher constructs the publishing component.
func NewPostPublisher(publisher ports.Publisher, store ports.ItemStore, logger *slog.Logger) *PostPublisher {
	return &PostPublisher{
		publisher: publisher,
		store:     store,
		logger:    logger.With("component", "publisher"),
	}
}

// Publish submits the draft under the given retry policy. A stored receipt
// short-circuits the call so a crash between publish and ledger write cannot
// double-post.
func (p *PostPublisher) Publish(ctx context.Context, item domain.Item, draft domain.PostDraft, policy RetryPolicy) (domain.PublishedReceipt, error) {
	existing, err := p.store.Receipt(ctx, item.ExternalID)
	if err == nil {
		p.logger.Info("receipt already recorded, skipping publish",
			"item_id", item.ExternalID, "remote_post_id", existing.RemotePostID)
		return existing, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return domain.PublishedReceipt{}, fmt.Errorf("load receipt %s: %w", item.ExternalID, err)
	}

	var mediaRefs []string
	if item.ThumbnailURL != "" {
		mediaRefs = append(mediaRefs, item.ThumbnailURL)
	}

	var receipt domain.PublishedReceipt
	err = policy.Do(ctx, func(ctx context.Context, attempt int) error {
		got, publishErr := p.publisher.Publish(ctx, draft.Body, mediaRefs)

		outcome := ""
		if publishErr != nil {
			outcome = publishErr.Error()
		}
		if recordErr := p.store.RecordPublishAttempt(ctx, item.ExternalID, attempt, outcome); recordErr != nil {
			p.logger.Error("cannot record publish attempt",
				"item_id", item.ExternalID, "attempt", attempt, "error", recordErr)
		}

		if publishErr != nil {
			p.logger.Warn("publish attempt failed",
				"item_id", item.ExternalID, "attempt", attempt, "kind", domain.KindOf(publishErr), "error", publishErr)
			return publishErr
		}

		got.ItemID = item.ExternalID
		receipt = got
		return nil
	})
	if err != nil {
		return domain.PublishedReceipt{}, err
	}

	if err := p.store.SaveReceipt(ctx, receipt); err != nil {
		return domain.PublishedReceipt{}, fmt.Errorf("save receipt %s: %w", item.ExternalID, err)
	}

	p.logger.Info("published item",
		"item_id", item.ExternalID, "remote_post_id", receipt.RemotePostID, "url", receipt.PostURL)
	return receipt, nil
}
