package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/ports"
)

// Detector polls the feed and seeds previously unseen entries into the
// store. Items already in the ledger are never re-seeded, so an item that
// progressed past detection is untouched by later polls.
type Detector struct {
	feed   ports.FeedSource
	store  ports.ItemStore
	cfg    config.FeedConfig
	logger *slog.Logger
}

// NewDetector constructs the detection component.
func NewDetector(feed ports.FeedSource, store ports.ItemStore, cfg config.FeedConfig, logger *slog.Logger) *Detector {
	return &Detector{
		feed:   feed,
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "detector"),
	}
}

// Detect polls once and returns the external ids of newly seeded items.
func (d *Detector) Detect(ctx context.Context, now time.Time) ([]string, error) {
	since := now.Add(-d.cfg.Lookback())

	entries, err := d.feed.Poll(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("poll feed: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ExternalID
	}

	known, err := d.store.KnownIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load known ids: %w", err)
	}

	var seeded []string
	for _, entry := range entries {
		if known[entry.ExternalID] {
			continue
		}

		item := domain.Item{
			ExternalID:   entry.ExternalID,
			Title:        entry.Title,
			URL:          entry.URL,
			Description:  entry.Description,
			ThumbnailURL: entry.ThumbnailURL,
			PublishedAt:  entry.PublishedAt,
			DiscoveredAt: now,
		}
		if err := d.store.SeedItem(ctx, item); err != nil {
			return seeded, fmt.Errorf("seed item %s: %w", entry.ExternalID, err)
		}

		transition := domain.StatusTransition{
			ItemID: entry.ExternalID,
			To:     domain.StatusDetected,
			Stage:  "detect",
			At:     now,
		}
		if err := d.store.AppendTransition(ctx, transition); err != nil {
			return seeded, fmt.Errorf("record detection %s: %w", entry.ExternalID, err)
		}

		d.logger.Info("detected new item", "item_id", entry.ExternalID, "title", entry.Title)
		seeded = append(seeded, entry.ExternalID)
	}

	return seeded, nil
}
