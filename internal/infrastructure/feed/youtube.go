package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/ports"
)

const defaultFeedURL = "https://www.youtube.com/feeds/videos.xml"

// YouTubeFeed polls the channel RSS feed for freshly published videos.
type YouTubeFeed struct {
	client    *http.Client
	feedURL   string
	channelID string
}

var _ ports.FeedSource = (*YouTubeFeed)(nil)

// NewYouTubeFeed wires an HTTP client; feedURL defaults to the public
// YouTube feed endpoint.
func NewYouTubeFeed(client *http.Client, feedURL, channelID string) *YouTubeFeed {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if feedURL == "" {
		feedURL = defaultFeedURL
	}
	return &YouTubeFeed{client: client, feedURL: feedURL, channelID: channelID}
}

// Poll fetches the feed and returns entries published after since,
// deduplicated by external id. Order is not guaranteed.
func (f *YouTubeFeed) Poll(ctx context.Context, since time.Time) ([]domain.FeedEntry, error) {
	if f.channelID == "" {
		return nil, domain.Errorf(domain.KindValidation, "channel id is empty")
	}

	doc, err := f.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.FeedEntry, 0)
	seen := map[string]struct{}{}

	doc.Find("entry").Each(func(i int, sel *goquery.Selection) {
		entry, ok := parseEntry(sel)
		if !ok {
			return
		}
		if _, dup := seen[entry.ExternalID]; dup {
			return
		}
		if entry.PublishedAt.Before(since) {
			return
		}
		seen[entry.ExternalID] = struct{}{}
		entries = append(entries, entry)
	})

	return entries, nil
}

func (f *YouTubeFeed) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	pageURL, err := buildFeedURL(f.feedURL, f.channelID)
	if err != nil {
		return nil, domain.Errorf(domain.KindValidation, "feed url: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ShortsPublisher/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewStageError(domain.KindTimeout, err)
		}
		return nil, domain.NewStageError(domain.KindTransientNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Errorf(domain.KindTransientNetwork, "feed returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// parseEntry extracts one video from an atom entry. Malformed entries are
// skipped rather than failing the whole poll.
func parseEntry(sel *goquery.Selection) (domain.FeedEntry, bool) {
	videoID := strings.TrimSpace(sel.Find(`yt\:videoid`).First().Text())
	if videoID == "" {
		return domain.FeedEntry{}, false
	}

	title := strings.TrimSpace(sel.Find("title").First().Text())

	link, _ := sel.Find("link").First().Attr("href")
	if link == "" {
		link = "https://www.youtube.com/watch?v=" + videoID
	}

	publishedAt := time.Now().UTC()
	if raw := strings.TrimSpace(sel.Find("published").First().Text()); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			publishedAt = parsed
		}
	}

	description := strings.TrimSpace(sel.Find(`media\:description`).First().Text())
	thumbnail, _ := sel.Find(`media\:thumbnail`).First().Attr("url")

	return domain.FeedEntry{
		ExternalID:   videoID,
		Title:        title,
		URL:          link,
		Description:  description,
		ThumbnailURL: thumbnail,
		PublishedAt:  publishedAt,
	}, true
}

func buildFeedURL(base, channelID string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("channel_id", channelID)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
