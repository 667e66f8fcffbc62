package captions

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/ports"
)

const defaultTimedTextURL = "https://video.google.com/timedtext"

// Client fetches YouTube timedtext caption tracks.
type Client struct {
	client  *http.Client
	baseURL string
}

var _ ports.CaptionSource = (*Client)(nil)

// NewClient wires an HTTP client; baseURL defaults to the public timedtext
// endpoint.
func NewClient(client *http.Client, baseURL string) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultTimedTextURL
	}
	return &Client{client: client, baseURL: baseURL}
}

// Captions tries each preferred language in order and returns the first
// non-empty track. A video with no track in any language reports
// domain.KindNotAvailable.
func (c *Client) Captions(ctx context.Context, externalID string, languages []string) ([]domain.Segment, string, error) {
	if len(languages) == 0 {
		languages = []string{"en"}
	}

	for _, lang := range languages {
		segments, err := c.fetchTrack(ctx, externalID, lang)
		if err != nil {
			return nil, "", err
		}
		if len(segments) > 0 {
			return segments, lang, nil
		}
	}

	return nil, "", domain.Errorf(domain.KindNotAvailable,
		"no caption track for %s in %s", externalID, strings.Join(languages, ","))
}

func (c *Client) fetchTrack(ctx context.Context, externalID, lang string) ([]domain.Segment, error) {
	trackURL, err := buildTrackURL(c.baseURL, externalID, lang)
	if err != nil {
		return nil, domain.Errorf(domain.KindValidation, "track url: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewStageError(domain.KindTimeout, err)
		}
		return nil, domain.NewStageError(domain.KindTransientNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, domain.Errorf(domain.KindTransientNetwork, "timedtext returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse track: %w", err)
	}

	var segments []domain.Segment
	doc.Find("text").Each(func(i int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		segment := domain.Segment{Text: text}
		if v, ok := sel.Attr("start"); ok {
			segment.Start, _ = strconv.ParseFloat(v, 64)
		}
		if v, ok := sel.Attr("dur"); ok {
			segment.Dur, _ = strconv.ParseFloat(v, 64)
		}
		segments = append(segments, segment)
	})

	return segments, nil
}

func buildTrackURL(base, externalID, lang string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("v", externalID)
	query.Set("lang", lang)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
