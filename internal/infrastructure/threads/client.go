package threads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/domain"
	"ShortsPublisher/internal/ports"
)

// Client publishes text posts through the Threads Graph API. Publishing is
// a two step call: create a media container, then publish it.
type Client struct {
	baseURL     string
	accessToken string
	userID      string
	httpClient  *http.Client
}

var _ ports.Publisher = (*Client)(nil)

// NewClient builds a publishing client from configuration.
func NewClient(cfg config.ThreadsConfig) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		userID:      cfg.UserID,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Publish creates and publishes a text post, returning the remote post id.
func (c *Client) Publish(ctx context.Context, body string, mediaRefs []string) (domain.PublishedReceipt, error) {
	if c.accessToken == "" || c.userID == "" {
		return domain.PublishedReceipt{}, domain.Errorf(domain.KindAuth, "threads client misconfigured")
	}

	container := map[string]any{
		"media_type":   "TEXT",
		"text":         body,
		"access_token": c.accessToken,
	}
	if len(mediaRefs) > 0 {
		container["media_type"] = "IMAGE"
		container["image_url"] = mediaRefs[0]
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, fmt.Sprintf("/%s/threads", c.userID), container, &created); err != nil {
		return domain.PublishedReceipt{}, err
	}
	if created.ID == "" {
		return domain.PublishedReceipt{}, domain.Errorf(domain.KindValidation, "threads returned empty container id")
	}

	var published struct {
		ID string `json:"id"`
	}
	payload := map[string]any{
		"creation_id":  created.ID,
		"access_token": c.accessToken,
	}
	if err := c.post(ctx, fmt.Sprintf("/%s/threads_publish", c.userID), payload, &published); err != nil {
		return domain.PublishedReceipt{}, err
	}
	if published.ID == "" {
		published.ID = created.ID
	}

	return domain.PublishedReceipt{
		RemotePostID: published.ID,
		PostURL:      "https://www.threads.net/post/" + published.ID,
		PublishedAt:  time.Now().UTC(),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.NewStageError(domain.KindTimeout, err)
		}
		return domain.NewStageError(domain.KindTransientNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return domain.Errorf(domain.KindAuth, "threads auth failed: %s", c.errorDetail(resp))
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.Errorf(domain.KindRateLimited, "threads rate limited: %s", c.errorDetail(resp))
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.Errorf(domain.KindTransientNetwork, "threads error: %s", resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		return domain.Errorf(domain.KindValidation, "threads rejected post: %s", c.errorDetail(resp))
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) errorDetail(resp *http.Response) string {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return resp.Status
}
