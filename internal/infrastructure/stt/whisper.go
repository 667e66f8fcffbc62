package stt

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

// Client talks to an OpenAI-compatible audio transcription service. It is
// the fallback used when a video carries no caption track.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
}

var _ ports.SpeechToText = (*Client)(nil)

// NewClient builds a reusable transcription client from configuration.
func NewClient(cfg config.SpeechToTextConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 120 * time.Second},
	}
}

// Transcribe submits the media reference for transcription and returns the
// recognized segments plus the detected language.
func (c *Client) Transcribe(ctx context.Context, mediaRef string) ([]domain.Segment, string, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return nil, "", domain.Errorf(domain.KindValidation, "speech-to-text client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model":           c.model,
		"url":             mediaRef,
		"response_format": "verbose_json",
	})
	if err != nil {
		return nil, "", fmt.Errorf("marshal transcription payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", domain.NewStageError(domain.KindTimeout, err)
		}
		return nil, "", domain.NewStageError(domain.KindTransientNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, "", domain.Errorf(domain.KindAuth, "transcription auth failed: %s", resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", domain.Errorf(domain.KindRateLimited, "transcription rate limited: %s", resp.Status)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, "", domain.Errorf(domain.KindTransientNetwork, "transcription error: %s", resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", domain.Errorf(domain.KindValidation, "transcription rejected %s: %s",
			resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Text     string `json:"text"`
		Language string `json:"language"`
		Segments []struct {
			Text  string  `json:"text"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, "", fmt.Errorf("decode transcription response: %w", err)
	}

	segments := make([]domain.Segment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{Text: text, Start: s.Start, Dur: s.End - s.Start})
	}

	if len(segments) == 0 && strings.TrimSpace(parsed.Text) != "" {
		segments = append(segments, domain.Segment{Text: strings.TrimSpace(parsed.Text)})
	}
	if len(segments) == 0 {
		return nil, "", domain.Errorf(domain.KindNotAvailable, "transcription returned no text")
	}

	return segments, parsed.Language, nil
}
