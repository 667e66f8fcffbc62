package llm

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

const anthropicVersion = "2023-06-01"

// ClaudeClient implements ports.TextGenerator backed by the Anthropic
// messages API.
type ClaudeClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.TextGenerator = (*ClaudeClient)(nil)

// NewClaudeClient builds a client from configuration.
func NewClaudeClient(cfg config.GeneratorConfig) *ClaudeClient {
	return &ClaudeClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Complete sends the prompt and returns the generated text.
func (c *ClaudeClient) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if c == nil {
		return "", domain.Errorf(domain.KindValidation, "generator client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", domain.Errorf(domain.KindValidation, "generator client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"system":      req.System,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.NewStageError(domain.KindTimeout, err)
		}
		return "", domain.NewStageError(domain.KindTransientNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", domain.Errorf(domain.KindAuth, "generator auth failed: %s", resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", domain.Errorf(domain.KindRateLimited, "generator rate limited: %s", resp.Status)
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", domain.Errorf(domain.KindTransientNetwork, "generator error: %s", resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", domain.Errorf(domain.KindValidation, "generator rejected %s: %s",
			resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}

	return "", domain.Errorf(domain.KindValidation, "generator returned no text content")
}
