// Package chat talks to the EcoBuddy completion endpoint, builds its system
// prompt from live campus data and renders replies for display.
package chat

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecocampus/ecocampus-server/internal/ratelimit"
)

// FallbackReply is shown when the assistant cannot answer.
const FallbackReply = "🔌 My brain is offline (Server Error). Try again later!"

// ErrNotConfigured is returned when no completion endpoint is set.
var ErrNotConfigured = errors.New("chat endpoint is not configured")

// Completer produces an assistant reply.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is one user turn.
type CompletionRequest struct {
	UserID       string `json:"-"`
	AccessToken  string `json:"-"`
	Message      string `json:"message"`
	SystemPrompt string `json:"systemPrompt"`
}

type completionResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error"`
}

// Client calls an HTTP completion endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *ratelimit.KeyedRateLimiter
	logger     *slog.Logger
}

// NewClient creates a client for endpoint. Requests are throttled per user by limiter.
func NewClient(endpoint string, timeout time.Duration, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// Complete posts the message with its system prompt and returns the reply text.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}
	if c.limiter != nil && !c.limiter.Allow(req.UserID) {
		return "", fmt.Errorf("chat: rate limited")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	var out completionResponse
	if err := json.UnmarshalRead(resp.Body, &out); err != nil {
		return "", fmt.Errorf("parse chat response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = "Server Error"
		}
		return "", fmt.Errorf("chat failed: status %d: %s", resp.StatusCode, msg)
	}
	if out.Reply == "" {
		return "", fmt.Errorf("chat failed: empty reply")
	}

	c.logger.Debug("chat reply received",
		"user_id", req.UserID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out.Reply, nil
}
