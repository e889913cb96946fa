// Package telegram provides a client for the Telegram Bot API, the remote
// platform hosting the monitored bots.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/botsentinel/botsentinel/internal/resilience"
)

// DefaultBaseURL is the Telegram Bot API base URL.
const DefaultBaseURL = "https://api.telegram.org"

// APIError is returned for non-2xx responses or explicit rejections in the
// response envelope. Checkers map it to a FAIL verdict with the status code.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram api: %d %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram api: status %d", e.StatusCode)
}

// Identity describes the account behind a bot token, from getMe.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// WebhookInfo is the current callback registration for a bot, from
// getWebhookInfo. Surfaced raw for observability even when healthy.
type WebhookInfo struct {
	URL                string     `json:"url"`
	PendingUpdateCount int        `json:"pendingUpdateCount"`
	LastErrorMessage   string     `json:"lastErrorMessage,omitempty"`
	LastErrorAt        *time.Time `json:"lastErrorAt,omitempty"`
}

// Message is a sent probe message.
type Message struct {
	MessageID int64 `json:"message_id"`
}

// ClientConfig holds configuration for the Telegram client.
type ClientConfig struct {
	// BaseURL overrides the API base URL (used by tests).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a resilient client with
	// checker defaults (bounded timeout, no retries) is used.
	HTTPClient resilience.Doer

	// Timeout bounds each API call when the default client is constructed.
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Telegram Bot API client.
type Client struct {
	baseURL    string
	httpClient resilience.Doer
	logger     zerolog.Logger
}

// NewClient creates a new Telegram client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.CheckerClientConfig("telegram", cfg.Timeout))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// envelope is the uniform Telegram response wrapper.
type envelope struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// GetMe confirms the token is currently accepted by the platform.
func (c *Client) GetMe(ctx context.Context, token string) (*Identity, error) {
	var identity Identity
	if err := c.call(ctx, token, "getMe", nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// GetWebhookInfo retrieves the bot's current callback registration.
func (c *Client) GetWebhookInfo(ctx context.Context, token string) (*WebhookInfo, error) {
	var raw struct {
		URL                string `json:"url"`
		PendingUpdateCount int    `json:"pending_update_count"`
		LastErrorDate      int64  `json:"last_error_date"`
		LastErrorMessage   string `json:"last_error_message"`
	}
	if err := c.call(ctx, token, "getWebhookInfo", nil, &raw); err != nil {
		return nil, err
	}

	info := &WebhookInfo{
		URL:                raw.URL,
		PendingUpdateCount: raw.PendingUpdateCount,
		LastErrorMessage:   raw.LastErrorMessage,
	}
	if raw.LastErrorDate > 0 {
		at := time.Unix(raw.LastErrorDate, 0).UTC()
		info.LastErrorAt = &at
	}
	return info, nil
}

// SendMessage delivers a probe message to the given chat.
func (c *Client) SendMessage(ctx context.Context, token, chatID, text string) (*Message, error) {
	payload := map[string]any{"chat_id": chatID, "text": text}
	var msg Message
	if err := c.call(ctx, token, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage removes a previously sent probe message.
func (c *Client) DeleteMessage(ctx context.Context, token, chatID string, messageID int64) error {
	payload := map[string]any{"chat_id": chatID, "message_id": messageID}
	return c.call(ctx, token, "deleteMessage", payload, nil)
}

// call issues one API method call. payload nil means GET, otherwise a JSON
// POST. Non-2xx, a false envelope, or malformed JSON all yield an error
// value; nothing escapes as a panic or hangs past the client timeout.
func (c *Client) call(ctx context.Context, token, method string, payload any, out any) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, token, method)

	var req *http.Request
	var err error
	if payload == nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	} else {
		body, merr := json.Marshal(payload)
		if merr != nil {
			return fmt.Errorf("encoding request: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Description: "malformed response body"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.OK {
		return &APIError{StatusCode: resp.StatusCode, Description: env.Description}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return &APIError{StatusCode: resp.StatusCode, Description: "malformed result payload"}
		}
	}
	return nil
}
