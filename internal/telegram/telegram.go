// Package telegram is a small Bot API client: long polling, text messages
// with a reply keyboard, webhook removal.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/deusflow/sandboxbot/internal/logger"
	"github.com/deusflow/sandboxbot/internal/retry"
)

const DefaultAPIURL = "https://api.telegram.org"

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type KeyboardButton struct {
	Text string `json:"text"`
}

type ReplyKeyboardMarkup struct {
	Keyboard       [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard"`
}

// Keyboard builds a resizable reply keyboard from rows of labels.
func Keyboard(rows ...[]string) *ReplyKeyboardMarkup {
	kb := &ReplyKeyboardMarkup{ResizeKeyboard: true}
	for _, row := range rows {
		buttons := make([]KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, KeyboardButton{Text: label})
		}
		kb.Keyboard = append(kb.Keyboard, buttons)
	}
	return kb
}

// APIError is a response with ok=false or a non-2xx status.
type APIError struct {
	Method      string
	StatusCode  int
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, e.Description)
}

// Temporary reports whether the call may succeed later.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// InvalidToken reports whether Telegram rejected the bot token itself.
func (e *APIError) InvalidToken() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusNotFound
}

// IsInvalidToken reports whether err carries an APIError for a bad token.
func IsInvalidToken(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.InvalidToken()
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters,omitempty"`
}

type Client struct {
	token   string
	baseURL string
	http    *http.Client
	retry   retry.RetryConfig
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithRetry(cfg retry.RetryConfig) Option { return func(c *Client) { c.retry = cfg } }

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultAPIURL,
		http:    &http.Client{},
		retry: retry.RetryConfig{
			MaxAttempts: 3,
			Delay:       time.Second,
			Backoff:     true,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.ShouldRetry = retryable
	return c
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// call posts payload as JSON to method and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error carries the URL, and the URL carries the token
		var ue *url.Error
		if errors.As(err, &ue) {
			return fmt.Errorf("telegram %s: %w", method, ue.Err)
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Debug("failed to close response body", "error", err)
		}
	}(resp.Body)

	var ar apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&ar); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Method: method, StatusCode: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !ar.OK || resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Method: method, StatusCode: resp.StatusCode, Code: ar.ErrorCode, Description: ar.Description}
		if ar.Parameters != nil {
			apiErr.RetryAfter = ar.Parameters.RetryAfter
		}
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetMe checks the token, retrying network errors, 429 and 5xx.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	return retry.Do(ctx, c.retry, func() (*User, error) {
		var u User
		if err := c.call(ctx, "getMe", struct{}{}, &u); err != nil {
			return nil, err
		}
		return &u, nil
	})
}

// DeleteWebhook switches the bot to long polling, optionally dropping
// updates that queued up while it was offline.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return retry.WithRetry(ctx, c.retry, func() error {
		return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": dropPending}, nil)
	})
}

// GetUpdates long-polls for updates after offset, waiting up to timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

type SendOptions struct {
	ParseMode string
	Keyboard  *ReplyKeyboardMarkup
	// Preview enables link previews, off by default.
	Preview bool
}

// SendMessage delivers text to chatID, retrying network errors, 429 and 5xx.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": !opts.Preview,
	}
	if opts.ParseMode != "" {
		payload["parse_mode"] = opts.ParseMode
	}
	if opts.Keyboard != nil {
		payload["reply_markup"] = opts.Keyboard
	}

	attempt := 0
	return retry.WithRetry(ctx, c.retry, func() error {
		attempt++
		err := c.call(ctx, "sendMessage", payload, nil)
		if err != nil {
			logger.Warn("Error send to Telegram", "chat_id", chatID, "attempt", attempt, "error", err)
		}
		return err
	})
}
