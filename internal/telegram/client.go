// Package telegram delivers plain-text and photo messages through the Bot API.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"riverrace_stats/internal/config"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://api.telegram.org"

// Sender is what the reporting services need from a chat transport.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
}

const maxRetryAfter = 30 * time.Second

// Client calls the Bot API over HTTP.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
	retry   config.RetryConfig
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	retry := config.DefaultResilienceConfig.ChatSend
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: retry.Timeout,
		},
		retry: retry,
		sleep: sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// APIError is a non-ok Bot API reply.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed (%d): %s", e.Method, e.StatusCode, e.Description)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// SendMessage posts plain text; no parse mode is set so no markup is interpreted.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
}

// SendPhoto posts a photo by URL with a plain-text caption.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	return c.call(ctx, "sendPhoto", map[string]interface{}{
		"chat_id": chatID,
		"photo":   photoURL,
		"caption": caption,
	})
}

// call posts payload to method, retrying transport failures, rate limits and
// server errors up to the configured attempts.
func (c *Client) call(ctx context.Context, method string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = c.post(ctx, method, body)
		if lastErr == nil {
			log.Debug().
				Str("method", method).
				Interface("chat_id", payload["chat_id"]).
				Msg("Telegram message delivered")
			return nil
		}

		delay := c.retry.Backoff(attempt)
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) {
			if !apiErr.retryable() {
				return lastErr
			}
			if apiErr.RetryAfter > 0 {
				delay = apiErr.RetryAfter
			}
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}

		log.Warn().
			Err(lastErr).
			Str("method", method).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("delay", delay).
			Msg("Telegram send failed, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return fmt.Errorf("telegram %s: %w", method, err)
		}
	}
	return lastErr
}

// post performs one request. Transport errors are unwrapped from *url.Error
// because its message carries the request URL, and with it the bot token.
func (c *Client) post(ctx context.Context, method string, body []byte) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var result apiResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
	}
	if !result.OK {
		retryAfter := time.Duration(result.Parameters.RetryAfter) * time.Second
		if retryAfter > maxRetryAfter {
			retryAfter = maxRetryAfter
		}
		return &APIError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			Description: result.Description,
			RetryAfter:  retryAfter,
		}
	}
	return nil
}
