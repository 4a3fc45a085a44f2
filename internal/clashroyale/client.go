package clashroyale

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/config"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const maxRetryAfter = 5 * time.Second

type Client struct {
	token        string
	baseURL      string
	client       *http.Client
	retry        config.RetryConfig
	sleep        func(ctx context.Context, d time.Duration) error
	apiCallCount int64
	apiCallMutex sync.Mutex
}

func NewClient(token, baseURL string) *Client {
	retry := config.DefaultResilienceConfig.APIRequest
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

func (c *Client) incrementAPICall() {
	c.apiCallMutex.Lock()
	c.apiCallCount++
	c.apiCallMutex.Unlock()
}

// GetAPICallCount returns the HTTP requests sent since the last reset,
// retries included.
func (c *Client) GetAPICallCount() int64 {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.apiCallCount
}

// ResetAPICallCount resets the API call counter to zero
func (c *Client) ResetAPICallCount() {
	c.apiCallMutex.Lock()
	c.apiCallCount = 0
	c.apiCallMutex.Unlock()
}

// EncodeTag turns a tag into its URL path form, "%23TAG".
func EncodeTag(tag string) string {
	return url.PathEscape(app.NormalizeTag(tag))
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryAfter parses a Retry-After header given in seconds, capped at maxRetryAfter.
func retryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil {
		return 0, false
	}
	wait := time.Duration(secs * float64(time.Second))
	if wait < 0 {
		wait = 0
	}
	if wait > maxRetryAfter {
		wait = maxRetryAfter
	}
	return wait, true
}

// makeAPIRequest creates and executes one HTTP GET request to the API
func (c *Client) makeAPIRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug().
			Err(err).
			Str("endpoint", endpoint).
			Msg("API request failed")
		return nil, err
	}

	c.incrementAPICall()
	return resp, nil
}

// request performs GET endpoint with bounded retry and decodes the body into out.
func (c *Client) request(ctx context.Context, endpoint string, out interface{}) error {
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.makeAPIRequest(ctx, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return newNetworkError(ctx.Err())
			}
			if attempt < attempts {
				delay := c.retry.Backoff(attempt)
				log.Warn().
					Err(err).
					Int("attempt", attempt).
					Int("max_attempts", attempts).
					Dur("delay", delay).
					Msg("HTTP request error, retrying")
				if err := c.sleep(ctx, delay); err != nil {
					return newNetworkError(err)
				}
				continue
			}
			log.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request error")
			return newNetworkError(err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			if readErr != nil {
				return newNetworkError(fmt.Errorf("failed to read response body: %w", readErr))
			}
			if err := json.Unmarshal(body, out); err != nil {
				return &APIError{StatusCode: resp.StatusCode, Class: ClassOther, Message: "failed to decode response", Err: err}
			}
			return nil
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return newStatusError(resp.StatusCode, "resource not found")
		case http.StatusForbidden:
			return newStatusError(resp.StatusCode, "access denied - check API token")
		}

		if isRetryableStatus(resp.StatusCode) && attempt < attempts {
			delay := c.retry.Backoff(attempt)
			if resp.StatusCode == http.StatusTooManyRequests {
				if wait, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
					delay = wait
				}
			}
			log.Warn().
				Int("status", resp.StatusCode).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Dur("delay", delay).
				Msg("CR API retry")
			if err := c.sleep(ctx, delay); err != nil {
				return newNetworkError(err)
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return newStatusError(resp.StatusCode, "rate limit exceeded")
		}
		return newStatusError(resp.StatusCode, fmt.Sprintf("API request failed: %s", strings.TrimSpace(string(body))))
	}

	return newStatusError(0, "retry attempts exhausted")
}

// GetClan fetches clan information
func (c *Client) GetClan(ctx context.Context, clanTag string) (*app.Clan, error) {
	var clan app.Clan
	if err := c.request(ctx, "/clans/"+EncodeTag(clanTag), &clan); err != nil {
		return nil, err
	}
	return &clan, nil
}

// GetClanMembers fetches the current roster
func (c *Client) GetClanMembers(ctx context.Context, clanTag string) ([]app.ClanMember, error) {
	var resp app.ClanMembersResponse
	if err := c.request(ctx, "/clans/"+EncodeTag(clanTag)+"/members", &resp); err != nil {
		return nil, err
	}

	log.Debug().
		Int("members", len(resp.Items)).
		Msg("Successfully fetched clan members")

	return resp.Items, nil
}

// GetCurrentRiverRace fetches the live river race snapshot
func (c *Client) GetCurrentRiverRace(ctx context.Context, clanTag string) (*app.CurrentRiverRace, error) {
	var race app.CurrentRiverRace
	if err := c.request(ctx, "/clans/"+EncodeTag(clanTag)+"/currentriverrace", &race); err != nil {
		return nil, err
	}

	log.Debug().
		Str("period_type", race.PeriodType).
		Int("participants", len(race.Clan.Participants)).
		Msg("Successfully fetched current river race")

	return &race, nil
}

// GetRiverRaceLog fetches completed weeks, most recent first
func (c *Client) GetRiverRaceLog(ctx context.Context, clanTag string) ([]app.RiverRaceLogEntry, error) {
	var resp app.RiverRaceLogResponse
	if err := c.request(ctx, "/clans/"+EncodeTag(clanTag)+"/riverracelog", &resp); err != nil {
		return nil, err
	}

	log.Debug().
		Int("entries", len(resp.Items)).
		Msg("Successfully fetched river race log")

	return resp.Items, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
