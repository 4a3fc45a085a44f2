package clashroyale

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var _ ClashRoyaleAPI = (*Client)(nil)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]time.Duration) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("secret", server.URL)
	var sleeps []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return client, &sleeps
}

func TestEncodeTag(t *testing.T) {
	if got := EncodeTag("abc"); got != "%23ABC" {
		t.Errorf("Expected %%23ABC, got %s", got)
	}
	if got := EncodeTag("#Q2Y"); got != "%23Q2Y" {
		t.Errorf("Expected %%23Q2Y, got %s", got)
	}
}

func TestGetCurrentRiverRace(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.EscapedPath() != "/clans/%23ABC/currentriverrace" {
			t.Errorf("Unexpected path %s", r.URL.EscapedPath())
		}
		w.Write([]byte(`{"sectionIndex":2,"periodType":"warDay","periodIndex":4,
			"clan":{"tag":"#ABC","fame":1200,"participants":[{"tag":"#P1","name":"one","fame":600,"decksUsed":4}]}}`))
	})

	race, err := client.GetCurrentRiverRace(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if race.SeasonID != nil {
		t.Errorf("Expected missing season id, got %d", *race.SeasonID)
	}
	if race.SectionIndex == nil || *race.SectionIndex != 2 {
		t.Errorf("Expected section index 2, got %v", race.SectionIndex)
	}
	if len(race.Clan.Participants) != 1 || race.Clan.Participants[0].DecksUsed != 4 {
		t.Errorf("Unexpected participants %+v", race.Clan.Participants)
	}
	if client.GetAPICallCount() != 1 {
		t.Errorf("Expected 1 API call, got %d", client.GetAPICallCount())
	}
}

func TestRequestRetries(t *testing.T) {
	t.Run("RetriesServerErrorsThenSucceeds", func(t *testing.T) {
		var calls int32
		client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"items":[{"tag":"#P1","name":"one","role":"member"}]}`))
		})

		members, err := client.GetClanMembers(context.Background(), "#ABC")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(members) != 1 {
			t.Errorf("Expected 1 member, got %d", len(members))
		}
		if len(*sleeps) != 2 || (*sleeps)[0] != 500*time.Millisecond || (*sleeps)[1] != time.Second {
			t.Errorf("Expected backoff [500ms 1s], got %v", *sleeps)
		}
	})

	t.Run("RateLimitHonoursRetryAfterCap", func(t *testing.T) {
		client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := client.GetRiverRaceLog(context.Background(), "#ABC")
		if ClassOf(err) != ClassRateLimited {
			t.Fatalf("Expected rate_limited error, got %v", err)
		}
		for _, d := range *sleeps {
			if d != maxRetryAfter {
				t.Errorf("Expected Retry-After capped at %v, got %v", maxRetryAfter, d)
			}
		}
		if client.GetAPICallCount() != 3 {
			t.Errorf("Expected 3 attempts, got %d", client.GetAPICallCount())
		}
	})

	t.Run("NotFoundIsNotRetried", func(t *testing.T) {
		client, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.GetClan(context.Background(), "#ABC")
		if !IsNotFound(err) {
			t.Fatalf("Expected not_found error, got %v", err)
		}
		if len(*sleeps) != 0 {
			t.Errorf("Expected no retries, got %v", *sleeps)
		}
	})

	t.Run("ForbiddenIsTyped", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})

		_, err := client.GetClan(context.Background(), "#ABC")
		if !IsForbidden(err) {
			t.Fatalf("Expected forbidden error, got %v", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
			t.Errorf("Expected *APIError with status 403, got %v", err)
		}
	})

	t.Run("NetworkErrorAfterRetries", func(t *testing.T) {
		client := NewClient("secret", "http://127.0.0.1:1")
		client.sleep = func(ctx context.Context, d time.Duration) error { return nil }

		_, err := client.GetClan(context.Background(), "#ABC")
		if ClassOf(err) != ClassNetwork {
			t.Fatalf("Expected network error, got %v", err)
		}
	})
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]ErrorClass{
		404: ClassNotFound,
		403: ClassForbidden,
		429: ClassRateLimited,
		500: ClassServerError,
		503: ClassServerError,
		400: ClassOther,
	}
	for status, want := range cases {
		if got := ClassifyStatus(status); got != want {
			t.Errorf("ClassifyStatus(%d): expected %s, got %s", status, want, got)
		}
	}
}
