package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

var _ Sender = (*Client)(nil)

func newTestClient(token, baseURL string, delays *[]time.Duration) *Client {
	client := NewClient(token, baseURL)
	client.sleep = func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return nil
	}
	return client
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer server.Close()

	client := NewClient("TOKEN", server.URL)
	if err := client.SendMessage(context.Background(), -100123, "hello"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if gotPath != "/botTOKEN/sendMessage" {
		t.Errorf("Expected /botTOKEN/sendMessage, got %s", gotPath)
	}
	if gotBody["text"] != "hello" {
		t.Errorf("Expected text hello, got %v", gotBody["text"])
	}
	if _, ok := gotBody["parse_mode"]; ok {
		t.Error("Expected no parse_mode")
	}
	if gotBody["chat_id"] != float64(-100123) {
		t.Errorf("Expected chat id -100123, got %v", gotBody["chat_id"])
	}
}

func TestSendPhoto(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient("TOKEN", server.URL)
	if err := client.SendPhoto(context.Background(), 1, "https://img/banner.png", "caption"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if gotBody["photo"] != "https://img/banner.png" || gotBody["caption"] != "caption" {
		t.Errorf("Unexpected payload %v", gotBody)
	}
}

func TestAPIErrors(t *testing.T) {
	t.Run("NotOK", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"ok":false,"error_code":403,"description":"bot was kicked"}`))
		}))
		defer server.Close()

		err := newTestClient("TOKEN", server.URL, nil).SendMessage(context.Background(), 1, "x")
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Errorf("Expected 1 call for a non-retryable error, got %d", got)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected *APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusForbidden || apiErr.Description != "bot was kicked" {
			t.Errorf("Unexpected error %+v", apiErr)
		}
	})

	t.Run("NonJSONBody", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("bad gateway"))
		}))
		defer server.Close()

		err := newTestClient("TOKEN", server.URL, nil).SendMessage(context.Background(), 1, "x")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Description != "bad gateway" {
			t.Errorf("Expected bad gateway APIError, got %v", err)
		}
	})
}

func TestRetry(t *testing.T) {
	t.Run("RateLimitedThenDelivered", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":3}}`))
				return
			}
			w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		var delays []time.Duration
		if err := newTestClient("TOKEN", server.URL, &delays).SendMessage(context.Background(), 1, "x"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if got := atomic.LoadInt32(&calls); got != 2 {
			t.Errorf("Expected 2 calls, got %d", got)
		}
		if len(delays) != 1 || delays[0] != 3*time.Second {
			t.Errorf("Expected one 3s wait from retry_after, got %v", delays)
		}
	})

	t.Run("ServerErrorExhaustsAttempts", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"ok":false,"error_code":500,"description":"internal"}`))
		}))
		defer server.Close()

		var delays []time.Duration
		err := newTestClient("TOKEN", server.URL, &delays).SendMessage(context.Background(), 1, "x")
		if err == nil {
			t.Fatal("Expected error")
		}
		if got := atomic.LoadInt32(&calls); got != 2 {
			t.Errorf("Expected 2 calls, got %d", got)
		}
		if len(delays) != 1 || delays[0] != time.Second {
			t.Errorf("Expected one 1s backoff, got %v", delays)
		}
	})
}

func TestTransportErrorHidesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	err := newTestClient("123456:SECRET-TOKEN", baseURL, nil).SendMessage(context.Background(), 1, "x")
	if err == nil {
		t.Fatal("Expected error for unreachable server")
	}
	if strings.Contains(err.Error(), "SECRET-TOKEN") || strings.Contains(err.Error(), "/bot") {
		t.Errorf("Expected error without request URL, got %q", err.Error())
	}
	if !strings.HasPrefix(err.Error(), "telegram sendMessage: ") {
		t.Errorf("Expected telegram sendMessage prefix, got %q", err.Error())
	}
}
