package config

import (
	"math"
	"time"
)

// Retry configuration constants
const (
	// Clash Royale API request retry configuration
	APIRequestMaxAttempts       = 3
	APIRequestInitialWait       = 500 * time.Millisecond
	APIRequestMaxWait           = 5 * time.Second
	APIRequestBackoffMultiplier = 2.0
	APIRequestTimeout           = 30 * time.Second

	// Chat delivery retry configuration
	ChatSendMaxAttempts       = 2
	ChatSendInitialWait       = 1 * time.Second
	ChatSendMaxWait           = 5 * time.Second
	ChatSendBackoffMultiplier = 2.0
	ChatSendTimeout           = 20 * time.Second

	// Sheet Write retry configuration
	SheetWriteMaxAttempts       = 3
	SheetWriteInitialWait       = 1 * time.Second
	SheetWriteMaxWait           = 10 * time.Second
	SheetWriteBackoffMultiplier = 2.0
	SheetWriteTimeout           = 30 * time.Second
)

// RetryConfig defines retry behavior for operations
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Timeout     time.Duration
}

// Backoff returns the wait before retry number attempt (1-based), capped at MaxWait.
func (r RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := time.Duration(float64(r.InitialWait) * math.Pow(r.Multiplier, float64(attempt-1)))
	if r.MaxWait > 0 && wait > r.MaxWait {
		return r.MaxWait
	}
	return wait
}

// ResilienceConfig contains all retry configurations
type ResilienceConfig struct {
	APIRequest RetryConfig
	ChatSend   RetryConfig
	SheetWrite RetryConfig
}

// DefaultResilienceConfig provides sensible defaults
var DefaultResilienceConfig = ResilienceConfig{
	APIRequest: RetryConfig{
		MaxAttempts: APIRequestMaxAttempts,
		InitialWait: APIRequestInitialWait,
		MaxWait:     APIRequestMaxWait,
		Multiplier:  APIRequestBackoffMultiplier,
		Timeout:     APIRequestTimeout,
	},
	ChatSend: RetryConfig{
		MaxAttempts: ChatSendMaxAttempts,
		InitialWait: ChatSendInitialWait,
		MaxWait:     ChatSendMaxWait,
		Multiplier:  ChatSendBackoffMultiplier,
		Timeout:     ChatSendTimeout,
	},
	SheetWrite: RetryConfig{
		MaxAttempts: SheetWriteMaxAttempts,
		InitialWait: SheetWriteInitialWait,
		MaxWait:     SheetWriteMaxWait,
		Multiplier:  SheetWriteBackoffMultiplier,
		Timeout:     SheetWriteTimeout,
	},
}
