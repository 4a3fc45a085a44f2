package processing

import (
	"context"
	"sync"
	"time"

	"riverrace_stats/internal/app"

	"github.com/rs/zerolog/log"
)

// APICacheConfig configures caching behavior
type APICacheConfig struct {
	// RaceLogTTL is how long to cache the race log (changes once a week)
	RaceLogTTL time.Duration
	// MembersTTL is how long to cache the member list
	MembersTTL time.Duration
}

// DefaultAPICacheConfig returns sensible cache defaults
func DefaultAPICacheConfig() APICacheConfig {
	return APICacheConfig{
		RaceLogTTL: 10 * time.Minute,
		MembersTTL: 2 * time.Minute,
	}
}

// CachedClashRoyaleClient wraps the upstream client with per-clan caching.
// The current river race is never cached.
type CachedClashRoyaleClient struct {
	client  ClashRoyaleClientInterface
	config  APICacheConfig
	tracker *APICallTracker
	now     func() time.Time
	mutex   sync.RWMutex

	raceLogs map[string]*cachedRaceLog
	members  map[string]*cachedMembers
}

type cachedRaceLog struct {
	data      []app.RiverRaceLogEntry
	timestamp time.Time
}

type cachedMembers struct {
	data      []app.ClanMember
	timestamp time.Time
}

// NewCachedClashRoyaleClient creates a caching wrapper around the upstream client
func NewCachedClashRoyaleClient(client ClashRoyaleClientInterface, tracker *APICallTracker) *CachedClashRoyaleClient {
	if tracker == nil {
		tracker = NewAPICallTracker()
	}
	return &CachedClashRoyaleClient{
		client:   client,
		config:   DefaultAPICacheConfig(),
		tracker:  tracker,
		now:      time.Now,
		raceLogs: make(map[string]*cachedRaceLog),
		members:  make(map[string]*cachedMembers),
	}
}

// Tracker exposes the call tracker shared with the wrapper
func (c *CachedClashRoyaleClient) Tracker() *APICallTracker {
	return c.tracker
}

// GetRiverRaceLog returns the cached race log or fetches fresh data
func (c *CachedClashRoyaleClient) GetRiverRaceLog(ctx context.Context, clanTag string) ([]app.RiverRaceLogEntry, error) {
	key := app.NormalizeTag(clanTag)

	c.mutex.RLock()
	cached := c.raceLogs[key]
	c.mutex.RUnlock()

	if cached != nil && c.now().Sub(cached.timestamp) < c.config.RaceLogTTL {
		log.Debug().
			Str("clan_tag", key).
			Dur("cache_age", c.now().Sub(cached.timestamp)).
			Msg("Using cached race log (API call saved)")
		return cached.data, nil
	}

	log.Debug().
		Str("clan_tag", key).
		Msg("Fetching fresh race log from API")
	data, err := c.client.GetRiverRaceLog(ctx, clanTag)
	if err != nil {
		return nil, err
	}

	c.tracker.RecordCall("GetRiverRaceLog")

	c.mutex.Lock()
	c.raceLogs[key] = &cachedRaceLog{data: data, timestamp: c.now()}
	c.mutex.Unlock()

	return data, nil
}

// GetClanMembers returns the cached member list or fetches fresh data
func (c *CachedClashRoyaleClient) GetClanMembers(ctx context.Context, clanTag string) ([]app.ClanMember, error) {
	key := app.NormalizeTag(clanTag)

	c.mutex.RLock()
	cached := c.members[key]
	c.mutex.RUnlock()

	if cached != nil && c.now().Sub(cached.timestamp) < c.config.MembersTTL {
		log.Debug().
			Str("clan_tag", key).
			Dur("cache_age", c.now().Sub(cached.timestamp)).
			Msg("Using cached clan members (API call saved)")
		return cached.data, nil
	}

	data, err := c.client.GetClanMembers(ctx, clanTag)
	if err != nil {
		return nil, err
	}

	c.tracker.RecordCall("GetClanMembers")

	c.mutex.Lock()
	c.members[key] = &cachedMembers{data: data, timestamp: c.now()}
	c.mutex.Unlock()

	return data, nil
}

// GetCurrentRiverRace delegates to underlying client (no caching for live data)
func (c *CachedClashRoyaleClient) GetCurrentRiverRace(ctx context.Context, clanTag string) (*app.CurrentRiverRace, error) {
	c.tracker.RecordCall("GetCurrentRiverRace")
	return c.client.GetCurrentRiverRace(ctx, clanTag)
}

// ClearCache invalidates all cached data
func (c *CachedClashRoyaleClient) ClearCache() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.raceLogs = make(map[string]*cachedRaceLog)
	c.members = make(map[string]*cachedMembers)

	log.Info().Msg("API cache cleared")
}

// GetCacheStats returns the number of valid and expired cache entries
func (c *CachedClashRoyaleClient) GetCacheStats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var validEntries, expiredEntries int
	now := c.now()

	for _, cached := range c.raceLogs {
		if now.Sub(cached.timestamp) < c.config.RaceLogTTL {
			validEntries++
		} else {
			expiredEntries++
		}
	}
	for _, cached := range c.members {
		if now.Sub(cached.timestamp) < c.config.MembersTTL {
			validEntries++
		} else {
			expiredEntries++
		}
	}

	return CacheStats{
		ValidEntries:   validEntries,
		ExpiredEntries: expiredEntries,
		TotalEntries:   validEntries + expiredEntries,
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	ValidEntries   int
	ExpiredEntries int
	TotalEntries   int
}
