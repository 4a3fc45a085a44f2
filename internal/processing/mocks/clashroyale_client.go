package mocks

import (
	"context"
	"sync"

	"riverrace_stats/internal/app"
)

// ClashRoyaleClient interface defines the upstream methods used by the services
type ClashRoyaleClient interface {
	GetClanMembers(ctx context.Context, clanTag string) ([]app.ClanMember, error)
	GetCurrentRiverRace(ctx context.Context, clanTag string) (*app.CurrentRiverRace, error)
	GetRiverRaceLog(ctx context.Context, clanTag string) ([]app.RiverRaceLogEntry, error)
}

// MockClashRoyaleClient is a test double for clashroyale.Client
type MockClashRoyaleClient struct {
	mu sync.Mutex

	// Responses to return
	MembersResponse     []app.ClanMember
	CurrentRaceResponse *app.CurrentRiverRace
	RaceLogResponse     []app.RiverRaceLogEntry

	// Errors to return
	MembersError     error
	CurrentRaceError error
	RaceLogError     error

	// Call tracking
	GetClanMembersCalls      int
	GetCurrentRiverRaceCalls int
	GetRiverRaceLogCalls     int
	LastClanTag              string
}

// NewMockClashRoyaleClient creates a new mock upstream client
func NewMockClashRoyaleClient() *MockClashRoyaleClient {
	return &MockClashRoyaleClient{}
}

func (m *MockClashRoyaleClient) GetClanMembers(ctx context.Context, clanTag string) ([]app.ClanMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetClanMembersCalls++
	m.LastClanTag = clanTag
	return m.MembersResponse, m.MembersError
}

func (m *MockClashRoyaleClient) GetCurrentRiverRace(ctx context.Context, clanTag string) (*app.CurrentRiverRace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCurrentRiverRaceCalls++
	m.LastClanTag = clanTag
	return m.CurrentRaceResponse, m.CurrentRaceError
}

func (m *MockClashRoyaleClient) GetRiverRaceLog(ctx context.Context, clanTag string) ([]app.RiverRaceLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetRiverRaceLogCalls++
	m.LastClanTag = clanTag
	return m.RaceLogResponse, m.RaceLogError
}

// Reset clears call tracking
func (m *MockClashRoyaleClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetClanMembersCalls = 0
	m.GetCurrentRiverRaceCalls = 0
	m.GetRiverRaceLogCalls = 0
	m.LastClanTag = ""
}
