package mocks

import (
	"context"

	"riverrace_stats/internal/domain/kick"
	"riverrace_stats/internal/domain/leaderboard"
	"riverrace_stats/internal/domain/week"
)

// MockSheetsMirror is a test double for sheets.Mirror
type MockSheetsMirror struct {
	// Errors to return
	ExportError error

	// Call tracking
	ExportWeekCalls    int
	ExportRollingCalls int
	ExportKickCalls    int
	LastWeek           week.Key
	LastRollingWeeks   []week.Key
	LastShortlist      kick.Shortlist
}

// NewMockSheetsMirror creates a new mock mirror
func NewMockSheetsMirror() *MockSheetsMirror {
	return &MockSheetsMirror{}
}

func (m *MockSheetsMirror) ExportWeek(ctx context.Context, k week.Key, entries []leaderboard.Entry) error {
	m.ExportWeekCalls++
	m.LastWeek = k
	return m.ExportError
}

func (m *MockSheetsMirror) ExportRolling(ctx context.Context, weeks []week.Key, entries []leaderboard.Entry) error {
	m.ExportRollingCalls++
	m.LastRollingWeeks = weeks
	return m.ExportError
}

func (m *MockSheetsMirror) ExportKickShortlist(ctx context.Context, last week.Key, shortlist kick.Shortlist) error {
	m.ExportKickCalls++
	m.LastShortlist = shortlist
	return m.ExportError
}
