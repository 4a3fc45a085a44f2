package processing

import (
	"context"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/domain/kick"
	"riverrace_stats/internal/domain/leaderboard"
	"riverrace_stats/internal/domain/week"
)

// ClashRoyaleClientInterface defines the upstream API methods used by the services
type ClashRoyaleClientInterface interface {
	GetClanMembers(ctx context.Context, clanTag string) ([]app.ClanMember, error)
	GetCurrentRiverRace(ctx context.Context, clanTag string) (*app.CurrentRiverRace, error)
	GetRiverRaceLog(ctx context.Context, clanTag string) ([]app.RiverRaceLogEntry, error)
}

// ChatSenderInterface delivers plain-text and photo messages to a chat
type ChatSenderInterface interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
}

// SheetsMirrorInterface exports computed tables to a spreadsheet
type SheetsMirrorInterface interface {
	ExportWeek(ctx context.Context, k week.Key, entries []leaderboard.Entry) error
	ExportRolling(ctx context.Context, weeks []week.Key, entries []leaderboard.Entry) error
	ExportKickShortlist(ctx context.Context, last week.Key, shortlist kick.Shortlist) error
}
