package clashroyale

import (
	"context"

	"riverrace_stats/internal/app"
)

// ClashRoyaleAPI defines the interface for interacting with the Clash Royale API.
// Implementations apply their own bounded retry; a returned error is final.
type ClashRoyaleAPI interface {
	GetClan(ctx context.Context, clanTag string) (*app.Clan, error)
	GetClanMembers(ctx context.Context, clanTag string) ([]app.ClanMember, error)
	GetCurrentRiverRace(ctx context.Context, clanTag string) (*app.CurrentRiverRace, error)
	GetRiverRaceLog(ctx context.Context, clanTag string) ([]app.RiverRaceLogEntry, error)
}
