package processing

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/domain/week"
	"riverrace_stats/internal/processing/mocks"
	"riverrace_stats/internal/storage"
)

const testClanTag = "#CLAN"

var testDBCounter int64

// newTestStore opens a private in-memory SQLite database with the schema applied
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:processing_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := storage.Open(dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return storage.NewStore(db)
}

func newTestConfig() *app.Config {
	return &app.Config{
		ClanTag:               testClanTag,
		ReminderEnabled:       true,
		TrainingDaysFallback:  3,
		NewMemberWeeksPlayed:  2,
		RevivedDecksThreshold: 8,
		KickShortlistLimit:    5,
		KickMinDecks:          8,
		KickMinFame:           1500,
		LeaderboardLimit:      10,
		RollingWeeks:          8,
		DonationWeeksWindow:   8,
		ActiveWeekMinDecks:    8,
		TopWindowWeeks:        10,
		TopMinTenureWeeks:     2,
		ClanChatIDs:           []int64{-100},
		Elder:                 app.PromotionThresholds{MinWeeksPlayed: 2, MinActiveWeeks: 2, MinAvgDecks: 10, Limit: 3},
		CoLeader:              app.PromotionThresholds{MinWeeksPlayed: 3, MinActiveWeeks: 3, MinAvgDecks: 14, MinAllTimeWeeks: 3, Limit: 1},
	}
}

func intPtr(v int) *int {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}

func participant(tag string, decks, fame int) app.Participant {
	return app.Participant{Tag: tag, Name: "name" + tag, DecksUsed: decks, Fame: fame}
}

// logEntry builds a completed week in which clanTag took part with participants
func logEntry(season, section int, clanTag string, participants ...app.Participant) app.RiverRaceLogEntry {
	fame := 0
	for _, p := range participants {
		fame += p.Fame
	}
	return app.RiverRaceLogEntry{
		SeasonID:     season,
		SectionIndex: section,
		CreatedDate:  "20260202T100000.000Z",
		Standings: []app.RaceStanding{
			{Rank: 1, Clan: app.RaceClan{Tag: clanTag, Fame: fame, FinishTime: "20260202T093000.000Z", Participants: participants}},
		},
	}
}

func currentRace(season, section int, period string, participants ...app.Participant) *app.CurrentRiverRace {
	return &app.CurrentRiverRace{
		SeasonID:     intPtr(season),
		SectionIndex: intPtr(section),
		PeriodType:   period,
		Clan:         app.RaceClan{Tag: testClanTag, Fame: 1000, Participants: participants},
	}
}

func members(tags ...string) []app.ClanMember {
	out := make([]app.ClanMember, 0, len(tags))
	for i, tag := range tags {
		out = append(out, app.ClanMember{Tag: tag, Name: "name" + tag, Role: app.RoleMember, ClanRank: i + 1})
	}
	return out
}

// seedRoster writes a roster snapshot for day
func seedRoster(t *testing.T, store *storage.Store, day time.Time, roster []app.ClanMember) {
	t.Helper()
	if _, err := store.UpsertRosterSnapshot(context.Background(), testClanTag, day, roster); err != nil {
		t.Fatalf("Failed to seed roster: %v", err)
	}
}

// seedWeek stores one completed week through the importer
func seedWeek(t *testing.T, store *storage.Store, k week.Key, participants ...app.Participant) {
	t.Helper()
	importer := NewImporter(mocks.NewMockClashRoyaleClient(), store, testClanTag)
	entry := logEntry(k.SeasonID, k.SectionIndex, testClanTag, participants...)
	if _, err := importer.ImportEntries(context.Background(), []app.RiverRaceLogEntry{entry}, ImportRequest{}); err != nil {
		t.Fatalf("Failed to seed week %v: %v", k, err)
	}
}

func countRows(t *testing.T, store *storage.Store, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := store.DB().Model(model).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	return count
}
