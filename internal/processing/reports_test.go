package processing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/domain/kick"
	"riverrace_stats/internal/domain/week"
	"riverrace_stats/internal/processing/mocks"
	"riverrace_stats/internal/report"
	"riverrace_stats/internal/storage"
)

var reportNow = time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC)

type reportFixture struct {
	svc    *ReportService
	store  *storage.Store
	client *mocks.MockClashRoyaleClient
	config *app.Config
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	f := &reportFixture{
		store:  newTestStore(t),
		client: mocks.NewMockClashRoyaleClient(),
		config: newTestConfig(),
	}
	f.svc = NewReportService(f.store, NewImporter(f.client, f.store, testClanTag), f.config)
	f.svc.now = func() time.Time { return reportNow }
	return f
}

// addWeek stores a completed week and exposes it through the race log, newest first
func (f *reportFixture) addWeek(t *testing.T, k week.Key, participants ...app.Participant) {
	t.Helper()
	seedWeek(t, f.store, k, participants...)
	entry := logEntry(k.SeasonID, k.SectionIndex, testClanTag, participants...)
	f.client.RaceLogResponse = append([]app.RiverRaceLogEntry{entry}, f.client.RaceLogResponse...)
}

// seedDonations writes today's roster with donation counters
func (f *reportFixture) seedDonations(t *testing.T, donations map[string]int) {
	t.Helper()
	ctx := context.Background()
	roster := make([]app.ClanMember, 0, len(donations))
	for tag, n := range donations {
		roster = append(roster, app.ClanMember{Tag: tag, Name: "name" + tag, Role: app.RoleMember, Donations: n})
	}
	seedRoster(t, f.store, reportNow, roster)
	if err := f.store.UpsertDonationsWeekly(ctx, testClanTag, reportNow, roster); err != nil {
		t.Fatalf("Failed to seed donations: %v", err)
	}
}

func tagsOf(candidates []kick.Candidate) []string {
	tags := make([]string, 0, len(candidates))
	for _, c := range candidates {
		tags = append(tags, c.PlayerTag)
	}
	return tags
}

func TestReportService_Weekly(t *testing.T) {
	ctx := context.Background()

	t.Run("InactiveAndActiveAreSplit", func(t *testing.T) {
		f := newReportFixture(t)
		f.config.LeaderboardLimit = 1
		seedRoster(t, f.store, reportNow, members("#A", "#B"))
		f.addWeek(t, week.Key{SeasonID: 100, SectionIndex: 0}, participant("#A", 0, 0), participant("#B", 8, 800))

		data, err := f.svc.Weekly(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if data == nil {
			t.Fatal("Expected weekly data")
		}
		if len(data.Board.Inactive) != 1 || data.Board.Inactive[0].PlayerTag != "#A" {
			t.Errorf("Expected inactive [#A], got %+v", data.Board.Inactive)
		}
		if len(data.Board.Active) != 1 || data.Board.Active[0].PlayerTag != "#B" {
			t.Errorf("Expected active [#B], got %+v", data.Board.Active)
		}
	})

	t.Run("FormerMembersAndProtectedPlayers", func(t *testing.T) {
		f := newReportFixture(t)
		f.config.ProtectedPlayerTags = []string{"#C"}
		seedRoster(t, f.store, reportNow, members("#A", "#C", "#D"))
		f.addWeek(t, week.Key{SeasonID: 100, SectionIndex: 0},
			participant("#A", 12, 1500), participant("#B", 0, 0), participant("#C", 0, 0))

		data, err := f.svc.Weekly(ctx)
		if err != nil || data == nil {
			t.Fatalf("Expected weekly data, got %v", err)
		}
		for _, e := range data.Board.Inactive {
			if e.PlayerTag == "#B" || e.PlayerTag == "#C" {
				t.Errorf("Expected %s excluded from inactive list", e.PlayerTag)
			}
		}
		if data.Board.Inactive[0].PlayerTag != "#D" {
			t.Errorf("Expected member without participation first, got %s", data.Board.Inactive[0].PlayerTag)
		}
		if data.Members != 3 || data.Summary.Players != 3 {
			t.Errorf("Expected 3 members in summary, got %d and %d", data.Members, data.Summary.Players)
		}
	})

	t.Run("NoCompletedWeeks", func(t *testing.T) {
		f := newReportFixture(t)

		data, err := f.svc.Weekly(ctx)
		if err != nil || data != nil {
			t.Errorf("Expected no data and no error, got %v %v", data, err)
		}
		text, err := f.svc.Render(ctx, ReportWeekly)
		if err != nil || text != report.NoCompletedWeeks {
			t.Errorf("Expected %q, got %q (%v)", report.NoCompletedWeeks, text, err)
		}
	})
}

func TestReportService_Rolling(t *testing.T) {
	f := newReportFixture(t)
	f.config.RollingWeeks = 2
	f.seedDonations(t, map[string]int{"#A": 120, "#B": 0})
	f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: 0}, participant("#A", 16, 2000), participant("#B", 2, 200))
	f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: 1}, participant("#A", 16, 2000), participant("#B", 4, 400))
	f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: 2}, participant("#A", 16, 2000), participant("#B", 6, 600))

	data, err := f.svc.Rolling(context.Background())
	if err != nil || data == nil {
		t.Fatalf("Expected rolling data, got %v", err)
	}
	if len(data.Weeks) != 2 {
		t.Errorf("Expected 2 weeks, got %v", data.Weeks)
	}
	if b := data.Board.Inactive[0]; b.PlayerTag != "#B" || b.DecksUsed != 10 {
		t.Errorf("Expected #B with 10 decks over the window, got %+v", b)
	}
	if len(data.TopDonors) != 1 || data.TopDonors[0].PlayerTag != "#A" {
		t.Errorf("Expected #A as the only donor, got %+v", data.TopDonors)
	}
}

func TestReportService_Kick(t *testing.T) {
	ctx := context.Background()

	t.Run("StrictTierFirst", func(t *testing.T) {
		f := newReportFixture(t)
		seedRoster(t, f.store, reportNow, members("#A", "#B", "#C", "#N"))
		for section := 0; section < 3; section++ {
			f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: section},
				participant("#A", 2, 200), participant("#B", 16, 2500), participant("#C", 16, 2500))
		}
		f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: 3},
			participant("#A", 2, 200), participant("#B", 16, 2500), participant("#C", 0, 0), participant("#N", 1, 100))

		data, err := f.svc.Kick(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if data.LastWeek == nil || *data.LastWeek != (week.Key{SeasonID: 129, SectionIndex: 3}) {
			t.Fatalf("Expected last week S129 W4, got %v", data.LastWeek)
		}
		got := tagsOf(data.Shortlist.Candidates)
		if len(got) < 2 || got[0] != "#C" || got[1] != "#A" {
			t.Errorf("Expected strict tier [#C #A] first, got %v", got)
		}
		if data.Shortlist.Candidates[0].Tier != kick.TierStrict {
			t.Errorf("Expected strict tier, got %s", data.Shortlist.Candidates[0].Tier)
		}
		if len(got) > f.config.KickShortlistLimit {
			t.Errorf("Expected at most %d candidates, got %d", f.config.KickShortlistLimit, len(got))
		}
	})

	t.Run("ProtectedNeverListed", func(t *testing.T) {
		f := newReportFixture(t)
		f.config.ProtectedPlayerTags = []string{"#A"}
		seedRoster(t, f.store, reportNow, members("#A", "#B"))
		for section := 0; section < 4; section++ {
			f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: section}, participant("#A", 0, 0), participant("#B", 16, 2500))
		}

		data, err := f.svc.Kick(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		for _, tag := range tagsOf(data.Shortlist.Candidates) {
			if tag == "#A" {
				t.Error("Expected protected #A to be excluded")
			}
		}
	})

	t.Run("NoCompletedWeeks", func(t *testing.T) {
		f := newReportFixture(t)
		data, err := f.svc.Kick(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if data.LastWeek != nil || len(data.Shortlist.Candidates) != 0 {
			t.Errorf("Expected empty shortlist, got %+v", data.Shortlist)
		}
	})
}

func TestReportService_Promotion(t *testing.T) {
	f := newReportFixture(t)
	f.seedDonations(t, map[string]int{"#A": 10, "#B": 300, "#C": 50})
	for section := 0; section < 3; section++ {
		f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: section},
			participant("#A", 2, 200), participant("#B", 16, 2800), participant("#C", 14, 2000))
	}

	data, err := f.svc.Promotion(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if data.Season != 129 || data.WindowWeeks != 3 {
		t.Errorf("Expected season 129 over 3 weeks, got %d over %d", data.Season, data.WindowWeeks)
	}
	if !data.Result.DonationsAvailable {
		t.Error("Expected donation data to be available")
	}
	if len(data.Result.Elder) != 2 || data.Result.Elder[0].PlayerTag != "#B" || data.Result.Elder[1].PlayerTag != "#C" {
		t.Errorf("Expected elder candidates [#B #C], got %+v", data.Result.Elder)
	}
}

func TestReportService_Donations(t *testing.T) {
	f := newReportFixture(t)
	f.seedDonations(t, map[string]int{"#A": 10, "#B": 300, "#C": 0})

	data, err := f.svc.Donations(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(data.WTD) != 2 || data.WTD[0].PlayerTag != "#B" || data.WTD[0].Donations != 300 {
		t.Errorf("Expected #B first with 300, got %+v", data.WTD)
	}
	if data.Coverage != 1 {
		t.Errorf("Expected coverage of 1 week, got %d", data.Coverage)
	}
}

// seedCurrentWeek stores an in-progress week with the given records and points
// the active week at it
func (f *reportFixture) seedCurrentWeek(t *testing.T, k week.Key, period week.Period, rows ...storage.ParticipationFields) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.UpsertWarWeekState(ctx, storage.WarWeekFields{ClanTag: testClanTag, Week: k, Period: period}); err != nil {
		t.Fatalf("Failed to seed war week: %v", err)
	}
	if err := f.store.SaveActiveWeek(ctx, week.ActiveWeek{SeasonID: k.SeasonID, SectionIndex: k.SectionIndex, SetAt: reportNow}); err != nil {
		t.Fatalf("Failed to seed active week: %v", err)
	}
	for _, row := range rows {
		row.Week = k
		if err := f.store.UpsertParticipation(ctx, row); err != nil {
			t.Fatalf("Failed to seed participation: %v", err)
		}
	}
}

func TestReportService_Current(t *testing.T) {
	ctx := context.Background()
	current := week.Key{SeasonID: 130, SectionIndex: 0}

	t.Run("BattleDayPace", func(t *testing.T) {
		f := newReportFixture(t)
		f.config.ProtectedPlayerTags = []string{"#P"}
		seedRoster(t, f.store, reportNow, members("#A", "#B", "#C", "#P"))
		f.seedCurrentWeek(t, current, week.PeriodWarDay,
			storage.ParticipationFields{PlayerTag: "#A", PlayerName: "nameA", DecksUsed: 8, DecksUsedToday: 4, Fame: 1600},
			storage.ParticipationFields{PlayerTag: "#B", PlayerName: "nameB", DecksUsed: 5, DecksUsedToday: 1, Fame: 700},
			storage.ParticipationFields{PlayerTag: "#P", PlayerName: "nameP", DecksUsed: 0, Fame: 0},
			storage.ParticipationFields{PlayerTag: "#GONE", PlayerName: "gone", DecksUsed: 16, DecksUsedToday: 4, Fame: 3000},
		)
		if err := f.store.SaveWarDay(ctx, storage.WarDay{Day: 2, Date: week.DateOf(reportNow), Source: string(week.DaySourceDB)}); err != nil {
			t.Fatalf("Failed to seed war day: %v", err)
		}

		data, err := f.svc.Current(ctx)
		if err != nil || data == nil {
			t.Fatalf("Expected current data, got %v", err)
		}
		if data.Week != current || data.Day != 2 || data.PaceDecks != 8 {
			t.Errorf("Expected week %v day 2 pace 8, got %v day %d pace %d", current, data.Week, data.Day, data.PaceDecks)
		}
		if data.Participants != 3 || data.TotalDecks != 13 || data.DecksToday != 5 {
			t.Errorf("Expected 3 participants, 13 decks, 5 today, got %d, %d, %d", data.Participants, data.TotalDecks, data.DecksToday)
		}
		want := []string{"#C", "#B"}
		if data.BehindCount != len(want) {
			t.Fatalf("Expected %v behind, got %+v", want, data.Behind)
		}
		for i, tag := range want {
			if data.Behind[i].PlayerTag != tag {
				t.Errorf("Expected behind[%d]=%s, got %s", i, tag, data.Behind[i].PlayerTag)
			}
		}
		if len(data.Board.Active) == 0 || data.Board.Active[0].PlayerTag != "#A" {
			t.Errorf("Expected #A most active, got %+v", data.Board.Active)
		}
	})

	t.Run("DayFromFirstSnapshot", func(t *testing.T) {
		f := newReportFixture(t)
		seedRoster(t, f.store, reportNow, members("#A"))
		row := storage.ParticipationFields{PlayerTag: "#A", PlayerName: "nameA", Week: current, DecksUsed: 4}
		f.seedCurrentWeek(t, current, week.PeriodWarDay, row)
		if err := f.store.UpsertDailySnapshot(ctx, row, reportNow.AddDate(0, 0, -2)); err != nil {
			t.Fatalf("Failed to seed snapshot: %v", err)
		}

		data, err := f.svc.Current(ctx)
		if err != nil || data == nil {
			t.Fatalf("Expected current data, got %v", err)
		}
		if data.Day != 3 || data.PaceDecks != 12 || data.BehindCount != 1 {
			t.Errorf("Expected day 3, pace 12, 1 behind, got %d, %d, %d", data.Day, data.PaceDecks, data.BehindCount)
		}
	})

	t.Run("TrainingShowsLastCompleted", func(t *testing.T) {
		f := newReportFixture(t)
		f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: 3}, participant("#A", 16, 2000))
		f.seedCurrentWeek(t, current, week.PeriodTraining)

		data, err := f.svc.Current(ctx)
		if err != nil || data == nil {
			t.Fatalf("Expected current data, got %v", err)
		}
		if data.LastCompleted == nil || *data.LastCompleted != (week.Key{SeasonID: 129, SectionIndex: 3}) {
			t.Errorf("Expected last completed 129/3, got %v", data.LastCompleted)
		}
		if data.Participants != 0 || data.PaceDecks != 0 {
			t.Errorf("Expected no totals during training, got %+v", data)
		}
	})

	t.Run("FallsBackToLatestStoredWeek", func(t *testing.T) {
		f := newReportFixture(t)
		f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: 3}, participant("#A", 16, 2000))

		data, err := f.svc.Current(ctx)
		if err != nil || data == nil {
			t.Fatalf("Expected current data, got %v", err)
		}
		if data.Week != (week.Key{SeasonID: 129, SectionIndex: 3}) || data.Period != week.PeriodCompleted {
			t.Errorf("Expected completed week 129/3, got %v %s", data.Week, data.Period)
		}
	})

	t.Run("NothingStored", func(t *testing.T) {
		f := newReportFixture(t)
		data, err := f.svc.Current(ctx)
		if err != nil || data != nil {
			t.Errorf("Expected nil data, got %+v %v", data, err)
		}
		text, err := f.svc.Render(ctx, ReportCurrent)
		if err != nil || text != report.NoCurrentWeek {
			t.Errorf("Expected %q, got %q %v", report.NoCurrentWeek, text, err)
		}
	})
}

func TestReportService_Top(t *testing.T) {
	ctx := context.Background()

	t.Run("OnlyTenuredMembersRanked", func(t *testing.T) {
		f := newReportFixture(t)
		seedRoster(t, f.store, reportNow, members("#A", "#B", "#NEW"))
		f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: 0},
			participant("#A", 16, 2000), participant("#B", 12, 2600), participant("#GONE", 16, 4000))
		f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: 1},
			participant("#A", 16, 2000), participant("#B", 16, 2600), participant("#NEW", 16, 3000), participant("#GONE", 16, 4000))

		data, err := f.svc.Top(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if data.Eligible != 2 {
			t.Fatalf("Expected 2 eligible members, got %d", data.Eligible)
		}
		if data.ByDecks[0].PlayerTag != "#A" || data.ByFame[0].PlayerTag != "#B" {
			t.Errorf("Expected #A top by decks and #B top by fame, got %s and %s", data.ByDecks[0].PlayerTag, data.ByFame[0].PlayerTag)
		}
		if data.ByDecks[0].DecksUsed != 32 || data.ByDecks[0].WeeksPlayed != 2 {
			t.Errorf("Expected 32 decks over 2 weeks, got %+v", data.ByDecks[0])
		}
	})

	t.Run("NoEligibleMembers", func(t *testing.T) {
		f := newReportFixture(t)
		seedRoster(t, f.store, reportNow, members("#A"))
		f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: 0}, participant("#A", 16, 2000))

		data, err := f.svc.Top(ctx)
		if err != nil || data.Eligible != 0 || len(data.ByDecks) != 0 {
			t.Errorf("Expected no eligible members, got %+v %v", data, err)
		}
	})
}

func TestReportService_Render(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)
	seedRoster(t, f.store, reportNow, members("#A", "#B"))
	f.addWeek(t, week.Key{SeasonID: 129, SectionIndex: 0}, participant("#A", 16, 2000), participant("#B", 3, 300))

	for _, kind := range ReportKinds {
		text, err := f.svc.Render(ctx, kind)
		if err != nil {
			t.Errorf("Render(%s) failed: %v", kind, err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			t.Errorf("Expected text for %s", kind)
		}
	}

	if _, err := f.svc.Render(ctx, ReportKind("bogus")); err == nil {
		t.Error("Expected error for unknown report kind")
	}

	f.client.RaceLogError = errors.New("unavailable")
	text, err := f.svc.Render(ctx, ReportWeekly)
	if err != nil || !strings.Contains(text, "Season 129, Week 1") {
		t.Errorf("Expected stored week as fallback, got %q (%v)", text, err)
	}
}
