package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/domain/week"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:storage_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return NewStore(db)
}

func participation(tag string, k week.Key, decks, fame int) ParticipationFields {
	return ParticipationFields{PlayerTag: tag, PlayerName: "name" + tag, Week: k, DecksUsed: decks, Fame: fame}
}

func TestUpsertParticipation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	k := week.Key{SeasonID: 129, SectionIndex: 1}

	t.Run("RepeatedUpsertKeepsOneRow", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if err := store.UpsertParticipation(ctx, participation("#A", k, 4*i, 100*i)); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
		}
		count, err := store.CountParticipation(ctx, k)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 row, got %d", count)
		}

		entries, err := store.GetWeekEntries(ctx, k)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(entries) != 1 || entries[0].DecksUsed != 8 || entries[0].Fame != 200 {
			t.Errorf("Expected last write to win, got %+v", entries)
		}
	})

	t.Run("ZeroValuesOverwrite", func(t *testing.T) {
		if err := store.UpsertParticipation(ctx, participation("#A", k, 0, 0)); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		decks, err := store.GetWeekDecksMap(ctx, k, map[string]struct{}{"#A": {}})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if decks["#A"] != 0 {
			t.Errorf("Expected 0 decks, got %d", decks["#A"])
		}
	})

	t.Run("InvalidWeekRejected", func(t *testing.T) {
		err := store.UpsertParticipation(ctx, participation("#A", week.Key{SeasonID: 0, SectionIndex: 1}, 1, 1))
		if err == nil {
			t.Error("Expected error for season 0")
		}
	})
}

func TestDailySnapshots(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	k := week.Key{SeasonID: 129, SectionIndex: 2}

	first, err := store.GetFirstSnapshotDate(ctx, k)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first != nil {
		t.Errorf("Expected no first snapshot, got %v", first)
	}

	day1 := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(30 * time.Hour)
	for _, day := range []time.Time{day2, day1, day2} {
		if err := store.UpsertDailySnapshot(ctx, participation("#A", k, 4, 400), day); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	first, err = store.GetFirstSnapshotDate(ctx, k)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first == nil || !first.Equal(week.DateOf(day1)) {
		t.Errorf("Expected %v, got %v", week.DateOf(day1), first)
	}

	var count int64
	store.DB().Model(&DailyParticipationSnapshot{}).Count(&count)
	if count != 2 {
		t.Errorf("Expected 2 daily rows, got %d", count)
	}
}

func TestRollingLeaderboard(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	w1 := week.Key{SeasonID: 129, SectionIndex: 0}
	w2 := week.Key{SeasonID: 129, SectionIndex: 1}
	w3 := week.Key{SeasonID: 129, SectionIndex: 2}

	rows := []ParticipationFields{
		participation("#A", w1, 1, 100),
		participation("#B", w1, 8, 900),
		participation("#B", w2, 8, 800),
		participation("#C", w2, 8, 900),
		participation("#GONE", w1, 0, 0),
		participation("#A", w3, 16, 3000),
	}
	for _, row := range rows {
		if err := store.UpsertParticipation(ctx, row); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	members := map[string]struct{}{"#A": {}, "#B": {}, "#C": {}}
	names := map[string]string{"#A": "nameA", "#B": "nameB", "#C": "nameC"}

	board, err := store.GetRollingLeaderboard(ctx, []week.Key{w1, w2}, names, nil, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := []string{"#A", "#C", "#B"}
	if len(board.Inactive) != len(want) {
		t.Fatalf("Expected %d inactive entries, got %+v", len(want), board.Inactive)
	}
	for i, tag := range want {
		if board.Inactive[i].PlayerTag != tag {
			t.Errorf("Expected inactive[%d]=%s, got %s", i, tag, board.Inactive[i].PlayerTag)
		}
	}
	if board.Active[0].PlayerTag != "#B" || board.Active[0].DecksUsed != 16 || board.Active[0].WeeksPlayed != 2 {
		t.Errorf("Expected #B with 16 decks over 2 weeks first, got %+v", board.Active[0])
	}
	for _, e := range board.Inactive {
		if e.PlayerTag == "#GONE" {
			t.Error("Expected former member to be excluded")
		}
	}

	t.Run("EmptyWindow", func(t *testing.T) {
		board, err := store.GetRollingLeaderboard(ctx, nil, names, nil, 10)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(board.Inactive) != 0 {
			t.Errorf("Expected empty board, got %+v", board)
		}
	})

	t.Run("WarStats", func(t *testing.T) {
		stats, err := store.GetWarStatsForWeeks(ctx, []week.Key{w1, w2, w3}, members, 8)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		a := stats["#A"]
		if a.WeeksPlayed != 2 || a.ActiveWeeks != 1 || a.AvgDecks != 8.5 {
			t.Errorf("Expected #A 2 weeks, 1 active, 8.5 avg, got %+v", a)
		}
		if stats["#B"].ActiveWeeks != 2 {
			t.Errorf("Expected #B 2 active weeks, got %+v", stats["#B"])
		}
	})

	t.Run("WeekCounts", func(t *testing.T) {
		counts, err := store.GetParticipationWeekCounts(ctx, members)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if counts["#A"] != 2 || counts["#B"] != 2 || counts["#C"] != 1 {
			t.Errorf("Unexpected week counts %v", counts)
		}
	})
}

func TestWarWeekState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for section := 0; section < 4; section++ {
		err := store.UpsertWarWeekState(ctx, WarWeekFields{
			ClanTag: "abc",
			Week:    week.Key{SeasonID: 129, SectionIndex: section},
			Period:  week.PeriodCompleted,
		})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	exclude := week.Key{SeasonID: 129, SectionIndex: 3}
	weeks, err := store.GetLastWeeksFromDB(ctx, "#ABC", 2, &exclude)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(weeks) != 2 || weeks[0].SectionIndex != 2 || weeks[1].SectionIndex != 1 {
		t.Errorf("Expected sections [2 1], got %v", weeks)
	}

	state, err := store.GetWarWeekState(ctx, "#ABC", week.Key{SeasonID: 129, SectionIndex: 0})
	if err != nil || state == nil {
		t.Fatalf("Expected stored state, got %v %v", state, err)
	}
	missing, err := store.GetWarWeekState(ctx, "#ABC", week.Key{SeasonID: 1, SectionIndex: 0})
	if err != nil || missing != nil {
		t.Errorf("Expected nil for absent week, got %v %v", missing, err)
	}

	latest, err := store.GetLatestWarWeekState(ctx, "#ABC")
	if err != nil || latest == nil || latest.SectionIndex != 3 {
		t.Errorf("Expected section 3 as latest, got %+v %v", latest, err)
	}
	none, err := store.GetLatestWarWeekState(ctx, "#OTHER")
	if err != nil || none != nil {
		t.Errorf("Expected nil for unknown clan, got %+v %v", none, err)
	}
}

func TestMigrationCleansNonPositiveSeasons(t *testing.T) {
	store := newTestStore(t)
	db := store.DB()

	db.Create(&ParticipationRecord{PlayerTag: "#A", PlayerName: "a", SeasonID: 0, SectionIndex: 1})
	db.Create(&ParticipationRecord{PlayerTag: "#A", PlayerName: "a", SeasonID: 5, SectionIndex: 1})
	db.Where("name = ?", migrationCleanupNonPositiveSeasons).Delete(&migrationRecord{})

	if err := Migrate(db); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var count int64
	db.Model(&ParticipationRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 remaining row, got %d", count)
	}

	var applied int64
	db.Model(&migrationRecord{}).Count(&applied)
	if applied != 1 {
		t.Errorf("Expected migration to be recorded once, got %d", applied)
	}
}

func TestRosterAndDonations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	monday := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	members := []app.ClanMember{
		{Tag: "#A", Name: "alpha", Role: "coLeader", Donations: 100, LastSeen: "20260209T100000.000Z"},
		{Tag: "#B", Name: "bravo", Role: "member", Donations: 20},
		{Tag: "", Name: "broken"},
	}

	n, err := store.UpsertRosterSnapshot(ctx, "#CLAN", monday, members)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 roster rows, got %d", n)
	}
	if err := store.UpsertDonationsWeekly(ctx, "#CLAN", monday, members); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	tuesday := monday.AddDate(0, 0, 1)
	members[0].Donations = 150
	if _, err := store.UpsertRosterSnapshot(ctx, "#CLAN", tuesday, members[:1]); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := store.UpsertDonationsWeekly(ctx, "#CLAN", tuesday, members[:1]); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	t.Run("CurrentMembersUseLatestSnapshot", func(t *testing.T) {
		tags, err := store.GetCurrentMemberTags(ctx, "#CLAN")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(tags) != 1 {
			t.Errorf("Expected 1 current member, got %v", tags)
		}
		if _, ok := tags["#A"]; !ok {
			t.Errorf("Expected #A to be current, got %v", tags)
		}

		rows, _ := store.GetCurrentMembers(ctx, "#CLAN")
		if rows[0].Role != app.RoleCoLeader {
			t.Errorf("Expected role %s, got %s", app.RoleCoLeader, rows[0].Role)
		}
		seen, _ := store.GetLastSeenMap(ctx, "#CLAN")
		if _, ok := seen["#A"]; !ok {
			t.Errorf("Expected last seen for #A, got %v", seen)
		}
	})

	t.Run("WeeklyDonations", func(t *testing.T) {
		wtd, err := store.GetCurrentWTDDonations(ctx, "#CLAN", tuesday)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if wtd["#A"] != 150 || wtd["#B"] != 20 {
			t.Errorf("Unexpected week-to-date donations %v", wtd)
		}

		var row DonationWeekly
		store.DB().Where("player_tag = ?", "#A").Take(&row)
		if row.SnapshotsCount != 2 {
			t.Errorf("Expected 2 snapshots, got %d", row.SnapshotsCount)
		}
		if row.WeekStartDate != "2026-02-08" {
			t.Errorf("Expected week start 2026-02-08, got %s", row.WeekStartDate)
		}

		sums, coverage, err := store.GetDonationWeeklySums(ctx, "#CLAN", 4, tuesday, map[string]struct{}{"#A": {}})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if coverage != 1 {
			t.Errorf("Expected coverage 1, got %d", coverage)
		}
		if len(sums) != 1 || sums[0].DonationsSum != 150 || sums[0].WeeksPresent != 1 {
			t.Errorf("Unexpected donation sums %+v", sums)
		}
	})
}

func TestDonationWeekStart(t *testing.T) {
	cases := map[string]string{
		"2026-02-11": "2026-02-08",
		"2026-02-08": "2026-02-08",
		"2026-02-14": "2026-02-08",
		"2026-02-15": "2026-02-15",
	}
	for in, want := range cases {
		day, _ := ParseDate(in)
		if got := FormatDate(DonationWeekStart(day.Add(13 * time.Hour))); got != want {
			t.Errorf("DonationWeekStart(%s): expected %s, got %s", in, want, got)
		}
	}
}

func TestAppState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("MissingKey", func(t *testing.T) {
		active, err := store.LoadActiveWeek(ctx)
		if err != nil || active != nil {
			t.Errorf("Expected nil active week, got %v %v", active, err)
		}
	})

	t.Run("ActiveWeekRoundTrip", func(t *testing.T) {
		want := week.ActiveWeek{SeasonID: 129, SectionIndex: 2, SetAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
		if err := store.SaveActiveWeek(ctx, want); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		got, err := store.LoadActiveWeek(ctx)
		if err != nil || got == nil {
			t.Fatalf("Expected stored week, got %v %v", got, err)
		}
		if got.Key() != want.Key() || !got.SetAt.Equal(want.SetAt) {
			t.Errorf("Expected %+v, got %+v", want, got)
		}
	})

	t.Run("MalformedValueTreatedAsMissing", func(t *testing.T) {
		store.DB().Exec("UPDATE app_state SET value = ? WHERE key = ?", "{not json", KeyActiveWeek)
		got, err := store.LoadActiveWeek(ctx)
		if err != nil || got != nil {
			t.Errorf("Expected nil for malformed value, got %v %v", got, err)
		}
	})

	t.Run("InvalidWeekRejected", func(t *testing.T) {
		if err := store.SaveActiveWeek(ctx, week.ActiveWeek{SeasonID: -1}); err == nil {
			t.Error("Expected error for invalid active week")
		}
	})

	t.Run("ColosseumMap", func(t *testing.T) {
		m, err := store.LoadColosseumMap(ctx)
		if err != nil || len(m) != 0 {
			t.Fatalf("Expected empty map, got %v %v", m, err)
		}
		m.Learn(129, 3)
		if err := store.SaveColosseumMap(ctx, m); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		loaded, err := store.LoadColosseumMap(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if loaded[129] != 3 {
			t.Errorf("Expected section 3 for season 129, got %v", loaded)
		}
	})

	t.Run("Dates", func(t *testing.T) {
		day := time.Date(2026, 2, 9, 18, 0, 0, 0, time.UTC)
		if err := store.SaveDate(ctx, KeyLastWarReminder, day); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		got, err := store.LoadDate(ctx, KeyLastWarReminder)
		if err != nil || got == nil || !got.Equal(week.DateOf(day)) {
			t.Errorf("Expected %v, got %v %v", week.DateOf(day), got, err)
		}
	})

	t.Run("IntegerAndStringRoundTrip", func(t *testing.T) {
		if err := store.SaveLastPromoteSeason(ctx, 129); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		season, found, err := store.LoadLastPromoteSeason(ctx)
		if err != nil || !found || season != 129 {
			t.Errorf("Expected season 129, got %d %v %v", season, found, err)
		}

		day := time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC)
		if err := store.SaveWarDay(ctx, WarDay{Day: 3, Date: day, Source: "db"}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		got, err := store.LoadWarDay(ctx)
		if err != nil || got == nil {
			t.Fatalf("Expected stored war day, got %v %v", got, err)
		}
		if got.Day != 3 || got.Source != "db" || !got.Date.Equal(week.DateOf(day)) {
			t.Errorf("Expected day 3 from db on 2026-02-12, got %+v", got)
		}
	})

	t.Run("ScalarValueRejected", func(t *testing.T) {
		if err := store.SetAppState(ctx, KeyLastPromoteSeason, 130); err == nil {
			t.Error("Expected error for a bare integer value")
		}
		if err := store.SetAppState(ctx, KeyWarDayResolvedBy, "db"); err == nil {
			t.Error("Expected error for a bare string value")
		}
	})

	t.Run("StoredBareNumberTreatedAsMissing", func(t *testing.T) {
		if err := store.DB().Exec("UPDATE app_state SET value = ? WHERE key = ?", 129, KeyLastPromoteSeason).Error; err != nil {
			t.Fatalf("Failed to overwrite value: %v", err)
		}
		season, found, err := store.LoadLastPromoteSeason(ctx)
		if err != nil || found {
			t.Errorf("Expected missing season, got %d %v %v", season, found, err)
		}
	})
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	k := week.Key{SeasonID: 129, SectionIndex: 0}

	err := store.WithTx(ctx, func(tx *Store) error {
		if err := tx.UpsertParticipation(ctx, participation("#A", k, 1, 1)); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatal("Expected error from transaction")
	}

	count, _ := store.CountParticipation(ctx, k)
	if count != 0 {
		t.Errorf("Expected rollback to leave 0 rows, got %d", count)
	}
}

func TestGetInactivePlayers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	k := week.Key{SeasonID: 129, SectionIndex: 1}
	other := week.Key{SeasonID: 129, SectionIndex: 0}

	rows := []ParticipationFields{
		participation("#A", k, 4, 500),
		participation("#B", k, 0, 0),
		participation("#C", k, 4, 300),
		participation("#D", k, 8, 900),
		participation("#E", k, 12, 1200),
		participation("#F", other, 0, 0),
	}
	for _, row := range rows {
		if err := store.UpsertParticipation(ctx, row); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	t.Run("BelowThresholdOrderedByDecksThenFame", func(t *testing.T) {
		records, err := store.GetInactivePlayers(ctx, k, 8)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		want := []string{"#B", "#C", "#A"}
		if len(records) != len(want) {
			t.Fatalf("Expected %v, got %d records", want, len(records))
		}
		for i, tag := range want {
			if records[i].PlayerTag != tag {
				t.Errorf("Expected records[%d]=%s, got %s", i, tag, records[i].PlayerTag)
			}
		}
	})

	t.Run("ThresholdIsExclusive", func(t *testing.T) {
		records, err := store.GetInactivePlayers(ctx, k, 4)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(records) != 1 || records[0].PlayerTag != "#B" {
			t.Errorf("Expected only #B below 4 decks, got %+v", records)
		}
	})

	t.Run("ZeroThresholdReturnsNothing", func(t *testing.T) {
		records, err := store.GetInactivePlayers(ctx, k, 0)
		if err != nil || len(records) != 0 {
			t.Errorf("Expected no records, got %d %v", len(records), err)
		}
	})
}

func TestGetWeekLeaderboard(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	k := week.Key{SeasonID: 129, SectionIndex: 1}

	for _, row := range []ParticipationFields{
		participation("#A", k, 16, 2800),
		participation("#B", k, 4, 400),
		participation("#GONE", k, 0, 0),
	} {
		if err := store.UpsertParticipation(ctx, row); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}
	members := map[string]string{"#A": "alpha", "#B": "bravo", "#NEW": "newbie", "#P": "protected"}
	protected := map[string]struct{}{"#P": {}}

	board, err := store.GetWeekLeaderboard(ctx, k, members, protected, 3)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	wantInactive := []string{"#NEW", "#B", "#A"}
	if len(board.Inactive) != len(wantInactive) {
		t.Fatalf("Expected %v inactive, got %+v", wantInactive, board.Inactive)
	}
	for i, tag := range wantInactive {
		if board.Inactive[i].PlayerTag != tag {
			t.Errorf("Expected inactive[%d]=%s, got %s", i, tag, board.Inactive[i].PlayerTag)
		}
	}
	if board.Inactive[0].PlayerName != "newbie" {
		t.Errorf("Expected zero entry to carry the roster name, got %q", board.Inactive[0].PlayerName)
	}
	if len(board.Active) != 3 || board.Active[0].PlayerTag != "#A" {
		t.Errorf("Expected #A first among 3 active, got %+v", board.Active)
	}
	for _, e := range append(board.Inactive, board.Active...) {
		if e.PlayerTag == "#GONE" {
			t.Error("Expected former member to be excluded")
		}
	}
}
