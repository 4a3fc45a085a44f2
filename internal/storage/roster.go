package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/domain/week"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertRosterSnapshot writes today's roster row for every member with a tag.
// Returns the number of rows written.
func (s *Store) UpsertRosterSnapshot(ctx context.Context, clanTag string, day time.Time, members []app.ClanMember) (int, error) {
	clan := app.NormalizeTag(clanTag)
	date := FormatDate(day)

	rows := make([]ClanMemberDaily, 0, len(members))
	for _, m := range members {
		tag := app.NormalizeTag(m.Tag)
		if tag == "" {
			continue
		}
		row := ClanMemberDaily{
			SnapshotDate:      date,
			ClanTag:           clan,
			PlayerTag:         tag,
			PlayerName:        m.Name,
			Role:              app.NormalizeRole(m.Role),
			Trophies:          m.Trophies,
			ExpLevel:          m.ExpLevel,
			ClanRank:          m.ClanRank,
			PreviousClanRank:  m.PreviousClanRank,
			Donations:         m.Donations,
			DonationsReceived: m.DonationsReceived,
		}
		if seen, ok := week.ParseTimestamp(m.LastSeen); ok {
			row.LastSeen = &seen
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "snapshot_date"}, {Name: "clan_tag"}, {Name: "player_tag"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"player_name", "role", "trophies", "exp_level", "clan_rank", "previous_clan_rank",
			"donations", "donations_received", "last_seen", "updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to upsert roster snapshot: %w", err)
	}
	return len(rows), nil
}

// latestRosterDate returns the most recent snapshot date for the clan, "" if none.
func (s *Store) latestRosterDate(ctx context.Context, clan string) (string, error) {
	var latest ClanMemberDaily
	err := s.conn(ctx).
		Select("snapshot_date").
		Where("clan_tag = ?", clan).
		Order("snapshot_date DESC").
		Take(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load latest roster date: %w", err)
	}
	return latest.SnapshotDate, nil
}

// GetCurrentMembers returns the roster rows of the latest snapshot date.
func (s *Store) GetCurrentMembers(ctx context.Context, clanTag string) ([]ClanMemberDaily, error) {
	clan := app.NormalizeTag(clanTag)
	latest, err := s.latestRosterDate(ctx, clan)
	if err != nil || latest == "" {
		return nil, err
	}

	var rows []ClanMemberDaily
	err = s.conn(ctx).
		Where("clan_tag = ? AND snapshot_date = ?", clan, latest).
		Order("player_tag ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load current members: %w", err)
	}
	return rows, nil
}

// GetCurrentMemberTags returns the tags of the latest roster snapshot.
func (s *Store) GetCurrentMemberTags(ctx context.Context, clanTag string) (map[string]struct{}, error) {
	rows, err := s.GetCurrentMembers(ctx, clanTag)
	if err != nil {
		return nil, err
	}
	tags := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		tags[row.PlayerTag] = struct{}{}
	}
	return tags, nil
}

// GetCurrentMemberNames maps current member tags to names.
func (s *Store) GetCurrentMemberNames(ctx context.Context, clanTag string) (map[string]string, error) {
	rows, err := s.GetCurrentMembers(ctx, clanTag)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(rows))
	for _, row := range rows {
		names[row.PlayerTag] = row.PlayerName
	}
	return names, nil
}

// GetLastSeenMap maps current member tags to their last-seen time, when known.
func (s *Store) GetLastSeenMap(ctx context.Context, clanTag string) (map[string]time.Time, error) {
	rows, err := s.GetCurrentMembers(ctx, clanTag)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		if row.LastSeen != nil {
			seen[row.PlayerTag] = *row.LastSeen
		}
	}
	return seen, nil
}

// DonationWeekStart returns the Sunday on or before t, at midnight UTC.
func DonationWeekStart(t time.Time) time.Time {
	day := week.DateOf(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// UpsertDonationsWeekly refreshes the weekly donation row of every member from
// today's counters. snapshots_count is the number of roster snapshots taken
// for the player within that week, so the roster must be written first.
func (s *Store) UpsertDonationsWeekly(ctx context.Context, clanTag string, day time.Time, members []app.ClanMember) error {
	clan := app.NormalizeTag(clanTag)
	start := DonationWeekStart(day)
	startDate := FormatDate(start)
	endDate := FormatDate(start.AddDate(0, 0, 6))

	var counts []struct {
		PlayerTag string
		Snapshots int
	}
	err := s.conn(ctx).Model(&ClanMemberDaily{}).
		Select("player_tag, COUNT(*) AS snapshots").
		Where("clan_tag = ? AND snapshot_date >= ? AND snapshot_date <= ?", clan, startDate, endDate).
		Group("player_tag").
		Scan(&counts).Error
	if err != nil {
		return fmt.Errorf("failed to count roster snapshots: %w", err)
	}
	snapshots := make(map[string]int, len(counts))
	for _, c := range counts {
		snapshots[c.PlayerTag] = c.Snapshots
	}

	rows := make([]DonationWeekly, 0, len(members))
	for _, m := range members {
		tag := app.NormalizeTag(m.Tag)
		if tag == "" {
			continue
		}
		count := snapshots[tag]
		if count < 1 {
			count = 1
		}
		rows = append(rows, DonationWeekly{
			ClanTag:                    clan,
			WeekStartDate:              startDate,
			PlayerTag:                  tag,
			PlayerName:                 m.Name,
			DonationsWeekTotal:         m.Donations,
			DonationsReceivedWeekTotal: m.DonationsReceived,
			SnapshotsCount:             count,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	err = s.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "clan_tag"}, {Name: "week_start_date"}, {Name: "player_tag"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"player_name", "donations_week_total", "donations_received_week_total", "snapshots_count", "updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert weekly donations: %w", err)
	}
	return nil
}

// DonationSum is one player's donations summed over a window of weeks.
type DonationSum struct {
	PlayerTag    string
	PlayerName   string
	DonationsSum int
	WeeksPresent int
}

// GetDonationWeeklySums sums donations over the last windowWeeks donation weeks
// (current week included) for the given players. Coverage is the number of
// distinct weeks in the window that have any data.
func (s *Store) GetDonationWeeklySums(ctx context.Context, clanTag string, windowWeeks int, now time.Time, tags map[string]struct{}) ([]DonationSum, int, error) {
	if windowWeeks <= 0 {
		return nil, 0, nil
	}
	clan := app.NormalizeTag(clanTag)
	current := DonationWeekStart(now)
	from := FormatDate(current.AddDate(0, 0, -7*(windowWeeks-1)))
	to := FormatDate(current)

	base := s.conn(ctx).Model(&DonationWeekly{}).
		Where("clan_tag = ? AND week_start_date >= ? AND week_start_date <= ?", clan, from, to)

	var coverage int64
	if err := base.Session(&gorm.Session{}).Distinct("week_start_date").Count(&coverage).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count donation coverage: %w", err)
	}

	q := base.Session(&gorm.Session{}).
		Select("player_tag, MAX(player_name) AS player_name, SUM(donations_week_total) AS donations_sum, COUNT(*) AS weeks_present").
		Group("player_tag")
	if tags != nil {
		if len(tags) == 0 {
			return nil, int(coverage), nil
		}
		q = q.Where("player_tag IN ?", tagList(tags))
	}

	var sums []DonationSum
	if err := q.Order("donations_sum DESC").Order("player_tag ASC").Scan(&sums).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to sum donations: %w", err)
	}
	return sums, int(coverage), nil
}

// GetCurrentWTDDonations returns week-to-date donations per player for the
// current donation week.
func (s *Store) GetCurrentWTDDonations(ctx context.Context, clanTag string, now time.Time) (map[string]int, error) {
	var rows []DonationWeekly
	err := s.conn(ctx).
		Where("clan_tag = ? AND week_start_date = ?", app.NormalizeTag(clanTag), FormatDate(DonationWeekStart(now))).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load week-to-date donations: %w", err)
	}
	wtd := make(map[string]int, len(rows))
	for _, row := range rows {
		wtd[row.PlayerTag] = row.DonationsWeekTotal
	}
	return wtd, nil
}
