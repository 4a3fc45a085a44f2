package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/domain/leaderboard"
	"riverrace_stats/internal/domain/week"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParticipationFields are the values written for one player in one week.
type ParticipationFields struct {
	PlayerTag      string
	PlayerName     string
	Week           week.Key
	IsColosseum    bool
	Fame           int
	RepairPoints   int
	BoatAttacks    int
	DecksUsed      int
	DecksUsedToday int
}

// ParticipationFromAPI maps an upstream participant; ok is false when the tag is missing.
func ParticipationFromAPI(p app.Participant, k week.Key, isColosseum bool) (ParticipationFields, bool) {
	tag := app.NormalizeTag(p.Tag)
	if tag == "" {
		return ParticipationFields{}, false
	}
	return ParticipationFields{
		PlayerTag:      tag,
		PlayerName:     p.Name,
		Week:           k,
		IsColosseum:    isColosseum,
		Fame:           p.Fame,
		RepairPoints:   p.RepairPoints,
		BoatAttacks:    p.BoatAttacks,
		DecksUsed:      p.DecksUsed,
		DecksUsedToday: p.DecksUsedToday,
	}, true
}

var participationUpdateColumns = []string{
	"player_name", "is_colosseum", "fame", "repair_points", "boat_attacks",
	"decks_used", "decks_used_today", "updated_at",
}

// UpsertParticipation inserts or overwrites the (player, season, section) row.
func (s *Store) UpsertParticipation(ctx context.Context, f ParticipationFields) error {
	if !f.Week.Valid() || f.PlayerTag == "" {
		return fmt.Errorf("invalid participation key %s %v", f.PlayerTag, f.Week)
	}
	record := ParticipationRecord{
		PlayerTag:      f.PlayerTag,
		PlayerName:     f.PlayerName,
		SeasonID:       f.Week.SeasonID,
		SectionIndex:   f.Week.SectionIndex,
		IsColosseum:    f.IsColosseum,
		Fame:           f.Fame,
		RepairPoints:   f.RepairPoints,
		BoatAttacks:    f.BoatAttacks,
		DecksUsed:      f.DecksUsed,
		DecksUsedToday: f.DecksUsedToday,
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_tag"}, {Name: "season_id"}, {Name: "section_index"}},
		DoUpdates: clause.AssignmentColumns(participationUpdateColumns),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert participation for %s: %w", f.PlayerTag, err)
	}
	return nil
}

// UpsertDailySnapshot inserts or overwrites the (player, season, section, day) row.
func (s *Store) UpsertDailySnapshot(ctx context.Context, f ParticipationFields, day time.Time) error {
	if !f.Week.Valid() || f.PlayerTag == "" {
		return fmt.Errorf("invalid daily snapshot key %s %v", f.PlayerTag, f.Week)
	}
	snapshot := DailyParticipationSnapshot{
		PlayerTag:      f.PlayerTag,
		PlayerName:     f.PlayerName,
		SeasonID:       f.Week.SeasonID,
		SectionIndex:   f.Week.SectionIndex,
		SnapshotDate:   FormatDate(day),
		IsColosseum:    f.IsColosseum,
		Fame:           f.Fame,
		RepairPoints:   f.RepairPoints,
		BoatAttacks:    f.BoatAttacks,
		DecksUsed:      f.DecksUsed,
		DecksUsedToday: f.DecksUsedToday,
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "player_tag"}, {Name: "season_id"}, {Name: "section_index"}, {Name: "snapshot_date"},
		},
		DoUpdates: clause.AssignmentColumns(participationUpdateColumns),
	}).Create(&snapshot).Error
	if err != nil {
		return fmt.Errorf("failed to upsert daily snapshot for %s: %w", f.PlayerTag, err)
	}
	return nil
}

// WarWeekFields are the values written for the clan in one week.
type WarWeekFields struct {
	ClanTag     string
	Week        week.Key
	Period      week.Period
	IsColosseum bool
	ClanScore   int
}

// UpsertWarWeekState inserts or overwrites the (clan, season, section) row.
func (s *Store) UpsertWarWeekState(ctx context.Context, f WarWeekFields) error {
	if !f.Week.Valid() {
		return fmt.Errorf("invalid war week %v", f.Week)
	}
	state := WarWeekState{
		ClanTag:      app.NormalizeTag(f.ClanTag),
		SeasonID:     f.Week.SeasonID,
		SectionIndex: f.Week.SectionIndex,
		IsColosseum:  f.IsColosseum,
		PeriodType:   string(f.Period),
		ClanScore:    f.ClanScore,
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "clan_tag"}, {Name: "season_id"}, {Name: "section_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_colosseum", "period_type", "clan_score", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("failed to upsert war week state %v: %w", f.Week, err)
	}
	return nil
}

// GetWarWeekState returns the stored row or nil when absent.
func (s *Store) GetWarWeekState(ctx context.Context, clanTag string, k week.Key) (*WarWeekState, error) {
	var state WarWeekState
	err := s.conn(ctx).
		Where("clan_tag = ? AND season_id = ? AND section_index = ?", app.NormalizeTag(clanTag), k.SeasonID, k.SectionIndex).
		Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load war week state %v: %w", k, err)
	}
	return &state, nil
}

// GetLatestWarWeekState returns the newest stored week of the clan, nil when none.
func (s *Store) GetLatestWarWeekState(ctx context.Context, clanTag string) (*WarWeekState, error) {
	var state WarWeekState
	err := s.conn(ctx).
		Where("clan_tag = ? AND season_id > 0", app.NormalizeTag(clanTag)).
		Order("season_id DESC").Order("section_index DESC").
		Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest war week state: %w", err)
	}
	return &state, nil
}

// GetLastWeeksFromDB lists stored weeks for the clan, newest first, skipping
// the exclude week (normally the one still running).
func (s *Store) GetLastWeeksFromDB(ctx context.Context, clanTag string, limit int, exclude *week.Key) ([]week.Key, error) {
	q := s.conn(ctx).Model(&WarWeekState{}).
		Where("clan_tag = ? AND season_id > 0", app.NormalizeTag(clanTag))
	if exclude != nil {
		q = q.Where("NOT (season_id = ? AND section_index = ?)", exclude.SeasonID, exclude.SectionIndex)
	}

	var rows []WarWeekState
	if err := q.Order("season_id DESC").Order("section_index DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list stored weeks: %w", err)
	}

	weeks := make([]week.Key, 0, len(rows))
	for _, row := range rows {
		weeks = append(weeks, week.Key{SeasonID: row.SeasonID, SectionIndex: row.SectionIndex})
	}
	return weeks, nil
}

// GetInactivePlayers returns the week's records with decks_used below minDecks,
// ordered by decks asc, fame asc.
func (s *Store) GetInactivePlayers(ctx context.Context, k week.Key, minDecks int) ([]ParticipationRecord, error) {
	var records []ParticipationRecord
	err := s.conn(ctx).
		Where("season_id = ? AND section_index = ? AND decks_used < ?", k.SeasonID, k.SectionIndex, minDecks).
		Order("decks_used ASC").Order("fame ASC").Order("player_tag ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load inactive players: %w", err)
	}
	return records, nil
}

// GetWeekRecords returns every participation record of one week.
func (s *Store) GetWeekRecords(ctx context.Context, k week.Key) ([]ParticipationRecord, error) {
	var records []ParticipationRecord
	if err := s.conn(ctx).
		Where("season_id = ? AND section_index = ?", k.SeasonID, k.SectionIndex).
		Order("player_tag ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load week %v: %w", k, err)
	}
	return records, nil
}

// GetWeekEntries returns every participation record of one week as leaderboard entries.
func (s *Store) GetWeekEntries(ctx context.Context, k week.Key) ([]leaderboard.Entry, error) {
	records, err := s.GetWeekRecords(ctx, k)
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboard.Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, leaderboard.Entry{
			PlayerTag:   r.PlayerTag,
			PlayerName:  r.PlayerName,
			DecksUsed:   r.DecksUsed,
			Fame:        r.Fame,
			WeeksPlayed: 1,
		})
	}
	return entries, nil
}

// CountParticipation returns the number of participation rows stored for a week.
func (s *Store) CountParticipation(ctx context.Context, k week.Key) (int64, error) {
	var count int64
	err := s.conn(ctx).Model(&ParticipationRecord{}).
		Where("season_id = ? AND section_index = ?", k.SeasonID, k.SectionIndex).
		Count(&count).Error
	return count, err
}

// GetFirstSnapshotDate returns the earliest daily snapshot date of a week, nil if none.
func (s *Store) GetFirstSnapshotDate(ctx context.Context, k week.Key) (*time.Time, error) {
	var snapshot DailyParticipationSnapshot
	err := s.conn(ctx).
		Where("season_id = ? AND section_index = ?", k.SeasonID, k.SectionIndex).
		Order("snapshot_date ASC").
		Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load first snapshot date: %w", err)
	}
	first, err := ParseDate(snapshot.SnapshotDate)
	if err != nil {
		return nil, err
	}
	return &first, nil
}

// FormatDate renders t's UTC calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a stored calendar date as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", value, err)
	}
	return t, nil
}
