package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"riverrace_stats/internal/domain/week"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// App state keys
const (
	KeyActiveWeek        = "active_week"
	KeyLastReportedWeek  = "last_reported_week"
	KeyLastPromoteSeason = "last_promote_season"
	KeyLastWarReminder   = "last_war_reminder"
	KeyWarDayNumber      = "war_day_number"
	KeyWarDayNumberDate  = "war_day_number_date"
	KeyWarDayResolvedBy  = "war_day_resolved_by"
	KeyColosseumIndexMap = "colosseum_index_map"
)

// GetAppState decodes the value stored under key into out. It reports false
// when the key is absent. A value that no longer decodes is logged and
// treated as absent.
func (s *Store) GetAppState(ctx context.Context, key string, out interface{}) (bool, error) {
	// Read as text: SQLite gives JSON columns numeric affinity and hands
	// scalar values back as numbers, which datatypes.JSON cannot scan.
	var values []string
	err := s.conn(ctx).Model(&AppState{}).Where("key = ?", key).Pluck("CAST(value AS TEXT)", &values).Error
	if err != nil {
		return false, fmt.Errorf("failed to load app state %s: %w", key, err)
	}
	if len(values) == 0 {
		return false, nil
	}

	if err := json.Unmarshal([]byte(values[0]), out); err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("Ignoring malformed app state value")
		return false, nil
	}
	return true, nil
}

// SetAppState stores value under key, replacing any previous value. Every
// value must encode to a JSON object.
func (s *Store) SetAppState(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode app state %s: %w", key, err)
	}
	if len(data) == 0 || data[0] != '{' {
		return fmt.Errorf("app state %s must be a JSON object, got %s", key, data)
	}

	row := AppState{Key: key, Value: datatypes.JSON(data)}
	err = s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store app state %s: %w", key, err)
	}
	return nil
}

// LoadActiveWeek returns the stored pointer; nil when absent or malformed.
func (s *Store) LoadActiveWeek(ctx context.Context) (*week.ActiveWeek, error) {
	var active week.ActiveWeek
	found, err := s.GetAppState(ctx, KeyActiveWeek, &active)
	if err != nil || !found {
		return nil, err
	}
	if !active.Valid() {
		log.Warn().
			Int("season_id", active.SeasonID).
			Int("section_index", active.SectionIndex).
			Msg("Ignoring invalid stored active week")
		return nil, nil
	}
	return &active, nil
}

// SaveActiveWeek persists the pointer.
func (s *Store) SaveActiveWeek(ctx context.Context, active week.ActiveWeek) error {
	if !active.Valid() {
		return fmt.Errorf("refusing to store invalid active week %v", active.Key())
	}
	return s.SetAppState(ctx, KeyActiveWeek, active)
}

// LoadColosseumMap returns the learned colosseum sections, never nil.
// JSON object keys are strings, so the map is stored keyed by season as text.
func (s *Store) LoadColosseumMap(ctx context.Context) (week.ColosseumMap, error) {
	var raw map[string]int
	m := week.ColosseumMap{}
	found, err := s.GetAppState(ctx, KeyColosseumIndexMap, &raw)
	if err != nil || !found {
		return m, err
	}
	for key, section := range raw {
		season, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		m.Learn(season, section)
	}
	return m, nil
}

// SaveColosseumMap persists the learned colosseum sections.
func (s *Store) SaveColosseumMap(ctx context.Context, m week.ColosseumMap) error {
	raw := make(map[string]int, len(m))
	for season, section := range m {
		raw[strconv.Itoa(season)] = section
	}
	return s.SetAppState(ctx, KeyColosseumIndexMap, raw)
}

// LoadWeekKey reads a week.Key stored under key, nil when absent.
func (s *Store) LoadWeekKey(ctx context.Context, key string) (*week.Key, error) {
	var k week.Key
	found, err := s.GetAppState(ctx, key, &k)
	if err != nil || !found || !k.Valid() {
		return nil, err
	}
	return &k, nil
}

// LoadDate reads a calendar date stored as {"date":"YYYY-MM-DD"} under key.
func (s *Store) LoadDate(ctx context.Context, key string) (*time.Time, error) {
	var value dateValue
	found, err := s.GetAppState(ctx, key, &value)
	if err != nil || !found {
		return nil, err
	}
	t, err := ParseDate(value.Date)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Ignoring malformed stored date")
		return nil, nil
	}
	return &t, nil
}

// SaveDate stores t's calendar date under key.
func (s *Store) SaveDate(ctx context.Context, key string, t time.Time) error {
	return s.SetAppState(ctx, key, dateValue{Date: FormatDate(t)})
}

type dateValue struct {
	Date string `json:"date"`
}

type dayNumberValue struct {
	DayNumber int `json:"day_number"`
}

type sourceValue struct {
	Source string `json:"source"`
}

type seasonValue struct {
	SeasonID int `json:"season_id"`
}

// WarDay is the last war day the reminder resolved.
type WarDay struct {
	Day    int
	Date   time.Time
	Source string
}

// SaveWarDay writes the war_day_number, war_day_number_date and
// war_day_resolved_by keys in one transaction.
func (s *Store) SaveWarDay(ctx context.Context, day WarDay) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.SetAppState(ctx, KeyWarDayNumber, dayNumberValue{DayNumber: day.Day}); err != nil {
			return err
		}
		if err := tx.SaveDate(ctx, KeyWarDayNumberDate, day.Date); err != nil {
			return err
		}
		return tx.SetAppState(ctx, KeyWarDayResolvedBy, sourceValue{Source: day.Source})
	})
}

// LoadWarDay returns the last stored war day, nil when no day number is stored.
func (s *Store) LoadWarDay(ctx context.Context) (*WarDay, error) {
	var number dayNumberValue
	found, err := s.GetAppState(ctx, KeyWarDayNumber, &number)
	if err != nil || !found {
		return nil, err
	}
	day := &WarDay{Day: number.DayNumber}

	date, err := s.LoadDate(ctx, KeyWarDayNumberDate)
	if err != nil {
		return nil, err
	}
	if date != nil {
		day.Date = *date
	}

	var source sourceValue
	if _, err := s.GetAppState(ctx, KeyWarDayResolvedBy, &source); err != nil {
		return nil, err
	}
	day.Source = source.Source
	return day, nil
}

// LoadLastPromoteSeason returns the season promotions were last posted for.
func (s *Store) LoadLastPromoteSeason(ctx context.Context) (int, bool, error) {
	var value seasonValue
	found, err := s.GetAppState(ctx, KeyLastPromoteSeason, &value)
	if err != nil || !found {
		return 0, false, err
	}
	return value.SeasonID, true, nil
}

func (s *Store) SaveLastPromoteSeason(ctx context.Context, season int) error {
	return s.SetAppState(ctx, KeyLastPromoteSeason, seasonValue{SeasonID: season})
}
