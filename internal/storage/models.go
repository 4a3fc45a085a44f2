package storage

import (
	"time"

	"gorm.io/datatypes"
)

// DateLayout is the on-disk format of calendar dates (snapshot and week-start columns).
const DateLayout = "2006-01-02"

// WarWeekState is one row per (clan, season, section).
type WarWeekState struct {
	ID           uint   `gorm:"primaryKey"`
	ClanTag      string `gorm:"column:clan_tag;size:32;not null;uniqueIndex:uq_river_race_state_week,priority:1"`
	SeasonID     int    `gorm:"column:season_id;not null;uniqueIndex:uq_river_race_state_week,priority:2"`
	SectionIndex int    `gorm:"column:section_index;not null;uniqueIndex:uq_river_race_state_week,priority:3"`
	IsColosseum  bool   `gorm:"column:is_colosseum;not null"`
	PeriodType   string `gorm:"column:period_type;size:32;not null"`
	ClanScore    int    `gorm:"column:clan_score;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (WarWeekState) TableName() string {
	return "river_race_state"
}

// ParticipationRecord holds a player's cumulative counters for one week.
type ParticipationRecord struct {
	ID             uint   `gorm:"primaryKey"`
	PlayerTag      string `gorm:"column:player_tag;size:32;not null;uniqueIndex:uq_player_participation_week,priority:1"`
	PlayerName     string `gorm:"column:player_name;size:64;not null"`
	SeasonID       int    `gorm:"column:season_id;not null;uniqueIndex:uq_player_participation_week,priority:2;index:ix_player_participation_week,priority:1"`
	SectionIndex   int    `gorm:"column:section_index;not null;uniqueIndex:uq_player_participation_week,priority:3;index:ix_player_participation_week,priority:2"`
	IsColosseum    bool   `gorm:"column:is_colosseum;not null"`
	Fame           int    `gorm:"column:fame;not null"`
	RepairPoints   int    `gorm:"column:repair_points;not null"`
	BoatAttacks    int    `gorm:"column:boat_attacks;not null"`
	DecksUsed      int    `gorm:"column:decks_used;not null"`
	DecksUsedToday int    `gorm:"column:decks_used_today;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ParticipationRecord) TableName() string {
	return "player_participation"
}

// DailyParticipationSnapshot is a ParticipationRecord frozen per calendar day.
type DailyParticipationSnapshot struct {
	ID             uint   `gorm:"primaryKey"`
	PlayerTag      string `gorm:"column:player_tag;size:32;not null;uniqueIndex:uq_player_participation_daily,priority:1"`
	PlayerName     string `gorm:"column:player_name;size:64;not null"`
	SeasonID       int    `gorm:"column:season_id;not null;uniqueIndex:uq_player_participation_daily,priority:2;index:ix_player_participation_daily_week,priority:1"`
	SectionIndex   int    `gorm:"column:section_index;not null;uniqueIndex:uq_player_participation_daily,priority:3;index:ix_player_participation_daily_week,priority:2"`
	SnapshotDate   string `gorm:"column:snapshot_date;size:10;not null;uniqueIndex:uq_player_participation_daily,priority:4"`
	IsColosseum    bool   `gorm:"column:is_colosseum;not null"`
	Fame           int    `gorm:"column:fame;not null"`
	RepairPoints   int    `gorm:"column:repair_points;not null"`
	BoatAttacks    int    `gorm:"column:boat_attacks;not null"`
	DecksUsed      int    `gorm:"column:decks_used;not null"`
	DecksUsedToday int    `gorm:"column:decks_used_today;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DailyParticipationSnapshot) TableName() string {
	return "player_participation_daily"
}

// ClanMemberDaily is one roster row per (date, clan, player).
type ClanMemberDaily struct {
	ID                uint       `gorm:"primaryKey"`
	SnapshotDate      string     `gorm:"column:snapshot_date;size:10;not null;uniqueIndex:uq_clan_member_daily,priority:1"`
	ClanTag           string     `gorm:"column:clan_tag;size:32;not null;uniqueIndex:uq_clan_member_daily,priority:2"`
	PlayerTag         string     `gorm:"column:player_tag;size:32;not null;uniqueIndex:uq_clan_member_daily,priority:3"`
	PlayerName        string     `gorm:"column:player_name;size:64;not null"`
	Role              string     `gorm:"column:role;size:16;not null"`
	Trophies          int        `gorm:"column:trophies;not null"`
	ExpLevel          int        `gorm:"column:exp_level;not null"`
	ClanRank          int        `gorm:"column:clan_rank;not null"`
	PreviousClanRank  int        `gorm:"column:previous_clan_rank;not null"`
	Donations         int        `gorm:"column:donations;not null"`
	DonationsReceived int        `gorm:"column:donations_received;not null"`
	LastSeen          *time.Time `gorm:"column:last_seen"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ClanMemberDaily) TableName() string {
	return "clan_member_daily"
}

// DonationWeekly aggregates a member's donations for one Sunday-started week.
type DonationWeekly struct {
	ID                         uint   `gorm:"primaryKey"`
	ClanTag                    string `gorm:"column:clan_tag;size:32;not null;uniqueIndex:uq_clan_member_donations_weekly,priority:1"`
	WeekStartDate              string `gorm:"column:week_start_date;size:10;not null;uniqueIndex:uq_clan_member_donations_weekly,priority:2"`
	PlayerTag                  string `gorm:"column:player_tag;size:32;not null;uniqueIndex:uq_clan_member_donations_weekly,priority:3"`
	PlayerName                 string `gorm:"column:player_name;size:64;not null"`
	DonationsWeekTotal         int    `gorm:"column:donations_week_total;not null"`
	DonationsReceivedWeekTotal int    `gorm:"column:donations_received_week_total;not null"`
	SnapshotsCount             int    `gorm:"column:snapshots_count;not null"`
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

func (DonationWeekly) TableName() string {
	return "clan_member_donations_weekly"
}

// AppState is the durable key -> JSON map.
type AppState struct {
	Key       string         `gorm:"column:key;primaryKey;size:64"`
	Value     datatypes.JSON `gorm:"column:value;not null"`
	UpdatedAt time.Time
}

func (AppState) TableName() string {
	return "app_state"
}

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

func allModels() []interface{} {
	return []interface{}{
		&WarWeekState{},
		&ParticipationRecord{},
		&DailyParticipationSnapshot{},
		&ClanMemberDaily{},
		&DonationWeekly{},
		&AppState{},
		&migrationRecord{},
	}
}
