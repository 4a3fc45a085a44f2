package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const migrationCleanupNonPositiveSeasons = "2026-01-20_cleanup_non_positive_seasons"

// Open connects to DATABASE_URL and brings the schema up to date.
// "postgres://" and "postgresql://" select Postgres; "sqlite://path" or a bare
// path or "file:" DSN selects SQLite.
func Open(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is required")
	}

	dialector, isSQLite := dialectorFor(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if isSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info().
		Str("dialect", db.Dialector.Name()).
		Msg("Database initialized")

	return db, nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), false
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), true
	default:
		return sqlite.Open(dsn), true
	}
}

// Migrate creates or updates tables and applies one-shot data migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return applyMigrations(db)
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB) error {
	migrations := []migrationDefinition{
		{name: migrationCleanupNonPositiveSeasons, apply: cleanupNonPositiveSeasons},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: time.Now().UTC().Unix()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", migration.name, err)
		}
		log.Info().Str("migration", migration.name).Msg("Database migration applied")
	}
	return nil
}

// cleanupNonPositiveSeasons removes rows written before season ids were validated.
func cleanupNonPositiveSeasons(db *gorm.DB) error {
	for _, model := range []interface{}{&WarWeekState{}, &ParticipationRecord{}, &DailyParticipationSnapshot{}} {
		if err := db.Where("season_id <= 0").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
