package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	defaultDatabaseURL          = "sqlite://riverrace.db"
	defaultAPIBaseURL           = "https://api.clashroyale.com/v1"
	defaultFetchInterval        = time.Hour
	defaultReminderTime         = "10:00"
	defaultTrainingDaysFallback = 3
	defaultNewMemberWeeks       = 2
	defaultRevivedDecks         = 8
	defaultKickShortlistLimit   = 5
	defaultKickMinDecks         = 8
	defaultKickMinFame          = 1500
	defaultLeaderboardLimit     = 10
	defaultRollingWeeks         = 8
	defaultDonationWeeksWindow  = 8
	defaultTopWindowWeeks       = 10
	defaultTopMinTenureWeeks    = 6
	defaultCredentialsFile      = "credentials.json"
)

// PromotionThresholds holds the per-tier promotion requirements.
type PromotionThresholds struct {
	MinWeeksPlayed  int
	MinActiveWeeks  int
	MinAvgDecks     float64
	MinAllTimeWeeks int
	Limit           int
}

// Config holds application configuration
type Config struct {
	APIToken   string
	APIBaseURL string
	ClanTag    string

	DatabaseURL string

	FetchInterval   time.Duration
	ReminderEnabled bool
	ReminderHour    int
	ReminderMinute  int

	// Optional manual anchor for the war-day resolver, used when the upstream
	// data is known to be wrong for the current week.
	WarDayOverrideStart   *time.Time
	WarDayOverrideSeason  int
	WarDayOverrideSection int

	TrainingDaysFallback  int
	NewMemberWeeksPlayed  int
	RevivedDecksThreshold int
	KickShortlistLimit    int
	KickMinDecks          int
	KickMinFame           int
	LeaderboardLimit      int
	RollingWeeks          int
	DonationWeeksWindow   int
	ActiveWeekMinDecks    int
	ProtectedPlayerTags   []string

	// Top players report: window size and the weeks a player must have
	// played in it to be ranked.
	TopWindowWeeks    int
	TopMinTenureWeeks int

	Elder    PromotionThresholds
	CoLeader PromotionThresholds

	TelegramBotToken   string
	TelegramAPIBaseURL string
	ClanChatIDs        []int64
	BannerDay1URL      string
	BannerDay4URL      string

	SpreadsheetID   string
	CredentialsFile string
}

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	if os.Getenv("ENV") == "production" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	levelStr := strings.ToLower(os.Getenv("LOGLEVEL"))
	switch levelStr {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	case "disabled":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	case "":
		if os.Getenv("ENV") == "production" {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
	}

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
// Keys use dots; the matching environment variable replaces dots with underscores,
// so "kick.min_decks" reads KICK_MIN_DECKS.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.url", defaultDatabaseURL)
	v.SetDefault("cr.api_base_url", defaultAPIBaseURL)
	v.SetDefault("fetch.interval", defaultFetchInterval)
	v.SetDefault("reminder.time_utc", defaultReminderTime)
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("training.days_fallback", defaultTrainingDaysFallback)
	v.SetDefault("new_member.weeks_played", defaultNewMemberWeeks)
	v.SetDefault("revived.decks_threshold", defaultRevivedDecks)
	v.SetDefault("kick.shortlist_limit", defaultKickShortlistLimit)
	v.SetDefault("kick.min_decks", defaultKickMinDecks)
	v.SetDefault("kick.min_fame", defaultKickMinFame)
	v.SetDefault("leaderboard.limit", defaultLeaderboardLimit)
	v.SetDefault("rolling.weeks", defaultRollingWeeks)
	v.SetDefault("donation.weeks_window", defaultDonationWeeksWindow)
	v.SetDefault("active_week.min_decks", defaultKickMinDecks)
	v.SetDefault("top.window_weeks", defaultTopWindowWeeks)
	v.SetDefault("top.min_tenure_weeks", defaultTopMinTenureWeeks)

	v.SetDefault("promote.elder.min_weeks_played", 6)
	v.SetDefault("promote.elder.min_active_weeks", 5)
	v.SetDefault("promote.elder.min_avg_decks", 12.0)
	v.SetDefault("promote.elder.limit", 3)
	v.SetDefault("promote.coleader.min_weeks_played", 8)
	v.SetDefault("promote.coleader.min_active_weeks", 7)
	v.SetDefault("promote.coleader.min_avg_decks", 14.0)
	v.SetDefault("promote.coleader.min_alltime_weeks", 16)
	v.SetDefault("promote.coleader.limit", 1)

	v.SetDefault("telegram.api_base_url", "https://api.telegram.org")
	v.SetDefault("google.credentials_file", defaultCredentialsFile)
}

// LoadConfig parses runtime configuration from viper.
func LoadConfig(v *viper.Viper) (*Config, error) {
	token := strings.TrimSpace(v.GetString("cr.api_token"))
	if token == "" {
		return nil, fmt.Errorf("CR_API_TOKEN environment variable is required")
	}

	clanTag := NormalizeTag(v.GetString("clan.tag"))
	if clanTag == "" {
		return nil, fmt.Errorf("CLAN_TAG environment variable is required")
	}

	hour, minute, err := parseClock(v.GetString("reminder.time_utc"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TIME_UTC: %w", err)
	}

	chatIDs, err := parseChatIDs(v.GetString("clan.chat_ids"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLAN_CHAT_IDS: %w", err)
	}

	cfg := &Config{
		APIToken:              token,
		APIBaseURL:            strings.TrimRight(v.GetString("cr.api_base_url"), "/"),
		ClanTag:               clanTag,
		DatabaseURL:           v.GetString("database.url"),
		FetchInterval:         v.GetDuration("fetch.interval"),
		ReminderEnabled:       v.GetBool("reminder.enabled"),
		ReminderHour:          hour,
		ReminderMinute:        minute,
		TrainingDaysFallback:  v.GetInt("training.days_fallback"),
		NewMemberWeeksPlayed:  v.GetInt("new_member.weeks_played"),
		RevivedDecksThreshold: v.GetInt("revived.decks_threshold"),
		KickShortlistLimit:    v.GetInt("kick.shortlist_limit"),
		KickMinDecks:          v.GetInt("kick.min_decks"),
		KickMinFame:           v.GetInt("kick.min_fame"),
		LeaderboardLimit:      v.GetInt("leaderboard.limit"),
		RollingWeeks:          v.GetInt("rolling.weeks"),
		DonationWeeksWindow:   v.GetInt("donation.weeks_window"),
		ActiveWeekMinDecks:    v.GetInt("active_week.min_decks"),
		ProtectedPlayerTags:   parseTags(v.GetString("protected.player_tags")),
		TopWindowWeeks:        v.GetInt("top.window_weeks"),
		TopMinTenureWeeks:     v.GetInt("top.min_tenure_weeks"),
		Elder: PromotionThresholds{
			MinWeeksPlayed: v.GetInt("promote.elder.min_weeks_played"),
			MinActiveWeeks: v.GetInt("promote.elder.min_active_weeks"),
			MinAvgDecks:    v.GetFloat64("promote.elder.min_avg_decks"),
			Limit:          v.GetInt("promote.elder.limit"),
		},
		CoLeader: PromotionThresholds{
			MinWeeksPlayed:  v.GetInt("promote.coleader.min_weeks_played"),
			MinActiveWeeks:  v.GetInt("promote.coleader.min_active_weeks"),
			MinAvgDecks:     v.GetFloat64("promote.coleader.min_avg_decks"),
			MinAllTimeWeeks: v.GetInt("promote.coleader.min_alltime_weeks"),
			Limit:           v.GetInt("promote.coleader.limit"),
		},
		TelegramBotToken:   v.GetString("telegram.bot_token"),
		TelegramAPIBaseURL: strings.TrimRight(v.GetString("telegram.api_base_url"), "/"),
		ClanChatIDs:        chatIDs,
		BannerDay1URL:      v.GetString("banner.day1_url"),
		BannerDay4URL:      v.GetString("banner.day4_url"),
		SpreadsheetID:      v.GetString("spreadsheet.id"),
		CredentialsFile:    v.GetString("google.credentials_file"),
	}

	if raw := strings.TrimSpace(v.GetString("war_day.override_start")); raw != "" {
		start, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("invalid WAR_DAY_OVERRIDE_START: %w", err)
		}
		cfg.WarDayOverrideStart = &start
		cfg.WarDayOverrideSeason = v.GetInt("war_day.override_season")
		cfg.WarDayOverrideSection = v.GetInt("war_day.override_section")
	}

	if cfg.KickShortlistLimit <= 0 {
		cfg.KickShortlistLimit = defaultKickShortlistLimit
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = defaultLeaderboardLimit
	}
	if cfg.RollingWeeks <= 0 {
		cfg.RollingWeeks = defaultRollingWeeks
	}
	if cfg.TopWindowWeeks <= 0 {
		cfg.TopWindowWeeks = defaultTopWindowWeeks
	}

	return cfg, nil
}

// ProtectedTagSet returns the protected player tags as a lookup set.
func (c *Config) ProtectedTagSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.ProtectedPlayerTags))
	for _, tag := range c.ProtectedPlayerTags {
		set[tag] = struct{}{}
	}
	return set
}

// GetRequiredEnv gets an environment variable or panics if not found
func GetRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Str("key", key).Msg("Required environment variable not set")
	}
	return value
}

func parseClock(value string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

func parseChatIDs(value string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseTags(value string) []string {
	var tags []string
	for _, part := range strings.Split(value, ",") {
		if tag := NormalizeTag(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
