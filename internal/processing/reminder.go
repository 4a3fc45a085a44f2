package processing

import (
	"context"
	"fmt"
	"time"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/clashroyale"
	"riverrace_stats/internal/domain/week"
	"riverrace_stats/internal/storage"

	"github.com/rs/zerolog/log"
)

// ReminderStatus is the outcome of one reminder attempt.
type ReminderStatus string

const (
	ReminderPosted        ReminderStatus = "posted"
	ReminderAlreadyPosted ReminderStatus = "already_posted"
	ReminderSkipPeriod    ReminderStatus = "skip_period"
	ReminderSkipWeek      ReminderStatus = "skip_week"
	ReminderUnknownDay    ReminderStatus = "unknown_day"
	ReminderNoChats       ReminderStatus = "no_chats"
	ReminderNoTemplate    ReminderStatus = "no_template"
	ReminderAPIError      ReminderStatus = "api_error"
	ReminderDisabled      ReminderStatus = "disabled"
)

// Retryable reports whether the daily loop should try again later the same day.
func (s ReminderStatus) Retryable() bool {
	return s == ReminderAPIError || s == ReminderSkipWeek || s == ReminderUnknownDay
}

// ReminderResult describes what the reminder did.
type ReminderResult struct {
	Status    ReminderStatus
	Week      week.Key
	Period    week.Period
	Day       int
	DaySource week.DaySource
	Sent      int
}

// lastReminder is the persisted value of storage.KeyLastWarReminder.
type lastReminder struct {
	ClanTag      string    `json:"clan_tag"`
	SeasonID     int       `json:"season_id"`
	SectionIndex int       `json:"section_index"`
	PeriodType   string    `json:"period_type"`
	DayNumber    int       `json:"day_number"`
	SentAt       time.Time `json:"sent_at"`
}

func (l lastReminder) matches(r ReminderResult) bool {
	return l.SeasonID == r.Week.SeasonID &&
		l.SectionIndex == r.Week.SectionIndex &&
		week.Period(l.PeriodType) == r.Period &&
		l.DayNumber == r.Day
}

var reminderTemplates = map[week.Period]map[int]string{
	week.PeriodWarDay: {
		1: "River race day 1 has started! Use all 4 war decks today, every battle moves the boat.",
		2: "River race day 2. Don't forget your 4 war decks. Duels count for more fame.",
		3: "River race day 3. Keep pushing, finish your attacks before the reset.",
		4: "Last river race day! Use every remaining deck, this is the final push of the week.",
	},
	week.PeriodColosseum: {
		1: "Colosseum week has begun! Every deck counts double this week, use all 4 today.",
		2: "Colosseum day 2. Fame is shared with the whole clan, play all your decks.",
		3: "Colosseum day 3. The standings are close, don't leave any decks unused.",
		4: "Final Colosseum day! Use every remaining deck before the season ends.",
	},
}

// ReminderText returns the message for a battle day, ok=false when there is none.
func ReminderText(period week.Period, day int) (string, bool) {
	text, ok := reminderTemplates[period][day]
	return text, ok
}

// ReminderService posts the daily war reminder to the clan chats.
type ReminderService struct {
	client ClashRoyaleClientInterface
	store  *storage.Store
	sender ChatSenderInterface
	config *app.Config
	now    func() time.Time
}

// NewReminderService creates a reminder service. sender may be nil when no
// chat transport is configured.
func NewReminderService(client ClashRoyaleClientInterface, store *storage.Store, sender ChatSenderInterface, config *app.Config) *ReminderService {
	return &ReminderService{
		client: client,
		store:  store,
		sender: sender,
		config: config,
		now:    time.Now,
	}
}

// Run resolves today's war day and posts the matching reminder once per day.
// The returned error is set only for storage failures; upstream failures
// are reported through ReminderAPIError.
func (r *ReminderService) Run(ctx context.Context) (ReminderResult, error) {
	if !r.config.ReminderEnabled {
		return ReminderResult{Status: ReminderDisabled}, nil
	}

	now := r.now().UTC()
	clanTag := r.config.ClanTag

	race, err := r.client.GetCurrentRiverRace(ctx, clanTag)
	if err != nil || race == nil {
		event := log.Warn().Err(err)
		if clashroyale.IsForbidden(err) {
			event = log.Error().Err(err)
		}
		event.Msg("Reminder skipped: failed to fetch current river race")
		return ReminderResult{Status: ReminderAPIError}, nil
	}

	period := week.NormalizePeriod(race.PeriodType)
	if !period.IsBattle() {
		log.Info().Str("period", string(period)).Msg("Reminder skipped: not a battle period")
		return ReminderResult{Status: ReminderSkipPeriod, Period: period}, nil
	}

	prev, err := r.store.LoadActiveWeek(ctx)
	if err != nil {
		return ReminderResult{}, err
	}
	res := week.Resolve(prev, week.NewObservation(race.SeasonID, race.SectionIndex), now)
	if !res.Resolved {
		log.Warn().Str("source", string(res.Source)).Msg("Reminder skipped: unable to resolve week")
		return ReminderResult{Status: ReminderSkipWeek, Period: period}, nil
	}

	result := ReminderResult{Week: res.Week}
	result.Period, err = r.effectivePeriod(ctx, res.Week, period)
	if err != nil {
		return result, err
	}

	day, err := r.resolveDay(ctx, res.Week, race.PeriodIndex, now)
	if err != nil {
		return result, err
	}
	result.DaySource = day.Source
	if !day.Known {
		log.Info().
			Str("week", res.Week.String()).
			Str("period", string(result.Period)).
			Msg("Reminder skipped: unknown day number")
		result.Status = ReminderUnknownDay
		return result, nil
	}
	result.Day = day.Day

	if err := r.storeDay(ctx, day, now); err != nil {
		return result, err
	}

	log.Info().
		Str("source", string(day.Source)).
		Int("day", day.Day).
		Str("week", res.Week.String()).
		Str("period", string(result.Period)).
		Msg("Resolved reminder day")

	var last lastReminder
	found, err := r.store.GetAppState(ctx, storage.KeyLastWarReminder, &last)
	if err != nil {
		return result, err
	}
	if found && last.matches(result) {
		result.Status = ReminderAlreadyPosted
		return result, nil
	}

	if r.sender == nil || len(r.config.ClanChatIDs) == 0 {
		log.Info().Msg("No clan chats configured for daily reminders")
		result.Status = ReminderNoChats
		return result, nil
	}

	text, ok := ReminderText(result.Period, result.Day)
	if !ok {
		log.Warn().Int("day", result.Day).Msg("Reminder skipped: no template for day")
		result.Status = ReminderNoTemplate
		return result, nil
	}

	banner := r.bannerFor(result.Day)
	for _, chatID := range r.config.ClanChatIDs {
		if err := r.send(ctx, chatID, text, banner); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reminder")
			continue
		}
		result.Sent++
	}
	if result.Sent == 0 {
		result.Status = ReminderAPIError
		return result, nil
	}

	if err := r.store.SetAppState(ctx, storage.KeyLastWarReminder, lastReminder{
		ClanTag:      app.NormalizeTag(clanTag),
		SeasonID:     result.Week.SeasonID,
		SectionIndex: result.Week.SectionIndex,
		PeriodType:   string(result.Period),
		DayNumber:    result.Day,
		SentAt:       now,
	}); err != nil {
		return result, err
	}

	log.Info().
		Int("day", result.Day).
		Str("period", string(result.Period)).
		Str("week", result.Week.String()).
		Int("chats", result.Sent).
		Msg("Posted daily reminder")

	result.Status = ReminderPosted
	return result, nil
}

// effectivePeriod decides river vs colosseum: stored week state first, then
// the learned colosseum map, then the live period.
func (r *ReminderService) effectivePeriod(ctx context.Context, k week.Key, live week.Period) (week.Period, error) {
	state, err := r.store.GetWarWeekState(ctx, r.config.ClanTag, k)
	if err != nil {
		return "", err
	}

	var isColosseum bool
	if state != nil {
		isColosseum = state.IsColosseum
	} else {
		colosseum, err := r.store.LoadColosseumMap(ctx)
		if err != nil {
			return "", err
		}
		isColosseum = week.ResolveColosseum(nil, k, colosseum, live)
	}

	if isColosseum {
		return week.PeriodColosseum, nil
	}
	return week.PeriodWarDay, nil
}

// Resolve reports the week and day without posting or persisting anything.
func (r *ReminderService) Resolve(ctx context.Context) (ReminderResult, error) {
	now := r.now().UTC()
	race, err := r.client.GetCurrentRiverRace(ctx, r.config.ClanTag)
	if err != nil {
		return ReminderResult{Status: ReminderAPIError}, fmt.Errorf("failed to fetch current river race: %w", err)
	}
	if race == nil {
		return ReminderResult{Status: ReminderAPIError}, fmt.Errorf("empty current river race response")
	}

	result := ReminderResult{Period: week.NormalizePeriod(race.PeriodType)}
	prev, err := r.store.LoadActiveWeek(ctx)
	if err != nil {
		return result, err
	}
	res := week.Resolve(prev, week.NewObservation(race.SeasonID, race.SectionIndex), now)
	if !res.Resolved {
		result.Status = ReminderSkipWeek
		return result, nil
	}
	result.Week = res.Week

	day, err := r.resolveDay(ctx, res.Week, race.PeriodIndex, now)
	if err != nil {
		return result, err
	}
	result.Day = day.Day
	result.DaySource = day.Source
	if !day.Known {
		result.Status = ReminderUnknownDay
	}
	return result, nil
}

// dayOverride returns the configured first war day when it targets week k.
func dayOverride(config *app.Config, k week.Key) *time.Time {
	if config.WarDayOverrideStart == nil ||
		config.WarDayOverrideSeason != k.SeasonID ||
		config.WarDayOverrideSection != k.SectionIndex {
		return nil
	}
	return config.WarDayOverrideStart
}

func (r *ReminderService) resolveDay(ctx context.Context, k week.Key, periodIndex *int, now time.Time) (week.DayResolution, error) {
	in := week.DayInput{
		Today:                now,
		PeriodIndex:          periodIndex,
		TrainingDaysFallback: r.config.TrainingDaysFallback,
	}

	if start := dayOverride(r.config, k); start != nil {
		in.OverrideStart = start
		log.Info().
			Str("start", storage.FormatDate(*r.config.WarDayOverrideStart)).
			Str("week", k.String()).
			Msg("Using war day override")
	}

	first, err := r.store.GetFirstSnapshotDate(ctx, k)
	if err != nil {
		return week.DayResolution{}, err
	}
	in.FirstSnapshotDate = first

	if first == nil && in.OverrideStart == nil {
		entries, err := r.client.GetRiverRaceLog(ctx, r.config.ClanTag)
		if err != nil {
			log.Info().Err(err).Msg("Reminder log fallback failed")
		} else {
			in.LogAnchor = week.FindLogAnchor(entries, r.config.ClanTag)
		}
	}

	return week.ResolveDay(in), nil
}

func (r *ReminderService) storeDay(ctx context.Context, day week.DayResolution, now time.Time) error {
	return r.store.SaveWarDay(ctx, storage.WarDay{Day: day.Day, Date: now, Source: string(day.Source)})
}

func (r *ReminderService) bannerFor(day int) string {
	switch day {
	case 1:
		return r.config.BannerDay1URL
	case 4:
		return r.config.BannerDay4URL
	default:
		return ""
	}
}

// send posts the banner with the text as caption, falling back to plain text.
func (r *ReminderService) send(ctx context.Context, chatID int64, text, banner string) error {
	if banner != "" {
		err := r.sender.SendPhoto(ctx, chatID, banner, text)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Banner failed, sending text only")
	}
	return r.sender.SendMessage(ctx, chatID, text)
}
