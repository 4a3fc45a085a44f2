package processing

import (
	"context"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/domain/leaderboard"
	"riverrace_stats/internal/domain/week"
	"riverrace_stats/internal/report"
	"riverrace_stats/internal/storage"

	"github.com/rs/zerolog/log"
)

// Publisher posts the weekly and per-season reports once each, gated by app state.
type Publisher struct {
	store    *storage.Store
	importer *Importer
	reports  *ReportService
	sender   ChatSenderInterface
	mirror   SheetsMirrorInterface
	config   *app.Config
}

// NewPublisher creates a publisher. sender and mirror may be nil.
func NewPublisher(store *storage.Store, importer *Importer, reports *ReportService, sender ChatSenderInterface, mirror SheetsMirrorInterface, config *app.Config) *Publisher {
	return &Publisher{
		store:    store,
		importer: importer,
		reports:  reports,
		sender:   sender,
		mirror:   mirror,
		config:   config,
	}
}

func (p *Publisher) canPost() bool {
	return p.sender != nil && len(p.config.ClanChatIDs) > 0
}

// broadcast sends text to every clan chat and returns how many accepted it.
func (p *Publisher) broadcast(ctx context.Context, text string) int {
	delivered := 0
	for _, chatID := range p.config.ClanChatIDs {
		if err := p.sender.SendMessage(ctx, chatID, text); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to post report")
			continue
		}
		delivered++
	}
	return delivered
}

// MaybePostWeekly posts weekly, rolling and kick reports when a new week has
// completed since the last post. Reports true when something was posted.
func (p *Publisher) MaybePostWeekly(ctx context.Context) (bool, error) {
	weeks, err := p.importer.LastCompletedWeeks(ctx, 1)
	if err != nil {
		return false, err
	}
	if len(weeks) == 0 {
		return false, nil
	}
	latest := weeks[0]

	reported, err := p.store.LoadWeekKey(ctx, storage.KeyLastReportedWeek)
	if err != nil {
		return false, err
	}
	if reported != nil && *reported == latest {
		return false, nil
	}
	if !p.canPost() {
		log.Info().Str("week", latest.String()).Msg("Weekly report ready but no clan chats configured")
		return false, nil
	}

	weekly, err := p.reports.WeeklyFor(ctx, latest)
	if err != nil {
		return false, err
	}
	rolling, err := p.reports.Rolling(ctx)
	if err != nil {
		return false, err
	}
	kickData, err := p.reports.Kick(ctx)
	if err != nil {
		return false, err
	}

	texts := []string{report.Weekly(*weekly)}
	if rolling != nil {
		texts = append(texts, report.Rolling(*rolling))
	}
	texts = append(texts, report.Kick(kickData))

	delivered := 0
	for _, text := range texts {
		delivered += p.broadcast(ctx, text)
	}
	if delivered == 0 {
		log.Warn().Str("week", latest.String()).Msg("Weekly report not delivered to any chat")
		return false, nil
	}

	if err := p.store.SetAppState(ctx, storage.KeyLastReportedWeek, latest); err != nil {
		return true, err
	}

	log.Info().
		Str("week", latest.String()).
		Int("messages", delivered).
		Msg("Posted weekly reports")

	if p.mirror != nil {
		p.exportMirror(ctx, latest, rolling, kickData)
	}
	return true, nil
}

// exportMirror copies the posted tables to the spreadsheet; failures are logged.
func (p *Publisher) exportMirror(ctx context.Context, latest week.Key, rolling *report.RollingData, kickData report.KickData) {
	entries, err := p.store.GetWeekEntries(ctx, latest)
	if err == nil {
		err = p.mirror.ExportWeek(ctx, latest, entries)
	}
	if err != nil {
		log.Warn().Err(err).Str("week", latest.String()).Msg("Failed to mirror weekly leaderboard")
	}

	if rolling != nil {
		tags, err := p.store.GetCurrentMemberTags(ctx, p.config.ClanTag)
		if err == nil {
			var rollingEntries []leaderboard.Entry
			rollingEntries, err = p.store.GetRollingEntries(ctx, rolling.Weeks, tags)
			if err == nil {
				err = p.mirror.ExportRolling(ctx, rolling.Weeks, rollingEntries)
			}
		}
		if err != nil {
			log.Warn().Err(err).Msg("Failed to mirror rolling leaderboard")
		}
	}

	if kickData.LastWeek != nil {
		if err := p.mirror.ExportKickShortlist(ctx, *kickData.LastWeek, kickData.Shortlist); err != nil {
			log.Warn().Err(err).Msg("Failed to mirror kick shortlist")
		}
	}
}

// MaybePostPromotion posts promotion recommendations once per season, after
// the colosseum week has completed.
func (p *Publisher) MaybePostPromotion(ctx context.Context) (bool, error) {
	weeks, err := p.importer.LastCompletedWeeks(ctx, 1)
	if err != nil {
		return false, err
	}
	if len(weeks) == 0 {
		return false, nil
	}
	latest := weeks[0]

	isColosseum, err := p.completedColosseum(ctx, latest)
	if err != nil || !isColosseum {
		return false, err
	}

	postedSeason, found, err := p.store.LoadLastPromoteSeason(ctx)
	if err != nil {
		return false, err
	}
	if found && postedSeason == latest.SeasonID {
		return false, nil
	}
	if !p.canPost() {
		return false, nil
	}

	data, err := p.reports.Promotion(ctx)
	if err != nil {
		return false, err
	}
	if p.broadcast(ctx, report.Promotion(data)) == 0 {
		return false, nil
	}

	if err := p.store.SaveLastPromoteSeason(ctx, latest.SeasonID); err != nil {
		return true, err
	}
	log.Info().Int("season", latest.SeasonID).Msg("Posted promotion recommendations")
	return true, nil
}

func (p *Publisher) completedColosseum(ctx context.Context, k week.Key) (bool, error) {
	state, err := p.store.GetWarWeekState(ctx, p.config.ClanTag, k)
	if err != nil {
		return false, err
	}
	if state != nil && state.IsColosseum {
		return true, nil
	}
	colosseum, err := p.store.LoadColosseumMap(ctx)
	if err != nil {
		return false, err
	}
	is, _ := colosseum.IsColosseum(k)
	return is, nil
}
