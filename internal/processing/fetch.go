package processing

import (
	"context"
	"fmt"
	"time"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/domain/week"
	"riverrace_stats/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FetchResult summarises one fetch cycle.
type FetchResult struct {
	CycleID      string
	Resolution   week.Resolution
	Period       week.Period
	IsColosseum  bool
	Members      int
	Participants int
	// Backfilled is set when the previous week was imported during training.
	Backfilled *week.Key
}

type cacheClearer interface {
	ClearCache()
}

// FetchService runs the periodic collection cycle: roster, donations, week
// resolution and participation, all committed in one transaction.
type FetchService struct {
	client   ClashRoyaleClientInterface
	store    *storage.Store
	importer *Importer
	tracker  *APICallTracker
	clanTag  string
	now      func() time.Time
}

// NewFetchService creates a fetch service. tracker may be nil.
func NewFetchService(client ClashRoyaleClientInterface, store *storage.Store, importer *Importer, tracker *APICallTracker, clanTag string) *FetchService {
	return &FetchService{
		client:   client,
		store:    store,
		importer: importer,
		tracker:  tracker,
		clanTag:  app.NormalizeTag(clanTag),
		now:      time.Now,
	}
}

// Run executes one cycle. Upstream and storage failures abort the cycle with
// nothing committed; a members failure only skips the roster writes.
func (f *FetchService) Run(ctx context.Context) (FetchResult, error) {
	result := FetchResult{CycleID: uuid.NewString()}
	logger := log.With().Str("cycle_id", result.CycleID).Str("clan_tag", f.clanTag).Logger()
	now := f.now().UTC()

	if f.tracker != nil {
		f.tracker.ResetSession()
		defer f.tracker.LogSessionSummary(result.CycleID)
	}

	race, err := f.client.GetCurrentRiverRace(ctx, f.clanTag)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch current river race")
		return result, fmt.Errorf("failed to fetch current river race: %w", err)
	}
	if race == nil {
		return result, fmt.Errorf("empty current river race response")
	}

	members, err := f.client.GetClanMembers(ctx, f.clanTag)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch clan members, skipping roster snapshot")
		members = nil
	}

	result.Period = week.NormalizePeriod(race.PeriodType)
	var backfillFrom *week.Key
	var rolledOver bool

	err = f.store.WithTx(ctx, func(tx *storage.Store) error {
		if len(members) > 0 {
			written, err := tx.UpsertRosterSnapshot(ctx, f.clanTag, now, members)
			if err != nil {
				return err
			}
			if err := tx.UpsertDonationsWeekly(ctx, f.clanTag, now, members); err != nil {
				return err
			}
			result.Members = written
		}

		prev, err := tx.LoadActiveWeek(ctx)
		if err != nil {
			return err
		}
		res := week.Resolve(prev, week.NewObservation(race.SeasonID, race.SectionIndex), now)
		result.Resolution = res
		rolledOver = prev != nil && res.Resolved && prev.Key() != res.Week

		logResolution(logger, res, result.Period)

		if res.Changed && res.Next != nil {
			if err := tx.SaveActiveWeek(ctx, *res.Next); err != nil {
				return err
			}
		}

		if !res.Resolved {
			logger.Warn().Msg("Week unresolved, skipping participation writes")
			return nil
		}
		k := res.Week

		colosseum, err := tx.LoadColosseumMap(ctx)
		if err != nil {
			return err
		}
		if result.Period == week.PeriodColosseum && colosseum.Learn(k.SeasonID, k.SectionIndex) {
			if err := tx.SaveColosseumMap(ctx, colosseum); err != nil {
				return err
			}
			logger.Info().
				Int("season", k.SeasonID).
				Int("section", k.SectionIndex).
				Msg("Learned colosseum week")
		}
		result.IsColosseum = week.ResolveColosseum(nil, k, colosseum, result.Period)

		state := storage.WarWeekFields{
			ClanTag:     f.clanTag,
			Week:        k,
			Period:      result.Period,
			IsColosseum: result.IsColosseum,
			ClanScore:   race.Clan.Fame,
		}

		if result.Period == week.PeriodTraining {
			backfillFrom = &k
			return tx.UpsertWarWeekState(ctx, state)
		}

		for _, p := range race.Clan.Participants {
			fields, ok := storage.ParticipationFromAPI(p, k, result.IsColosseum)
			if !ok {
				continue
			}
			if err := tx.UpsertParticipation(ctx, fields); err != nil {
				return err
			}
			if err := tx.UpsertDailySnapshot(ctx, fields, now); err != nil {
				return err
			}
			result.Participants++
		}

		return tx.UpsertWarWeekState(ctx, state)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Fetch cycle rolled back")
		return result, fmt.Errorf("fetch cycle failed: %w", err)
	}

	logger.Info().
		Int("members", result.Members).
		Int("participants", result.Participants).
		Bool("is_colosseum", result.IsColosseum).
		Msg("Fetch cycle committed")

	// The cached race log predates the week that just completed.
	if rolledOver {
		if cache, ok := f.client.(cacheClearer); ok {
			cache.ClearCache()
		}
	}

	if backfillFrom != nil {
		result.Backfilled = f.backfillPrevious(ctx, logger, *backfillFrom)
	}

	return result, nil
}

func logResolution(logger zerolog.Logger, res week.Resolution, period week.Period) {
	event := logger.Info().
		Str("source", string(res.Source)).
		Str("period", string(period))
	if res.Resolved {
		event = event.
			Int("season", res.Week.SeasonID).
			Int("section", res.Week.SectionIndex)
	}
	event.Bool("changed", res.Changed).Msg("Resolved active week")
}

// backfillPrevious imports the week before current unless it is already stored
// as completed. Failures are logged; the next training cycle tries again.
func (f *FetchService) backfillPrevious(ctx context.Context, logger zerolog.Logger, current week.Key) *week.Key {
	target, ok := current.Previous()
	if !ok {
		weeks, err := f.importer.LastCompletedWeeks(ctx, 1)
		if err != nil || len(weeks) == 0 {
			logger.Warn().Err(err).Msg("No previous week to backfill")
			return nil
		}
		target = weeks[0]
	}

	state, err := f.store.GetWarWeekState(ctx, f.clanTag, target)
	if err != nil {
		logger.Warn().Err(err).Str("week", target.String()).Msg("Failed to check previous week")
		return nil
	}
	if state != nil && week.Period(state.PeriodType) == week.PeriodCompleted {
		return nil
	}

	imported, err := f.importer.Import(ctx, ImportRequest{Week: &target})
	if err != nil {
		logger.Warn().Err(err).Str("week", target.String()).Msg("Backfill of previous week failed")
		return nil
	}

	logger.Info().
		Str("week", target.String()).
		Int("weeks", imported.Weeks).
		Int("players", imported.Players).
		Msg("Backfilled previous week")
	if imported.Weeks == 0 {
		return nil
	}
	return &target
}
