package processing

import (
	"context"
	"fmt"

	"riverrace_stats/internal/app"
	"riverrace_stats/internal/domain/week"
	"riverrace_stats/internal/storage"

	"github.com/rs/zerolog/log"
)

// ImportRequest selects log entries: an exact week when Week is set, otherwise
// the Weeks most recent ones (all of them when Weeks <= 0).
type ImportRequest struct {
	Weeks int
	Week  *week.Key
}

// ImportResult counts what was written.
type ImportResult struct {
	Weeks   int
	Players int
}

// Importer copies completed weeks from the race log into the store.
type Importer struct {
	client  ClashRoyaleClientInterface
	store   *storage.Store
	clanTag string
}

// NewImporter creates an importer for one clan
func NewImporter(client ClashRoyaleClientInterface, store *storage.Store, clanTag string) *Importer {
	return &Importer{
		client:  client,
		store:   store,
		clanTag: app.NormalizeTag(clanTag),
	}
}

// Import fetches the race log and upserts the selected weeks.
// Running it again for the same weeks rewrites the same rows.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	entries, err := im.client.GetRiverRaceLog(ctx, im.clanTag)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to fetch river race log: %w", err)
	}
	return im.ImportEntries(ctx, entries, req)
}

// ImportEntries upserts the selected log entries in one transaction.
// Entries without the clan's standing or with a non-positive season are skipped.
func (im *Importer) ImportEntries(ctx context.Context, entries []app.RiverRaceLogEntry, req ImportRequest) (ImportResult, error) {
	selected := selectLogEntries(entries, req)

	var result ImportResult
	err := im.store.WithTx(ctx, func(tx *storage.Store) error {
		colosseum, err := tx.LoadColosseumMap(ctx)
		if err != nil {
			return err
		}

		for _, entry := range selected {
			k := week.Key{SeasonID: entry.SeasonID, SectionIndex: entry.SectionIndex}
			if !k.Valid() {
				log.Warn().
					Int("season_id", entry.SeasonID).
					Int("section_index", entry.SectionIndex).
					Msg("Skipping race log entry with invalid week")
				continue
			}

			standing, ok := entry.StandingFor(im.clanTag)
			if !ok {
				log.Debug().
					Str("week", k.String()).
					Str("clan_tag", im.clanTag).
					Msg("Race log entry has no standing for clan")
				continue
			}

			isColosseum := week.ResolveColosseum(entry.IsColosseum, k, colosseum, week.NormalizePeriod(entry.PeriodType))

			if err := tx.UpsertWarWeekState(ctx, storage.WarWeekFields{
				ClanTag:     im.clanTag,
				Week:        k,
				Period:      week.PeriodCompleted,
				IsColosseum: isColosseum,
				ClanScore:   standing.Clan.Fame,
			}); err != nil {
				return err
			}

			players := 0
			for _, p := range standing.Clan.Participants {
				fields, ok := storage.ParticipationFromAPI(p, k, isColosseum)
				if !ok {
					continue
				}
				if err := tx.UpsertParticipation(ctx, fields); err != nil {
					return err
				}
				players++
			}

			result.Weeks++
			result.Players += players

			log.Info().
				Str("week", k.String()).
				Bool("is_colosseum", isColosseum).
				Int("players", players).
				Msg("Imported week from race log")
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to import race log: %w", err)
	}
	return result, nil
}

func selectLogEntries(entries []app.RiverRaceLogEntry, req ImportRequest) []app.RiverRaceLogEntry {
	if req.Week != nil {
		for _, entry := range entries {
			if entry.SeasonID == req.Week.SeasonID && entry.SectionIndex == req.Week.SectionIndex {
				return []app.RiverRaceLogEntry{entry}
			}
		}
		return nil
	}

	selected := make([]app.RiverRaceLogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.SeasonID <= 0 {
			continue
		}
		selected = append(selected, entry)
		if req.Weeks > 0 && len(selected) == req.Weeks {
			break
		}
	}
	return selected
}

// LastCompletedWeeks returns up to n completed weeks, newest first. The race log
// is authoritative; when it can't be fetched the stored weeks are used, minus
// the week still running.
func (im *Importer) LastCompletedWeeks(ctx context.Context, n int) ([]week.Key, error) {
	if n <= 0 {
		return nil, nil
	}

	entries, err := im.client.GetRiverRaceLog(ctx, im.clanTag)
	if err == nil {
		seen := make(map[week.Key]struct{}, n)
		weeks := make([]week.Key, 0, n)
		for _, entry := range entries {
			k := week.Key{SeasonID: entry.SeasonID, SectionIndex: entry.SectionIndex}
			if !k.Valid() {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			weeks = append(weeks, k)
			if len(weeks) == n {
				break
			}
		}
		return weeks, nil
	}

	log.Warn().
		Err(err).
		Msg("Race log unavailable, falling back to stored weeks")

	active, loadErr := im.store.LoadActiveWeek(ctx)
	if loadErr != nil {
		return nil, loadErr
	}
	var exclude *week.Key
	if active.Valid() {
		k := active.Key()
		exclude = &k
	}
	return im.store.GetLastWeeksFromDB(ctx, im.clanTag, n, exclude)
}
