package storage

import (
	"context"
	"fmt"

	"riverrace_stats/internal/domain/leaderboard"
	"riverrace_stats/internal/domain/week"
)

type aggregateRow struct {
	PlayerTag   string
	PlayerName  string
	DecksUsed   int
	Fame        int
	WeeksPlayed int
	ActiveWeeks int
}

func weekPairs(weeks []week.Key) [][]interface{} {
	pairs := make([][]interface{}, 0, len(weeks))
	for _, k := range weeks {
		pairs = append(pairs, []interface{}{k.SeasonID, k.SectionIndex})
	}
	return pairs
}

func tagList(tags map[string]struct{}) []string {
	list := make([]string, 0, len(tags))
	for tag := range tags {
		list = append(list, tag)
	}
	return list
}

// GetRollingEntries sums fame and decks per player across weeks, for the given
// players only. One query per call.
func (s *Store) GetRollingEntries(ctx context.Context, weeks []week.Key, members map[string]struct{}) ([]leaderboard.Entry, error) {
	if len(weeks) == 0 || len(members) == 0 {
		return nil, nil
	}

	var rows []aggregateRow
	err := s.conn(ctx).Model(&ParticipationRecord{}).
		Select("player_tag, MAX(player_name) AS player_name, SUM(decks_used) AS decks_used, SUM(fame) AS fame, COUNT(*) AS weeks_played").
		Where("(season_id, section_index) IN ?", weekPairs(weeks)).
		Where("player_tag IN ?", tagList(members)).
		Group("player_tag").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate rolling window: %w", err)
	}

	entries := make([]leaderboard.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, leaderboard.Entry{
			PlayerTag:   row.PlayerTag,
			PlayerName:  row.PlayerName,
			DecksUsed:   row.DecksUsed,
			Fame:        row.Fame,
			WeeksPlayed: row.WeeksPlayed,
		})
	}
	return entries, nil
}

// GetRollingLeaderboard ranks current members over the given weeks. members
// maps tag to name; former members never appear, even with history in those
// weeks, and members without records rank with zero. An empty window yields an
// empty board.
func (s *Store) GetRollingLeaderboard(ctx context.Context, weeks []week.Key, members map[string]string, protected map[string]struct{}, limit int) (leaderboard.Board, error) {
	if len(weeks) == 0 || len(members) == 0 {
		return leaderboard.Board{}, nil
	}
	tags := make(map[string]struct{}, len(members))
	for tag := range members {
		tags[tag] = struct{}{}
	}
	entries, err := s.GetRollingEntries(ctx, weeks, tags)
	if err != nil {
		return leaderboard.Board{}, err
	}
	return leaderboard.Build(entries, members, protected, limit), nil
}

// GetWeekLeaderboard ranks current members for a single week.
func (s *Store) GetWeekLeaderboard(ctx context.Context, k week.Key, members map[string]string, protected map[string]struct{}, limit int) (leaderboard.Board, error) {
	return s.GetRollingLeaderboard(ctx, []week.Key{k}, members, protected, limit)
}

// GetParticipationWeekCounts returns, per player, the number of weeks on record (all time).
func (s *Store) GetParticipationWeekCounts(ctx context.Context, tags map[string]struct{}) (map[string]int, error) {
	counts := make(map[string]int, len(tags))
	if len(tags) == 0 {
		return counts, nil
	}

	var rows []aggregateRow
	err := s.conn(ctx).Model(&ParticipationRecord{}).
		Select("player_tag, COUNT(*) AS weeks_played").
		Where("player_tag IN ?", tagList(tags)).
		Group("player_tag").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count participation weeks: %w", err)
	}
	for _, row := range rows {
		counts[row.PlayerTag] = row.WeeksPlayed
	}
	return counts, nil
}

// GetWeekDecksMap returns decks used in one week for the given players.
func (s *Store) GetWeekDecksMap(ctx context.Context, k week.Key, tags map[string]struct{}) (map[string]int, error) {
	decks := make(map[string]int, len(tags))
	if len(tags) == 0 {
		return decks, nil
	}

	var records []ParticipationRecord
	err := s.conn(ctx).
		Select("player_tag", "decks_used").
		Where("season_id = ? AND section_index = ?", k.SeasonID, k.SectionIndex).
		Where("player_tag IN ?", tagList(tags)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load week decks: %w", err)
	}
	for _, r := range records {
		decks[r.PlayerTag] = r.DecksUsed
	}
	return decks, nil
}

// WarStats summarises one player's participation over a window of weeks.
type WarStats struct {
	WeeksPlayed int
	ActiveWeeks int
	AvgDecks    float64
	AvgFame     float64
}

// GetWarStatsForWeeks computes per-player window stats. A week counts as active
// when decks_used >= activeMinDecks; averages are over weeks played.
func (s *Store) GetWarStatsForWeeks(ctx context.Context, weeks []week.Key, tags map[string]struct{}, activeMinDecks int) (map[string]WarStats, error) {
	stats := make(map[string]WarStats, len(tags))
	if len(weeks) == 0 || len(tags) == 0 {
		return stats, nil
	}

	var rows []aggregateRow
	err := s.conn(ctx).Model(&ParticipationRecord{}).
		Select("player_tag, SUM(decks_used) AS decks_used, SUM(fame) AS fame, COUNT(*) AS weeks_played, "+
			"SUM(CASE WHEN decks_used >= ? THEN 1 ELSE 0 END) AS active_weeks", activeMinDecks).
		Where("(season_id, section_index) IN ?", weekPairs(weeks)).
		Where("player_tag IN ?", tagList(tags)).
		Group("player_tag").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute war stats: %w", err)
	}

	for _, row := range rows {
		if row.WeeksPlayed == 0 {
			continue
		}
		stats[row.PlayerTag] = WarStats{
			WeeksPlayed: row.WeeksPlayed,
			ActiveWeeks: row.ActiveWeeks,
			AvgDecks:    float64(row.DecksUsed) / float64(row.WeeksPlayed),
			AvgFame:     float64(row.Fame) / float64(row.WeeksPlayed),
		}
	}
	return stats, nil
}
