package leaderboard

import (
	"sort"
)

// Entry is one player's participation, for a single week or summed over a window.
type Entry struct {
	PlayerTag   string
	PlayerName  string
	DecksUsed   int
	Fame        int
	WeeksPlayed int
}

// Board holds the two ranked views of the same entries.
type Board struct {
	Inactive []Entry
	Active   []Entry
}

// lessInactive orders by decks asc, fame asc, then tag for a total order.
func lessInactive(a, b Entry) bool {
	if a.DecksUsed != b.DecksUsed {
		return a.DecksUsed < b.DecksUsed
	}
	if a.Fame != b.Fame {
		return a.Fame < b.Fame
	}
	return a.PlayerTag < b.PlayerTag
}

// lessActive orders by decks desc, fame desc, then tag.
func lessActive(a, b Entry) bool {
	if a.DecksUsed != b.DecksUsed {
		return a.DecksUsed > b.DecksUsed
	}
	if a.Fame != b.Fame {
		return a.Fame > b.Fame
	}
	return a.PlayerTag < b.PlayerTag
}

func byName(a, b Entry) bool {
	if a.PlayerName != b.PlayerName {
		return a.PlayerName < b.PlayerName
	}
	return a.PlayerTag < b.PlayerTag
}

// TopByDecks orders by decks desc, fame desc, then name, capped at limit.
func TopByDecks(entries []Entry, limit int) []Entry {
	return rank(entries, limit, func(a, b Entry) bool {
		if a.DecksUsed != b.DecksUsed {
			return a.DecksUsed > b.DecksUsed
		}
		if a.Fame != b.Fame {
			return a.Fame > b.Fame
		}
		return byName(a, b)
	})
}

// TopByFame orders by fame desc, decks desc, then name, capped at limit.
func TopByFame(entries []Entry, limit int) []Entry {
	return rank(entries, limit, func(a, b Entry) bool {
		if a.Fame != b.Fame {
			return a.Fame > b.Fame
		}
		if a.DecksUsed != b.DecksUsed {
			return a.DecksUsed > b.DecksUsed
		}
		return byName(a, b)
	})
}

// RankInactive returns a new slice ordered most-inactive first, capped at limit (<=0 means no cap).
// Pure function: Does not modify input slice
func RankInactive(entries []Entry, limit int) []Entry {
	return rank(entries, limit, lessInactive)
}

// RankActive returns a new slice ordered most-active first, capped at limit (<=0 means no cap).
// Pure function: Does not modify input slice
func RankActive(entries []Entry, limit int) []Entry {
	return rank(entries, limit, lessActive)
}

func rank(entries []Entry, limit int, less func(a, b Entry) bool) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)

	sort.Slice(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// Build ranks the current members over entries. Members without an entry count
// as zero, former members are dropped and protected tags never appear among the
// inactive. Both views share the same limit.
func Build(entries []Entry, members map[string]string, protected map[string]struct{}, limit int) Board {
	current := FillMembers(entries, members)
	return Board{
		Inactive: RankInactive(ExcludeTags(current, protected), limit),
		Active:   RankActive(current, limit),
	}
}

// RestrictToMembers drops entries whose tag is not in members.
// An empty member set yields no entries.
func RestrictToMembers(entries []Entry, members map[string]struct{}) []Entry {
	filtered := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if _, ok := members[entry.PlayerTag]; ok {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// ExcludeTags drops entries whose tag is in excluded.
func ExcludeTags(entries []Entry, excluded map[string]struct{}) []Entry {
	if len(excluded) == 0 {
		return entries
	}
	filtered := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if _, skip := excluded[entry.PlayerTag]; !skip {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// FillMembers returns one entry per member: the existing entry when present,
// otherwise a zero entry named from members. Order follows tag.
func FillMembers(entries []Entry, members map[string]string) []Entry {
	byTag := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		byTag[entry.PlayerTag] = entry
	}

	filled := make([]Entry, 0, len(members))
	for tag, name := range members {
		entry, ok := byTag[tag]
		if !ok {
			entry = Entry{PlayerTag: tag, PlayerName: name}
		}
		if entry.PlayerName == "" {
			entry.PlayerName = name
		}
		filled = append(filled, entry)
	}

	sort.Slice(filled, func(i, j int) bool {
		return filled[i].PlayerTag < filled[j].PlayerTag
	})
	return filled
}
