package kick

import "sort"

// strictStage: established members below the deck minimum in the last completed week,
// ordered decks asc, fame asc.
func strictStage(v view, taken map[string]struct{}) []Candidate {
	candidates := v.eligible(taken, func(tag string) bool {
		return !v.isNewMember(tag) && v.lastWeek[tag].DecksUsed < v.rules.MinDecks
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.LastWeekDecks != b.LastWeekDecks {
			return a.LastWeekDecks < b.LastWeekDecks
		}
		if a.LastWeekFame != b.LastWeekFame {
			return a.LastWeekFame < b.LastWeekFame
		}
		return a.PlayerTag < b.PlayerTag
	})
	return candidates
}

// weakestRollingStage: established members below the deck minimum summed over the
// rolling window, same ordering on the rolling sums.
func weakestRollingStage(v view, taken map[string]struct{}) []Candidate {
	weeks := v.in.RollingWeeks
	if weeks < 1 {
		weeks = 1
	}
	threshold := v.rules.MinDecks * weeks
	candidates := v.eligible(taken, func(tag string) bool {
		return !v.isNewMember(tag) && v.rolling[tag].DecksUsed < threshold
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.RollingDecks != b.RollingDecks {
			return a.RollingDecks < b.RollingDecks
		}
		if a.RollingFame != b.RollingFame {
			return a.RollingFame < b.RollingFame
		}
		return a.PlayerTag < b.PlayerTag
	})
	return candidates
}

// revivedStage: members with 0 decks last week after at least RevivedDecks the
// week before, ordered by prior-week decks asc.
func revivedStage(v view, taken map[string]struct{}) []Candidate {
	candidates := v.eligible(taken, func(tag string) bool {
		return !v.isNewMember(tag) &&
			v.lastWeek[tag].DecksUsed == 0 &&
			v.in.PriorWeekDecks[tag] >= v.rules.RevivedDecks
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.PriorWeekDecks != b.PriorWeekDecks {
			return a.PriorWeekDecks < b.PriorWeekDecks
		}
		return a.PlayerTag < b.PlayerTag
	})
	return candidates
}

// newMembersStage: new members below the deck minimum last week, ordered by
// fewest weeks played, then fewest decks.
func newMembersStage(v view, taken map[string]struct{}) []Candidate {
	candidates := v.eligible(taken, func(tag string) bool {
		return v.isNewMember(tag) && v.lastWeek[tag].DecksUsed < v.rules.MinDecks
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.WeeksPlayed != b.WeeksPlayed {
			return a.WeeksPlayed < b.WeeksPlayed
		}
		if a.LastWeekDecks != b.LastWeekDecks {
			return a.LastWeekDecks < b.LastWeekDecks
		}
		return a.PlayerTag < b.PlayerTag
	})
	return candidates
}

// nearestThresholdStage picks the member(s) with the smallest margin over the
// deck and fame minimums in the last completed week. Ties on both margins are
// all returned, up to limit.
func nearestThresholdStage(v view, limit int) []Candidate {
	candidates := v.eligible(map[string]struct{}{}, func(string) bool { return true })
	if len(candidates) == 0 {
		return nil
	}

	for i := range candidates {
		candidates[i].DecksDelta = candidates[i].LastWeekDecks - v.rules.MinDecks
		candidates[i].FameDelta = candidates[i].LastWeekFame - v.rules.MinFame
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DecksDelta != b.DecksDelta {
			return a.DecksDelta < b.DecksDelta
		}
		if a.FameDelta != b.FameDelta {
			return a.FameDelta < b.FameDelta
		}
		return a.PlayerTag < b.PlayerTag
	})

	best := candidates[0]
	nearest := []Candidate{best}
	for _, c := range candidates[1:] {
		if len(nearest) >= limit || c.DecksDelta != best.DecksDelta || c.FameDelta != best.FameDelta {
			break
		}
		nearest = append(nearest, c)
	}
	return nearest
}
