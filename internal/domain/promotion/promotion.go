package promotion

import (
	"sort"

	"riverrace_stats/internal/app"
)

// Score weights for the elder ranking.
const (
	fameWeight      = 0.55
	decksWeight     = 0.30
	donationsWeight = 0.15

	// coLeaderTopN is the rank a co-leader candidate must reach in both avg fame and donations.
	coLeaderTopN = 3
)

// Stats is one current member's record over the rolling window.
type Stats struct {
	PlayerTag     string
	PlayerName    string
	Role          string
	WeeksPlayed   int
	ActiveWeeks   int
	AvgDecks      float64
	AvgFame       float64
	AllTimeWeeks  int
	DonationsSum  int
	DonationWeeks int
}

// DonationsAvg is the mean weekly donations over the weeks with donation data.
func (s Stats) DonationsAvg() float64 {
	if s.DonationWeeks <= 0 {
		return 0
	}
	return float64(s.DonationsSum) / float64(s.DonationWeeks)
}

// TierRules are the requirements for one promotion tier.
type TierRules struct {
	MinWeeksPlayed  int
	MinActiveWeeks  int
	MinAvgDecks     float64
	MinAllTimeWeeks int
	Limit           int
}

// Rules configures Select.
type Rules struct {
	Elder    TierRules
	CoLeader TierRules
	// NewMemberWeeks: members with at most this many all-time weeks are skipped.
	NewMemberWeeks int
	Protected      map[string]struct{}
}

// Candidate is a member recommended for promotion.
type Candidate struct {
	Stats
	Score float64
}

// Note explains why a tier came back short.
type Note string

const (
	NoteNoDonationData Note = "no_donation_data"
	NoteProtected      Note = "protected_excluded"
	NoteNewMembers     Note = "new_members_excluded"
)

// Result holds both tiers plus notes for the formatter.
type Result struct {
	Elder              []Candidate
	CoLeader           []Candidate
	DonationsAvailable bool
	Notes              []Note
	ProtectedSkipped   int
	NewMembersSkipped  int
}

func minMaxNorm(value, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (value - lo) / (hi - lo)
}

type bounds struct{ lo, hi float64 }

func boundsOf(rows []Stats, f func(Stats) float64) bounds {
	if len(rows) == 0 {
		return bounds{}
	}
	b := bounds{lo: f(rows[0]), hi: f(rows[0])}
	for _, row := range rows[1:] {
		v := f(row)
		if v < b.lo {
			b.lo = v
		}
		if v > b.hi {
			b.hi = v
		}
	}
	return b
}

// Select ranks elder and co-leader candidates among current members.
// Pure function: No I/O operations, deterministic for a fixed input.
func Select(members []Stats, rules Rules) Result {
	var result Result

	rows := make([]Stats, 0, len(members))
	for _, m := range members {
		if _, ok := rules.Protected[m.PlayerTag]; ok {
			result.ProtectedSkipped++
			continue
		}
		rows = append(rows, m)
	}

	for _, row := range rows {
		if row.DonationWeeks > 0 {
			result.DonationsAvailable = true
			break
		}
	}

	fame := boundsOf(rows, func(s Stats) float64 { return s.AvgFame })
	decks := boundsOf(rows, func(s Stats) float64 { return s.AvgDecks })
	don := boundsOf(rows, func(s Stats) float64 { return s.DonationsAvg() })

	topFame := topTags(rows, coLeaderTopN, func(a, b Stats) bool {
		if a.AvgFame != b.AvgFame {
			return a.AvgFame > b.AvgFame
		}
		return byName(a, b)
	})
	var topDonations map[string]struct{}
	if result.DonationsAvailable {
		topDonations = topTags(rows, coLeaderTopN, func(a, b Stats) bool {
			if a.DonationsSum != b.DonationsSum {
				return a.DonationsSum > b.DonationsSum
			}
			return byName(a, b)
		})
	}

	for _, row := range rows {
		if row.AllTimeWeeks <= rules.NewMemberWeeks {
			result.NewMembersSkipped++
			continue
		}

		role := app.NormalizeRole(row.Role)

		if role != app.RoleElder && role != app.RoleCoLeader && role != app.RoleLeader && meets(row, rules.Elder) {
			score := fameWeight*minMaxNorm(row.AvgFame, fame.lo, fame.hi) +
				decksWeight*minMaxNorm(row.AvgDecks, decks.lo, decks.hi)
			if result.DonationsAvailable {
				score += donationsWeight * minMaxNorm(row.DonationsAvg(), don.lo, don.hi)
			}
			result.Elder = append(result.Elder, Candidate{Stats: row, Score: score})
		}

		if result.DonationsAvailable && role == app.RoleElder && meets(row, rules.CoLeader) {
			_, inFame := topFame[row.PlayerTag]
			_, inDon := topDonations[row.PlayerTag]
			if inFame && inDon {
				result.CoLeader = append(result.CoLeader, Candidate{Stats: row})
			}
		}
	}

	sort.SliceStable(result.Elder, func(i, j int) bool {
		a, b := result.Elder[i], result.Elder[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ActiveWeeks != b.ActiveWeeks {
			return a.ActiveWeeks > b.ActiveWeeks
		}
		if a.DonationsSum != b.DonationsSum {
			return a.DonationsSum > b.DonationsSum
		}
		return byName(a.Stats, b.Stats)
	})
	result.Elder = capList(result.Elder, rules.Elder.Limit)

	sort.SliceStable(result.CoLeader, func(i, j int) bool {
		a, b := result.CoLeader[i], result.CoLeader[j]
		if a.AvgFame != b.AvgFame {
			return a.AvgFame > b.AvgFame
		}
		if a.DonationsSum != b.DonationsSum {
			return a.DonationsSum > b.DonationsSum
		}
		return byName(a.Stats, b.Stats)
	})
	result.CoLeader = capList(result.CoLeader, rules.CoLeader.Limit)

	if !result.DonationsAvailable {
		result.Notes = append(result.Notes, NoteNoDonationData)
	}
	if result.ProtectedSkipped > 0 {
		result.Notes = append(result.Notes, NoteProtected)
	}
	if result.NewMembersSkipped > 0 {
		result.Notes = append(result.Notes, NoteNewMembers)
	}

	return result
}

func meets(s Stats, t TierRules) bool {
	return s.WeeksPlayed >= t.MinWeeksPlayed &&
		s.ActiveWeeks >= t.MinActiveWeeks &&
		s.AvgDecks >= t.MinAvgDecks &&
		s.AllTimeWeeks >= t.MinAllTimeWeeks
}

// byName orders by name, then tag, so every sort is total.
func byName(a, b Stats) bool {
	if a.PlayerName != b.PlayerName {
		return a.PlayerName < b.PlayerName
	}
	return a.PlayerTag < b.PlayerTag
}

func topTags(rows []Stats, n int, less func(a, b Stats) bool) map[string]struct{} {
	sorted := make([]Stats, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	top := make(map[string]struct{}, n)
	for i := 0; i < len(sorted) && i < n; i++ {
		top[sorted[i].PlayerTag] = struct{}{}
	}
	return top
}

func capList(list []Candidate, limit int) []Candidate {
	if limit <= 0 {
		return nil
	}
	if len(list) > limit {
		return list[:limit]
	}
	return list
}
