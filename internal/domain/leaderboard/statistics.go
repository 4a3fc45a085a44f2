package leaderboard

import "sort"

// Summary holds the clan-wide averages shown under a leaderboard.
type Summary struct {
	Players     int
	TotalFame   int
	TotalDecks  int
	AvgDecks    float64
	AvgFame     float64
	MedianDecks float64
	MedianFame  float64
	ZeroDecks   int
	FullDecks   int
}

// FullWeekDecks is the number of decks a player can use in one week (4 war days x 4).
const FullWeekDecks = 16

// Summarize computes totals, averages and medians over entries.
// Pure function: No I/O operations, fully testable with direct inputs.
func Summarize(entries []Entry) Summary {
	summary := Summary{Players: len(entries)}
	if len(entries) == 0 {
		return summary
	}

	decks := make([]int, 0, len(entries))
	fame := make([]int, 0, len(entries))
	for _, entry := range entries {
		summary.TotalDecks += entry.DecksUsed
		summary.TotalFame += entry.Fame
		decks = append(decks, entry.DecksUsed)
		fame = append(fame, entry.Fame)
		if entry.DecksUsed == 0 {
			summary.ZeroDecks++
		}
		if entry.DecksUsed >= FullWeekDecks {
			summary.FullDecks++
		}
	}

	summary.AvgDecks = float64(summary.TotalDecks) / float64(len(entries))
	summary.AvgFame = float64(summary.TotalFame) / float64(len(entries))
	summary.MedianDecks = Median(decks)
	summary.MedianFame = Median(fame)
	return summary
}

// Median returns the median of values, 0 for an empty slice.
func Median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
